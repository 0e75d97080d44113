package services

import (
	"errors"
	"strings"
	"unicode"

	"realestate-lt/models"
	"realestate-lt/utils"
)

var (
	errMissingTitle = errors.New("listing has no title")
	errMissingCity  = errors.New("listing has no city")
	errNegative     = errors.New("listing has a negative price or area")
)

var knownTypes = func() map[string]struct{} {
	m := make(map[string]struct{}, len(models.PropertyTypes))
	for _, t := range models.PropertyTypes {
		m[t] = struct{}{}
	}
	return m
}()

// Cleaner normalises raw scrape output before reconciliation.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Normalize returns a cleaned copy of r. Text fields are trimmed and inner
// whitespace collapsed, the property type is lower-cased (unknown types become
// "other") and empty image URLs are dropped. A record without title or city is
// rejected.
func (c *Cleaner) Normalize(r *models.RawListing) (*models.RawListing, error) {
	out := *r
	out.Title = normaliseText(r.Title)
	out.City = normaliseText(r.City)
	out.District = normaliseText(r.District)
	out.Street = normaliseText(r.Street)
	out.URL = strings.TrimSpace(r.URL)
	out.SourceID = strings.TrimSpace(r.SourceID)
	out.HeatingType = normaliseText(r.HeatingType)
	out.EnergyClass = strings.ToUpper(normaliseText(r.EnergyClass))
	out.PropertyType = normaliseType(r.PropertyType)

	switch {
	case out.Title == "":
		return nil, errMissingTitle
	case out.City == "":
		return nil, errMissingCity
	case out.Price < 0 || out.Area < 0:
		return nil, errNegative
	}

	out.Images = nil
	for _, img := range r.Images {
		if img = strings.TrimSpace(img); img != "" {
			out.Images = append(out.Images, img)
		}
	}
	return &out, nil
}

// Address builds the geocoding query for a listing: street, district and city
// joined by commas, skipping empty parts. The country suffix is added by the geocoder.
func Address(r *models.RawListing) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Street, r.District, r.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

func normaliseType(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return models.PropertyOther
	}
	if _, ok := knownTypes[t]; !ok {
		return models.PropertyOther
	}
	return t
}
