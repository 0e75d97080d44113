package models

import "time"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 500
)

// sortColumns maps the public sort field names onto store columns.
var sortColumns = map[string]string{
	"listedDate":  "listed_date",
	"updatedDate": "updated_date",
	"price":       "price",
	"area":        "area",
	"rooms":       "rooms",
	"title":       "title",
}

// ListingFilter selects listings. Nil pointers and empty strings mean "no constraint".
type ListingFilter struct {
	City         string
	District     string
	PropertyType string
	MinPrice     *int64
	MaxPrice     *int64
	MinArea      *float64
	MaxArea      *float64
	Rooms        *int
	Active       *bool
	ListedSince  *time.Time
	HasLocation  bool

	Limit  int
	Offset int
	Sort   string
	Order  string
}

// Normalize drops "all" placeholders, clamps paging and whitelists the sort field.
func (f ListingFilter) Normalize() ListingFilter {
	if f.City == "all" {
		f.City = ""
	}
	if f.District == "all" {
		f.District = ""
	}
	if f.PropertyType == "all" {
		f.PropertyType = ""
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if _, ok := sortColumns[f.Sort]; !ok {
		f.Sort = "listedDate"
	}
	if f.Order != "asc" {
		f.Order = "desc"
	}
	return f
}

// SortColumn returns the store column for the (normalized) sort field.
func (f ListingFilter) SortColumn() string {
	if col, ok := sortColumns[f.Sort]; ok {
		return col
	}
	return "listed_date"
}

// Matches reports whether l satisfies every constraint of the filter.
// Paging and sorting are not considered.
func (f ListingFilter) Matches(l *Listing) bool {
	switch {
	case f.City != "" && l.City != f.City:
		return false
	case f.District != "" && l.District != f.District:
		return false
	case f.PropertyType != "" && l.PropertyType != f.PropertyType:
		return false
	case f.MinPrice != nil && l.Price < *f.MinPrice:
		return false
	case f.MaxPrice != nil && l.Price > *f.MaxPrice:
		return false
	case f.MinArea != nil && l.Area < *f.MinArea:
		return false
	case f.MaxArea != nil && l.Area > *f.MaxArea:
		return false
	case f.Rooms != nil && (l.Rooms == nil || *l.Rooms != *f.Rooms):
		return false
	case f.Active != nil && l.Active != *f.Active:
		return false
	case f.ListedSince != nil && l.ListedDate.Before(*f.ListedSince):
		return false
	case f.HasLocation && !l.HasLocation():
		return false
	}
	return true
}

// Bounds is a latitude/longitude rectangle used to pre-filter geo queries.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether the listing's coordinates fall inside the rectangle.
func (b Bounds) Contains(l *Listing) bool {
	if !l.HasLocation() {
		return false
	}
	lat, lng := *l.Latitude, *l.Longitude
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}
