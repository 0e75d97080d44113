package models

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Property types accepted by the store. Anything else is stored as PropertyOther.
const (
	PropertyFlat       = "flat"
	PropertyHouse      = "house"
	PropertyLand       = "land"
	PropertyCommercial = "commercial"
	PropertyCottage    = "cottage"
	PropertyOther      = "other"
)

// PropertyTypes lists every known property type.
var PropertyTypes = []string{
	PropertyFlat, PropertyHouse, PropertyLand, PropertyCommercial, PropertyCottage, PropertyOther,
}

// RawListing holds unvalidated scrape output exactly as it appears in the raw snapshot.
// It is consumed once by reconciliation.
type RawListing struct {
	Title        string         `json:"title"`
	Price        int64          `json:"price"`
	Area         float64        `json:"area"`
	Rooms        *int           `json:"rooms,omitempty"`
	Floor        *int           `json:"floor,omitempty"`
	TotalFloors  *int           `json:"totalFloors,omitempty"`
	BuildYear    *int           `json:"buildYear,omitempty"`
	HeatingType  string         `json:"heatingType,omitempty"`
	EnergyClass  string         `json:"energyClass,omitempty"`
	City         string         `json:"city"`
	District     string         `json:"district,omitempty"`
	Street       string         `json:"street,omitempty"`
	PropertyType string         `json:"propertyType,omitempty"`
	URL          string         `json:"url,omitempty"`
	SourceID     string         `json:"sourceId,omitempty"`
	Images       []string       `json:"images,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	ListedDate   string         `json:"listedDate,omitempty"`
}

// IdentityKey is the key used to serialise reconciliation of the same listing:
// the URL when present, else the (title, city, area) composite.
func (r *RawListing) IdentityKey() string {
	if r.URL != "" {
		return "url:" + r.URL
	}
	return "tca:" + r.Title + "|" + r.City + "|" + strconv.FormatFloat(r.Area, 'f', -1, 64)
}

// PricePoint is one entry of a listing's price history: a previous price and
// the moment it was replaced.
type PricePoint struct {
	Price int64     `json:"price"`
	Date  time.Time `json:"date"`
}

// Listing is the persisted listing record.
type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l" json:"-"`

	ID           string         `bun:"id,pk" json:"id"`
	SourceID     string         `bun:"source_id" json:"sourceId,omitempty"`
	URL          string         `bun:"url" json:"url,omitempty"`
	Title        string         `bun:"title,notnull" json:"title"`
	Price        int64          `bun:"price" json:"price"`
	Area         float64        `bun:"area" json:"area"`
	Rooms        *int           `bun:"rooms" json:"rooms,omitempty"`
	Floor        *int           `bun:"floor" json:"floor,omitempty"`
	TotalFloors  *int           `bun:"total_floors" json:"totalFloors,omitempty"`
	BuildYear    *int           `bun:"build_year" json:"buildYear,omitempty"`
	HeatingType  string         `bun:"heating_type" json:"heatingType,omitempty"`
	EnergyClass  string         `bun:"energy_class" json:"energyClass,omitempty"`
	City         string         `bun:"city,notnull" json:"city"`
	District     string         `bun:"district" json:"district,omitempty"`
	Street       string         `bun:"street" json:"street,omitempty"`
	PropertyType string         `bun:"property_type" json:"propertyType"`
	Latitude     *float64       `bun:"latitude" json:"latitude,omitempty"`
	Longitude    *float64       `bun:"longitude" json:"longitude,omitempty"`
	ListedDate   time.Time      `bun:"listed_date" json:"listedDate"`
	UpdatedDate  time.Time      `bun:"updated_date" json:"updatedDate"`
	PriceHistory []PricePoint   `bun:"price_history,type:jsonb" json:"priceHistory"`
	Images       []string       `bun:"images,type:jsonb" json:"images,omitempty"`
	Details      map[string]any `bun:"details,type:jsonb" json:"details,omitempty"`
	Active       bool           `bun:"active" json:"active"`
}

// HasLocation reports whether the listing carries geocoded coordinates.
func (l *Listing) HasLocation() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// PricePerSqm returns the rounded price per square metre, or 0 without an area.
func (l *Listing) PricePerSqm() int64 {
	if l.Area <= 0 {
		return 0
	}
	return int64(math.Round(float64(l.Price) / l.Area))
}

// ApplyPrice records the current price in the history and replaces it when
// price differs. It reports whether the price changed.
func (l *Listing) ApplyPrice(price int64, now time.Time) bool {
	if l.Price == price {
		return false
	}
	l.PriceHistory = append(l.PriceHistory, PricePoint{Price: l.Price, Date: now})
	l.Price = price
	return true
}

func (l *Listing) String() string {
	return fmt.Sprintf("%s (%s, %s) %d EUR", l.Title, l.City, l.PropertyType, l.Price)
}
