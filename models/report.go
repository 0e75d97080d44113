package models

import "time"

// ReconcileResult counts the outcome of merging one raw snapshot into the store.
// Processed counts saved records (New + Updated); failed records are counted
// only in Failed.
type ReconcileResult struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// RunResult summarises one pipeline run.
type RunResult struct {
	Strategy    string           `json:"strategy"`
	Reconcile   *ReconcileResult `json:"reconcile"`
	Deactivated int64            `json:"deactivated"`
	SweepErr    error            `json:"-"`
	StartedAt   time.Time        `json:"startedAt"`
	Duration    time.Duration    `json:"duration"`
}

// ListingPage is one page of a filtered listing query.
type ListingPage struct {
	TotalCount int        `json:"totalCount"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	Listings   []*Listing `json:"properties"`
}

// PriceRange is the min/max price of a listing set.
type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// DistrictCount is a per-district count with the average price.
type DistrictCount struct {
	District string `json:"district"`
	Count    int    `json:"count"`
	AvgPrice int64  `json:"avgPrice"`
}

// MarketStats holds aggregate statistics over active listings.
type MarketStats struct {
	TotalListings        int             `json:"totalListings"`
	AvgPrice             int64           `json:"avgPrice"`
	MedianPrice          int64           `json:"medianPrice"`
	AvgPricePerSqm       int64           `json:"avgPricePerSqm"`
	PriceRange           PriceRange      `json:"priceRange"`
	CityDistribution     map[string]int  `json:"cityDistribution"`
	TypeDistribution     map[string]int  `json:"typeDistribution"`
	DistrictDistribution []DistrictCount `json:"districtDistribution"`
}

// DistrictPrice is a per (city, district) price rollup.
type DistrictPrice struct {
	City           string `json:"city"`
	District       string `json:"district"`
	AvgPrice       int64  `json:"avgPrice"`
	AvgPricePerSqm int64  `json:"avgPricePerSqm"`
	Count          int    `json:"count"`
}

// TrendPoint is one month bucket of the price trend series.
type TrendPoint struct {
	Month          string `json:"month"`
	AvgPrice       int64  `json:"avgPrice"`
	AvgPricePerSqm int64  `json:"avgPricePerSqm"`
	Count          int    `json:"count"`
}

// NearbyListing is a listing annotated with its distance from the query point.
type NearbyListing struct {
	*Listing
	Distance float64 `json:"distance"`
}
