package services

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"realestate-lt/models"
	"realestate-lt/utils"
)

// InsightService computes market aggregates over listings and renders run reports.
type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

// NewInsightService creates an InsightService that prints to out (stdout when nil).
func NewInsightService(logger *utils.Logger, out io.Writer) *InsightService {
	if out == nil {
		out = os.Stdout
	}
	return &InsightService{logger: logger, out: out}
}

// Generate aggregates listings into market statistics. The district breakdown
// is only filled when the listings were selected for a single city.
func (s *InsightService) Generate(listings []*models.Listing, city string) *models.MarketStats {
	stats := &models.MarketStats{
		CityDistribution:     make(map[string]int),
		TypeDistribution:     make(map[string]int),
		DistrictDistribution: []models.DistrictCount{},
	}
	if len(listings) == 0 {
		return stats
	}

	stats.TotalListings = len(listings)
	stats.PriceRange = models.PriceRange{Min: listings[0].Price, Max: listings[0].Price}

	var totalPrice int64
	var totalArea float64
	prices := make([]int64, 0, len(listings))

	for _, l := range listings {
		totalPrice += l.Price
		totalArea += l.Area
		prices = append(prices, l.Price)

		if l.Price < stats.PriceRange.Min {
			stats.PriceRange.Min = l.Price
		}
		if l.Price > stats.PriceRange.Max {
			stats.PriceRange.Max = l.Price
		}
		if l.City != "" {
			stats.CityDistribution[l.City]++
		}
		if l.PropertyType != "" {
			stats.TypeDistribution[l.PropertyType]++
		}
	}

	avg := float64(totalPrice) / float64(len(listings))
	stats.AvgPrice = round(avg)
	stats.MedianPrice = median(prices)
	if totalArea > 0 {
		stats.AvgPricePerSqm = round(avg / (totalArea / float64(len(listings))))
	}

	if city != "" {
		stats.DistrictDistribution = districtCounts(listings)
	}
	return stats
}

func districtCounts(listings []*models.Listing) []models.DistrictCount {
	type acc struct {
		count int
		total int64
	}
	byDistrict := make(map[string]*acc)
	for _, l := range listings {
		if l.District == "" {
			continue
		}
		a, ok := byDistrict[l.District]
		if !ok {
			a = &acc{}
			byDistrict[l.District] = a
		}
		a.count++
		a.total += l.Price
	}

	out := make([]models.DistrictCount, 0, len(byDistrict))
	for d, a := range byDistrict {
		out = append(out, models.DistrictCount{
			District: d,
			Count:    a.count,
			AvgPrice: round(float64(a.total) / float64(a.count)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].District < out[j].District
	})
	return out
}

// DistrictPrices rolls listings up per (city, district), sorted by city and
// then by descending average price. Listings without a district are ignored.
func (s *InsightService) DistrictPrices(listings []*models.Listing) []models.DistrictPrice {
	type key struct{ city, district string }
	type acc struct {
		count int
		price int64
		area  float64
	}

	groups := make(map[key]*acc)
	for _, l := range listings {
		if l.District == "" {
			continue
		}
		k := key{l.City, l.District}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.count++
		a.price += l.Price
		a.area += l.Area
	}

	out := make([]models.DistrictPrice, 0, len(groups))
	for k, a := range groups {
		avg := float64(a.price) / float64(a.count)
		dp := models.DistrictPrice{City: k.city, District: k.district, AvgPrice: round(avg), Count: a.count}
		if a.area > 0 {
			dp.AvgPricePerSqm = round(avg / (a.area / float64(a.count)))
		}
		out = append(out, dp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		if out[i].AvgPrice != out[j].AvgPrice {
			return out[i].AvgPrice > out[j].AvgPrice
		}
		return out[i].District < out[j].District
	})
	return out
}

// PriceTrends buckets current prices by listing month and historical prices by
// the month they were replaced. History entries before since are skipped.
func (s *InsightService) PriceTrends(listings []*models.Listing, since time.Time) []models.TrendPoint {
	type acc struct {
		count int
		price int64
		area  float64
	}
	months := make(map[string]*acc)
	add := func(t time.Time, price int64, area float64) {
		m := t.UTC().Format("2006-01")
		a, ok := months[m]
		if !ok {
			a = &acc{}
			months[m] = a
		}
		a.count++
		a.price += price
		a.area += area
	}

	for _, l := range listings {
		add(l.ListedDate, l.Price, l.Area)
		for _, h := range l.PriceHistory {
			if h.Date.Before(since) {
				continue
			}
			add(h.Date, h.Price, l.Area)
		}
	}

	out := make([]models.TrendPoint, 0, len(months))
	for m, a := range months {
		tp := models.TrendPoint{Month: m, Count: a.count, AvgPrice: round(float64(a.price) / float64(a.count))}
		if a.area > 0 {
			tp.AvgPricePerSqm = round(float64(a.price) / a.area)
		}
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Print renders the run summary and the market overview as tables.
func (s *InsightService) Print(run *models.RunResult, stats *models.MarketStats) {
	fmt.Fprintln(s.out)

	if run != nil {
		t := table.NewWriter()
		t.SetOutputMirror(s.out)
		t.SetStyle(table.StyleLight)
		t.SetTitle("Scrape run")
		t.AppendRow(table.Row{"Started", run.StartedAt.Format(time.DateTime)})
		t.AppendRow(table.Row{"Duration", run.Duration.Round(time.Second)})
		t.AppendRow(table.Row{"Strategy", run.Strategy})
		if rc := run.Reconcile; rc != nil {
			t.AppendSeparator()
			t.AppendRow(table.Row{"Raw listings", rc.Total})
			t.AppendRow(table.Row{"Processed", rc.Processed})
			t.AppendRow(table.Row{"New", rc.New})
			t.AppendRow(table.Row{"Updated", rc.Updated})
			t.AppendRow(table.Row{"Failed", rc.Failed})
		}
		t.AppendSeparator()
		if run.SweepErr != nil {
			t.AppendRow(table.Row{"Deactivated", "sweep failed: " + run.SweepErr.Error()})
		} else {
			t.AppendRow(table.Row{"Deactivated", run.Deactivated})
		}
		t.Render()
	}

	if stats == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Active market")
	t.AppendRow(table.Row{"Listings", stats.TotalListings})
	if stats.TotalListings > 0 {
		t.AppendRow(table.Row{"Average price", formatEUR(stats.AvgPrice)})
		t.AppendRow(table.Row{"Median price", formatEUR(stats.MedianPrice)})
		t.AppendRow(table.Row{"Average per m²", formatEUR(stats.AvgPricePerSqm)})
		t.AppendRow(table.Row{"Price range", formatEUR(stats.PriceRange.Min) + " - " + formatEUR(stats.PriceRange.Max)})
	}
	t.Render()

	if len(stats.CityDistribution) == 0 {
		return
	}

	type cityCount struct {
		city  string
		count int
	}
	cities := make([]cityCount, 0, len(stats.CityDistribution))
	for c, n := range stats.CityDistribution {
		cities = append(cities, cityCount{c, n})
	}
	sort.Slice(cities, func(i, j int) bool {
		if cities[i].count != cities[j].count {
			return cities[i].count > cities[j].count
		}
		return cities[i].city < cities[j].city
	})

	ct := table.NewWriter()
	ct.SetOutputMirror(s.out)
	ct.SetStyle(table.StyleLight)
	ct.AppendHeader(table.Row{"City", "Listings"})
	ct.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	for _, c := range cities {
		ct.AppendRow(table.Row{c.city, c.count})
	}
	ct.Render()
	fmt.Fprintln(s.out)
}

func median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return round(float64(sorted[mid-1]+sorted[mid]) / 2)
}

func round(f float64) int64 {
	return int64(math.Round(f))
}

func formatEUR(v int64) string {
	return fmt.Sprintf("%d €", v)
}
