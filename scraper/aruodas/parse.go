// Package aruodas fetches and parses listing pages of the aruodas.lt portal.
package aruodas

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"realestate-lt/models"
)

var (
	// nonDigitRegexp strips everything but digits from a price string
	nonDigitRegexp = regexp.MustCompile(`[^0-9]`)
	// areaRegexp captures "45 m²", "45.5 m²" and "45,5 m²"
	areaRegexp = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*m²`)
	// roomsRegexp captures "2 kamb." style room counts
	roomsRegexp = regexp.MustCompile(`(\d+)\s*kamb`)
)

// ListingRowSelector matches one listing on a search results page.
const ListingRowSelector = ".list-row"

var (
	errMissingTitle = errors.New("missing title")
	errBadPrice     = errors.New("unparsable price")
)

var typeSlugs = map[string]string{
	models.PropertyFlat:       "butai",
	models.PropertyHouse:      "namai",
	models.PropertyLand:       "sklypai",
	models.PropertyCommercial: "komercines-patalpos",
	models.PropertyCottage:    "sodybos",
}

// TypeSlug returns the portal path segment for a property type.
func TypeSlug(propertyType string) (string, bool) {
	slug, ok := typeSlugs[propertyType]
	return slug, ok
}

// PageURL builds the URL of a search results page. Page 1 is the bare listing path.
func PageURL(base, propertyType, city string, page int) (string, error) {
	slug, ok := TypeSlug(propertyType)
	if !ok {
		return "", fmt.Errorf("unsupported property type %q", propertyType)
	}
	u := fmt.Sprintf("%s/%s/%s/", strings.TrimRight(base, "/"), slug, url.PathEscape(strings.ToLower(city)))
	if page > 1 {
		u += fmt.Sprintf("puslapis/%d/", page)
	}
	return u, nil
}

// ParseRow extracts one raw listing from a .list-row element.
// base resolves relative listing links.
func ParseRow(row *goquery.Selection, city, propertyType string, base *url.URL) (*models.RawListing, error) {
	title := normalise(row.Find(".list-line-1").Text())
	if title == "" {
		return nil, errMissingTitle
	}

	priceText := nonDigitRegexp.ReplaceAllString(row.Find(".list-price-main").Text(), "")
	price, err := strconv.ParseInt(priceText, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w %q", errBadPrice, strings.TrimSpace(row.Find(".list-price-main").Text()))
	}

	details := row.Find(".list-line-2").Text()
	raw := &models.RawListing{
		Title:        title,
		Price:        price,
		Area:         parseArea(details),
		City:         city,
		PropertyType: propertyType,
		Images:       []string{},
	}

	if propertyType == models.PropertyFlat || propertyType == models.PropertyHouse {
		raw.Rooms = parseRooms(details)
	}

	if href, ok := row.Find("a.item-url").Attr("href"); ok {
		raw.URL = resolve(base, href)
	}
	if src, ok := row.Find("img").Attr("src"); ok && strings.TrimSpace(src) != "" {
		raw.Images = append(raw.Images, resolve(base, src))
	}

	raw.District, raw.Street = splitAddress(row.Find(".list-address").Text())
	return raw, nil
}

// ParseDocument parses every listing row of a page. Row errors are returned
// alongside the successfully parsed rows and never abort the page.
func ParseDocument(doc *goquery.Document, city, propertyType string, base *url.URL) ([]*models.RawListing, []error) {
	var (
		listings []*models.RawListing
		errs     []error
	)
	doc.Find(ListingRowSelector).Each(func(i int, row *goquery.Selection) {
		l, err := ParseRow(row, city, propertyType, base)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, err))
			return
		}
		listings = append(listings, l)
	})
	return listings, errs
}

func parseArea(s string) float64 {
	m := areaRegexp.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	area, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return area
}

func parseRooms(s string) *int {
	m := roomsRegexp.FindStringSubmatch(s)
	if len(m) < 2 {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// splitAddress maps "District, Street" onto its parts; a single part is the district.
func splitAddress(s string) (district, street string) {
	s = normalise(s)
	if s == "" {
		return "", ""
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func normalise(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
