package aruodas

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"realestate-lt/models"
	"realestate-lt/utils"
)

// ErrNoPagesFetched means not a single listing page could be retrieved.
var ErrNoPagesFetched = errors.New("no listing pages fetched")

// Config drives the in-process crawlers.
type Config struct {
	BaseURL        string
	Cities         []string
	PropertyTypes  []string
	PageLimit      int
	PageDelay      time.Duration
	PairDelay      time.Duration
	UserAgent      string
	RequestTimeout time.Duration
}

// pageFetcher retrieves one search results page as a parsed document.
type pageFetcher interface {
	fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// crawl walks every (city, property type) pair, fetching up to PageLimit pages
// each. A row error skips the row, a page error ends pagination for the pair.
// It fails only when no page at all could be fetched.
func crawl(ctx context.Context, f pageFetcher, cfg Config, logger *utils.Logger) ([]*models.RawListing, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}

	var (
		all     []*models.RawListing
		seen    = utils.NewURLSet()
		fetched int
		lastErr error
		first   = true
	)

	for _, city := range cfg.Cities {
		for _, ptype := range cfg.PropertyTypes {
			if !first {
				if err := utils.Sleep(ctx, cfg.PairDelay); err != nil {
					return nil, err
				}
			}
			first = false

			log := logger.WithFields(map[string]any{"city": city, "propertyType": ptype})
			pairCount := 0

			for page := 1; page <= cfg.PageLimit; page++ {
				if page > 1 {
					if err := utils.Sleep(ctx, cfg.PageDelay); err != nil {
						return nil, err
					}
				}

				pageURL, err := PageURL(cfg.BaseURL, ptype, city, page)
				if err != nil {
					log.Warn("[aruodas] Skipping pair: %v", err)
					break
				}

				doc, err := f.fetch(ctx, pageURL)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					log.Warn("[aruodas] Page %d failed, stopping pagination: %v", page, err)
					lastErr = err
					break
				}
				fetched++

				listings, rowErrs := ParseDocument(doc, city, ptype, base)
				for _, rowErr := range rowErrs {
					log.Debug("[aruodas] Skipping listing on %s: %v", pageURL, rowErr)
				}

				for _, l := range listings {
					if l.URL != "" && !seen.Add(l.URL) {
						log.Debug("[aruodas] Skipping duplicate: %s", l.URL)
						continue
					}
					all = append(all, l)
					pairCount++
				}

				if len(listings) == 0 && len(rowErrs) == 0 {
					break
				}
			}

			log.Info("[aruodas] Collected %d listings for %s / %s", pairCount, city, ptype)
		}
	}

	if fetched == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoPagesFetched, lastErr)
		}
		return nil, ErrNoPagesFetched
	}

	logger.Info("[aruodas] Crawl complete: %d pages, %d listings (%d distinct URLs)", fetched, len(all), seen.Size())
	return all, nil
}
