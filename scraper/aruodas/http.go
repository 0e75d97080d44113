package aruodas

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"realestate-lt/models"
	"realestate-lt/utils"
)

// HTTPStrategy fetches listing pages with plain HTTP requests through colly.
type HTTPStrategy struct {
	cfg    Config
	logger *utils.Logger
}

// NewHTTPStrategy creates the in-process HTTP fallback.
func NewHTTPStrategy(cfg Config, logger *utils.Logger) *HTTPStrategy {
	return &HTTPStrategy{cfg: cfg, logger: logger.WithField("strategy", "http")}
}

func (s *HTTPStrategy) Name() string { return "http" }

func (s *HTTPStrategy) Acquire(ctx context.Context) ([]*models.RawListing, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.SetRequestTimeout(timeout)

	return crawl(ctx, &collyFetcher{collector: c}, s.cfg, s.logger)
}

type collyFetcher struct {
	collector *colly.Collector
}

func (f *collyFetcher) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// clones share the HTTP backend, so the request timeout carries over
	c := f.collector.Clone()

	var (
		doc      *goquery.Document
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "lt-LT,lt;q=0.9,en;q=0.8")
	})
	c.OnResponse(func(r *colly.Response) {
		doc, fetchErr = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("GET %s: status %d: %w", pageURL, r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("GET %s: %w", pageURL, err)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if doc == nil {
		return nil, fmt.Errorf("GET %s: empty response", pageURL)
	}
	return doc, nil
}
