package aruodas

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"realestate-lt/models"
	"realestate-lt/utils"
)

// BrowserStrategy renders listing pages in headless Chrome. It is the last
// resort when the portal serves a JS challenge to plain HTTP clients.
type BrowserStrategy struct {
	cfg       Config
	chromeBin string
	logger    *utils.Logger
}

// NewBrowserStrategy creates the headless-browser fallback. An empty chromeBin
// searches the usual install locations.
func NewBrowserStrategy(cfg Config, chromeBin string, logger *utils.Logger) *BrowserStrategy {
	return &BrowserStrategy{cfg: cfg, chromeBin: chromeBin, logger: logger.WithField("strategy", "browser")}
}

func (s *BrowserStrategy) Name() string { return "browser" }

func (s *BrowserStrategy) Acquire(ctx context.Context) ([]*models.RawListing, error) {
	chromeBin := s.chromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if chromeBin == "" {
		return nil, fmt.Errorf("no Chrome/Chromium binary found")
	}
	s.logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(s.cfg.UserAgent),
		chromedp.ExecPath(chromeBin),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return crawl(ctx, &chromeFetcher{browserCtx: browserCtx, timeout: timeout}, s.cfg, s.logger)
}

type chromeFetcher struct {
	browserCtx context.Context
	timeout    time.Duration
}

func (f *chromeFetcher) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// findChromeBinary locates a Chrome/Chromium binary on PATH or in the usual
// install locations. An explicit CHROME_BIN arrives through config instead.
func findChromeBinary() string {
	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
