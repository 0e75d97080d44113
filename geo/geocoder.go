package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"realestate-lt/utils"
)

// CountrySuffix is appended to addresses that do not already name the country.
const CountrySuffix = "Lietuva"

// Status classifies a geocoding outcome. None of them is fatal to the caller.
type Status int

const (
	StatusNotFound Status = iota
	StatusFound
	StatusProviderError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	default:
		return "provider_error"
	}
}

// Result is the outcome of one geocoding lookup. Point is meaningful only when
// Status is StatusFound; Err only when Status is StatusProviderError.
type Result struct {
	Status Status
	Point  Point
	Err    error
}

// Found builds a successful result.
func Found(p Point) Result { return Result{Status: StatusFound, Point: p} }

// NotFound builds a no-match result.
func NotFound() Result { return Result{Status: StatusNotFound} }

// ProviderError builds a failed result.
func ProviderError(err error) Result { return Result{Status: StatusProviderError, Err: err} }

// Geocoder resolves a free-text address to coordinates. Implementations never
// panic or return errors past this boundary; failures are reported in Result.
type Geocoder interface {
	Geocode(ctx context.Context, address string) Result
}

// WithCountry appends the country suffix unless the address already mentions it.
func WithCountry(address string) string {
	address = strings.TrimSpace(address)
	if strings.Contains(strings.ToLower(address), strings.ToLower(CountrySuffix)) {
		return address
	}
	if address == "" {
		return CountrySuffix
	}
	return address + ", " + CountrySuffix
}

// Options configures the HTTP geocoders.
type Options struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	Timeout    time.Duration
	RPS        float64
	MaxRetries int
	Logger     *utils.Logger
	Client     *http.Client
}

// httpClient is the transport shared by the provider implementations:
// rate limited, per-request timeout, retry on transient failures.
type httpClient struct {
	client    *http.Client
	limiter   *rate.Limiter
	retry     *utils.RetryConfig
	userAgent string
	timeout   time.Duration
}

func newHTTPClient(opts Options) *httpClient {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &httpClient{
		client:    client,
		limiter:   limiter,
		userAgent: opts.UserAgent,
		timeout:   timeout,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries + 1,
			BaseDelay:   500 * time.Millisecond,
			Logger:      opts.Logger,
		},
	}
}

// getJSON fetches endpoint and decodes the JSON body into out.
// 4xx responses other than 429 are not retried.
func (c *httpClient) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.retry.Do(ctx, "geocode", func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", errors.Join(err, utils.ErrPermanent))
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("build request: %v: %w", err, utils.ErrPermanent)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("provider returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("provider returned %d: %w", resp.StatusCode, utils.ErrPermanent)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %v: %w", err, utils.ErrPermanent)
		}
		return nil
	})
}

// NominatimGeocoder queries an OpenStreetMap Nominatim endpoint.
type NominatimGeocoder struct {
	baseURL string
	http    *httpClient
}

// NewNominatimGeocoder creates a geocoder for the public (or a self-hosted) Nominatim.
func NewNominatimGeocoder(opts Options) *NominatimGeocoder {
	base := opts.BaseURL
	if base == "" {
		base = "https://nominatim.openstreetmap.org"
	}
	return &NominatimGeocoder{baseURL: strings.TrimRight(base, "/"), http: newHTTPClient(opts)}
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) Result {
	q := url.Values{}
	q.Set("q", WithCountry(address))
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	var places []nominatimPlace
	if err := g.http.getJSON(ctx, g.baseURL+"/search?"+q.Encode(), &places); err != nil {
		return ProviderError(err)
	}
	if len(places) == 0 {
		return NotFound()
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(places[0].Lon, 64)
	if err := errors.Join(errLat, errLng); err != nil {
		return ProviderError(fmt.Errorf("parse coordinates: %w", err))
	}
	return Found(Point{Lat: lat, Lng: lng})
}

// GoogleGeocoder queries the Google Maps geocoding API.
type GoogleGeocoder struct {
	baseURL string
	apiKey  string
	http    *httpClient
}

// NewGoogleGeocoder creates a Google geocoder; opts.APIKey is required by the provider.
func NewGoogleGeocoder(opts Options) *GoogleGeocoder {
	base := opts.BaseURL
	if base == "" {
		base = "https://maps.googleapis.com"
	}
	return &GoogleGeocoder{baseURL: strings.TrimRight(base, "/"), apiKey: opts.APIKey, http: newHTTPClient(opts)}
}

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) Result {
	q := url.Values{}
	q.Set("address", WithCountry(address))
	q.Set("key", g.apiKey)
	q.Set("region", "lt")

	var resp googleResponse
	if err := g.http.getJSON(ctx, g.baseURL+"/maps/api/geocode/json?"+q.Encode(), &resp); err != nil {
		return ProviderError(err)
	}

	switch resp.Status {
	case "OK":
		if len(resp.Results) == 0 {
			return NotFound()
		}
		loc := resp.Results[0].Geometry.Location
		return Found(Point{Lat: loc.Lat, Lng: loc.Lng})
	case "ZERO_RESULTS":
		return NotFound()
	default:
		return ProviderError(fmt.Errorf("google status %s: %s", resp.Status, resp.ErrorMessage))
	}
}

// NopGeocoder never resolves anything.
type NopGeocoder struct{}

func (NopGeocoder) Geocode(context.Context, string) Result { return NotFound() }

// New selects a provider by name: "openstreetmap" (default), "google" or "none".
func New(provider string, opts Options) (Geocoder, error) {
	switch strings.ToLower(provider) {
	case "", "openstreetmap", "osm", "nominatim":
		return NewNominatimGeocoder(opts), nil
	case "google":
		if opts.APIKey == "" {
			return nil, errors.New("geocoder: google provider requires GEOCODER_API_KEY")
		}
		return NewGoogleGeocoder(opts), nil
	case "none":
		return NopGeocoder{}, nil
	default:
		return nil, fmt.Errorf("geocoder: unknown provider %q", provider)
	}
}
