package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-lt/utils"
)

func testOptions(baseURL string) Options {
	return Options{BaseURL: baseURL, Timeout: time.Second, MaxRetries: 1, UserAgent: "test-agent"}
}

func TestWithCountry(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Gedimino pr. 1, Vilnius", "Gedimino pr. 1, Vilnius, Lietuva"},
		{"Laisvės al. 5, Kaunas, Lietuva", "Laisvės al. 5, Kaunas, Lietuva"},
		{"Kaunas, LIETUVA", "Kaunas, LIETUVA"},
		{"", "Lietuva"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WithCountry(tt.in))
	}
}

func TestNominatimFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Žirmūnų g. 1, Vilnius, Lietuva", r.URL.Query().Get("q"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"lat":"54.7031","lon":"25.2987"}]`))
	}))
	defer srv.Close()

	res := NewNominatimGeocoder(testOptions(srv.URL)).Geocode(context.Background(), "Žirmūnų g. 1, Vilnius")
	require.Equal(t, StatusFound, res.Status)
	assert.InDelta(t, 54.7031, res.Point.Lat, 1e-9)
	assert.InDelta(t, 25.2987, res.Point.Lng, 1e-9)
}

func TestNominatimNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	res := NewNominatimGeocoder(testOptions(srv.URL)).Geocode(context.Background(), "nowhere")
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestNominatimProviderErrorIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := NewNominatimGeocoder(testOptions(srv.URL)).Geocode(context.Background(), "Vilnius")
	assert.Equal(t, StatusProviderError, res.Status)
	assert.Error(t, res.Err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNominatimClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	res := NewNominatimGeocoder(testOptions(srv.URL)).Geocode(context.Background(), "Vilnius")
	assert.Equal(t, StatusProviderError, res.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNominatimCancelledWhileRateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.RPS = 1
	opts.MaxRetries = 3
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewNominatimGeocoder(opts).Geocode(ctx, "Žirmūnų g. 1, Vilnius")
	require.Equal(t, StatusProviderError, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.ErrorIs(t, res.Err, utils.ErrPermanent)
	assert.Equal(t, int32(0), hits.Load())
}

func TestGoogleStatuses(t *testing.T) {
	body := `{"status":"OK","results":[{"geometry":{"location":{"lat":55.7033,"lng":21.1443}}}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	opts := testOptions(srv.URL)
	opts.APIKey = "secret"
	g := NewGoogleGeocoder(opts)

	res := g.Geocode(context.Background(), "Klaipėda")
	require.Equal(t, StatusFound, res.Status)
	assert.InDelta(t, 21.1443, res.Point.Lng, 1e-9)

	body = `{"status":"ZERO_RESULTS","results":[]}`
	assert.Equal(t, StatusNotFound, g.Geocode(context.Background(), "Klaipėda").Status)

	body = `{"status":"REQUEST_DENIED","error_message":"bad key"}`
	assert.Equal(t, StatusProviderError, g.Geocode(context.Background(), "Klaipėda").Status)
}

func TestNewProviderSelection(t *testing.T) {
	g, err := New("", Options{})
	require.NoError(t, err)
	assert.IsType(t, &NominatimGeocoder{}, g)

	_, err = New("google", Options{})
	assert.Error(t, err)

	g, err = New("none", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, g.Geocode(context.Background(), "x").Status)

	_, err = New("mapquest", Options{})
	assert.Error(t, err)
}

type countingGeocoder struct {
	calls  int32
	result Result
}

func (g *countingGeocoder) Geocode(context.Context, string) Result {
	atomic.AddInt32(&g.calls, 1)
	return g.result
}

func TestCachedGeocoderUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	next := &countingGeocoder{result: Found(Point{Lat: 54.9, Lng: 23.9})}
	g := NewCachedGeocoder(next, NewRedisCache(client, time.Hour), utils.NewNopLogger())

	ctx := context.Background()
	first := g.Geocode(ctx, "Laisvės al. 5, Kaunas")
	second := g.Geocode(ctx, "Laisvės al.  5, Kaunas, Lietuva")

	assert.Equal(t, StatusFound, first.Status)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&next.calls))
	assert.True(t, mr.Exists("geocode:laisvės al. 5, kaunas, lietuva"))
}

func TestCachedGeocoderSkipsProviderErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	next := &countingGeocoder{result: ProviderError(assert.AnError)}
	g := NewCachedGeocoder(next, NewRedisCache(client, time.Hour), utils.NewNopLogger())

	g.Geocode(context.Background(), "Vilnius")
	g.Geocode(context.Background(), "Vilnius")

	assert.Equal(t, int32(2), atomic.LoadInt32(&next.calls))
}

func TestCachedGeocoderDegradesWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	next := &countingGeocoder{result: NotFound()}
	g := NewCachedGeocoder(next, NewRedisCache(client, time.Hour), utils.NewNopLogger())

	res := g.Geocode(context.Background(), "Šiauliai")
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&next.calls))
}
