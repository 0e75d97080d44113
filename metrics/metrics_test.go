package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCounters(t *testing.T) {
	m := New()

	m.ObserveRun(nil, 2*time.Second)
	m.ObserveRun(errors.New("boom"), time.Second)
	m.ObserveAttempt("subprocess", errors.New("exit 1"))
	m.ObserveAttempt("http", nil)
	m.ObserveReconciled("new")
	m.ObserveReconciled("new")
	m.ObserveReconciled("failed")
	m.ObserveDeactivated(4)
	m.ObserveDeactivated(0)
	m.ObserveGeocode("found")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AcquisitionAttempts.WithLabelValues("subprocess", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AcquisitionAttempts.WithLabelValues("http", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ListingsReconciled.WithLabelValues("new")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ListingsDeactivated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("found")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun(nil, time.Second)
		m.ObserveAttempt("x", nil)
		m.ObserveReconciled("new")
		m.ObserveDeactivated(1)
		m.ObserveGeocode("found")
	})
}

func TestHandlerExposesPipelineMetrics(t *testing.T) {
	m := New()
	m.ObserveReconciled("updated")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), `realestate_listings_reconciled_total{result="updated"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
