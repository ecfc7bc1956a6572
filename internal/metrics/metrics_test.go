package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.ObserveFeedFetch(50*time.Millisecond, nil)
	c.ObserveFeedFetch(80*time.Millisecond, errors.New("boom"))
	c.ObserveFeedFetch(20*time.Millisecond, nil)
	c.ObserveBusStatus("Late")
	c.ObserveBusStatus("Late")
	c.ObserveDailyRebuild(1200, 3*time.Millisecond)
	c.ObserveStaticLoad(time.Unix(1700000000, 0), nil)
	c.ObserveHTTPRequest("stop_status", http.StatusOK, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.FeedFetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FeedFetches.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.BusStatuses.WithLabelValues("Late")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DailyRebuilds))
	assert.Equal(t, 1200.0, testutil.ToFloat64(c.TodaySlots))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(c.StaticLoadedAt))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("stop_status", "200")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveFeedFetch(time.Second, nil)
		c.ObserveBusStatus("On Time")
		c.ObserveDailyRebuild(1, time.Millisecond)
		c.ObserveStaticLoad(time.Now(), errors.New("x"))
		c.ObserveHTTPRequest("health", 200, time.Millisecond)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObserveBusStatus("Early")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `busstatus_bus_statuses_total{status="Early"} 1`)
}
