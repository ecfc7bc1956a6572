package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so that tests can build as many as they
// like. A nil *Collector is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	FeedFetches       *prometheus.CounterVec // result label: ok|error
	FeedFetchDuration prometheus.Histogram

	BusStatuses *prometheus.CounterVec // label: status label

	DailyRebuilds        prometheus.Counter
	DailyRebuildDuration prometheus.Histogram
	TodaySlots           prometheus.Gauge

	StaticLoads    *prometheus.CounterVec // result label: ok|error
	StaticLoadedAt prometheus.Gauge

	HTTPRequests *prometheus.CounterVec // handler, code
	HTTPDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstatus_feed_fetches_total",
			Help: "Trip updates feed fetches by result.",
		}, []string{"result"}),
		FeedFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "busstatus_feed_fetch_duration_seconds",
			Help:    "Time to download and decode the trip updates feed.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BusStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstatus_bus_statuses_total",
			Help: "Buses classified, by status label.",
		}, []string{"status"}),
		DailyRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busstatus_daily_schedule_rebuilds_total",
			Help: "Number of times the daily schedule was rebuilt.",
		}),
		DailyRebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "busstatus_daily_schedule_rebuild_duration_seconds",
			Help:    "Time to filter the timetable for a service date.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		TodaySlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busstatus_today_slots",
			Help: "Scheduled slots in the current daily schedule.",
		}),
		StaticLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstatus_static_loads_total",
			Help: "Static GTFS loads by result.",
		}, []string{"result"}),
		StaticLoadedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busstatus_static_loaded_timestamp_seconds",
			Help: "Unix time of the last successful static GTFS load.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstatus_http_requests_total",
			Help: "HTTP requests by handler and status code.",
		}, []string{"handler", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "busstatus_http_request_duration_seconds",
			Help:    "HTTP request latency by handler.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
	}

	reg.MustRegister(
		c.FeedFetches, c.FeedFetchDuration,
		c.BusStatuses,
		c.DailyRebuilds, c.DailyRebuildDuration, c.TodaySlots,
		c.StaticLoads, c.StaticLoadedAt,
		c.HTTPRequests, c.HTTPDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func (c *Collector) ObserveFeedFetch(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.FeedFetches.WithLabelValues(result(err)).Inc()
	c.FeedFetchDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveBusStatus(label string) {
	if c == nil {
		return
	}
	c.BusStatuses.WithLabelValues(label).Inc()
}

func (c *Collector) ObserveDailyRebuild(slots int, d time.Duration) {
	if c == nil {
		return
	}
	c.DailyRebuilds.Inc()
	c.DailyRebuildDuration.Observe(d.Seconds())
	c.TodaySlots.Set(float64(slots))
}

func (c *Collector) ObserveStaticLoad(at time.Time, err error) {
	if c == nil {
		return
	}
	c.StaticLoads.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.StaticLoadedAt.Set(float64(at.Unix()))
	}
}

func (c *Collector) ObserveHTTPRequest(handler string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(handler).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
