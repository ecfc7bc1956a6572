package app

import (
	"log/slog"

	"busstatus.transit.org/internal/appconf"
	"busstatus.transit.org/internal/gtfs"
	"busstatus.transit.org/internal/metrics"
)

// Application holds the dependencies shared by the HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config      appconf.Config
	Logger      *slog.Logger
	GtfsManager *gtfs.Manager
	Metrics     *metrics.Collector
}
