package gtfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"busstatus.transit.org/internal/logging"
	"busstatus.transit.org/internal/metrics"
	"busstatus.transit.org/internal/models"
	"busstatus.transit.org/internal/reconcile"
	"busstatus.transit.org/internal/schedule"
)

// PredictionSource supplies the current realtime predictions.
type PredictionSource interface {
	FetchPredictions(ctx context.Context) ([]reconcile.Prediction, error)
}

// staticState is everything derived from one static feed. It is replaced
// wholesale on reload and never mutated after publication.
type staticState struct {
	index      *schedule.Index
	daily      *schedule.DailyCache
	reconciler *reconcile.Reconciler
	stops      []models.Stop
	stopIDs    map[string]struct{}
	shapes     []models.RouteShape
	bounds     models.RegionBounds
	loadedAt   time.Time
}

// Manager owns the static timetable and answers stop status queries against
// a live predictions feed.
type Manager struct {
	config   Config
	location *time.Location
	logger   *slog.Logger
	metrics  *metrics.Collector
	feed     PredictionSource

	state atomic.Pointer[staticState]

	shutdownChan chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// InitGTFSManager loads the static feed named by config, indexes it and, for
// remote sources, starts the periodic refresh.
func InitGTFSManager(ctx context.Context, config Config, logger *slog.Logger, collector *metrics.Collector) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "gtfs_manager"))

	start := time.Now()
	feed, err := LoadStaticFeed(ctx, config, logger)
	collector.ObserveStaticLoad(time.Now(), err)
	if err != nil {
		return nil, err
	}

	manager, err := NewManager(config, feed, NewFeedClient(config, logger), logger, collector)
	if err != nil {
		return nil, err
	}

	stats := manager.IndexStats()
	logging.LogOperation(logger, "static_gtfs_loaded",
		slog.String("source", config.StaticSource),
		slog.String("timezone", manager.location.String()),
		slog.Int("slots", stats.Slots),
		slog.Int("skipped_stop_times", stats.SkippedStopTimes),
		slog.Int("trips", stats.Trips),
		slog.Int("routes", stats.Routes),
		slog.Duration("duration", time.Since(start)))

	if config.staticIsRemote() && config.StaticRefreshInterval > 0 {
		manager.wg.Add(1)
		go manager.updateStaticGTFS()
	}

	return manager, nil
}

// NewManager indexes an already parsed feed. It does not start any
// background work.
func NewManager(config Config, feed *StaticFeed, source PredictionSource, logger *slog.Logger, collector *metrics.Collector) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	agencyTimezone := ""
	if len(feed.Agencies) > 0 {
		agencyTimezone = feed.Agencies[0].Timezone
	}
	loc, err := config.location(agencyTimezone)
	if err != nil {
		return nil, fmt.Errorf("resolving service time zone: %w", err)
	}

	manager := &Manager{
		config:       config,
		location:     loc,
		logger:       logger,
		metrics:      collector,
		feed:         source,
		shutdownChan: make(chan struct{}),
	}
	if err := manager.setStaticGTFS(feed); err != nil {
		return nil, err
	}
	return manager, nil
}

func (manager *Manager) buildStaticState(feed *StaticFeed) (*staticState, error) {
	index, err := schedule.Build(feed.StopTimes, feed.Trips, feed.Routes)
	if err != nil {
		return nil, err
	}
	calendar := schedule.NewCalendar(feed.Calendar, feed.CalendarDates)

	daily := schedule.NewDailyCache(index, calendar, manager.location, func(ds *schedule.DailySchedule, d time.Duration) {
		manager.metrics.ObserveDailyRebuild(ds.Len(), d)
		logging.LogOperation(manager.logger, "daily_schedule_built",
			slog.String("service_date", ds.Date.String()),
			slog.Int("services", len(ds.Services)),
			slog.Int("slots", ds.Len()),
			slog.Duration("duration", d))
	})

	stops := buildStops(feed)
	// every stops.txt row is queryable, including ones without usable coordinates
	stopIDs := make(map[string]struct{}, len(feed.Stops))
	for _, row := range feed.Stops {
		if id := strings.TrimSpace(row.StopID); id != "" {
			stopIDs[id] = struct{}{}
		}
	}
	shapes := buildRouteShapes(feed, index)

	if skipped := calendar.Skipped(); skipped > 0 {
		manager.logger.Warn("skipped malformed calendar rows", slog.Int("rows", skipped))
	}

	return &staticState{
		index:      index,
		daily:      daily,
		reconciler: reconcile.NewReconciler(index, daily, manager.location, manager.logger, manager.metrics),
		stops:      stops,
		stopIDs:    stopIDs,
		shapes:     shapes,
		bounds:     regionBounds(stops, shapes),
		loadedAt:   time.Now(),
	}, nil
}

func (manager *Manager) setStaticGTFS(feed *StaticFeed) error {
	state, err := manager.buildStaticState(feed)
	if err != nil {
		return err
	}
	// warm today's schedule before the state becomes visible
	state.daily.Get(time.Now())
	manager.state.Store(state)
	return nil
}

func (manager *Manager) current() (*staticState, error) {
	st := manager.state.Load()
	if st == nil {
		return nil, ErrStaticDataNotLoaded
	}
	return st, nil
}

// Shutdown gracefully shuts down the manager and its background goroutines
func (manager *Manager) Shutdown() {
	manager.shutdownOnce.Do(func() {
		close(manager.shutdownChan)
		manager.wg.Wait()
	})
}

// GetStopStatus fetches the live feed and reconciles the predictions for one
// stop as of now. A failed fetch is returned as is, with no partial result.
func (manager *Manager) GetStopStatus(ctx context.Context, stopID string, now time.Time) (models.StopStatus, error) {
	st, err := manager.current()
	if err != nil {
		return models.StopStatus{}, err
	}
	if _, ok := st.stopIDs[stopID]; !ok {
		return models.StopStatus{}, ErrStopNotFound
	}

	if manager.feed == nil {
		return models.StopStatus{}, &FeedFetchError{Err: errors.New("no trip updates feed configured")}
	}

	start := time.Now()
	predictions, err := manager.feed.FetchPredictions(ctx)
	manager.metrics.ObserveFeedFetch(time.Since(start), err)
	if err != nil {
		return models.StopStatus{}, err
	}

	return st.reconciler.StopStatus(stopID, now, predictions), nil
}

// ListStops returns the stops with usable coordinates, in feed order.
func (manager *Manager) ListStops() ([]models.Stop, error) {
	st, err := manager.current()
	if err != nil {
		return nil, err
	}
	return st.stops, nil
}

func (manager *Manager) GetRegionBounds() (models.RegionBounds, error) {
	st, err := manager.current()
	if err != nil {
		return models.RegionBounds{}, err
	}
	return st.bounds, nil
}

func (manager *Manager) GetShapes() ([]models.RouteShape, error) {
	st, err := manager.current()
	if err != nil {
		return nil, err
	}
	return st.shapes, nil
}

// GetRoutes lists every route, flagging those with trips on now's service date.
func (manager *Manager) GetRoutes(now time.Time) (models.RoutesResponse, error) {
	st, err := manager.current()
	if err != nil {
		return models.RoutesResponse{}, err
	}

	today := st.daily.Get(now)
	infos := st.index.Routes()
	routes := make([]models.Route, 0, len(infos))
	for _, info := range infos {
		routes = append(routes, models.Route{
			RouteID:     info.RouteID,
			Badge:       info.Badge(),
			ShortName:   info.ShortName,
			LongName:    info.LongName,
			Color:       info.Color,
			TextColor:   info.TextColor,
			ActiveToday: today.HasRoute(info.RouteID),
		})
	}
	return models.RoutesResponse{ServiceDate: today.Date.String(), Routes: routes}, nil
}

// Health summarizes the loaded data without touching the live feed.
func (manager *Manager) Health(now time.Time) models.Health {
	st, err := manager.current()
	if err != nil {
		return models.Health{Status: "loading"}
	}
	today := st.daily.Get(now)
	return models.Health{
		Status:         "ok",
		StaticLoadedAt: st.loadedAt.UnixMilli(),
		ServiceDate:    today.Date.String(),
		TodaySlots:     today.Len(),
		Stops:          len(st.stops),
		Routes:         st.index.Stats().Routes,
	}
}

// TodaySchedule exposes the daily schedule for now, for diagnostics.
func (manager *Manager) TodaySchedule(now time.Time) (*schedule.DailySchedule, error) {
	st, err := manager.current()
	if err != nil {
		return nil, err
	}
	return st.daily.Get(now), nil
}

func (manager *Manager) IndexStats() schedule.IndexStats {
	st, err := manager.current()
	if err != nil {
		return schedule.IndexStats{}
	}
	return st.index.Stats()
}

// Location is the service time zone. Before a feed is loaded it is local time.
func (manager *Manager) Location() *time.Location {
	if manager == nil || manager.location == nil {
		return time.Local
	}
	return manager.location
}

func (manager *Manager) LastUpdated() time.Time {
	st, err := manager.current()
	if err != nil {
		return time.Time{}
	}
	return st.loadedAt
}

// updateStaticGTFS reloads a remote static feed on a fixed interval. A failed
// reload keeps serving the previous data.
func (manager *Manager) updateStaticGTFS() {
	defer manager.wg.Done()

	logger := manager.logger.With(slog.String("component", "gtfs_static_updater"))

	ticker := time.NewTicker(manager.config.StaticRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			ctx = logging.WithLogger(ctx, logger)
			err := manager.reloadStatic(ctx, logger)
			cancel()
			manager.metrics.ObserveStaticLoad(time.Now(), err)
			if err != nil {
				logging.LogError(logger, "static GTFS refresh failed, keeping previous data", err,
					slog.String("source", manager.config.StaticSource))
				continue
			}
			logging.LogOperation(logger, "static_gtfs_refreshed",
				slog.Int("slots", manager.IndexStats().Slots))
		case <-manager.shutdownChan:
			logging.LogOperation(logger, "shutting_down_static_updates")
			return
		}
	}
}

func (manager *Manager) reloadStatic(ctx context.Context, logger *slog.Logger) error {
	feed, err := LoadStaticFeed(ctx, manager.config, logger)
	if err != nil {
		return err
	}
	return manager.setStaticGTFS(feed)
}
