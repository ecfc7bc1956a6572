package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"busstatus.transit.org/internal/app"
	"busstatus.transit.org/internal/appconf"
	"busstatus.transit.org/internal/gtfs"
	"busstatus.transit.org/internal/logging"
	"busstatus.transit.org/internal/metrics"
	"busstatus.transit.org/internal/restapi"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers command-line flags over appconf.Load. Only flags that
// were given on the command line override the file and environment.
func loadConfig(args []string) (appconf.Config, error) {
	fs := flag.NewFlagSet("busstatus", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to a YAML config file")
	port := fs.Int("port", 4000, "API server port")
	env := fs.String("env", "development", "Environment (development|test|production)")
	apiKeys := fs.String("api-keys", "", "Comma separated API keys; empty leaves the API open")
	rateLimit := fs.Int("rate-limit", 100, "Requests per second per API key or client, 0 disables")
	logLevel := fs.String("log-level", "info", "Log level (debug|info|warn|error)")
	staticSource := fs.String("gtfs", gtfs.DefaultStaticSource, "Static GTFS directory, zip file or zip URL")
	tripUpdatesURL := fs.String("trip-updates-url", gtfs.DefaultTripUpdatesURL, "GTFS-realtime trip updates URL")
	timezone := fs.String("tz", "", "Service time zone; defaults to the feed's agency time zone")

	if err := fs.Parse(args); err != nil {
		return appconf.Config{}, err
	}

	cfg, err := appconf.Load(*configPath)
	if err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "env":
			cfg.Env = appconf.EnvFlagToEnvironment(*env).String()
		case "api-keys":
			cfg.ApiKeys = nil
			for _, key := range strings.Split(*apiKeys, ",") {
				if key = strings.TrimSpace(key); key != "" {
					cfg.ApiKeys = append(cfg.ApiKeys, key)
				}
			}
		case "rate-limit":
			cfg.RateLimit = *rateLimit
		case "log-level":
			cfg.LogLevel = *logLevel
		case "gtfs":
			cfg.GTFS.StaticSource = *staticSource
		case "trip-updates-url":
			cfg.GTFS.TripUpdatesURL = *tripUpdatesURL
		case "tz":
			cfg.GTFS.Timezone = *timezone
		}
	})

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(args []string, logOutput io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(logOutput, level, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()

	gtfsManager, err := gtfs.InitGTFSManager(ctx, cfg.GTFS, logger, collector)
	if err != nil {
		logging.LogError(logger, "failed to initialize GTFS manager", err,
			slog.String("source", cfg.GTFS.StaticSource))
		return err
	}
	defer gtfsManager.Shutdown()

	application := &app.Application{
		Config:      cfg,
		Logger:      logger,
		GtfsManager: gtfsManager,
		Metrics:     collector,
	}
	api := restapi.NewRestAPI(application)
	defer api.Shutdown()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newHandler(application, api),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.GTFS.RealTimeTimeout + 10*time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return serve(ctx, srv, cfg.ShutdownTimeout, logger, cfg.Env)
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger, env string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.LogOperation(logger, "shutting_down_server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
