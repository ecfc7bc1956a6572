package gtfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/jamespfennell/gtfs"
	"google.golang.org/protobuf/encoding/protojson"

	"busstatus.transit.org/internal/logging"
	"busstatus.transit.org/internal/reconcile"
	"busstatus.transit.org/internal/schedule"
)

// FeedClient downloads a GTFS-realtime trip updates feed and flattens it into
// per-stop predictions. Every call performs a fresh fetch.
type FeedClient struct {
	url        string
	format     FeedFormat
	headers    map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewFeedClient(config Config, logger *slog.Logger) *FeedClient {
	if logger == nil {
		logger = slog.Default()
	}
	format := config.TripUpdatesFormat
	if format == "" {
		format = FormatAuto
	}
	return &FeedClient{
		url:        config.TripUpdatesURL,
		format:     format,
		headers:    config.realTimeHeaders(),
		httpClient: &http.Client{Timeout: config.RealTimeTimeout},
		logger:     logger.With(slog.String("component", "gtfs_realtime")),
	}
}

// FetchPredictions returns one prediction per (trip, stop). Any transport,
// status or decoding failure is reported as a *FeedFetchError.
func (c *FeedClient) FetchPredictions(ctx context.Context) ([]reconcile.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &FeedFetchError{URL: c.url, Err: err}
	}
	for key, value := range c.headers {
		req.Header.Add(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FeedFetchError{URL: c.url, Err: err}
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "http_response_body")

	if resp.StatusCode != http.StatusOK {
		return nil, &FeedFetchError{URL: c.url, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FeedFetchError{URL: c.url, Err: err}
	}

	format := c.format
	if format == FormatAuto {
		format = detectFormat(resp.Header.Get("Content-Type"), b)
	}

	var predictions []reconcile.Prediction
	switch format {
	case FormatJSON:
		predictions, err = decodeJSONFeed(b)
	default:
		predictions, err = decodeProtobufFeed(b)
	}
	if err != nil {
		return nil, &FeedFetchError{URL: c.url, Err: fmt.Errorf("decoding %s feed: %w", format, err)}
	}

	c.logger.Debug("fetched trip updates",
		slog.String("format", string(format)),
		slog.Int("predictions", len(predictions)))
	return predictions, nil
}

func detectFormat(contentType string, body []byte) FeedFormat {
	if strings.Contains(contentType, "json") {
		return FormatJSON
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatProtobuf
}

// decodeJSONFeed reads the JSON rendering of a FeedMessage as served by
// Passio and similar vendors. Field names may be proto or camel case.
func decodeJSONFeed(b []byte) ([]reconcile.Prediction, error) {
	var feed gtfsrt.FeedMessage
	opts := protojson.UnmarshalOptions{DiscardUnknown: true, AllowPartial: true}
	if err := opts.Unmarshal(b, &feed); err != nil {
		return nil, err
	}

	var predictions []reconcile.Prediction
	for _, entity := range feed.GetEntity() {
		update := entity.GetTripUpdate()
		if update == nil {
			continue
		}
		trip := update.GetTrip()
		seen := map[string]bool{}
		for _, stu := range update.GetStopTimeUpdate() {
			stopID := stu.GetStopId()
			if stopID == "" || seen[stopID] {
				continue
			}
			seen[stopID] = true

			arrival := stu.GetArrival()
			if arrival == nil || arrival.Time == nil {
				continue
			}
			seq := schedule.NoSequence
			if stu.StopSequence != nil {
				seq = int(stu.GetStopSequence())
			}
			predictions = append(predictions, reconcile.Prediction{
				TripID:       trip.GetTripId(),
				RouteID:      trip.GetRouteId(),
				StopID:       stopID,
				Sequence:     seq,
				Predicted:    time.Unix(arrival.GetTime(), 0),
				VehicleLabel: update.GetVehicle().GetLabel(),
			})
		}
	}
	return predictions, nil
}

func decodeProtobufFeed(b []byte) ([]reconcile.Prediction, error) {
	realtime, err := gtfs.ParseRealtime(b, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, err
	}

	var predictions []reconcile.Prediction
	for _, trip := range realtime.Trips {
		label := ""
		if trip.Vehicle != nil && trip.Vehicle.ID != nil {
			label = trip.Vehicle.ID.Label
		}
		seen := map[string]bool{}
		for _, stu := range trip.StopTimeUpdates {
			if stu.StopID == nil || *stu.StopID == "" || seen[*stu.StopID] {
				continue
			}
			seen[*stu.StopID] = true

			if stu.Arrival == nil || stu.Arrival.Time == nil {
				continue
			}
			seq := schedule.NoSequence
			if stu.StopSequence != nil {
				seq = int(*stu.StopSequence)
			}
			predictions = append(predictions, reconcile.Prediction{
				TripID:       trip.ID.ID,
				RouteID:      trip.ID.RouteID,
				StopID:       *stu.StopID,
				Sequence:     seq,
				Predicted:    *stu.Arrival.Time,
				VehicleLabel: label,
			})
		}
	}
	return predictions, nil
}
