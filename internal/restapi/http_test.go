package restapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"busstatus.transit.org/internal/app"
	"busstatus.transit.org/internal/appconf"
	"busstatus.transit.org/internal/gtfs"
	"busstatus.transit.org/internal/logging"
	"busstatus.transit.org/internal/metrics"
	"busstatus.transit.org/internal/models"
	"busstatus.transit.org/internal/reconcile"
)

const fixtureDir = "../gtfs/testdata/feed"

type stubSource struct {
	predictions []reconcile.Prediction
	err         error
}

func (s stubSource) FetchPredictions(ctx context.Context) ([]reconcile.Prediction, error) {
	return s.predictions, s.err
}

func serviceClock(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return time.Date(2025, time.March, 14, 9, 10, 0, 0, loc)
}

func testManager(t *testing.T, source gtfs.PredictionSource) *gtfs.Manager {
	t.Helper()
	feed, err := gtfs.ParseStaticFeed(os.DirFS(fixtureDir))
	require.NoError(t, err)
	manager, err := gtfs.NewManager(gtfs.Config{StaticSource: fixtureDir}, feed, source, nil, nil)
	require.NoError(t, err)
	t.Cleanup(manager.Shutdown)
	return manager
}

// createTestApi builds a RestAPI over the fixture feed with the clock pinned
// to a weekday morning.
func createTestApi(t *testing.T, manager *gtfs.Manager, config appconf.Config) *RestAPI {
	t.Helper()
	application := &app.Application{
		Config:      config,
		Logger:      logging.NewStructuredLogger(io.Discard, 0),
		GtfsManager: manager,
		Metrics:     metrics.NewCollector(),
	}
	api := NewRestAPI(application)
	t.Cleanup(api.Shutdown)
	clock := serviceClock(t)
	api.now = func() time.Time { return clock }
	return api
}

func defaultTestConfig() appconf.Config {
	config := appconf.Default()
	config.Env = appconf.Test.String()
	config.RateLimit = 0
	return config
}

// serveApiAndRetrieveEndpoint runs endpoint through the full handler chain and
// decodes the envelope.
func serveApiAndRetrieveEndpoint(t *testing.T, api *RestAPI, endpoint string) (*http.Response, models.ResponseModel) {
	t.Helper()
	server := httptest.NewServer(api.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + endpoint)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var response models.ResponseModel
	err = json.NewDecoder(resp.Body).Decode(&response)
	require.NoError(t, err)

	return resp, response
}

// decodeData re-encodes the envelope's data into out.
func decodeData(t *testing.T, model models.ResponseModel, out any) {
	t.Helper()
	raw, err := json.Marshal(model.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}
