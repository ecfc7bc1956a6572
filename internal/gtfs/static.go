package gtfs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gocarina/gocsv"

	"busstatus.transit.org/internal/logging"
	"busstatus.transit.org/internal/schedule"
)

// ErrMissingFile is wrapped by a DataLoadError when a mandatory table is absent.
var ErrMissingFile = errors.New("required file missing from feed")

type Agency struct {
	AgencyID string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	Timezone string `csv:"agency_timezone"`
}

// StopRow is one stops.txt row. Coordinates stay as text so a single bad
// value only drops that stop.
type StopRow struct {
	StopID string `csv:"stop_id"`
	Code   string `csv:"stop_code"`
	Name   string `csv:"stop_name"`
	Lat    string `csv:"stop_lat"`
	Lon    string `csv:"stop_lon"`
}

type ShapePoint struct {
	ShapeID  string `csv:"shape_id"`
	Lat      string `csv:"shape_pt_lat"`
	Lon      string `csv:"shape_pt_lon"`
	Sequence string `csv:"shape_pt_sequence"`
}

// StaticFeed is the raw content of a GTFS static feed.
type StaticFeed struct {
	Agencies      []Agency
	Stops         []StopRow
	Routes        []schedule.Route
	Trips         []schedule.Trip
	StopTimes     []schedule.StopTime
	Calendar      []schedule.CalendarRule
	CalendarDates []schedule.CalendarException
	Shapes        []ShapePoint
}

type table struct {
	name     string
	required bool
	columns  []string
	dest     func(*StaticFeed) any
}

var staticTables = []table{
	{"agency.txt", false, nil, func(f *StaticFeed) any { return &f.Agencies }},
	{"stops.txt", true, []string{"stop_id"}, func(f *StaticFeed) any { return &f.Stops }},
	{"routes.txt", true, []string{"route_id"}, func(f *StaticFeed) any { return &f.Routes }},
	{"trips.txt", true, []string{"trip_id", "route_id", "service_id"}, func(f *StaticFeed) any { return &f.Trips }},
	{"stop_times.txt", true, []string{"trip_id", "stop_id", "arrival_time"}, func(f *StaticFeed) any { return &f.StopTimes }},
	{"calendar.txt", false, []string{"service_id", "start_date", "end_date"}, func(f *StaticFeed) any { return &f.Calendar }},
	{"calendar_dates.txt", false, []string{"service_id", "date", "exception_type"}, func(f *StaticFeed) any { return &f.CalendarDates }},
	{"shapes.txt", false, []string{"shape_id", "shape_pt_lat", "shape_pt_lon"}, func(f *StaticFeed) any { return &f.Shapes }},
}

// ParseStaticFeed reads every known table from fsys, which holds the feed's
// .txt files at its root.
func ParseStaticFeed(fsys fs.FS) (*StaticFeed, error) {
	feed := &StaticFeed{}
	for _, t := range staticTables {
		if err := readTable(fsys, t, t.dest(feed)); err != nil {
			return nil, err
		}
	}
	return feed, nil
}

func readTable(fsys fs.FS, t table, out any) error {
	raw, err := fs.ReadFile(fsys, t.name)
	if errors.Is(err, fs.ErrNotExist) {
		if t.required {
			return &schedule.DataLoadError{File: t.name, Err: ErrMissingFile}
		}
		return nil
	}
	if err != nil {
		return &schedule.DataLoadError{File: t.name, Err: err}
	}
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	if len(bytes.TrimSpace(raw)) == 0 {
		if t.required {
			return &schedule.DataLoadError{File: t.name, Err: schedule.ErrNoRows}
		}
		return nil
	}

	header, err := newCSVReader(raw).Read()
	if err != nil {
		return &schedule.DataLoadError{File: t.name, Err: err}
	}
	for _, column := range t.columns {
		if !slices.Contains(header, column) {
			return &schedule.DataLoadError{File: t.name, Err: fmt.Errorf("missing mandatory column %q", column)}
		}
	}

	if err := gocsv.UnmarshalCSV(newCSVReader(raw), out); err != nil {
		return &schedule.DataLoadError{File: t.name, Err: err}
	}
	return nil
}

func newCSVReader(raw []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r
}

// LoadStaticFeed loads a feed from a directory, a zip file, or an http(s) URL.
// Downloads are retried with exponential backoff.
func LoadStaticFeed(ctx context.Context, config Config, logger *slog.Logger) (*StaticFeed, error) {
	source := config.StaticSource
	if config.staticIsRemote() {
		raw, err := downloadStatic(ctx, source, config.StaticDownloadRetries, logger)
		if err != nil {
			return nil, &schedule.DataLoadError{File: source, Err: err}
		}
		return parseZip(raw, source)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, &schedule.DataLoadError{File: source, Err: err}
	}
	if info.IsDir() {
		return ParseStaticFeed(os.DirFS(source))
	}

	zr, err := zip.OpenReader(source)
	if err != nil {
		return nil, &schedule.DataLoadError{File: source, Err: err}
	}
	defer logging.SafeCloseWithLogging(zr, logger, "static_gtfs_zip")
	return ParseStaticFeed(zr)
}

func parseZip(raw []byte, source string) (*StaticFeed, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, &schedule.DataLoadError{File: source, Err: err}
	}
	return ParseStaticFeed(zr)
}

func downloadStatic(ctx context.Context, url string, retries uint64, logger *slog.Logger) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxElapsedTime = 2 * time.Minute

	fetch := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer logging.SafeCloseWithLogging(resp.Body, logger, "static_gtfs_response_body")

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	return backoff.RetryNotifyWithData(fetch,
		backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx),
		func(err error, wait time.Duration) {
			logging.LogError(logger, "static GTFS download failed, retrying", err,
				slog.String("url", url),
				slog.Duration("wait", wait))
		})
}
