package gtfs

import (
	"errors"
	"fmt"
)

var (
	// ErrStaticDataNotLoaded is returned before the first static feed has been indexed.
	ErrStaticDataNotLoaded = errors.New("static GTFS data not loaded")
	// ErrStopNotFound is returned for stop IDs that stops.txt does not list.
	ErrStopNotFound = errors.New("stop not found")
)

// FeedFetchError reports a failed realtime fetch. StatusCode is set when the
// server answered with a non-200 status.
type FeedFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FeedFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FeedFetchError) Unwrap() error {
	return e.Err
}
