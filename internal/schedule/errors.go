package schedule

import (
	"errors"
	"fmt"
)

// ErrUnparsableTime is returned for GTFS times that are not H:MM:SS.
var ErrUnparsableTime = errors.New("unparsable GTFS time")

// ErrNoRows is wrapped by a DataLoadError when a mandatory table has no usable rows.
var ErrNoRows = errors.New("table has no rows")

// DataLoadError reports a static table that is missing, unreadable, or lacks
// a mandatory column.
type DataLoadError struct {
	File string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.File, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}
