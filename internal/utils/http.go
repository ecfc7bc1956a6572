package utils

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

// ExtractIDFromParams retrieves a route parameter and removes a trailing ".json".
func ExtractIDFromParams(r *http.Request, paramName string) string {
	params := httprouter.ParamsFromContext(r.Context())
	rawID := params.ByName(paramName)
	return strings.TrimSuffix(rawID, ".json")
}

var errInvalidTime = errors.New(`invalid value for "time", use epoch milliseconds or RFC 3339`)

// ParseTimeParam reads the optional "time" query parameter, which overrides
// the clock for a request. It accepts epoch milliseconds or an RFC 3339
// timestamp. An absent parameter yields now.
func ParseTimeParam(r *http.Request, loc *time.Location, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("time"))
	if raw == "" {
		return now.In(loc), nil
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return time.Time{}, errInvalidTime
		}
		return time.UnixMilli(ms).In(loc), nil
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errInvalidTime
	}
	return parsed.In(loc), nil
}
