package restapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"busstatus.transit.org/internal/gtfs"
	"busstatus.transit.org/internal/logging"
	"busstatus.transit.org/internal/models"
)

// writeEnvelopeError sends an envelope with no data. The status is repeated
// in the body's code field.
func writeEnvelopeError(w http.ResponseWriter, status int, text string) error {
	setJSONResponseType(&w)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(models.NewErrorResponse(status, text))
}

func (api *RestAPI) writeError(w http.ResponseWriter, status int, text string) {
	if err := writeEnvelopeError(w, status, text); err != nil {
		api.Logger.Error("failed to encode error response", "status", status, "error", err)
	}
}

func (api *RestAPI) invalidAPIKeyResponse(w http.ResponseWriter, r *http.Request) {
	api.writeError(w, http.StatusUnauthorized, "permission denied")
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err)
	api.writeError(w, http.StatusInternalServerError, "internal server error")
}

// validationErrorResponse sends a 400 Bad Request response with field-specific validation errors
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	response := struct {
		Code        int                 `json:"code"`
		CurrentTime int64               `json:"currentTime"`
		FieldErrors map[string][]string `json:"fieldErrors"`
		Text        string              `json:"text"`
		Version     int                 `json:"version"`
	}{
		Code:        http.StatusBadRequest,
		CurrentTime: models.ResponseCurrentTime(),
		FieldErrors: fieldErrors,
		Text:        "invalid request",
		Version:     models.ResponseVersion,
	}

	setJSONResponseType(&w)
	w.WriteHeader(http.StatusBadRequest)
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		api.Logger.Error("failed to encode validation error response", "error", err)
	}
}

// badGatewayResponse reports that the trip updates feed could not be read.
func (api *RestAPI) badGatewayResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "trip updates feed unavailable", err)
	api.writeError(w, http.StatusBadGateway, "trip updates feed unavailable")
}

func (api *RestAPI) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request) {
	api.writeError(w, http.StatusServiceUnavailable, "schedule data not loaded")
}

// managerErrorResponse maps the errors the GTFS manager returns to statuses.
func (api *RestAPI) managerErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var fetchErr *gtfs.FeedFetchError
	switch {
	case errors.Is(err, gtfs.ErrStopNotFound):
		api.sendNotFound(w, r)
	case errors.Is(err, gtfs.ErrStaticDataNotLoaded):
		api.serviceUnavailableResponse(w, r)
	case errors.As(err, &fetchErr):
		api.badGatewayResponse(w, r, err)
	default:
		api.serverErrorResponse(w, r, err)
	}
}
