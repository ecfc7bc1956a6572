package restapi

import (
	"net/http"
	"time"

	"busstatus.transit.org/internal/models"
	"busstatus.transit.org/internal/utils"
)

// requestTime is now in the service zone, or the instant given by the "time"
// query parameter. It writes a 400 and returns false when the parameter is bad.
func (api *RestAPI) requestTime(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	now, err := utils.ParseTimeParam(r, api.GtfsManager.Location(), api.now())
	if err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"time": {err.Error()}})
		return time.Time{}, false
	}
	return now, true
}

func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	now, ok := api.requestTime(w, r)
	if !ok {
		return
	}

	health := api.GtfsManager.Health(now)
	if health.Status != "ok" {
		api.sendResponse(w, r, models.NewResponse(http.StatusServiceUnavailable, health, "schedule data not loaded"))
		return
	}
	api.sendResponse(w, r, models.NewOKResponse(health))
}

func (api *RestAPI) stopsHandler(w http.ResponseWriter, r *http.Request) {
	stops, err := api.GtfsManager.ListStops()
	if err != nil {
		api.managerErrorResponse(w, r, err)
		return
	}
	bounds, err := api.GtfsManager.GetRegionBounds()
	if err != nil {
		api.managerErrorResponse(w, r, err)
		return
	}

	api.sendResponse(w, r, models.NewOKResponse(models.StopsResponse{Stops: stops, Bounds: bounds}))
}

func (api *RestAPI) routesHandler(w http.ResponseWriter, r *http.Request) {
	now, ok := api.requestTime(w, r)
	if !ok {
		return
	}

	routes, err := api.GtfsManager.GetRoutes(now)
	if err != nil {
		api.managerErrorResponse(w, r, err)
		return
	}

	api.sendResponse(w, r, models.NewOKResponse(routes))
}

func (api *RestAPI) shapesHandler(w http.ResponseWriter, r *http.Request) {
	shapes, err := api.GtfsManager.GetShapes()
	if err != nil {
		api.managerErrorResponse(w, r, err)
		return
	}
	if shapes == nil {
		shapes = []models.RouteShape{}
	}

	api.sendResponse(w, r, models.NewOKResponse(models.ShapesResponse{Shapes: shapes}))
}

func (api *RestAPI) stopStatusHandler(w http.ResponseWriter, r *http.Request) {
	stopID := utils.ExtractIDFromParams(r, "stop_id")

	if err := utils.ValidateID(stopID); err != nil {
		fieldErrors := map[string][]string{
			"stop_id": {err.Error()},
		}
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	now, ok := api.requestTime(w, r)
	if !ok {
		return
	}

	status, err := api.GtfsManager.GetStopStatus(r.Context(), stopID, now)
	if err != nil {
		api.managerErrorResponse(w, r, err)
		return
	}

	api.sendResponse(w, r, models.NewOKResponse(status))
}
