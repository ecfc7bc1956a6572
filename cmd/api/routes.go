package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"busstatus.transit.org/internal/app"
	"busstatus.transit.org/internal/restapi"
	"busstatus.transit.org/internal/webui"
)

// newHandler mounts the API, the debug pages and, when enabled, the metrics
// endpoint on one router behind the API middleware chain.
func newHandler(application *app.Application, api *restapi.RestAPI) http.Handler {
	router := httprouter.New()
	api.SetRoutes(router)

	webUI := &webui.WebUI{Application: application}
	webUI.SetWebUIRoutes(router)

	if application.Config.MetricsEnabled && application.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", application.Metrics.Handler())
	}

	return api.Middleware(router)
}
