package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func validateAPIKey(api *RestAPI, finalHandler handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	})
}

// route wraps a handler with the API key check and per-route metrics.
func (api *RestAPI) route(name string, h handlerFunc) http.Handler {
	return api.instrument(name, validateAPIKey(api, h))
}

func (api *RestAPI) SetRoutes(router *httprouter.Router) {
	router.Handler(http.MethodGet, "/api/health", api.route("health", api.healthHandler))
	router.Handler(http.MethodGet, "/api/stops", api.route("stops", api.stopsHandler))
	router.Handler(http.MethodGet, "/api/routes", api.route("routes", api.routesHandler))
	router.Handler(http.MethodGet, "/api/shapes", api.route("shapes", api.shapesHandler))
	router.Handler(http.MethodGet, "/api/stop/:stop_id", api.route("stop_status", api.stopStatusHandler))

	router.NotFound = http.HandlerFunc(api.sendNotFound)
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Middleware applies the server-wide chain, outermost first: request
// logging, security headers and CORS, compression, rate limiting.
func (api *RestAPI) Middleware(next http.Handler) http.Handler {
	handler := next
	if api.rateLimiter != nil {
		handler = api.rateLimiter.Handler(handler)
	}
	handler = CompressionMiddleware(handler)
	handler = api.WithSecurityHeaders(handler)
	return NewRequestLoggingMiddleware(api.Logger)(handler)
}

// Handler is the API router with the full middleware chain, for callers that
// do not mount anything else.
func (api *RestAPI) Handler() http.Handler {
	router := httprouter.New()
	api.SetRoutes(router)
	return api.Middleware(router)
}
