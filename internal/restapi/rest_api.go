package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"banksia.lava.moe/internal/app"
)

// RestAPI exposes the admin surface: the static-ingest trigger and a
// read-only view of the latest realtime messages.
type RestAPI struct {
	*app.Application
}

func NewRestAPI(application *app.Application) *RestAPI {
	return &RestAPI{Application: application}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request)

// validateAPIKey rejects requests with a wrong or missing key before any
// work starts.
func validateAPIKey(api *RestAPI, finalHandler handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	})
}

func (api *RestAPI) Routes() http.Handler {
	router := httprouter.New()
	router.Handler(http.MethodPost, "/admin/gtfs/update", validateAPIKey(api, api.updateHandler))
	router.Handler(http.MethodGet, "/admin/gtfsrt/latest/:mode/:kind", validateAPIKey(api, api.latestHandler))
	return router
}
