package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"banksia.lava.moe/internal/logging"
)

func (api *RestAPI) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.LogError(api.Logger, "failed to write response", err,
			slog.String("component", "rest_api"))
	}
}

func (api *RestAPI) errorResponse(w http.ResponseWriter, status int, message string) {
	api.writeJSON(w, status, map[string]string{"error": message})
}

func (api *RestAPI) invalidAPIKeyResponse(w http.ResponseWriter, _ *http.Request) {
	api.errorResponse(w, http.StatusUnauthorized, "invalid or missing API key")
}

func (api *RestAPI) notFoundResponse(w http.ResponseWriter, message string) {
	api.errorResponse(w, http.StatusNotFound, message)
}
