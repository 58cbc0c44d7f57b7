package app

import "net/http"

// RequestHasInvalidAPIKey checks the request's "key" query parameter
// against the configured access keys.
func (app *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	return app.IsInvalidAPIKey(r.URL.Query().Get("key"))
}

func (app *Application) IsInvalidAPIKey(key string) bool {
	if key == "" {
		return true
	}

	for _, validKey := range app.Config.APIKeys {
		if key == validKey {
			return false
		}
	}
	return true
}
