package restapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"banksia.lava.moe/internal/logging"
)

// updateHandler triggers a static ingest. It acknowledges immediately and
// runs the ingest asynchronously; success or failure surfaces only in
// logs, and callers discover the outcome by polling version metadata or
// re-triggering.
func (api *RestAPI) updateHandler(w http.ResponseWriter, r *http.Request) {
	datasetID := r.URL.Query().Get("id")
	datasetURL := r.URL.Query().Get("url")
	if datasetURL == "" {
		datasetURL = api.Config.DatasetURLFor(datasetID)
	}

	logger := api.Logger.With(slog.String("component", "update_trigger"))
	logging.LogOperation(logger, "ingest_triggered",
		slog.String("url", datasetURL),
		slog.String("dataset_id", datasetID))

	// No mutual exclusion against concurrent triggers; callers serialize.
	go func() {
		ctx := logging.WithLogger(context.Background(), logger)
		if err := api.Ingestor.Update(ctx, datasetURL, time.Time{}); err != nil {
			logging.LogError(logger, "static ingest failed", err,
				slog.String("url", datasetURL))
		}
	}()

	api.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"url":    datasetURL,
	})
}
