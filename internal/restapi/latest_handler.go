package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"banksia.lava.moe/internal/models"
)

// latestHandler returns a summary of the most recent decoded realtime
// message for one feed. Best-effort: there is nothing to return until the
// poller has completed a successful fetch for the feed.
func (api *RestAPI) latestHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	feed := models.Feed{
		Mode: models.Mode(params.ByName("mode")),
		Kind: models.Kind(params.ByName("kind")),
	}

	msg := api.Poller.LatestFor(feed)
	if msg == nil {
		api.notFoundResponse(w, "no message received for "+feed.Path())
		return
	}

	api.writeJSON(w, http.StatusOK, map[string]any{
		"feed":      feed.Path(),
		"timestamp": msg.GetHeader().GetTimestamp(),
		"entities":  len(msg.GetEntity()),
	})
}
