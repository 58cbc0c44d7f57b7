package app

import (
	"log/slog"

	"banksia.lava.moe/internal/config"
	"banksia.lava.moe/internal/gtfs"
	"banksia.lava.moe/internal/gtfsrt"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Ingestor *gtfs.Ingestor
	Poller   *gtfsrt.Poller
}
