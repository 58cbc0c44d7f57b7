package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banksia.lava.moe/gtfsdb"
	"banksia.lava.moe/internal/app"
	"banksia.lava.moe/internal/appconf"
	"banksia.lava.moe/internal/archive"
	"banksia.lava.moe/internal/config"
	"banksia.lava.moe/internal/gtfs"
	"banksia.lava.moe/internal/gtfsrt"
	"banksia.lava.moe/internal/logging"
	"banksia.lava.moe/internal/restapi"
)

func main() {
	var port int
	flag.IntVar(&port, "port", 4000, "Admin server port")
	flag.Parse()

	logger := logging.NewStructuredLogger(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	dbClient, err := gtfsdb.NewClient(gtfsdb.NewConfig(cfg.DBPath, appconf.EnvFromString(cfg.Env)))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer logging.SafeCloseWithLogging(dbClient, logger, "database")

	httpClient := &http.Client{Timeout: 10 * time.Minute}
	ingestor := gtfs.NewIngestor(httpClient, dbClient, logger, cfg.WorkDir, cfg.KeepWorkFiles)

	worker := archive.NewWorker(logger)
	writer := archive.NewWriter(cfg.ArchiveDir, worker, logger)
	poller := gtfsrt.NewPoller(gtfsrt.Config{
		BaseURL:  cfg.RealtimeBaseURL,
		APIKey:   cfg.RealtimeKey,
		Interval: cfg.PollInterval,
		Feeds:    cfg.Feeds,
	}, &http.Client{Timeout: 15 * time.Second}, writer, worker, logger)

	if err := poller.Start(); err != nil {
		logger.Error("failed to start realtime poller", "error", err)
		os.Exit(1)
	}
	defer poller.Shutdown()

	application := &app.Application{
		Config:   cfg,
		Logger:   logger,
		Ingestor: ingestor,
		Poller:   poller,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      restapi.NewRestAPI(application).Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Close(); err != nil {
		logger.Error("server close failed", "error", err)
	}
}
