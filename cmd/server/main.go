package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/mdbuild/internal/api"
	"github.com/dgallion1/mdbuild/internal/config"
	"github.com/dgallion1/mdbuild/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if path := os.Getenv("MDBUILD_CONFIG"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path, cfg); err != nil {
			log.Error("invalid config file", "path", path, "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize pipeline.
	out := pipeline.FSSink{Dir: cfg.OutDir}
	orch := pipeline.NewOrchestrator(cfg, out, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, out, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting mdbuild server", "port", cfg.Port, "out_dir", cfg.OutDir, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
