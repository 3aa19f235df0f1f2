package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/solarbill-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/solarbill-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/solarbill-ai-platform/internal/config"
	"github.com/wolfman30/solarbill-ai-platform/internal/media"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting solarbill-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	var s3Client media.S3API
	if cfg.MediaBucket != "" {
		s3Client = mainconfig.NewS3Client(awsCfg, cfg)
	}

	app, err := bootstrap.Build(ctx, bootstrap.Params{
		Config:            cfg,
		AWS:               awsCfg,
		S3:                s3Client,
		Logger:            logger,
		VerifyConnections: true,
	})
	if err != nil {
		logger.Error("failed to wire platform", "error", err)
		os.Exit(1)
	}

	srv := newServer(cfg, app.Router())

	// With SQS the conversation-worker consumes jobs and owns the background
	// loops; the API only enqueues.
	runDone := make(chan error, 1)
	if cfg.UseMemoryQueue {
		go func() { runDone <- app.Run(ctx) }()
	} else {
		runDone <- nil
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("server error", "error", err)
		exitCode = 1
		stop()
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		exitCode = 1
	}
	waitForBackground(shutdownCtx, runDone, logger)
	app.Close()

	logger.Info("server stopped")
	os.Exit(exitCode)
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// waitForBackground waits for workers, the sweeper and the outbox deliverer
// to drain, giving up when ctx expires.
func waitForBackground(ctx context.Context, runDone <-chan error, logger *logging.Logger) {
	select {
	case err := <-runDone:
		if err != nil {
			logger.Error("background loop failed", "error", err)
		}
		logger.Info("background loops stopped")
	case <-ctx.Done():
		logger.Error("background shutdown timed out", "error", ctx.Err())
	}
}
