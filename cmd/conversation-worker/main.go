package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
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
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if cfg.UseMemoryQueue || strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		logger.Error("conversation worker requires USE_MEMORY_QUEUE=false and CONVERSATION_QUEUE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	var s3Client media.S3API
	if cfg.MediaBucket != "" {
		s3Client = mainconfig.NewS3Client(awsConfig, cfg)
	}

	app, err := bootstrap.Build(ctx, bootstrap.Params{
		Config:            cfg,
		AWS:               awsConfig,
		S3:                s3Client,
		Logger:            logger,
		VerifyConnections: true,
	})
	if err != nil {
		logger.Error("failed to wire worker", "error", err)
		os.Exit(1)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- app.Run(ctx) }()
	logger.Info("conversation worker started", "workers", cfg.WorkerCount, "queue", cfg.ConversationQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-runDone:
		// Run only returns early on a fatal loop error.
		logger.Error("background loop exited", "error", err)
		app.Close()
		os.Exit(1)
	}

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	select {
	case err := <-runDone:
		if err != nil {
			logger.Error("conversation worker stopped with error", "error", err)
		} else {
			logger.Info("conversation worker stopped")
		}
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
	app.Close()
}
