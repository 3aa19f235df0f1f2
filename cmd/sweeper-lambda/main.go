package main

import (
	"context"
	"errors"
	"strings"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/solarbill-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/solarbill-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/solarbill-ai-platform/internal/config"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

type sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type sweepResult struct {
	Resolved int `json:"resolved"`
}

// handler resolves reply races whose deadline passed while no API process
// was around to fire the timer. It runs on an EventBridge schedule.
type handler struct {
	sweeper sweeper
	logger  *logging.Logger
}

func (h *handler) handle(ctx context.Context, evt awsevents.CloudWatchEvent) (sweepResult, error) {
	resolved, err := h.sweeper.Sweep(ctx)
	if err != nil {
		h.logger.Error("race sweep failed", "error", err, "resolved", resolved, "event_id", evt.ID)
		return sweepResult{Resolved: resolved}, err
	}
	h.logger.Info("race sweep finished", "resolved", resolved, "event_id", evt.ID)
	return sweepResult{Resolved: resolved}, nil
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if strings.TrimSpace(cfg.RaceJournalTable) == "" {
		panic(errors.New("RACE_JOURNAL_TABLE is required"))
	}

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		panic(err)
	}
	app, err := bootstrap.Build(ctx, bootstrap.Params{
		Config:            cfg,
		AWS:               awsCfg,
		Logger:            logger,
		VerifyConnections: true,
	})
	if err != nil {
		panic(err)
	}

	h := &handler{sweeper: app.Sweeper, logger: logger}
	lambda.Start(h.handle)
}
