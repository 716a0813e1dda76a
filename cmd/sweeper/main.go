package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"condo-assistant/internal/app"
	"condo-assistant/internal/config"
	"condo-assistant/internal/sweeper"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := config.NewLogger(cfg)

	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load aws config")
	}
	sw, err := app.NewSweeper(awsCfg, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create sweeper")
	}

	// One sweep and reclaim cycle per scheduled event.
	lambda.Start(func(ctx context.Context, ev events.CloudWatchEvent) (sweeper.Report, error) {
		logger.Debug().Str("event_id", ev.ID).Msg("sweep triggered")
		return sw.Run(ctx)
	})
}
