package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"condo-assistant/internal/app"
	"condo-assistant/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := config.NewLogger(cfg)

	// ---- AWS SDK config ----
	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load aws config")
	}

	// ---- Handler ----
	h, err := app.NewWebhook(awsCfg, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create webhook handler")
	}

	lambda.Start(h.Handle)
}
