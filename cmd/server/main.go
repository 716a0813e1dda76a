package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"condo-assistant/internal/app"
	"condo-assistant/internal/config"
	"condo-assistant/internal/sweeper"
)

func main() {
	// A missing .env is fine; real environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load aws config")
	}
	webhook, err := app.NewWebhook(awsCfg, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create webhook handler")
	}
	sw, err := app.NewSweeper(awsCfg, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create sweeper")
	}

	scheduler, err := startSweeper(ctx, cfg.SweepSchedule, sw, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("schedule sweeper")
	}
	defer func() { <-scheduler.Stop().Done() }()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	webhook.Register(e)

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
}

// startSweeper runs the sweeper on spec, skipping a tick while the previous
// run is still going.
func startSweeper(ctx context.Context, spec string, sw *sweeper.Sweeper, logger zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		if _, err := sw.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("scheduled sweep failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
