package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/warblebot/warble/internal/bot"
	"github.com/warblebot/warble/internal/config"
	werrors "github.com/warblebot/warble/internal/errors"
)

func main() {
	os.Exit(run())
}

func run() int {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	boot, err := config.LoadBootstrap()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load bootstrap config")
	}

	if boot.Environment == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load(boot.ConfigPath)
	if err != nil {
		logger.Error().Err(err).Str("path", boot.ConfigPath).Msg("failed to load config")
		return 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = boot.LogLevel
	}
	if boot.Environment == "development" {
		cfg.Logging.Console = true
	}
	logger = buildLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("environment", boot.Environment).
		Str("config", boot.ConfigPath).
		Int("http_port", cfg.Web.Port).
		Int("connectors", len(cfg.Connectors)).
		Msg("starting warble")

	b, err := bot.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize bot")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				logger.Info().Msg("SIGHUP received, reloading")
				b.Reload()
			default:
				logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
				b.Stop()
			}
		}
	}()

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if werrors.IsFatal(err) {
			logger.Error().Err(err).Msg("bot aborted")
			return 1
		}
		logger.Error().Err(err).Msg("bot exited with error")
		return 2
	}
	return 0
}
