package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	httpAdapter "github.com/hylfro/instasweep/internal/adapter/http"
	"github.com/hylfro/instasweep/internal/adapter/instagram"
	"github.com/hylfro/instasweep/internal/adapter/sqlite"
	"github.com/hylfro/instasweep/internal/config"
	"github.com/hylfro/instasweep/internal/domain"
	"github.com/hylfro/instasweep/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: "15:04:05",
		Writer:     &log.ConsoleWriter{ColorOutput: true, Writer: os.Stderr},
	}

	logger.Info().Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("starting instasweep")

	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer repo.Close()

	client := instagram.New(
		instagram.WithBaseURL(cfg.BaseURL),
		instagram.WithTimeout(cfg.Timeout()),
	)

	engine := worker.New(repo, client, worker.Options{
		BatchDelay:     time.Duration(cfg.Engine.BatchDelayMs) * time.Millisecond,
		FastBatchDelay: time.Duration(cfg.Engine.FastBatchDelayMs) * time.Millisecond,
		PageDelay:      time.Duration(cfg.Engine.PageDelayMs) * time.Millisecond,
		FastPageDelay:  time.Duration(cfg.Engine.FastPageDelayMs) * time.Millisecond,
	}, logger)

	svc := domain.NewJobService(repo, repo, engine)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := httpAdapter.NewServer(svc, addr, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}
