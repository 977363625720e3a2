package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/adapters/directory"
	router "github.com/mvolkov/huddle/internal/adapters/http"
	signalctl "github.com/mvolkov/huddle/internal/adapters/signal"
	"github.com/mvolkov/huddle/internal/app"
	"github.com/mvolkov/huddle/internal/config"
	"github.com/mvolkov/huddle/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var dir core.Directory
	switch cfg.Directory {
	case "badger":
		b, err := directory.OpenBadger(cfg.DirectoryPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open directory store")
		}
		defer b.Close()
		dir = b
	default:
		dir = directory.NewMemory()
	}

	reg := app.NewRegistry()
	rt := app.NewRouter(dir, reg, cfg.DisconnectGrace)
	ctl := signalctl.NewController(rt, reg, dir, cfg)

	r := router.SetupRouter(cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("directory", cfg.Directory).Msg("Huddle relay started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
