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

	router "github.com/pbazhin/studyhub/internal/adapters/http"
	"github.com/pbazhin/studyhub/internal/adapters/ws"
	"github.com/pbazhin/studyhub/internal/app"
	"github.com/pbazhin/studyhub/internal/config"
	"github.com/pbazhin/studyhub/internal/sessions"
	"github.com/pbazhin/studyhub/internal/store"
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

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer db.Close()

	// The registry is constructed here and handed to everything that reads
	// live membership; nothing imports it globally.
	registry := app.NewRegistry()
	hub := app.NewHub(registry)
	svc := sessions.NewService(db, hub)

	limiter := ws.NewMessageRateLimiter(cfg.MsgRateLimit, cfg.MsgRateInterval)
	wsCtl := ws.NewController(hub, svc, cfg.ReadLimit, cfg.PingPeriod, limiter)

	r := router.SetupRouter(ctx, cfg, svc, wsCtl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("studyhub server started")
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
