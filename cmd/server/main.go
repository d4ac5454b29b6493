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

	router "github.com/fadechat/fadechat/internal/adapters/http"
	"github.com/fadechat/fadechat/internal/adapters/redisstore"
	"github.com/fadechat/fadechat/internal/app"
	"github.com/fadechat/fadechat/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	rdb := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisstore.Ping(pingCtx, rdb); err != nil {
		// the store may be briefly unavailable; operations carry their
		// own timeouts, so start anyway
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
	}
	pingCancel()

	engineCfg := app.Config{
		HistoryLimit:       cfg.HistoryLimit,
		MaxTextBytes:       cfg.MaxTextBytes,
		MaxAudioBytes:      cfg.MaxAudioBytes,
		JoinWait:           cfg.JoinWait,
		DisconnectDebounce: cfg.DisconnectDebounce,
		ReaperInterval:     cfg.ReaperInterval,
		GracePeriod:        cfg.GracePeriod,
		MinRoomAge:         cfg.MinRoomAge,
		PresenceInterval:   cfg.PresenceInterval,
		PairingRetries:     cfg.PairingRetries,
		PairingBackoff:     cfg.PairingBackoff,
		StoreTimeout:       cfg.StoreTimeout,
	}

	engine := app.NewEngine(
		engineCfg,
		redisstore.NewIdentity(rdb, cfg.Retention),
		redisstore.NewRooms(rdb, cfg.Retention),
		redisstore.NewMessages(rdb, int64(cfg.HistoryLimit)),
		redisstore.NewPairing(rdb, cfg.PairingTTL),
	)
	engine.Run(ctx)

	r := router.SetupRouter(ctx, cfg, engine)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("fadechat server started")
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
