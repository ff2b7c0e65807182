package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teenpatti-casino/internal/config"
	"teenpatti-casino/internal/coordinator"
	"teenpatti-casino/internal/ledger"
	"teenpatti-casino/internal/lobby"
	"teenpatti-casino/internal/logging"
	"teenpatti-casino/internal/store"
	"teenpatti-casino/internal/stream"
	httptransport "teenpatti-casino/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}

	st, err := store.Open(cfg.Server.StoreDriver, cfg.Server.PostgresDSN, cfg.Server.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Server.StoreDriver).Msg("store init failed")
	}
	defer st.Close()
	ctx := context.Background()
	if err := st.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.EnsureDefaultRooms(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure default rooms failed")
	}
	seedUsers(ctx, st, cfg.Server.SeedUsers, cfg.Server.SeedBalance)

	rows, err := st.ListRooms(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list rooms failed")
	}
	hub := stream.NewHub(cfg.Game.EventBufferSize)
	coord, err := coordinator.New(lobby.TemplatesFromCatalog(rows), ledger.New(st), hub, coordinator.Options{
		TurnTimeout:   cfg.Game.TurnTimeout,
		RetryBase:     cfg.Game.SettleRetryBase,
		RetryMaxDelay: cfg.Game.SettleRetryMaxDelay,
		MaxQueue:      cfg.Game.MaxQueuePerRoom,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("coordinator init failed")
	}
	defer coord.Close()

	r := httptransport.NewRouter(st, cfg.Server, coord, hub)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Int("rooms", len(rows)).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}

func seedUsers(ctx context.Context, st store.Backend, users []string, balance int64) {
	for _, userID := range users {
		if userID == "" {
			continue
		}
		if err := st.EnsureAccount(ctx, userID, balance); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("seed account failed")
			continue
		}
		log.Info().Str("user_id", userID).Int64("balance", balance).Msg("seed account ensured")
	}
}
