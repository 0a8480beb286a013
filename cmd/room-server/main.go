package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"together-sync/internal/config"
	"together-sync/internal/logging"
	"together-sync/internal/server"
	"together-sync/internal/store"
	"together-sync/internal/youtube"
)

func main() {
	appCfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(appCfg.Log)
	cfg := appCfg.Server

	var st *store.Store
	if cfg.HistoryDBPath != "" {
		st, err = store.Open(cfg.HistoryDBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("history store init failed")
		}
		defer st.Close()
	} else {
		log.Info().Msg("history persistence disabled")
	}

	hub := server.NewHub(cfg, st, clockwork.NewRealClock())
	handlers := server.NewHandlers(hub, st, youtube.NewClient(cfg.YouTubeAPIKey))
	r := server.NewRouter(hub, handlers, apiLogMiddleware())
	server.LogRoutes(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("server exited")
}
