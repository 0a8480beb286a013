// sync-bot is a headless room member. It joins (or creates) a room with a
// simulated player and keeps it in lockstep with the room's playback, which
// makes it useful both as a smoke test against a live server and as a seat
// filler during development.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"together-sync/internal/channel"
	"together-sync/internal/config"
	"together-sync/internal/logging"
	"together-sync/internal/player"
	"together-sync/internal/protocol"
	"together-sync/internal/roomapi"
	"together-sync/internal/session"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal().Err(err).Msg("load client config failed")
	}
	syncCfg, err := config.LoadSync()
	if err != nil {
		log.Fatal().Err(err).Msg("load sync config failed")
	}

	clock := clockwork.NewRealClock()
	api := roomapi.NewClient(cfg.ServerURL)
	dialer := channel.NewDialer(api.SocketURL())
	sim := player.NewSim(clock)

	ctrl := session.NewController(syncCfg, clock, api, dialer, sim)
	ctrl.SetDisplayName(cfg.Username)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RoomCode != "" {
		if err := ctrl.JoinRoom(ctx, cfg.RoomCode); err != nil {
			log.Fatal().Err(err).Str("room", cfg.RoomCode).Msg("join failed")
		}
	} else {
		video, err := pickVideo(ctx, api, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("video selection failed")
		}
		ctrl.SelectVideo(video)
		if err := ctrl.CreateRoom(ctx); err != nil {
			log.Fatal().Err(err).Msg("create room failed")
		}
	}

	// Joined state arrives asynchronously over the channel.
	for ctrl.Phase() != session.PhaseJoined {
		select {
		case <-ctx.Done():
			log.Fatal().Str("status", ctrl.Status()).Msg("interrupted before join completed")
		case <-time.After(100 * time.Millisecond):
		}
	}
	sess := ctrl.Session()
	log.Info().Str("room", sess.RoomCode).Bool("host", sess.IsHost).Msg("bot joined")

	<-ctx.Done()
	if err := ctrl.Exit(); err != nil {
		log.Warn().Err(err).Msg("exit failed")
	}
	log.Info().Msg("bot exited")
}

func pickVideo(ctx context.Context, api *roomapi.Client, cfg config.ClientConfig) (protocol.VideoRef, error) {
	if cfg.VideoID != "" {
		return protocol.VideoRef{VideoID: cfg.VideoID}, nil
	}
	results, err := api.Search(ctx, cfg.SearchQuery)
	if err != nil {
		return protocol.VideoRef{}, err
	}
	if len(results) == 0 {
		return protocol.VideoRef{}, fmt.Errorf("no results for %q", cfg.SearchQuery)
	}
	return results[0], nil
}
