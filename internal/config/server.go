package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":4000"`

	YouTubeAPIKey string `env:"YOUTUBE_API_KEY"`

	// Path for the room/chat history database. Empty disables persistence.
	HistoryDBPath string `env:"HISTORY_DB_PATH"`

	// How often each room pushes an ambient sync-state snapshot to members.
	AmbientSyncInterval time.Duration `env:"AMBIENT_SYNC_INTERVAL" envDefault:"5s"`

	// Rooms with no members are reaped after this long.
	EmptyRoomTTL time.Duration `env:"EMPTY_ROOM_TTL" envDefault:"5m"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
