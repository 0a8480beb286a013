package config

import "github.com/caarlos0/env/v11"

type ClientConfig struct {
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:4000"`
	Username  string `env:"USERNAME" envDefault:"sync-bot"`

	// Join this room if set; otherwise create a new one.
	RoomCode string `env:"ROOM_CODE"`

	// Video to seed a created room with. Ignored when joining.
	VideoID string `env:"VIDEO_ID" envDefault:"dQw4w9WgXcQ"`

	// Search query used to pick a starting video when VIDEO_ID is empty.
	SearchQuery string `env:"SEARCH_QUERY" envDefault:"trending songs"`
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}
