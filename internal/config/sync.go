package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// SyncConfig carries every tunable of the playback engine. The defaults are the
// values the engine was tuned with; the thresholds and settle windows are
// empirical, not load-bearing, so they are exposed here rather than hard-coded.
// The only ordering that matters: authoritative settle windows are longer than
// the ambient one.
type SyncConfig struct {
	// Added to the seek target while playing, compensating for the local
	// seek's own dispatch latency.
	SyncBuffer time.Duration `env:"SYNC_BUFFER" envDefault:"250ms"`

	// Drift thresholds for issuing a corrective seek.
	ForceSeekThreshold    time.Duration `env:"SYNC_FORCE_SEEK_THRESHOLD" envDefault:"200ms"`
	PlayingDriftThreshold time.Duration `env:"SYNC_PLAYING_DRIFT_THRESHOLD" envDefault:"1s"`
	PausedDriftThreshold  time.Duration `env:"SYNC_PAUSED_DRIFT_THRESHOLD" envDefault:"350ms"`

	// Local jump detection: a position discontinuity beyond the threshold is
	// reported as a user seek, at most once per cooldown.
	SeekJumpThreshold time.Duration `env:"SYNC_SEEK_JUMP_THRESHOLD" envDefault:"1200ms"`
	SeekEmitCooldown  time.Duration `env:"SYNC_SEEK_EMIT_COOLDOWN" envDefault:"900ms"`

	// Cadence of the local observer.
	SampleInterval time.Duration `env:"SYNC_SAMPLE_INTERVAL" envDefault:"250ms"`

	// Suppression windows after the reconciler drives the player.
	AmbientSettle       time.Duration `env:"SYNC_AMBIENT_SETTLE" envDefault:"350ms"`
	AuthoritativeSettle time.Duration `env:"SYNC_AUTHORITATIVE_SETTLE" envDefault:"500ms"`
	VideoChangeSettle   time.Duration `env:"SYNC_VIDEO_CHANGE_SETTLE" envDefault:"500ms"`
	JoinSettle          time.Duration `env:"SYNC_JOIN_SETTLE" envDefault:"700ms"`

	// Wait for the player to load the video before the forced join
	// reconciliation is applied.
	LoadDelay time.Duration `env:"SYNC_LOAD_DELAY" envDefault:"200ms"`
}

func LoadSync() (SyncConfig, error) {
	var cfg SyncConfig
	err := env.Parse(&cfg)
	return cfg, err
}
