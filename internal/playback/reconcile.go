package playback

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"together-sync/internal/config"
	"together-sync/internal/player"
)

// Reconciler consumes inbound snapshots and drives the player toward them.
type Reconciler struct {
	cfg    config.SyncConfig
	clock  clockwork.Clock
	state  *SharedState
	target player.Adapter
	log    zerolog.Logger
}

func NewReconciler(cfg config.SyncConfig, clock clockwork.Clock, state *SharedState, target player.Adapter) *Reconciler {
	return &Reconciler{
		cfg:    cfg,
		clock:  clock,
		state:  state,
		target: target,
		log:    log.With().Str("component", "reconciler").Logger(),
	}
}

// ApplySnapshot reconciles the local player against snap. force selects the
// tight drift threshold used for authoritative events (join bootstrap and
// explicit play/pause/seek broadcasts); ambient snapshots use the wide
// thresholds. settle is the suppression window to open afterwards; zero picks
// the default for the snapshot class.
func (r *Reconciler) ApplySnapshot(snap Snapshot, force bool, settle time.Duration) {
	if r.target == nil {
		return
	}
	snap = snap.normalized()
	now := r.clock.Now()

	transit := 0.0
	if snap.ServerNow > 0 {
		transit = float64(now.UnixMilli()-snap.ServerNow) / 1000
		if transit < 0 {
			transit = 0
		}
	}

	target := snap.CurrentTime
	if snap.Playing {
		target += transit + r.cfg.SyncBuffer.Seconds()
	}

	local := r.target.CurrentTime()
	drift := math.Abs(local - target)

	threshold := r.cfg.PausedDriftThreshold.Seconds()
	switch {
	case force:
		threshold = r.cfg.ForceSeekThreshold.Seconds()
	case snap.Playing:
		threshold = r.cfg.PlayingDriftThreshold.Seconds()
	}

	seeked := false
	if drift > threshold {
		r.target.SeekTo(target)
		seeked = true
	}

	// Asymmetric alignment: only act when the remote and local states
	// disagree. Buffering/unknown counts as not playing.
	localPlaying := r.target.State() == player.StatePlaying
	if snap.Playing && !localPlaying {
		r.target.Play()
	} else if !snap.Playing && localPlaying {
		r.target.Pause()
	}

	if settle <= 0 {
		if force {
			settle = r.cfg.AuthoritativeSettle
		} else {
			settle = r.cfg.AmbientSettle
		}
	}
	r.state.Suppress(settle)

	// Record the commanded values, not yet-confirmed player readings, so the
	// observer extrapolates from where the player is headed rather than from
	// a mid-seek position.
	commanded := player.StatePaused
	if snap.Playing {
		commanded = player.StatePlaying
	}
	r.state.SetSample(Sample{Time: target, CapturedAt: now, State: commanded})
	r.state.SetReportedState(commanded)

	r.log.Debug().
		Bool("force", force).
		Bool("seeked", seeked).
		Float64("drift", drift).
		Float64("target", target).
		Float64("transit", transit).
		Msg("applied snapshot")
}
