package playback

import (
	"context"
	"math"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"together-sync/internal/config"
	"together-sync/internal/player"
)

// Observer samples the local player on a fixed cadence and infers which state
// changes were caused by the local user. Reconciler-driven changes fall inside
// the suppression window and are never re-reported.
type Observer struct {
	cfg     config.SyncConfig
	clock   clockwork.Clock
	state   *SharedState
	source  player.Adapter
	emitter Emitter
	log     zerolog.Logger
}

func NewObserver(cfg config.SyncConfig, clock clockwork.Clock, state *SharedState, source player.Adapter, emitter Emitter) *Observer {
	return &Observer{
		cfg:     cfg,
		clock:   clock,
		state:   state,
		source:  source,
		emitter: emitter,
		log:     log.With().Str("component", "observer").Logger(),
	}
}

// Run samples until ctx is cancelled. The session controller ties the context
// to the joined lifetime.
func (o *Observer) Run(ctx context.Context) {
	ticker := o.clock.NewTicker(o.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			o.Tick()
		}
	}
}

// Tick performs a single observation pass.
func (o *Observer) Tick() {
	if o.source == nil || o.emitter == nil {
		return
	}
	now := o.clock.Now()
	current := o.source.CurrentTime()
	state := o.source.State()
	settled := state == player.StatePlaying || state == player.StatePaused

	if o.state.Suppressed() {
		// Bookkeeping only: track what the reconciler commanded so the first
		// tick after release doesn't mistake it for a user action.
		if settled {
			o.state.SetSample(Sample{Time: current, CapturedAt: now, State: state})
			o.state.SetReportedState(state)
		}
		return
	}

	if settled {
		if prev, ok := o.state.LastSample(); ok && (prev.State == player.StatePlaying || prev.State == player.StatePaused) {
			expected := prev.Time
			if prev.State == player.StatePlaying {
				expected += now.Sub(prev.CapturedAt).Seconds()
			}
			jump := math.Abs(current - expected)
			if jump > o.cfg.SeekJumpThreshold.Seconds() && o.state.SeekEmitAllowed(now, o.cfg.SeekEmitCooldown) {
				o.emitter.EmitSeek(current)
				o.state.RecordSeekEmit(now)
				o.log.Debug().Float64("jump", jump).Float64("position", current).Msg("reported user seek")
			}
		}
		o.state.SetSample(Sample{Time: current, CapturedAt: now, State: state})
	}

	// Edge trigger on play/pause, independent of the jump detector so each
	// transition is reported exactly once.
	if settled && state != o.state.ReportedState() {
		switch state {
		case player.StatePlaying:
			o.emitter.EmitPlay(current)
		case player.StatePaused:
			o.emitter.EmitPause(current)
		}
		o.state.SetReportedState(state)
		o.log.Debug().Stringer("state", state).Float64("position", current).Msg("reported state edge")
	}
}
