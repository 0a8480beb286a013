// Package playback holds the reconciliation engine: it turns remote playback
// snapshots into local player actions and watches the local player for genuine
// user actions worth broadcasting. The two directions share one SharedState so
// neither echoes the other's corrective actions.
package playback

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"together-sync/internal/player"
)

// Snapshot is a remote playback snapshot. ServerNow is the epoch-ms timestamp
// the server took at send time; zero means unknown, which disables transit
// compensation.
type Snapshot struct {
	Playing     bool
	CurrentTime float64
	ServerNow   int64
}

func (s Snapshot) normalized() Snapshot {
	if s.CurrentTime < 0 || s.CurrentTime != s.CurrentTime { // negative or NaN
		s.CurrentTime = 0
	}
	return s
}

// Sample is the last observed (or commanded) local player position.
type Sample struct {
	Time       float64
	CapturedAt time.Time
	State      player.State
}

// Emitter receives the user actions the observer decides to broadcast.
type Emitter interface {
	EmitPlay(currentTime float64)
	EmitPause(currentTime float64)
	EmitSeek(currentTime float64)
}

// SharedState is the mutable record visible to both the reconciler and the
// observer: the suppression window, the last sample, the last reported player
// state and the last emitted seek. The original engine ran both directions on
// one event loop; here they are separate goroutines, so access is locked.
type SharedState struct {
	mu            sync.Mutex
	clock         clockwork.Clock
	suppressUntil time.Time

	sample    Sample
	hasSample bool

	reported player.State

	lastSeekEmit    time.Time
	hasLastSeekEmit bool
}

func NewSharedState(clock clockwork.Clock) *SharedState {
	return &SharedState{clock: clock}
}

// Suppress opens (or replaces) the suppression window for d from now. The
// window is a deadline, not a fire-and-forget timer, so a newer snapshot's
// window can never be released early by an older one expiring.
func (s *SharedState) Suppress(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressUntil = s.clock.Now().Add(d)
}

func (s *SharedState) Suppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now().Before(s.suppressUntil)
}

func (s *SharedState) SetSample(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample = sample
	s.hasSample = true
}

func (s *SharedState) LastSample() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample, s.hasSample
}

func (s *SharedState) SetReportedState(st player.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reported = st
}

func (s *SharedState) ReportedState() player.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reported
}

// SeekEmitAllowed reports whether a seek emission at now respects the
// cooldown since the previous one.
func (s *SharedState) SeekEmitAllowed(now time.Time, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLastSeekEmit {
		return true
	}
	return now.Sub(s.lastSeekEmit) >= cooldown
}

func (s *SharedState) RecordSeekEmit(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeekEmit = now
	s.hasLastSeekEmit = true
}

// Reset clears everything, called when a session ends.
func (s *SharedState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressUntil = time.Time{}
	s.sample = Sample{}
	s.hasSample = false
	s.reported = player.StateUnknown
	s.lastSeekEmit = time.Time{}
	s.hasLastSeekEmit = false
}
