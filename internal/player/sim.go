package player

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// Sim is a headless player: position advances with the clock while playing.
// The sync-bot drives it against live rooms, and tests drive it with a fake
// clock.
type Sim struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	videoID  string
	playing  bool
	position float64 // seconds at basisAt
	basisAt  int64   // epoch ms of last position update
}

func NewSim(clock clockwork.Clock) *Sim {
	return &Sim{clock: clock}
}

func (s *Sim) Load(videoID string, startSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoID = videoID
	s.playing = false
	s.position = startSeconds
	s.basisAt = s.clock.Now().UnixMilli()
}

func (s *Sim) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	s.playing = true
	s.basisAt = s.clock.Now().UnixMilli()
}

func (s *Sim) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.position = s.currentLocked()
	s.playing = false
	s.basisAt = s.clock.Now().UnixMilli()
}

func (s *Sim) SeekTo(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	s.position = seconds
	s.basisAt = s.clock.Now().UnixMilli()
}

func (s *Sim) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Sim) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videoID == "" {
		return StateUnknown
	}
	if s.playing {
		return StatePlaying
	}
	return StatePaused
}

func (s *Sim) VideoID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoID
}

func (s *Sim) currentLocked() float64 {
	if !s.playing {
		return s.position
	}
	elapsed := float64(s.clock.Now().UnixMilli()-s.basisAt) / 1000
	return s.position + elapsed
}
