// Package player defines the capability surface of the embedded video player.
// The sync engine only ever talks to this interface; the real widget lives in
// whatever UI shell embeds the engine.
package player

type State int

const (
	StateUnknown State = iota
	StatePlaying
	StatePaused
	StateBuffering
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	default:
		return "unknown"
	}
}

type Adapter interface {
	Load(videoID string, startSeconds float64)
	Play()
	Pause()
	SeekTo(seconds float64)
	CurrentTime() float64
	State() State
}
