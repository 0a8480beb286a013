package playback

import (
	"together-sync/internal/config"
	"together-sync/internal/player"
)

// fakePlayer records every command the reconciler issues.
type fakePlayer struct {
	time   float64
	state  player.State
	seeks  []float64
	plays  int
	pauses int
	loads  []string
}

func (f *fakePlayer) Load(videoID string, start float64) {
	f.loads = append(f.loads, videoID)
	f.time = start
	f.state = player.StatePaused
}

func (f *fakePlayer) Play() {
	f.plays++
	f.state = player.StatePlaying
}

func (f *fakePlayer) Pause() {
	f.pauses++
	f.state = player.StatePaused
}

func (f *fakePlayer) SeekTo(seconds float64) {
	f.seeks = append(f.seeks, seconds)
	f.time = seconds
}

func (f *fakePlayer) CurrentTime() float64 { return f.time }
func (f *fakePlayer) State() player.State  { return f.state }

// captureEmitter records outbound events.
type captureEmitter struct {
	plays  []float64
	pauses []float64
	seeks  []float64
}

func (c *captureEmitter) EmitPlay(t float64)  { c.plays = append(c.plays, t) }
func (c *captureEmitter) EmitPause(t float64) { c.pauses = append(c.pauses, t) }
func (c *captureEmitter) EmitSeek(t float64)  { c.seeks = append(c.seeks, t) }

func testSyncConfig() config.SyncConfig {
	cfg, err := config.LoadSync()
	if err != nil {
		panic(err)
	}
	return cfg
}
