package playback

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"together-sync/internal/player"
)

func TestSuppressionWindowExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	state := NewSharedState(clock)

	state.Suppress(350 * time.Millisecond)
	if !state.Suppressed() {
		t.Fatal("expected suppression immediately after Suppress")
	}
	clock.Advance(349 * time.Millisecond)
	if !state.Suppressed() {
		t.Fatal("window closed early")
	}
	clock.Advance(1 * time.Millisecond)
	if state.Suppressed() {
		t.Fatal("window should have expired")
	}
}

func TestNewerWindowReplacesOlder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	state := NewSharedState(clock)

	state.Suppress(350 * time.Millisecond)
	clock.Advance(200 * time.Millisecond)
	state.Suppress(500 * time.Millisecond)

	// The first window's expiry (150ms away) must not release the second.
	clock.Advance(300 * time.Millisecond)
	if !state.Suppressed() {
		t.Fatal("older window released the newer one")
	}
	clock.Advance(200 * time.Millisecond)
	if state.Suppressed() {
		t.Fatal("newer window should have expired")
	}
}

func TestResetClearsEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	state := NewSharedState(clock)

	state.Suppress(time.Minute)
	state.SetSample(Sample{Time: 10, CapturedAt: clock.Now(), State: player.StatePlaying})
	state.SetReportedState(player.StatePlaying)
	state.RecordSeekEmit(clock.Now())

	state.Reset()

	if state.Suppressed() {
		t.Fatal("suppression survived Reset")
	}
	if _, ok := state.LastSample(); ok {
		t.Fatal("sample survived Reset")
	}
	if state.ReportedState() != player.StateUnknown {
		t.Fatalf("reported state = %v, want unknown", state.ReportedState())
	}
	if !state.SeekEmitAllowed(clock.Now(), time.Hour) {
		t.Fatal("seek cooldown survived Reset")
	}
}
