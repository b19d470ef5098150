package wakeword

import (
	"sync"
	"testing"
	"time"

	"github.com/adimehra/dali/internal/audio"
	"github.com/adimehra/dali/internal/spotter"
)

type notifyRecorder struct {
	mu     sync.Mutex
	events []bool
	ch     chan bool
}

func newNotifyRecorder() *notifyRecorder {
	return &notifyRecorder{ch: make(chan bool, 16)}
}

func (r *notifyRecorder) notify(enabled bool) error {
	r.mu.Lock()
	r.events = append(r.events, enabled)
	r.mu.Unlock()
	r.ch <- enabled
	return nil
}

func (r *notifyRecorder) wait(t *testing.T, want bool, timeout time.Duration) {
	t.Helper()
	select {
	case got := <-r.ch:
		if got != want {
			t.Fatalf("notify = %v, want %v", got, want)
		}
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for notify(%v)", want)
	}
}

func (r *notifyRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.events))
	copy(out, r.events)
	return out
}

func newTestDetector(t *testing.T, results []int, timeout time.Duration) (*Detector, *notifyRecorder) {
	t.Helper()
	rec := newNotifyRecorder()
	d, err := New(Options{
		Device:            audio.NewMemoryDevice(nil),
		Spotter:           spotter.NewMockSpotter(16000, 160, results),
		InactivityTimeout: timeout,
		Notify:            rec.notify,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d, rec
}

func TestDetectionEnablesVoiceModeAndTimesOut(t *testing.T) {
	d, rec := newTestDetector(t, []int{-1, -1, 0}, 150*time.Millisecond)
	if err := d.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer d.Stop()

	rec.wait(t, true, 2*time.Second)
	rec.wait(t, false, 2*time.Second)

	events := rec.snapshot()
	if len(events) != 2 || !events[0] || events[1] {
		t.Fatalf("events = %v, want [true false]", events)
	}
}

func TestRedetectionResetsTimerWithoutExtraDisable(t *testing.T) {
	// Timer 150ms with detections ~0ms and ~40ms apart: mode must stay
	// enabled across the gap and disable exactly once after the last.
	frames := make([]int, 0, 8)
	frames = append(frames, 0) // detection at t≈0
	// A MemoryDevice with no scripted frames paces reads at the frame
	// duration (160 samples at 16kHz = 10ms), so index 4 fires ≈40ms in.
	frames = append(frames, -1, -1, -1, 0)

	d, rec := newTestDetector(t, frames, 150*time.Millisecond)
	if err := d.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer d.Stop()

	rec.wait(t, true, 2*time.Second)
	rec.wait(t, true, 2*time.Second)
	rec.wait(t, false, 2*time.Second)

	select {
	case extra := <-rec.ch:
		t.Fatalf("unexpected extra notify(%v)", extra)
	case <-time.After(300 * time.Millisecond):
	}

	events := rec.snapshot()
	if len(events) != 3 || !events[0] || !events[1] || events[2] {
		t.Fatalf("events = %v, want [true true false]", events)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	d, _ := newTestDetector(t, nil, time.Second)
	if err := d.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	d.Stop()
	d.Stop()
}

func TestStopBeforeTimerExpirySuppressesDisable(t *testing.T) {
	d, rec := newTestDetector(t, []int{0}, 200*time.Millisecond)
	if err := d.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rec.wait(t, true, 2*time.Second)
	d.Stop()

	select {
	case extra := <-rec.ch:
		t.Fatalf("unexpected notify(%v) after Stop", extra)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		t.Fatalf("New() should fail without collaborators")
	}
}
