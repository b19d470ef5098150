package recog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adimehra/dali/internal/audio"
)

type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (s *recordingSpeaker) Speak(_ context.Context, text, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

func newTestCoordinator(t *testing.T, languages ...string) (*Coordinator, *MockEngine, *audio.MemoryDevice, *recordingSpeaker) {
	t.Helper()
	engine := NewMockEngine(nil)
	device := audio.NewMemoryDevice(nil)
	speaker := &recordingSpeaker{}
	c := NewCoordinator(engine, NewStaticModelSet(languages...), device, speaker, 16000, 512)
	return c, engine, device, speaker
}

func TestSwitchToSameLanguageIsNoOp(t *testing.T) {
	c, engine, device, _ := newTestCoordinator(t, "english", "hindi")
	if _, err := c.Start("english"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	b, err := c.SwitchTo(context.Background(), "english")
	if err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
	if b != c.Current() {
		t.Fatalf("same-language switch should return the live binding")
	}
	if got := len(engine.Opened()); got != 1 {
		t.Fatalf("decoders opened = %d, want 1", got)
	}
	if device.OpenCount() != 1 {
		t.Fatalf("streams opened = %d, want 1", device.OpenCount())
	}
}

func TestSwitchToClosesOldBeforeOpeningNew(t *testing.T) {
	c, engine, device, speaker := newTestCoordinator(t, "english", "hindi")
	first, err := c.Start("english")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	second, err := c.SwitchTo(context.Background(), "hindi")
	if err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
	if second.Language != "hindi" {
		t.Fatalf("binding language = %q, want %q", second.Language, "hindi")
	}

	// Old binding must be fully closed: its decoder takes no more frames.
	if _, err := first.Accept(make([]int16, 512)); !errors.Is(err, audio.ErrStreamClosed) {
		t.Fatalf("old binding Accept() error = %v, want ErrStreamClosed", err)
	}
	if device.CloseCount() != 1 {
		t.Fatalf("streams closed = %d, want 1 before new stream opened", device.CloseCount())
	}
	if device.OpenCount() != 2 {
		t.Fatalf("streams opened = %d, want 2", device.OpenCount())
	}
	if got := engine.Opened(); len(got) != 2 || got[1] != "hindi" {
		t.Fatalf("decoders opened = %v, want [english hindi]", got)
	}

	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	if len(speaker.spoken) != 1 || speaker.spoken[0] != "Language switched to hindi" {
		t.Fatalf("spoken = %v, want switch announcement", speaker.spoken)
	}
}

// blockingSpeaker holds every utterance until released, standing in for
// a synthesis command that takes the length of the utterance to return.
type blockingSpeaker struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingSpeaker() *blockingSpeaker {
	return &blockingSpeaker{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSpeaker) Speak(_ context.Context, _, _ string) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return nil
}

func TestSwitchToAnnouncementDoesNotStallFramePath(t *testing.T) {
	engine := NewMockEngine(nil)
	device := audio.NewMemoryDevice(nil)
	speaker := newBlockingSpeaker()
	c := NewCoordinator(engine, NewStaticModelSet("english", "hindi"), device, speaker, 16000, 512)
	if _, err := c.Start("english"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	switchDone := make(chan error, 1)
	go func() {
		_, err := c.SwitchTo(context.Background(), "hindi")
		switchDone <- err
	}()

	<-speaker.started

	// The announcement is still in flight; the new binding must already
	// be reachable and accepting frames.
	bindingCh := make(chan *Binding, 1)
	go func() { bindingCh <- c.Current() }()
	select {
	case b := <-bindingCh:
		if b.Language != "hindi" {
			t.Errorf("Current().Language = %q, want hindi mid-announcement", b.Language)
		}
		if _, err := b.Accept(make([]int16, 512)); err != nil {
			t.Errorf("Accept() error = %v, want live binding mid-announcement", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("Current() blocked while the switch announcement was speaking")
	}

	close(speaker.release)
	if err := <-switchDone; err != nil {
		t.Fatalf("SwitchTo() error = %v", err)
	}
}

func TestSwitchToUnknownLanguageLeavesBindingLive(t *testing.T) {
	c, _, device, _ := newTestCoordinator(t, "english")
	first, err := c.Start("english")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := c.SwitchTo(context.Background(), "french"); !errors.Is(err, ErrNoModel) {
		t.Fatalf("SwitchTo() error = %v, want ErrNoModel", err)
	}
	if c.Current() != first {
		t.Fatalf("failed switch must not replace the live binding")
	}
	if device.CloseCount() != 0 {
		t.Fatalf("failed switch must not close the live stream")
	}
	if _, err := first.Accept(make([]int16, 512)); err != nil {
		t.Fatalf("live binding Accept() error = %v", err)
	}
}

func TestBindingCloseIsIdempotent(t *testing.T) {
	c, _, device, _ := newTestCoordinator(t, "english")
	b, err := c.Start("english")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	b.Close()
	b.Close()
	if device.CloseCount() != 1 {
		t.Fatalf("streams closed = %d, want 1", device.CloseCount())
	}
}
