package recog

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/adimehra/dali/internal/audio"
	"github.com/adimehra/dali/internal/tts"
)

// Coordinator owns the live recognition binding and performs atomic
// language switches: the old binding is fully closed before the new one
// starts receiving frames.
type Coordinator struct {
	engine     Engine
	models     *ModelSet
	device     audio.Device
	speaker    tts.Speaker
	sampleRate int
	frameLen   int

	mu      sync.Mutex
	current *Binding
}

func NewCoordinator(engine Engine, models *ModelSet, device audio.Device, speaker tts.Speaker, sampleRate, frameLen int) *Coordinator {
	return &Coordinator{
		engine:     engine,
		models:     models,
		device:     device,
		speaker:    speaker,
		sampleRate: sampleRate,
		frameLen:   frameLen,
	}
}

// Start opens the initial binding for the given language.
func (c *Coordinator) Start(language string) (*Binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current, nil
	}
	b, err := c.open(language)
	if err != nil {
		return nil, err
	}
	c.current = b
	return b, nil
}

// Current returns the live binding, or nil before Start.
func (c *Coordinator) Current() *Binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SwitchTo tears down the current binding and rebuilds it against the
// target language. A same-language switch is a no-op. A target without a
// loaded model fails without mutating any state.
func (c *Coordinator) SwitchTo(ctx context.Context, target string) (*Binding, error) {
	c.mu.Lock()

	if c.current != nil && c.current.Language == target {
		b := c.current
		c.mu.Unlock()
		return b, nil
	}
	if !c.models.Has(target) {
		c.mu.Unlock()
		return nil, fmt.Errorf("switch to %s: %w", target, ErrNoModel)
	}

	// Old stream and decoder must be released before the replacement
	// opens: the capture device admits one reader at a time.
	if c.current != nil {
		c.current.Close()
	}

	b, err := c.open(target)
	if err != nil {
		c.current = nil
		c.mu.Unlock()
		return nil, err
	}
	c.current = b
	c.mu.Unlock()

	// Announce only after the new binding is live and the lock is
	// released: synthesis can take the length of the utterance and must
	// not stall the frame path.
	if c.speaker != nil {
		if err := c.speaker.Speak(ctx, "Language switched to "+target, target); err != nil {
			log.Printf("recog: switch announcement: %v", err)
		}
	}
	return b, nil
}

// Close releases the live binding. Idempotent.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.Close()
		c.current = nil
	}
}

func (c *Coordinator) open(language string) (*Binding, error) {
	if !c.models.Has(language) {
		return nil, fmt.Errorf("open %s: %w", language, ErrNoModel)
	}
	stream, err := c.device.OpenStream(c.sampleRate, c.frameLen)
	if err != nil {
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	decoder, err := c.engine.NewDecoder(language)
	if err != nil {
		if cerr := stream.Close(); cerr != nil {
			log.Printf("recog: close stream after decoder failure: %v", cerr)
		}
		return nil, fmt.Errorf("new decoder for %s: %w", language, err)
	}
	return NewBinding(language, decoder, stream), nil
}
