// Package spotter wraps keyword spotting behind a narrow frame contract:
// feed fixed-size PCM frames, get back the index of the matched trigger
// phrase or -1.
package spotter

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// NoMatch is returned by Process when no trigger phrase was heard.
const NoMatch = -1

type Spotter interface {
	// Process inspects one audio frame and returns the index of the
	// matched keyword, or NoMatch.
	Process(frame []int16) (int, error)
	FrameLength() int
	SampleRate() int
	Close() error
}

// Transcriber streams one frame into the underlying recognition decoder
// and reports finalized text. The acoustic model behind it is opaque.
type Transcriber func(frame []int16) (text string, final bool, err error)

// Config carries the assets the spotting engine needs. Missing access
// credentials or keyword files are configuration errors and fail fast.
type Config struct {
	Provider      string
	AccessKey     string
	KeywordPaths  []string
	Sensitivities []float64
	SampleRate    int
	FrameLength   int
}

// New resolves the configured provider. In auto mode the phrase spotter
// is used when keyword assets are configured, otherwise the scripted
// mock keeps local development working.
func New(cfg Config, tr Transcriber) (Spotter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "phrase":
		return NewPhraseSpotter(cfg, tr)
	case "mock":
		return NewMockSpotter(cfg.SampleRate, cfg.FrameLength, nil), nil
	case "auto":
		if len(cfg.KeywordPaths) > 0 {
			return NewPhraseSpotter(cfg, tr)
		}
		return NewMockSpotter(cfg.SampleRate, cfg.FrameLength, nil), nil
	default:
		return nil, fmt.Errorf("unsupported spotter provider %q", cfg.Provider)
	}
}

func validate(cfg Config, tr Transcriber) error {
	if strings.TrimSpace(cfg.AccessKey) == "" {
		return errors.New("spotter access key is required")
	}
	if len(cfg.KeywordPaths) == 0 {
		return errors.New("at least one keyword path is required")
	}
	for _, p := range cfg.KeywordPaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("keyword file %s: %w", p, err)
		}
	}
	if len(cfg.Sensitivities) != 0 && len(cfg.Sensitivities) != len(cfg.KeywordPaths) {
		return fmt.Errorf("got %d sensitivities for %d keywords", len(cfg.Sensitivities), len(cfg.KeywordPaths))
	}
	for i, s := range cfg.Sensitivities {
		if s < 0 || s > 1 {
			return fmt.Errorf("sensitivity[%d] outside [0,1]", i)
		}
	}
	if tr == nil {
		return errors.New("phrase spotter requires a transcriber")
	}
	return nil
}
