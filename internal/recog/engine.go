// Package recog holds the speech-recognition contract and the hot-swap of
// the live (language, decoder, stream) binding on language change.
package recog

import (
	"errors"
	"fmt"
	"os"
)

// ErrNoModel is returned when a switch targets a language without a
// loaded model. The caller keeps the prior binding.
var ErrNoModel = errors.New("no model loaded for language")

// Result is one decoder step: partial text until Final is set.
type Result struct {
	Final bool
	Text  string
}

// Decoder consumes streamed PCM frames for a single language.
type Decoder interface {
	Accept(frame []int16) (Result, error)
	Close() error
}

// Engine produces session-scoped decoders bound to a language model. The
// acoustic decoding behind it is opaque.
type Engine interface {
	NewDecoder(language string) (Decoder, error)
}

// ModelSet maps supported languages to their model paths, validated at
// load time so missing assets fail during startup rather than mid-switch.
type ModelSet struct {
	paths map[string]string
}

func LoadModelSet(paths map[string]string) (*ModelSet, error) {
	valid := make(map[string]string, len(paths))
	for lang, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("model for %s: %w", lang, err)
		}
		valid[lang] = path
	}
	return &ModelSet{paths: valid}, nil
}

// NewStaticModelSet builds a model set without touching the filesystem.
// Used by engines whose models are not file-backed, and by tests.
func NewStaticModelSet(languages ...string) *ModelSet {
	paths := make(map[string]string, len(languages))
	for _, l := range languages {
		paths[l] = l
	}
	return &ModelSet{paths: paths}
}

func (m *ModelSet) Has(language string) bool {
	_, ok := m.paths[language]
	return ok
}

func (m *ModelSet) Path(language string) (string, bool) {
	p, ok := m.paths[language]
	return p, ok
}

func (m *ModelSet) Languages() []string {
	out := make([]string, 0, len(m.paths))
	for l := range m.paths {
		out = append(out, l)
	}
	return out
}
