package spotter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"
)

// PhraseSpotter matches finalized transcripts against configured trigger
// phrases. Each keyword file lists one or more phrase variants, one per
// line; the file's index is the match index reported to callers.
type PhraseSpotter struct {
	transcribe  Transcriber
	phrases     [][]string
	tolerances  []int
	sampleRate  int
	frameLength int

	mu     sync.Mutex
	closed bool
}

func NewPhraseSpotter(cfg Config, tr Transcriber) (*PhraseSpotter, error) {
	if err := validate(cfg, tr); err != nil {
		return nil, err
	}

	phrases := make([][]string, 0, len(cfg.KeywordPaths))
	for _, path := range cfg.KeywordPaths {
		variants, err := loadPhraseFile(path)
		if err != nil {
			return nil, err
		}
		phrases = append(phrases, variants)
	}

	tolerances := make([]int, len(cfg.KeywordPaths))
	for i := range tolerances {
		s := 0.5
		if i < len(cfg.Sensitivities) {
			s = cfg.Sensitivities[i]
		}
		// Higher sensitivity tolerates sloppier transcripts.
		tolerances[i] = int(s * 4)
	}

	return &PhraseSpotter{
		transcribe:  tr,
		phrases:     phrases,
		tolerances:  tolerances,
		sampleRate:  cfg.SampleRate,
		frameLength: cfg.FrameLength,
	}, nil
}

func (p *PhraseSpotter) Process(frame []int16) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return NoMatch, fmt.Errorf("spotter closed")
	}
	p.mu.Unlock()

	text, final, err := p.transcribe(frame)
	if err != nil {
		return NoMatch, err
	}
	if !final || strings.TrimSpace(text) == "" {
		return NoMatch, nil
	}

	normalized := normalizePhrase(text)
	for i, variants := range p.phrases {
		for _, v := range variants {
			if matchesPhrase(normalized, v, p.tolerances[i]) {
				return i, nil
			}
		}
	}
	return NoMatch, nil
}

func (p *PhraseSpotter) FrameLength() int { return p.frameLength }
func (p *PhraseSpotter) SampleRate() int  { return p.sampleRate }

func (p *PhraseSpotter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func loadPhraseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keyword file %s: %w", path, err)
	}
	defer f.Close()

	var variants []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if line := normalizePhrase(raw); line != "" {
			variants = append(variants, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("keyword file %s: %w", path, err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("keyword file %s has no phrases", path)
	}
	return variants, nil
}

// normalizePhrase lowercases, strips punctuation and collapses whitespace.
func normalizePhrase(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	var cleaned strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			cleaned.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(cleaned.String()), " ")
}

func matchesPhrase(text, phrase string, tolerance int) bool {
	if text == phrase || strings.HasPrefix(text, phrase+" ") || strings.Contains(text, " "+phrase) {
		return true
	}
	return levenshtein(text, phrase) <= tolerance
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min(del, ins, sub)
		}
		prev = curr
	}
	return prev[lb]
}
