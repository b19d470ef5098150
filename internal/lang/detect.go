// Package lang decides which recognition language a transcript belongs
// to. Detection stacks three signals: script ranges, a general-purpose
// language-identification pass, and a romanized keyword fallback.
package lang

import (
	"log"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

const (
	// Minimum non-whitespace characters before detection has any signal.
	minSignalLength = 3

	// Proportion of alphabetic characters inside a language's script
	// block that forces that language.
	scriptThreshold = 0.2
)

// scriptRange is a contiguous Unicode block owned by one language.
type scriptRange struct {
	language string
	lo, hi   rune
}

var scriptRanges = []scriptRange{
	{language: "hindi", lo: 0x0900, hi: 0x097F}, // Devanagari
}

// isoLanguages maps ISO 639-3 codes from the identification pass to the
// supported language set. Unsupported codes are ignored.
var isoLanguages = map[string]string{
	"hin": "hindi",
	"eng": "english",
}

// keywordHints catch common words typed or transcribed in Latin script,
// where neither the script pass nor the identifier fires. The identifier
// rarely clears its confidence bar on short utterances, so this is the
// working signal for everyday commands. Checked in keywordOrder so that
// the marked language wins over english on mixed input.
var keywordHints = map[string][]string{
	"hindi": {
		"namaste", "dhanyavaad", "kaise", "kya", "hai", "hain",
		"aap", "tum", "main", "hum", "kahan", "kab",
	},
	"english": {
		"hello", "the", "is", "are", "you", "what", "how", "please",
		"thanks", "thank", "can", "where", "when", "today",
	},
}

var keywordOrder = []string{"hindi", "english"}

// Detector resolves transcripts against the set of supported languages.
type Detector struct {
	supported map[string]bool
}

func NewDetector(supported []string) *Detector {
	m := make(map[string]bool, len(supported))
	for _, l := range supported {
		m[l] = true
	}
	return &Detector{supported: m}
}

// Detect returns the language the text belongs to, or current when the
// text carries no usable signal.
func (d *Detector) Detect(text, current string) string {
	if countNonSpace(text) < minSignalLength {
		return current
	}

	if lang, ok := d.detectByScript(text); ok {
		log.Printf("lang: detected %s by script", lang)
		return lang
	}

	if lang, ok := d.detectByIdentifier(text); ok {
		log.Printf("lang: detected %s by identifier", lang)
		return lang
	}

	if lang, ok := d.detectByKeyword(text); ok {
		log.Printf("lang: detected %s by keyword", lang)
		return lang
	}

	return current
}

func (d *Detector) detectByScript(text string) (string, bool) {
	totalAlpha := 0
	counts := make(map[string]int)
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		totalAlpha++
		for _, sr := range scriptRanges {
			if r >= sr.lo && r <= sr.hi {
				counts[sr.language]++
			}
		}
	}
	if totalAlpha == 0 {
		return "", false
	}
	for lang, n := range counts {
		if !d.supported[lang] {
			continue
		}
		if float64(n)/float64(totalAlpha) > scriptThreshold {
			return lang, true
		}
	}
	return "", false
}

func (d *Detector) detectByIdentifier(text string) (string, bool) {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "", false
	}
	lang, ok := isoLanguages[whatlanggo.LangToString(info.Lang)]
	if !ok || !d.supported[lang] {
		return "", false
	}
	return lang, true
}

func (d *Detector) detectByKeyword(text string) (string, bool) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	lowered := " " + strings.Join(tokens, " ") + " "
	for _, lang := range keywordOrder {
		if !d.supported[lang] {
			continue
		}
		for _, w := range keywordHints[lang] {
			if strings.Contains(lowered, " "+w+" ") {
				return lang, true
			}
		}
	}
	return "", false
}

func countNonSpace(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
