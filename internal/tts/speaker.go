// Package tts sends spoken notifications through an external synthesis
// command. Synthesis itself is out of process; failures are logged and
// never fatal.
package tts

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// CommandSpeaker shells out to a configured TTS command, e.g.
// "espeak-ng -v {lang} -s {rate} {text}". Invocations are serialized so
// utterances do not talk over each other.
type CommandSpeaker struct {
	command string
	rate    int
	mu      sync.Mutex
}

func NewCommandSpeaker(command string, rate int) *CommandSpeaker {
	if rate <= 0 {
		rate = 170
	}
	return &CommandSpeaker{command: command, rate: rate}
}

func (s *CommandSpeaker) Speak(ctx context.Context, text, language string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	parts := strings.Fields(s.command)
	if len(parts) == 0 {
		return fmt.Errorf("tts command not configured")
	}
	args := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		p = strings.ReplaceAll(p, "{lang}", language)
		p = strings.ReplaceAll(p, "{rate}", strconv.Itoa(s.rate))
		p = strings.ReplaceAll(p, "{text}", text)
		args = append(args, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := exec.CommandContext(ctx, parts[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tts command: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NoopSpeaker drops utterances. Used when no TTS command is configured.
type NoopSpeaker struct{}

func (NoopSpeaker) Speak(_ context.Context, text, _ string) error {
	log.Printf("tts: (muted) %s", text)
	return nil
}
