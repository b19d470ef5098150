// Package gateway wires the session registry, the conversation log, the
// dialogue service and the language switch together behind a single
// event loop. One goroutine owns all connection state: events are
// processed to completion, one at a time, so per-connection ordering is
// preserved without locks.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/adimehra/dali/internal/observability"
	"github.com/adimehra/dali/internal/protocol"
	"github.com/adimehra/dali/internal/recog"
	"github.com/adimehra/dali/internal/session"
	"github.com/adimehra/dali/internal/store"
	"github.com/adimehra/dali/internal/voicemode"
)

// Replier forwards user text to the external dialogue service.
type Replier interface {
	Reply(ctx context.Context, sender, message string) (string, error)
}

// LanguageDetector resolves a transcript against the supported languages.
type LanguageDetector interface {
	Detect(text, current string) string
}

// SwitchFunc rebinds the recognition engine to the target language. May
// be nil when no recognition pipeline is attached.
type SwitchFunc func(ctx context.Context, target string) error

// Stop words spoken or typed by the user that explicitly disable voice
// mode.
var stopWords = map[string]bool{
	"exit": true,
	"quit": true,
	"stop": true,
	"bye":  true,
}

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evMessage
	evVoiceMode
)

type event struct {
	kind     eventKind
	connID   string
	outbound chan<- any
	msg      any
	enabled  bool
	done     chan struct{}
}

type Options struct {
	Registry       *session.Registry
	Store          store.Store
	Dialogue       Replier
	Detector       LanguageDetector
	SwitchLanguage SwitchFunc
	Metrics        *observability.Metrics
}

type Hub struct {
	registry       *session.Registry
	logStore       store.Store
	dialogueClient Replier
	detector       LanguageDetector
	switchLanguage SwitchFunc
	metrics        *observability.Metrics

	voiceMode *voicemode.State
	events    chan event
	stopped   chan struct{}

	// conns is owned by the Run goroutine.
	conns map[string]chan<- any
}

func NewHub(opts Options) *Hub {
	return &Hub{
		registry:       opts.Registry,
		logStore:       opts.Store,
		dialogueClient: opts.Dialogue,
		detector:       opts.Detector,
		switchLanguage: opts.SwitchLanguage,
		metrics:        opts.Metrics,
		voiceMode:      voicemode.NewState(),
		events:         make(chan event, 256),
		stopped:        make(chan struct{}),
		conns:          make(map[string]chan<- any),
	}
}

// Run drives the event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.handle(ctx, ev)
			if ev.done != nil {
				close(ev.done)
			}
		}
	}
}

// Connect registers a connection and allocates its session.
func (h *Hub) Connect(connID string, outbound chan<- any) {
	h.post(event{kind: evConnect, connID: connID, outbound: outbound})
}

// Disconnect removes the connection and ends its session.
func (h *Hub) Disconnect(connID string) {
	h.post(event{kind: evDisconnect, connID: connID})
}

// HandleMessage queues one parsed client message for the event loop.
func (h *Hub) HandleMessage(connID string, msg any) {
	h.post(event{kind: evMessage, connID: connID, msg: msg})
}

// VoiceMode reports the current shared voice-mode value.
func (h *Hub) VoiceMode() bool {
	return h.voiceMode.Snapshot().Enabled
}

// SetVoiceMode is the bounded cross-thread handoff used by the wake-word
// detector: it schedules the change onto the event loop and waits up to
// wait for it to run. A timeout abandons the notification; state
// converges on the next detection or expiry.
func (h *Hub) SetVoiceMode(enabled bool, wait time.Duration) error {
	done := make(chan struct{})
	ev := event{kind: evVoiceMode, enabled: enabled, done: done}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case h.events <- ev:
	case <-h.stopped:
		return errors.New("gateway stopped")
	case <-timer.C:
		if h.metrics != nil {
			h.metrics.HandoffTimeouts.Inc()
		}
		return fmt.Errorf("voice-mode handoff not accepted within %s", wait)
	}

	select {
	case <-done:
		return nil
	case <-h.stopped:
		return errors.New("gateway stopped")
	case <-timer.C:
		if h.metrics != nil {
			h.metrics.HandoffTimeouts.Inc()
		}
		return fmt.Errorf("voice-mode handoff not processed within %s", wait)
	}
}

func (h *Hub) post(ev event) {
	select {
	case h.events <- ev:
	case <-h.stopped:
	}
}

func (h *Hub) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evConnect:
		h.onConnect(ctx, ev.connID, ev.outbound)
	case evDisconnect:
		h.onDisconnect(ctx, ev.connID)
	case evVoiceMode:
		h.onVoiceMode(ev.enabled)
	case evMessage:
		switch msg := ev.msg.(type) {
		case protocol.ClientText:
			h.onText(ctx, ev.connID, msg.Message)
		case protocol.ClientToggleTTS:
			h.onToggleTTS(ev.connID, msg.Enabled)
		case protocol.ClientPing:
			h.send(ev.connID, protocol.Pong{Type: protocol.TypePong})
		default:
			log.Printf("gateway: ignoring message %T from %s", ev.msg, shortID(ev.connID))
		}
	}
}

func (h *Hub) onConnect(ctx context.Context, connID string, outbound chan<- any) {
	h.conns[connID] = outbound
	sess := h.registry.Create(connID)

	if err := h.logStore.StartSession(ctx, sess.ID); err != nil {
		log.Printf("gateway: start session %s: %v", sess.Label, err)
	}
	if h.metrics != nil {
		h.metrics.SessionEvents.WithLabelValues("connected").Inc()
		h.metrics.ActiveSessions.Set(float64(h.registry.Count()))
	}
	log.Printf("gateway: client %s connected as %s", shortID(connID), sess.Label)

	// New clients receive the current voice-mode value, not a replay.
	h.send(connID, protocol.System{
		Type:      protocol.TypeSystem,
		Message:   "Connected to DALI voice assistant",
		SessionID: sess.ID,
		VoiceMode: h.voiceMode.Snapshot().Enabled,
		Language:  sess.Language,
	})
}

func (h *Hub) onDisconnect(ctx context.Context, connID string) {
	delete(h.conns, connID)
	sess, err := h.registry.Remove(connID)
	if err != nil {
		return
	}
	if err := h.logStore.EndSession(ctx, sess.ID); err != nil {
		log.Printf("gateway: end session %s: %v", sess.Label, err)
	}
	if h.metrics != nil {
		h.metrics.SessionEvents.WithLabelValues("disconnected").Inc()
		h.metrics.ActiveSessions.Set(float64(h.registry.Count()))
	}
	log.Printf("gateway: client %s disconnected", shortID(connID))
}

func (h *Hub) onText(ctx context.Context, connID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	sess, err := h.registry.Get(connID)
	if err != nil {
		log.Printf("gateway: text from unknown connection %s", shortID(connID))
		return
	}

	if stopWords[strings.ToLower(text)] {
		h.onVoiceMode(false)
	}

	language := sess.Language
	if detected := h.detector.Detect(text, language); detected != language {
		if h.applySwitch(ctx, connID, sess, language, detected) {
			language = detected
		}
	}

	started := time.Now()
	reply, err := h.dialogueClient.Reply(ctx, "web_user", text)
	if h.metrics != nil {
		h.metrics.DialogueLatency.Observe(float64(time.Since(started).Milliseconds()))
		outcome := "ok"
		if err != nil {
			outcome = "unreachable"
		}
		h.metrics.DialogueRequests.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		log.Printf("gateway: dialogue: %v", err)
	}

	if err := h.logStore.AddConversation(ctx, store.Entry{
		SessionID:   sess.ID,
		UserInput:   text,
		BotResponse: reply,
		Language:    language,
	}); err != nil {
		log.Printf("gateway: persist conversation: %v", err)
	}
	if err := h.registry.BumpInteractions(connID); err != nil {
		log.Printf("gateway: bump interactions: %v", err)
	}

	h.send(connID, protocol.Response{
		Type:      protocol.TypeResponse,
		Message:   reply,
		Language:  language,
		Speak:     sess.TTSEnabled,
		Timestamp: time.Now().UTC(),
	})
}

// applySwitch rebinds the recognition engine (when attached), updates the
// session language and records the switch event. Returns false when the
// switch was rejected; the session keeps its prior language.
func (h *Hub) applySwitch(ctx context.Context, connID string, sess *session.Session, from, to string) bool {
	if h.switchLanguage != nil {
		if err := h.switchLanguage(ctx, to); err != nil {
			if errors.Is(err, recog.ErrNoModel) {
				log.Printf("gateway: cannot switch language to %s: no model", to)
				h.send(connID, protocol.System{
					Type:    protocol.TypeSystem,
					Message: "Cannot switch language to " + to,
				})
			} else {
				log.Printf("gateway: language switch to %s: %v", to, err)
			}
			return false
		}
	}

	if err := h.registry.SetLanguage(connID, to); err != nil {
		log.Printf("gateway: set language: %v", err)
		return false
	}
	if err := h.logStore.LogLanguageSwitch(ctx, store.Switch{
		SessionID:    sess.ID,
		FromLanguage: from,
		ToLanguage:   to,
	}); err != nil {
		log.Printf("gateway: persist language switch: %v", err)
	}
	if h.metrics != nil {
		h.metrics.LanguageSwitches.WithLabelValues(to).Inc()
	}
	log.Printf("gateway: %s language %s -> %s", sess.Label, from, to)
	return true
}

func (h *Hub) onToggleTTS(connID string, enabled bool) {
	if err := h.registry.SetTTS(connID, enabled); err != nil {
		log.Printf("gateway: toggle tts: %v", err)
		return
	}
	log.Printf("gateway: client %s tts enabled=%v", shortID(connID), enabled)
}

// onVoiceMode applies a transition and fans the new value out to every
// live connection. Broadcast is best-effort: a saturated client is
// skipped, not allowed to stall the others.
func (h *Hub) onVoiceMode(enabled bool) {
	if !h.voiceMode.Set(enabled) {
		return
	}
	if h.metrics != nil {
		state := "idle"
		if enabled {
			state = "listening"
		}
		h.metrics.VoiceModeTransitions.WithLabelValues(state).Inc()
	}
	log.Printf("gateway: voice mode enabled=%v", enabled)

	msg := protocol.NewVoiceModeEvent(enabled)
	for connID, out := range h.conns {
		select {
		case out <- msg:
		default:
			log.Printf("gateway: dropped voice-mode broadcast to %s", shortID(connID))
		}
	}
}

func (h *Hub) send(connID string, msg any) {
	out, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case out <- msg:
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("outbound", messageTypeOf(msg)).Inc()
		}
	default:
		log.Printf("gateway: outbound queue full for %s, dropping message", shortID(connID))
	}
}

func messageTypeOf(msg any) string {
	switch m := msg.(type) {
	case protocol.System:
		return string(m.Type)
	case protocol.Response:
		return string(m.Type)
	case protocol.Pong:
		return string(m.Type)
	case protocol.VoiceModeEvent:
		return m.Event
	default:
		return "unknown"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
