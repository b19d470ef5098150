package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adimehra/dali/internal/protocol"
	"github.com/adimehra/dali/internal/recog"
	"github.com/adimehra/dali/internal/session"
	"github.com/adimehra/dali/internal/store"
)

type fakeReplier struct {
	reply string
	err   error
}

func (f *fakeReplier) Reply(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

type fakeDetector struct {
	result string
}

func (f *fakeDetector) Detect(_, current string) string {
	if f.result == "" {
		return current
	}
	return f.result
}

// recordingStore wraps the in-memory store and records operation order.
type recordingStore struct {
	*store.InMemoryStore
	mu  sync.Mutex
	ops []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{InMemoryStore: store.NewInMemoryStore()}
}

func (r *recordingStore) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingStore) AddConversation(ctx context.Context, e store.Entry) error {
	r.record("conversation")
	return r.InMemoryStore.AddConversation(ctx, e)
}

func (r *recordingStore) LogLanguageSwitch(ctx context.Context, sw store.Switch) error {
	r.record("switch")
	return r.InMemoryStore.LogLanguageSwitch(ctx, sw)
}

func (r *recordingStore) opsSnapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ops))
	copy(out, r.ops)
	return out
}

type testHub struct {
	hub      *Hub
	store    *recordingStore
	detector *fakeDetector
	replier  *fakeReplier
}

func startHub(t *testing.T, switchFn SwitchFunc) *testHub {
	t.Helper()
	st := newRecordingStore()
	det := &fakeDetector{}
	rep := &fakeReplier{reply: "hello there"}
	h := NewHub(Options{
		Registry:       session.NewRegistry(),
		Store:          st,
		Dialogue:       rep,
		Detector:       det,
		SwitchLanguage: switchFn,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	return &testHub{hub: h, store: st, detector: det, replier: rep}
}

func recvMessage(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for outbound message")
		return nil
	}
}

func connect(t *testing.T, h *Hub, connID string) chan any {
	t.Helper()
	out := make(chan any, 16)
	h.Connect(connID, out)
	return out
}

func TestConnectSendsCurrentVoiceMode(t *testing.T) {
	th := startHub(t, nil)

	out := connect(t, th.hub, "conn-1")
	msg := recvMessage(t, out)
	sys, ok := msg.(protocol.System)
	if !ok {
		t.Fatalf("first message = %T, want protocol.System", msg)
	}
	if sys.VoiceMode {
		t.Fatalf("VoiceMode = true, want false before any detection")
	}
	if sys.Language != session.DefaultLanguage {
		t.Fatalf("Language = %q, want %q", sys.Language, session.DefaultLanguage)
	}
	if sys.SessionID == "" {
		t.Fatalf("SessionID should not be empty")
	}
}

func TestTextMessagePersistsOneEntryAndReplies(t *testing.T) {
	th := startHub(t, nil)
	out := connect(t, th.hub, "conn-1")
	recvMessage(t, out) // welcome

	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "what's the weather"})

	msg := recvMessage(t, out)
	resp, ok := msg.(protocol.Response)
	if !ok {
		t.Fatalf("reply = %T, want protocol.Response", msg)
	}
	if resp.Message != "hello there" || resp.Language != "english" || !resp.Speak {
		t.Fatalf("unexpected response: %+v", resp)
	}

	history := entriesForConn(t, th, "conn-1")
	if len(history) != 1 || history[0].UserInput != "what's the weather" {
		t.Fatalf("history = %+v, want exactly one entry", history)
	}
	if len(th.store.Switches()) != 0 {
		t.Fatalf("no language switch expected")
	}
}

func TestEmptyTextIsIgnored(t *testing.T) {
	th := startHub(t, nil)
	out := connect(t, th.hub, "conn-1")
	recvMessage(t, out)

	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "   "})

	select {
	case msg := <-out:
		t.Fatalf("unexpected message %#v for empty input", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLanguageChangeRecordsSwitchBeforeEntry(t *testing.T) {
	th := startHub(t, nil)
	out := connect(t, th.hub, "conn-1")
	recvMessage(t, out)

	th.detector.result = "hindi"
	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "namaste, kaise ho"})

	resp := recvMessage(t, out).(protocol.Response)
	if resp.Language != "hindi" {
		t.Fatalf("response language = %q, want hindi", resp.Language)
	}

	switches := th.store.Switches()
	if len(switches) != 1 || switches[0].FromLanguage != "english" || switches[0].ToLanguage != "hindi" {
		t.Fatalf("switches = %+v, want exactly one english->hindi", switches)
	}
	ops := th.store.opsSnapshot()
	if len(ops) != 2 || ops[0] != "switch" || ops[1] != "conversation" {
		t.Fatalf("ops = %v, want switch recorded before conversation", ops)
	}

	// Second message in the same language: no further switch.
	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "aur batao"})
	recvMessage(t, out)
	if len(th.store.Switches()) != 1 {
		t.Fatalf("switches = %d, want still 1", len(th.store.Switches()))
	}
}

func TestSwitchRejectedWithoutModelKeepsLanguage(t *testing.T) {
	switchFn := func(_ context.Context, target string) error {
		return recog.ErrNoModel
	}
	th := startHub(t, switchFn)
	out := connect(t, th.hub, "conn-1")
	recvMessage(t, out)

	th.detector.result = "hindi"
	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "namaste, kaise ho"})

	// Cannot-switch condition surfaces first, then the normal reply.
	sys := recvMessage(t, out).(protocol.System)
	if sys.Message != "Cannot switch language to hindi" {
		t.Fatalf("system message = %q", sys.Message)
	}
	resp := recvMessage(t, out).(protocol.Response)
	if resp.Language != "english" {
		t.Fatalf("response language = %q, want english kept", resp.Language)
	}
	if len(th.store.Switches()) != 0 {
		t.Fatalf("rejected switch must not be recorded")
	}
}

func TestDialogueFallbackIsPersisted(t *testing.T) {
	th := startHub(t, nil)
	th.replier.reply = "Sorry, I couldn't reach the assistant right now."
	th.replier.err = errors.New("dialogue service unreachable")

	out := connect(t, th.hub, "conn-1")
	recvMessage(t, out)

	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "hello"})
	resp := recvMessage(t, out).(protocol.Response)
	if resp.Message != th.replier.reply {
		t.Fatalf("response = %q, want fallback string", resp.Message)
	}

	history := entriesForConn(t, th, "conn-1")
	if len(history) != 1 || history[0].BotResponse != th.replier.reply {
		t.Fatalf("history = %+v, want fallback persisted as bot response", history)
	}
}

func TestVoiceModeBroadcastReachesAllClients(t *testing.T) {
	th := startHub(t, nil)
	out1 := connect(t, th.hub, "conn-1")
	out2 := connect(t, th.hub, "conn-2")
	recvMessage(t, out1)
	recvMessage(t, out2)

	if err := th.hub.SetVoiceMode(true, time.Second); err != nil {
		t.Fatalf("SetVoiceMode() error = %v", err)
	}

	for _, out := range []chan any{out1, out2} {
		ev, ok := recvMessage(t, out).(protocol.VoiceModeEvent)
		if !ok || ev.Event != protocol.EventVoiceMode || !ev.Enabled {
			t.Fatalf("broadcast = %#v, want voice_mode enabled event", ev)
		}
	}

	// Re-enabling is not a transition: no second broadcast.
	if err := th.hub.SetVoiceMode(true, time.Second); err != nil {
		t.Fatalf("SetVoiceMode() error = %v", err)
	}
	select {
	case msg := <-out1:
		t.Fatalf("unexpected broadcast %#v on repeated enable", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStopWordDisablesVoiceMode(t *testing.T) {
	th := startHub(t, nil)
	out := connect(t, th.hub, "conn-1")
	recvMessage(t, out)

	if err := th.hub.SetVoiceMode(true, time.Second); err != nil {
		t.Fatalf("SetVoiceMode() error = %v", err)
	}
	recvMessage(t, out) // enabled broadcast

	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "stop"})

	ev := recvMessage(t, out).(protocol.VoiceModeEvent)
	if ev.Enabled {
		t.Fatalf("voice mode should be disabled by stop word")
	}
	// The stop word still flows through the normal dialogue path.
	if _, ok := recvMessage(t, out).(protocol.Response); !ok {
		t.Fatalf("expected a response after the stop word")
	}
}

func TestToggleTTSOnlyAffectsOwnSession(t *testing.T) {
	th := startHub(t, nil)
	out1 := connect(t, th.hub, "conn-1")
	out2 := connect(t, th.hub, "conn-2")
	recvMessage(t, out1)
	recvMessage(t, out2)

	th.hub.HandleMessage("conn-1", protocol.ClientToggleTTS{Type: protocol.TypeToggleTTS, Enabled: false})
	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "hello"})

	resp := recvMessage(t, out1).(protocol.Response)
	if resp.Speak {
		t.Fatalf("Speak = true, want false after toggle")
	}

	select {
	case msg := <-out2:
		t.Fatalf("toggle must not broadcast, got %#v", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPingPong(t *testing.T) {
	th := startHub(t, nil)
	out := connect(t, th.hub, "conn-1")
	recvMessage(t, out)

	th.hub.HandleMessage("conn-1", protocol.ClientPing{Type: protocol.TypePing})
	if _, ok := recvMessage(t, out).(protocol.Pong); !ok {
		t.Fatalf("expected pong")
	}
}

func TestDisconnectEndsSession(t *testing.T) {
	th := startHub(t, nil)
	out := connect(t, th.hub, "conn-1")
	sys := recvMessage(t, out).(protocol.System)

	th.hub.Disconnect("conn-1")

	// A disconnected session no longer accepts messages.
	th.hub.HandleMessage("conn-1", protocol.ClientText{Type: protocol.TypeText, Message: "hello"})
	select {
	case msg := <-out:
		t.Fatalf("unexpected message %#v after disconnect", msg)
	case <-time.After(200 * time.Millisecond):
	}

	stats, err := th.store.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalSessions != 1 {
		t.Fatalf("TotalSessions = %d, want session %s recorded", stats.TotalSessions, sys.SessionID)
	}
}

// entriesForConn returns the persisted conversation entries. The hub
// processes events in order, so a received reply means the entry is
// already persisted.
func entriesForConn(t *testing.T, th *testHub, _ string) []store.Entry {
	t.Helper()
	return th.store.Entries()
}
