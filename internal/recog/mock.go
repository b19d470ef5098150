package recog

import "sync"

// MockEngine produces scripted decoders. Used in mock mode and in tests.
type MockEngine struct {
	mu      sync.Mutex
	scripts map[string][]Result
	opened  []string
}

func NewMockEngine(scripts map[string][]Result) *MockEngine {
	if scripts == nil {
		scripts = map[string][]Result{}
	}
	return &MockEngine{scripts: scripts}
}

func (e *MockEngine) NewDecoder(language string) (Decoder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened = append(e.opened, language)
	return &mockDecoder{results: e.scripts[language]}, nil
}

// Opened lists the languages decoders were created for, in order.
func (e *MockEngine) Opened() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.opened))
	copy(out, e.opened)
	return out
}

type mockDecoder struct {
	mu      sync.Mutex
	results []Result
	next    int
	closed  bool
	frames  int
}

func (d *mockDecoder) Accept(_ []int16) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames++
	if d.next < len(d.results) {
		r := d.results[d.next]
		d.next++
		return r, nil
	}
	return Result{}, nil
}

func (d *mockDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *mockDecoder) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Frames reports how many frames the decoder received.
func (d *mockDecoder) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}
