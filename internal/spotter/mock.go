package spotter

import "sync"

// MockSpotter fires scripted match indexes, one per processed frame. Used
// in mock mode and in tests.
type MockSpotter struct {
	mu          sync.Mutex
	results     []int
	next        int
	closed      bool
	sampleRate  int
	frameLength int
}

func NewMockSpotter(sampleRate, frameLength int, results []int) *MockSpotter {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if frameLength <= 0 {
		frameLength = 512
	}
	return &MockSpotter{results: results, sampleRate: sampleRate, frameLength: frameLength}
}

func (m *MockSpotter) Process(_ []int16) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next < len(m.results) {
		r := m.results[m.next]
		m.next++
		return r, nil
	}
	return NoMatch, nil
}

func (m *MockSpotter) FrameLength() int { return m.frameLength }
func (m *MockSpotter) SampleRate() int  { return m.sampleRate }

func (m *MockSpotter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
