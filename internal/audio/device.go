package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrStreamClosed is returned by Read once a stream has been closed.
var ErrStreamClosed = errors.New("audio stream closed")

// Stream delivers fixed-size blocks of 16-bit mono PCM from a capture
// device. A stream has exactly one reader; Close is idempotent.
type Stream interface {
	// Read blocks until the next frame is available.
	Read() ([]int16, error)
	Close() error
}

// Device opens capture streams at a fixed sample rate and frame length.
// Streams from the same device are mutually exclusive: the caller must
// close the previous stream before opening a new one.
type Device interface {
	OpenStream(sampleRate, frameLength int) (Stream, error)
}

// MemoryDevice replays scripted frames. It stands in for a hardware
// capture device in mock mode and in tests.
type MemoryDevice struct {
	mu     sync.Mutex
	frames [][]int16
	next   int
	opened int
	closed int
}

func NewMemoryDevice(frames [][]int16) *MemoryDevice {
	return &MemoryDevice{frames: frames}
}

func (d *MemoryDevice) OpenStream(sampleRate, frameLength int) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened++
	return &memoryStream{device: d, sampleRate: sampleRate, frameLength: frameLength}, nil
}

// OpenCount reports how many streams have been opened so far.
func (d *MemoryDevice) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// CloseCount reports how many streams have been closed so far.
func (d *MemoryDevice) CloseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type memoryStream struct {
	device      *MemoryDevice
	sampleRate  int
	frameLength int
	mu          sync.Mutex
	closed      bool
}

func (s *memoryStream) Read() ([]int16, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	s.mu.Unlock()

	d := s.device
	d.mu.Lock()
	if d.next < len(d.frames) {
		f := d.frames[d.next]
		d.next++
		d.mu.Unlock()
		return f, nil
	}
	d.mu.Unlock()

	// Out of scripted frames: keep the loop alive with real-time paced
	// silence so callers do not spin.
	if s.sampleRate > 0 {
		time.Sleep(time.Duration(s.frameLength) * time.Second / time.Duration(s.sampleRate))
	}
	return make([]int16, s.frameLength), nil
}

func (s *memoryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.device.mu.Lock()
	s.device.closed++
	s.device.mu.Unlock()
	return nil
}
