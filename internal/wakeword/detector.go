// Package wakeword runs the blocking audio read loop that listens for the
// trigger phrase and drives the voice-mode flag through a bounded handoff
// into the gateway's event loop.
package wakeword

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/adimehra/dali/internal/audio"
	"github.com/adimehra/dali/internal/spotter"
)

const readRetryDelay = 100 * time.Millisecond

// NotifyFunc delivers a voice-mode change into the controller's execution
// context. Implementations must bound their own wait; an error means the
// handoff did not complete in time and is logged, never fatal.
type NotifyFunc func(enabled bool) error

// Detector owns the capture stream and the inactivity timer. Start runs
// the detection loop on its own goroutine until Stop.
type Detector struct {
	device   audio.Device
	spot     spotter.Spotter
	timeout  time.Duration
	notify   NotifyFunc
	dumpDir  string
	onDetect func(keywordIndex int) // test hook, may be nil

	mu      sync.Mutex
	stream  audio.Stream
	timer   *time.Timer
	running bool
	stopped bool
	done    chan struct{}
}

type Options struct {
	Device            audio.Device
	Spotter           spotter.Spotter
	InactivityTimeout time.Duration
	Notify            NotifyFunc
	CaptureDumpDir    string
}

func New(opts Options) (*Detector, error) {
	if opts.Device == nil {
		return nil, fmt.Errorf("wakeword: capture device is required")
	}
	if opts.Spotter == nil {
		return nil, fmt.Errorf("wakeword: spotter is required")
	}
	if opts.Notify == nil {
		return nil, fmt.Errorf("wakeword: notify callback is required")
	}
	if opts.InactivityTimeout <= 0 {
		return nil, fmt.Errorf("wakeword: inactivity timeout must be positive")
	}
	return &Detector{
		device:  opts.Device,
		spot:    opts.Spotter,
		timeout: opts.InactivityTimeout,
		notify:  opts.Notify,
		dumpDir: opts.CaptureDumpDir,
		done:    make(chan struct{}),
	}, nil
}

// Start opens the capture stream and launches the detection loop.
func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.stopped {
		return fmt.Errorf("wakeword: detector already started")
	}
	stream, err := d.device.OpenStream(d.spot.SampleRate(), d.spot.FrameLength())
	if err != nil {
		return fmt.Errorf("wakeword: open capture stream: %w", err)
	}
	d.stream = stream
	d.running = true
	go d.loop()
	log.Printf("wakeword: detection started (timeout %s)", d.timeout)
	return nil
}

func (d *Detector) loop() {
	defer close(d.done)

	var recent [][]int16

	for {
		d.mu.Lock()
		stream := d.stream
		running := d.running
		d.mu.Unlock()
		if !running {
			return
		}

		frame, err := stream.Read()
		if err != nil {
			if err == audio.ErrStreamClosed {
				return
			}
			log.Printf("wakeword: stream read: %v", err)
			time.Sleep(readRetryDelay)
			continue
		}

		if d.dumpDir != "" {
			recent = append(recent, frame)
			if len(recent) > 64 {
				recent = recent[1:]
			}
		}

		idx, err := d.spot.Process(frame)
		if err != nil {
			log.Printf("wakeword: spotting: %v", err)
			time.Sleep(readRetryDelay)
			continue
		}
		if idx < 0 {
			continue
		}

		log.Printf("wakeword: trigger phrase detected (keyword index %d)", idx)
		d.resetTimer()
		if d.onDetect != nil {
			d.onDetect(idx)
		}
		if d.dumpDir != "" {
			d.dumpCapture(recent)
			recent = nil
		}
		if err := d.notify(true); err != nil {
			log.Printf("wakeword: enable handoff: %v", err)
		}
	}
}

// resetTimer cancels any outstanding timer before scheduling the next
// expiry, so at most one is pending at any instant.
func (d *Detector) resetTimer() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.timeout, d.expire)
}

func (d *Detector) expire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	log.Printf("wakeword: inactivity timeout reached, disabling voice mode")
	if err := d.notify(false); err != nil {
		log.Printf("wakeword: disable handoff: %v", err)
	}
}

// Stop cancels the timer, stops the loop and releases the capture stream
// and the spotter. Idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	wasRunning := d.running
	d.running = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	stream := d.stream
	d.stream = nil
	d.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			log.Printf("wakeword: close stream: %v", err)
		}
	}
	if wasRunning {
		<-d.done
	}
	if err := d.spot.Close(); err != nil {
		log.Printf("wakeword: close spotter: %v", err)
	}
	log.Printf("wakeword: detector stopped")
}

func (d *Detector) dumpCapture(frames [][]int16) {
	if len(frames) == 0 {
		return
	}
	path := filepath.Join(d.dumpDir, fmt.Sprintf("wake_%d.wav", time.Now().UnixMilli()))
	if err := audio.WriteWAVFrames(path, frames, d.spot.SampleRate()); err != nil {
		log.Printf("wakeword: capture dump: %v", err)
	}
}
