package recog

import (
	"log"
	"sync"

	"github.com/adimehra/dali/internal/audio"
)

// Binding is the live (language, decoder, audio stream) triple. Exactly
// one binding receives frames at a time; Close is idempotent and never
// blocks progress on a failed stream close.
type Binding struct {
	Language string

	mu      sync.Mutex
	decoder Decoder
	stream  audio.Stream
	closed  bool
}

func NewBinding(language string, decoder Decoder, stream audio.Stream) *Binding {
	return &Binding{Language: language, decoder: decoder, stream: stream}
}

// Accept feeds one frame into the bound decoder.
func (b *Binding) Accept(frame []int16) (Result, error) {
	b.mu.Lock()
	decoder := b.decoder
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return Result{}, audio.ErrStreamClosed
	}
	return decoder.Accept(frame)
}

// Close releases the stream first, then the decoder. Errors are logged
// and swallowed so a failed close cannot wedge a language switch.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.stream != nil {
		if err := b.stream.Close(); err != nil {
			log.Printf("recog: close stream for %s: %v", b.Language, err)
		}
	}
	if b.decoder != nil {
		if err := b.decoder.Close(); err != nil {
			log.Printf("recog: close decoder for %s: %v", b.Language, err)
		}
	}
}
