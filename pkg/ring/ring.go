// Package ring implements FlowSTT's fixed-capacity mono sample ring buffer,
// addressed by an absolute monotonic write index so readers can detect
// whether a requested range has already been overwritten.
package ring

import (
	"errors"
	"fmt"
)

// ErrOverwritten is returned by ReadRange when the requested range has
// already been evicted by newer writes.
var ErrOverwritten = errors.New("ring: requested range overwritten")

// ErrInvalidRange is returned by ReadRange when begin > end or end exceeds
// the current write position.
var ErrInvalidRange = errors.New("ring: invalid range")

// DefaultCapacity is 30s of mono audio at the transcription pipeline's
// 16kHz working rate.
const DefaultCapacity = 480_000

// Buffer is a single-writer, append-only mono float32 ring. The audio loop
// is the sole writer; the reader (the transcribe controller) runs on the
// same goroutine, so no locking is required per SPEC_FULL §4.7.
type Buffer struct {
	data     []float32
	capacity uint64
	writeAbs uint64
}

// New allocates a Buffer with the given sample capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]float32, capacity), capacity: uint64(capacity)}
}

// Write appends samples, advancing the absolute write position and
// overwriting the oldest samples once capacity is exceeded.
func (b *Buffer) Write(samples []float32) {
	for _, s := range samples {
		b.data[b.writeAbs%b.capacity] = s
		b.writeAbs++
	}
}

// Position returns the current absolute write index (total samples ever
// written, not wrapped).
func (b *Buffer) Position() uint64 { return b.writeAbs }

// Capacity returns the buffer's fixed sample capacity.
func (b *Buffer) Capacity() uint64 { return b.capacity }

// ReadRange copies out samples in [begin, end). Returns ErrOverwritten if
// begin predates the oldest sample still held.
func (b *Buffer) ReadRange(begin, end uint64) ([]float32, error) {
	if begin > end || end > b.writeAbs {
		return nil, fmt.Errorf("%w: begin=%d end=%d writeAbs=%d", ErrInvalidRange, begin, end, b.writeAbs)
	}
	if b.writeAbs > b.capacity && begin < b.writeAbs-b.capacity {
		return nil, fmt.Errorf("%w: begin=%d oldestAvailable=%d", ErrOverwritten, begin, b.writeAbs-b.capacity)
	}

	out := make([]float32, end-begin)
	for i := range out {
		out[i] = b.data[(begin+uint64(i))%b.capacity]
	}
	return out, nil
}

// OldestAvailable returns the smallest absolute index ReadRange will still
// accept, used by the transcribe controller to clamp lookback windows.
func (b *Buffer) OldestAvailable() uint64 {
	if b.writeAbs <= b.capacity {
		return 0
	}
	return b.writeAbs - b.capacity
}
