// Package transcribe implements FlowSTT's segment-carving controller (C8)
// and the whisper.cpp-backed transcription worker (C9).
package transcribe

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeff-barlow-spady/ramble/pkg/ferrors"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
	"github.com/jeff-barlow-spady/ramble/pkg/ring"
)

// errModeChangeWhileActive is returned by SetParams when a mode change is
// requested while transcribe is enabled; SPEC_FULL §4.8 permits mode
// changes only while disabled.
var errModeChangeWhileActive = fmt.Errorf("%w: transcribe mode change rejected while active", ferrors.ErrInvalidState)

// Mode selects what triggers segment capture.
type Mode int

const (
	ModeAutomatic Mode = iota
	ModePushToTalk
)

// Segment is one finalized audio span handed to the transcription worker.
type Segment struct {
	Samples []float32 // mono, 16kHz, owned copy
	WavPath string
}

// DiagnosticEvent reports a non-fatal controller condition (queue drop) to
// the session/GUI layer.
type DiagnosticEvent struct {
	Kind    string
	Message string
}

// segmentCursor tracks one in-progress segment's ring-buffer span.
type segmentCursor struct {
	startAbs uint64
}

const (
	vadLookbackDefaultMS = 200
	pttLookbackDefaultMS = 100
	overflowSplitDefault = 0.9
	queueDropWaitMS      = 50
)

// Params is the controller's atomically-replaceable configuration.
type Params struct {
	Mode                  Mode
	Enabled               bool
	VADLookbackMS         int
	PTTLookbackMS         int
	OverflowSplitFraction float64
}

// DefaultParams mirrors config.DefaultConfig's transcribe-relevant fields.
func DefaultParams() Params {
	return Params{
		Mode:                  ModeAutomatic,
		Enabled:               true,
		VADLookbackMS:         vadLookbackDefaultMS,
		PTTLookbackMS:         pttLookbackDefaultMS,
		OverflowSplitFraction: overflowSplitDefault,
	}
}

// Controller owns the segment cursor and the bounded queue of finalized
// segments waiting on the transcription worker. Driven exclusively from the
// audio loop goroutine; queue access is the only part touched concurrently
// by the worker goroutine.
type Controller struct {
	mu     sync.Mutex
	params Params

	buf    *ring.Buffer
	cursor *segmentCursor

	queue       []Segment
	queueCap    int
	recordDir   string
	sampleRate  int
	diagnostics chan DiagnosticEvent
	notify      chan struct{}
}

const defaultQueueCapacity = 4

// New builds a Controller reading from buf and writing finalized WAVs under
// recordDir. sampleRate is the ring buffer's fixed working rate (16000).
func New(buf *ring.Buffer, recordDir string, sampleRate int, params Params) *Controller {
	return &Controller{
		params:      params,
		buf:         buf,
		queueCap:    defaultQueueCapacity,
		recordDir:   recordDir,
		sampleRate:  sampleRate,
		diagnostics: make(chan DiagnosticEvent, 16),
		notify:      make(chan struct{}, 1),
	}
}

// signalLocked wakes a goroutine blocked in WaitDequeue. Caller holds c.mu.
func (c *Controller) signalLocked() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// SetParams atomically replaces the controller's configuration. Mode
// changes while transcribe is active are rejected, per SPEC_FULL §4.8.
func (c *Controller) SetParams(p Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.params.Enabled && p.Mode != c.params.Mode {
		return errModeChangeWhileActive
	}
	c.params = p
	if !p.Enabled {
		c.cursor = nil
	}
	return nil
}

// Params returns the controller's current configuration snapshot.
func (c *Controller) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Diagnostics returns the read-only channel of controller diagnostic
// events (currently: queue-drop notifications).
func (c *Controller) Diagnostics() <-chan DiagnosticEvent { return c.diagnostics }

// OnSpeechStarted opens a cursor with VAD lookback in Automatic mode.
func (c *Controller) OnSpeechStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.params.Enabled || c.params.Mode != ModeAutomatic {
		return
	}
	c.cursor = c.newCursorLocked(c.params.VADLookbackMS)
}

// OnSpeechEnded finalizes the open cursor in Automatic mode.
func (c *Controller) OnSpeechEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.params.Enabled || c.params.Mode != ModeAutomatic || c.cursor == nil {
		return
	}
	c.finalizeLocked(c.buf.Position())
}

// OnPTTPressed opens a cursor with PTT lookback in PushToTalk mode.
func (c *Controller) OnPTTPressed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.params.Enabled || c.params.Mode != ModePushToTalk {
		return
	}
	c.cursor = c.newCursorLocked(c.params.PTTLookbackMS)
}

// OnPTTReleased finalizes the open cursor in PushToTalk mode.
func (c *Controller) OnPTTReleased() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.params.Enabled || c.params.Mode != ModePushToTalk || c.cursor == nil {
		return
	}
	c.finalizeLocked(c.buf.Position())
}

func (c *Controller) newCursorLocked(lookbackMS int) *segmentCursor {
	lookbackSamples := uint64(lookbackMS) * uint64(c.sampleRate) / 1000
	writeAbs := c.buf.Position()

	var startAbs uint64
	if lookbackSamples > writeAbs {
		startAbs = 0
	} else {
		startAbs = writeAbs - lookbackSamples
	}
	if capacity := c.buf.Capacity(); writeAbs >= capacity && startAbs < writeAbs-capacity+1 {
		startAbs = writeAbs - capacity + 1
	}
	return &segmentCursor{startAbs: startAbs}
}

// CheckOverflow must be called once per audio-loop iteration while a cursor
// is open; it implements the 0.9*N overflow split rule.
func (c *Controller) CheckOverflow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor == nil {
		return
	}
	writeAbs := c.buf.Position()
	span := writeAbs - c.cursor.startAbs
	threshold := uint64(float64(c.buf.Capacity()) * c.params.OverflowSplitFraction)
	if span < threshold {
		return
	}

	c.finalizeLocked(writeAbs)
	// continuation cursor, no lookback
	c.cursor = &segmentCursor{startAbs: writeAbs}
}

// finalizeLocked copies [cursor.startAbs, endAbs) out, writes a WAV, and
// enqueues the segment. Caller holds c.mu.
func (c *Controller) finalizeLocked(endAbs uint64) {
	cursor := c.cursor
	c.cursor = nil
	if cursor == nil || endAbs <= cursor.startAbs {
		return
	}

	samples, err := c.buf.ReadRange(cursor.startAbs, endAbs)
	if err != nil {
		if errors.Is(err, ring.ErrOverwritten) {
			err = fmt.Errorf("%w: %v", ferrors.ErrRingBufferOverwritten, err)
		}
		logger.Warning(logger.CategoryTranscribe, "segment finalize: %v", err)
		return
	}

	wavPath, err := writeWAV(c.recordDir, samples, c.sampleRate)
	if err != nil {
		logger.Error(logger.CategoryTranscribe, "write segment wav: %v", err)
		return
	}

	seg := Segment{Samples: samples, WavPath: wavPath}
	c.enqueueLocked(seg)
}

// enqueueLocked is called with c.mu held. When the queue is full it
// releases the lock for the grace wait so the worker's Dequeue can
// actually make room before the oldest entry is dropped, then reacquires
// before touching c.queue again.
func (c *Controller) enqueueLocked(seg Segment) {
	if len(c.queue) < c.queueCap {
		c.queue = append(c.queue, seg)
		c.signalLocked()
		return
	}

	c.mu.Unlock()
	time.Sleep(queueDropWaitMS * time.Millisecond)
	c.mu.Lock()

	if len(c.queue) < c.queueCap {
		c.queue = append(c.queue, seg)
		c.signalLocked()
		return
	}

	c.queue = c.queue[1:]
	c.queue = append(c.queue, seg)
	c.signalLocked()
	dropErr := fmt.Errorf("%w: dropped oldest segment to admit newest", ferrors.ErrQueueFull)
	select {
	case c.diagnostics <- DiagnosticEvent{Kind: "transcribe-queue-drop", Message: dropErr.Error()}:
	default:
	}
	logger.Warning(logger.CategoryTranscribe, "%v", dropErr)
}

// Dequeue removes and returns the oldest queued segment without blocking,
// used directly by tests and by WaitDequeue's inner poll.
func (c *Controller) Dequeue() (Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return Segment{}, false
	}
	seg := c.queue[0]
	c.queue = c.queue[1:]
	return seg, true
}

// WaitDequeue blocks until a segment is enqueued or stop is closed, per
// SPEC_FULL §5's "worker blocks on a segment-queue receive" model. It never
// misses a segment enqueued between an empty Dequeue and the following
// notify receive, since notify is buffered and signaled after every
// successful enqueue.
func (c *Controller) WaitDequeue(stop <-chan struct{}) (Segment, bool) {
	for {
		if seg, ok := c.Dequeue(); ok {
			return seg, true
		}
		select {
		case <-c.notify:
		case <-stop:
			return Segment{}, false
		}
	}
}
