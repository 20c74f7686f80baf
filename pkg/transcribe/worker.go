//go:build cgo && whisper_go

package transcribe

import (
	"fmt"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/jeff-barlow-spady/ramble/pkg/ferrors"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// WorkerEvent is emitted to the session layer on each transcription
// attempt's outcome.
type WorkerEvent struct {
	Kind string // "transcription-complete" or "transcription-error"
	Text string
	Err  error
}

// Worker is the single-goroutine whisper.cpp consumer (C9). It loads the
// engine context once at Start; if the model failed to load, the load is
// not retried and every dequeued segment reports that load error as a
// transcription-error instead of crashing, per SPEC_FULL §4.9.
type Worker struct {
	controller *Controller
	modelPath  string
	model      whisper.Model
	context    whisper.Context
	loadErr    error
	events     chan WorkerEvent
	stop       chan struct{}
	done       chan struct{}
}

// NewWorker builds a Worker bound to the given controller's segment queue.
func NewWorker(controller *Controller, modelPath string) *Worker {
	return &Worker{
		controller: controller,
		modelPath:  modelPath,
		events:     make(chan WorkerEvent, 16),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Events returns the read-only channel of per-segment outcomes.
func (w *Worker) Events() <-chan WorkerEvent { return w.events }

// Start loads the whisper engine context once and begins the dequeue loop.
// A missing/invalid model file is recorded but does not prevent Start from
// returning; each processed segment will emit transcription-error instead.
func (w *Worker) Start() {
	model, err := whisper.New(w.modelPath)
	if err != nil {
		w.loadErr = fmt.Errorf("%w: load whisper model %s: %v", ferrors.ErrModelMissing, w.modelPath, err)
		logger.Error(logger.CategoryTranscribe, "%v", w.loadErr)
	} else {
		ctx, err := model.NewContext()
		if err != nil {
			w.loadErr = fmt.Errorf("%w: create whisper context: %v", ferrors.ErrModelMissing, err)
			logger.Error(logger.CategoryTranscribe, "%v", w.loadErr)
			model.Close()
		} else {
			_ = ctx.SetLanguage("en")
			ctx.SetThreads(4)
			ctx.SetSplitOnWord(true)
			w.model = model
			w.context = ctx
		}
	}

	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		seg, ok := w.controller.WaitDequeue(w.stop)
		if !ok {
			return
		}
		w.processSegment(seg)
	}
}

func (w *Worker) processSegment(seg Segment) {
	if w.loadErr != nil {
		w.emit(WorkerEvent{Kind: "transcription-error", Err: w.loadErr})
		return
	}

	var text strings.Builder
	segmentCallback := func(s whisper.Segment) {
		text.WriteString(s.Text)
	}

	if err := w.context.Process(seg.Samples, nil, segmentCallback, nil); err != nil {
		w.emit(WorkerEvent{Kind: "transcription-error", Err: fmt.Errorf("%w: %v", ferrors.ErrTranscriptionFailed, err)})
		return
	}

	result := strings.TrimSpace(text.String())
	w.emit(WorkerEvent{Kind: "transcription-complete", Text: result})
}

func (w *Worker) emit(ev WorkerEvent) {
	select {
	case w.events <- ev:
	default:
		logger.Warning(logger.CategoryTranscribe, "worker event channel full, dropping %s", ev.Kind)
	}
}

// Stop halts the dequeue loop and releases the whisper context.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
	if w.model != nil {
		w.model.Close()
	}
}
