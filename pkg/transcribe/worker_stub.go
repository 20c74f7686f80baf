//go:build !(cgo && whisper_go)

package transcribe

import (
	"github.com/jeff-barlow-spady/ramble/pkg/ferrors"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// WorkerEvent is emitted to the session layer on each transcription
// attempt's outcome.
type WorkerEvent struct {
	Kind string
	Text string
	Err  error
}

// Worker stub compiled when the whisper.cpp Go bindings are unavailable
// (build without cgo or the whisper_go tag). It still drains the
// controller's queue so segments don't pile up unbounded; each dequeued
// segment reports transcription-error rather than being silently dropped.
type Worker struct {
	controller *Controller
	events     chan WorkerEvent
	stop       chan struct{}
	done       chan struct{}
}

func NewWorker(controller *Controller, modelPath string) *Worker {
	return &Worker{controller: controller, events: make(chan WorkerEvent, 16), stop: make(chan struct{}), done: make(chan struct{})}
}

func (w *Worker) Events() <-chan WorkerEvent { return w.events }

func (w *Worker) Start() {
	logger.Warning(logger.CategoryTranscribe, "built without whisper.cpp Go bindings (cgo,whisper_go); transcription worker is a stub")
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		if _, ok := w.controller.WaitDequeue(w.stop); !ok {
			return
		}
		select {
		case w.events <- WorkerEvent{Kind: "transcription-error", Err: ferrors.ErrModelMissing}:
		default:
			logger.Warning(logger.CategoryTranscribe, "worker event channel full, dropping transcription-error")
		}
	}
}

func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}
