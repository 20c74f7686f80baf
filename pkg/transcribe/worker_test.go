package transcribe

import (
	"testing"
	"time"

	"github.com/jeff-barlow-spady/ramble/pkg/ring"
)

func TestWorkerStartStopDoesNotHang(t *testing.T) {
	buf := ring.New(1600)
	c := New(buf, t.TempDir(), 16000, DefaultParams())
	w := NewWorker(c, "/nonexistent/model.bin")

	w.Start()
	time.Sleep(10 * time.Millisecond)
	w.Stop()
}

func TestWorkerEventsChannelIsReadable(t *testing.T) {
	buf := ring.New(1600)
	c := New(buf, t.TempDir(), 16000, DefaultParams())
	w := NewWorker(c, "/nonexistent/model.bin")

	select {
	case <-w.Events():
		t.Fatalf("expected no events before Start")
	default:
	}
}
