package transcribe

import (
	"testing"

	"github.com/jeff-barlow-spady/ramble/pkg/ring"
)

func newTestController(t *testing.T, params Params) (*Controller, *ring.Buffer) {
	t.Helper()
	buf := ring.New(1600) // 100ms @ 16kHz, tiny for overflow tests
	dir := t.TempDir()
	c := New(buf, dir, 16000, params)
	return c, buf
}

func TestAutomaticModeOpensAndFinalizesOnSpeechEvents(t *testing.T) {
	c, buf := newTestController(t, Params{Mode: ModeAutomatic, Enabled: true, VADLookbackMS: 0})
	buf.Write(make([]float32, 100))

	c.OnSpeechStarted()
	buf.Write(make([]float32, 200))
	c.OnSpeechEnded()

	seg, ok := c.Dequeue()
	if !ok {
		t.Fatalf("expected a finalized segment")
	}
	if len(seg.Samples) != 200 {
		t.Fatalf("expected 200 samples, got %d", len(seg.Samples))
	}
}

func TestPushToTalkIgnoresSpeechEvents(t *testing.T) {
	c, buf := newTestController(t, Params{Mode: ModePushToTalk, Enabled: true})
	buf.Write(make([]float32, 100))

	c.OnSpeechStarted()
	buf.Write(make([]float32, 100))
	c.OnSpeechEnded()

	if _, ok := c.Dequeue(); ok {
		t.Fatalf("expected no segment from speech events while in PushToTalk mode")
	}

	c.OnPTTPressed()
	buf.Write(make([]float32, 100))
	c.OnPTTReleased()

	if _, ok := c.Dequeue(); !ok {
		t.Fatalf("expected a segment from PTT events")
	}
}

func TestDisabledControllerDropsCursor(t *testing.T) {
	c, buf := newTestController(t, Params{Mode: ModeAutomatic, Enabled: true})
	buf.Write(make([]float32, 100))
	c.OnSpeechStarted()

	if err := c.SetParams(Params{Mode: ModeAutomatic, Enabled: false}); err != nil {
		t.Fatalf("unexpected error disabling: %v", err)
	}
	buf.Write(make([]float32, 100))
	c.OnSpeechEnded()

	if _, ok := c.Dequeue(); ok {
		t.Fatalf("expected no segment after disabling mid-cursor")
	}
}

func TestModeChangeRejectedWhileActive(t *testing.T) {
	c, _ := newTestController(t, Params{Mode: ModeAutomatic, Enabled: true})
	err := c.SetParams(Params{Mode: ModePushToTalk, Enabled: true})
	if err == nil {
		t.Fatalf("expected mode change to be rejected while active")
	}
}

func TestModeChangeAllowedWhileDisabled(t *testing.T) {
	c, _ := newTestController(t, Params{Mode: ModeAutomatic, Enabled: false})
	if err := c.SetParams(Params{Mode: ModePushToTalk, Enabled: false}); err != nil {
		t.Fatalf("unexpected error changing mode while disabled: %v", err)
	}
}

func TestOverflowSplitFinalizesAndContinues(t *testing.T) {
	c, buf := newTestController(t, Params{Mode: ModeAutomatic, Enabled: true, OverflowSplitFraction: 0.9})
	c.OnSpeechStarted()

	// push past 90% of the 1600-sample capacity
	buf.Write(make([]float32, 1500))
	c.CheckOverflow()

	seg, ok := c.Dequeue()
	if !ok {
		t.Fatalf("expected overflow to finalize a segment")
	}
	if len(seg.Samples) == 0 {
		t.Fatalf("expected non-empty overflow segment")
	}

	// cursor should remain open (continuation) for automatic mode
	buf.Write(make([]float32, 50))
	c.OnSpeechEnded()
	if _, ok := c.Dequeue(); !ok {
		t.Fatalf("expected continuation cursor to still finalize on speech-ended")
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	c, buf := newTestController(t, Params{Mode: ModeAutomatic, Enabled: true})
	c.queueCap = 2

	for i := 0; i < 4; i++ {
		buf.Write(make([]float32, 10))
		c.OnSpeechStarted()
		buf.Write(make([]float32, 10))
		c.OnSpeechEnded()
	}

	count := 0
	for {
		if _, ok := c.Dequeue(); !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected queue capped at 2, got %d", count)
	}
}
