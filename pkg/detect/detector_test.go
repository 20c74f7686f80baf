package detect

import (
	"math"
	"testing"
	"time"
)

// voicedFrame synthesizes a 10ms 16kHz frame shaped to land inside the
// voiced-class bands: strong amplitude, low zero-crossing rate, low
// centroid. A slow sine at 300Hz satisfies this.
func voicedFrame() []float32 {
	n := 160
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.3 * math.Sin(2*math.Pi*300*float64(i)/16000))
	}
	return out
}

func silentFrame() []float32 {
	return make([]float32, 160)
}

func TestClassifyVoicedFrame(t *testing.T) {
	d := New(DefaultParams())
	class := d.classifyWithParams(voicedFrame())
	if class != ClassVoiced {
		t.Fatalf("expected ClassVoiced, got %v", class)
	}
}

func TestClassifySilentFrame(t *testing.T) {
	d := New(DefaultParams())
	class := d.classifyWithParams(silentFrame())
	if class != ClassNone {
		t.Fatalf("expected ClassNone for silence, got %v", class)
	}
}

func TestOnsetRequiresSustainedVoicedWindow(t *testing.T) {
	d := New(DefaultParams())
	base := time.Now()
	frame := voicedFrame()

	ev, fired := d.Process(frame, base)
	if fired {
		t.Fatalf("unexpected event on first voiced frame: %v", ev)
	}
	if d.CurrentState() != StateOnset {
		t.Fatalf("expected StateOnset, got %v", d.CurrentState())
	}

	ev, fired = d.Process(frame, base.Add(110*time.Millisecond))
	if !fired || ev.Kind != "speech-started" {
		t.Fatalf("expected speech-started after onset window, got fired=%v ev=%v", fired, ev)
	}
	if d.CurrentState() != StateSpeech {
		t.Fatalf("expected StateSpeech after onset, got %v", d.CurrentState())
	}
}

func TestOnsetAbortedBySilenceBeforeWindow(t *testing.T) {
	d := New(DefaultParams())
	base := time.Now()
	d.Process(voicedFrame(), base)
	if d.CurrentState() != StateOnset {
		t.Fatalf("expected StateOnset, got %v", d.CurrentState())
	}
	d.Process(silentFrame(), base.Add(10*time.Millisecond))
	if d.CurrentState() != StateSilence {
		t.Fatalf("expected reset to StateSilence, got %v", d.CurrentState())
	}
}

func TestHoldingDebouncesBriefGap(t *testing.T) {
	d := New(DefaultParams())
	base := time.Now()
	d.Process(voicedFrame(), base)
	d.Process(voicedFrame(), base.Add(110*time.Millisecond))
	if d.CurrentState() != StateSpeech {
		t.Fatalf("setup: expected StateSpeech, got %v", d.CurrentState())
	}

	d.Process(silentFrame(), base.Add(120*time.Millisecond))
	if d.CurrentState() != StateHolding {
		t.Fatalf("expected StateHolding, got %v", d.CurrentState())
	}

	// resumes before the 300ms hold window elapses
	ev, fired := d.Process(voicedFrame(), base.Add(200*time.Millisecond))
	if fired {
		t.Fatalf("unexpected event on hold-resume: %v", ev)
	}
	if d.CurrentState() != StateSpeech {
		t.Fatalf("expected debounce back to StateSpeech, got %v", d.CurrentState())
	}
}

func TestHoldingExpiresToSpeechEnded(t *testing.T) {
	d := New(DefaultParams())
	base := time.Now()
	d.Process(voicedFrame(), base)
	d.Process(voicedFrame(), base.Add(110*time.Millisecond))
	d.Process(silentFrame(), base.Add(120*time.Millisecond))

	ev, fired := d.Process(silentFrame(), base.Add(500*time.Millisecond))
	if !fired || ev.Kind != "speech-ended" {
		t.Fatalf("expected speech-ended after hold window elapses, got fired=%v ev=%v", fired, ev)
	}
	if d.CurrentState() != StateSilence {
		t.Fatalf("expected StateSilence, got %v", d.CurrentState())
	}
}

func TestSetParamsTakesEffectOnNextFrame(t *testing.T) {
	d := New(DefaultParams())
	d.SetParams(Params{VoicedThresholdDB: 100, WhisperThresholdDB: 100, VoicedOnsetMS: 100, WhisperOnsetMS: 150, HoldMS: 300})
	class := d.classifyWithParams(voicedFrame())
	if class != ClassNone {
		t.Fatalf("expected ClassNone once threshold raised above any signal, got %v", class)
	}
}
