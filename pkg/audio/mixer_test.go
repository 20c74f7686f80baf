package audio

import (
	"math"
	"testing"
	"time"
)

func sineFrame(freq float64, startPhase float64, frames int) []float32 {
	out := make([]float32, frames*2)
	phase := startPhase
	step := 2 * math.Pi * freq / float64(MixerSampleRate)
	for f := 0; f < frames; f++ {
		v := float32(0.3 * math.Sin(phase))
		out[f*2] = v
		out[f*2+1] = v
		phase += step
	}
	return out
}

func TestMixerPassthroughSingleSource(t *testing.T) {
	m := NewMixer(Params{RecordingMode: RecordingModeMixed})
	m.Feed(StreamSamples{Samples: sineFrame(440, 0, FrameSamples), IsLoopback: false})

	out := m.ProcessAvailable()
	if len(out) != FrameFloats {
		t.Fatalf("expected %d samples, got %d", FrameFloats, len(out))
	}
}

func TestMixerCombinesMicAndLoopMixed(t *testing.T) {
	m := NewMixer(Params{RecordingMode: RecordingModeMixed, AECEnabled: false})
	mic := sineFrame(200, 0, FrameSamples)
	loop := sineFrame(1000, 0, FrameSamples)

	m.Feed(StreamSamples{Samples: mic, IsLoopback: false})
	m.Feed(StreamSamples{Samples: loop, IsLoopback: true})

	out := m.ProcessAvailable()
	if len(out) != FrameFloats {
		t.Fatalf("expected %d samples, got %d", FrameFloats, len(out))
	}
	for i, v := range out {
		if v < -1 || v > 1 {
			t.Fatalf("sample %d out of soft-clip range: %v", i, v)
		}
	}
}

func TestMixerEchoCancelModeDropsLoop(t *testing.T) {
	m := NewMixer(Params{RecordingMode: RecordingModeEchoCancel, AECEnabled: true})
	mic := sineFrame(200, 0, FrameSamples)
	loop := sineFrame(200, 0, FrameSamples)

	m.Feed(StreamSamples{Samples: mic, IsLoopback: false})
	m.Feed(StreamSamples{Samples: loop, IsLoopback: true})

	out := m.ProcessAvailable()
	if len(out) != FrameFloats {
		t.Fatalf("expected %d samples, got %d", FrameFloats, len(out))
	}
}

func TestSoftClipBoundsOutput(t *testing.T) {
	cases := []float32{-5, -1, 0, 1, 5, 100}
	for _, c := range cases {
		v := softClip(c)
		// tanh saturates to exactly +/-1 in floating point for large inputs
		// (softClip(100) == 1), so only moderate inputs stay strictly inside.
		if c >= -5 && c <= 5 {
			if v <= -1 || v >= 1 {
				t.Fatalf("softClip(%v) = %v, expected strictly within (-1, 1)", c, v)
			}
		} else if v < -1 || v > 1 {
			t.Fatalf("softClip(%v) = %v, expected within [-1, 1]", c, v)
		}
	}
}

func TestStreamBufferDropExcessEnforcesCatchUp(t *testing.T) {
	s := &streamBuffer{}
	// push far more than the catch-up allowance (60ms = 6 extra frames)
	for i := 0; i < 20; i++ {
		s.push(make([]float32, FrameFloats))
	}
	s.dropExcess()

	maxPending := FrameFloats * (1 + catchUpDropMS/10)
	if len(s.pending) > maxPending {
		t.Fatalf("dropExcess left %d pending, want <= %d", len(s.pending), maxPending)
	}
}

func TestMixerZeroFillsStalledLoopStream(t *testing.T) {
	m := NewMixer(Params{RecordingMode: RecordingModeMixed, AECEnabled: true})
	m.loop.everSeen = true
	m.loop.lastDelivery = time.Now().Add(-600 * time.Millisecond)
	m.mic.push(sineFrame(200, 0, FrameSamples))

	out := m.ProcessAvailable()
	if len(out) != FrameFloats {
		t.Fatalf("expected %d samples from zero-filled combine, got %d", FrameFloats, len(out))
	}
}

func TestMixerNoSourcesYieldsNoOutput(t *testing.T) {
	m := NewMixer(Params{RecordingMode: RecordingModeMixed})
	out := m.ProcessAvailable()
	if len(out) != 0 {
		t.Fatalf("expected no output with no sources fed, got %d samples", len(out))
	}
}
