package audio

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// softClipGain is the fixed soft-clip curve constant from the spec's design
// notes: out = tanh(0.95*x). Left a package constant rather than a runtime
// tunable, since no caller in this codebase needs to vary it.
const softClipGain = 0.95

// catchUpDropMS and missingStreamZeroFillMS implement the mixer's rate
// mismatch and stream-dropout rules.
const (
	catchUpDropMS          = 60
	missingStreamZeroFillMS = 500
)

// streamBuffer accumulates one source's samples until a complete
// FrameFloats-sized block is available.
type streamBuffer struct {
	pending      []float32
	lastDelivery time.Time
	everSeen     bool
}

func (s *streamBuffer) push(samples []float32) {
	s.pending = append(s.pending, samples...)
	s.lastDelivery = time.Now()
	s.everSeen = true
}

func (s *streamBuffer) takeFrame() ([]float32, bool) {
	if len(s.pending) < FrameFloats {
		return nil, false
	}
	frame := s.pending[:FrameFloats]
	s.pending = s.pending[FrameFloats:]
	return frame, true
}

// dropExcess enforces the 60ms catch-up rule: if this buffer has
// accumulated more than catchUpDropMS worth of extra frames beyond one, the
// oldest are dropped to realign with the slower stream.
func (s *streamBuffer) dropExcess() {
	maxPending := FrameFloats * (1 + catchUpDropMS/10)
	if len(s.pending) > maxPending {
		excess := len(s.pending) - maxPending
		excess -= excess % 2
		s.pending = s.pending[excess:]
	}
}

// Mixer combines up to two StreamSamples feeds into frame-aligned 48kHz
// stereo output, applying render-first AEC and the mode-dependent combine
// policy. Owned exclusively by the audio-loop goroutine; never touched from
// a capture callback.
type Mixer struct {
	mic  streamBuffer
	loop streamBuffer
	aec  *echoCanceller

	params atomic.Pointer[Params]
}

// NewMixer builds a Mixer with the given initial parameter snapshot.
func NewMixer(params Params) *Mixer {
	m := &Mixer{aec: newEchoCanceller(2)}
	m.params.Store(&params)
	return m
}

// SetParams atomically swaps the mixer's configuration, read once per
// combined two-source frame.
func (m *Mixer) SetParams(p Params) { m.params.Store(&p) }

// Feed routes one StreamSamples batch into the mic or loopback buffer.
func (m *Mixer) Feed(s StreamSamples) {
	if s.IsLoopback {
		m.loop.push(s.Samples)
	} else {
		m.mic.push(s.Samples)
	}
	m.mic.dropExcess()
	m.loop.dropExcess()
}

// ProcessAvailable drains every complete 480-stereo-frame block currently
// available and returns the mixed stereo output frames, concatenated.
// Mixer never emits a partial frame.
func (m *Mixer) ProcessAvailable() []float32 {
	var out []float32
	for {
		frame, ok := m.nextFrame()
		if !ok {
			break
		}
		out = append(out, frame...)
	}
	return out
}

func (m *Mixer) nextFrame() ([]float32, bool) {
	haveMic := m.mic.everSeen
	haveLoop := m.loop.everSeen
	if !haveMic && !haveLoop {
		return nil, false
	}

	// With both streams active, wait until both hold a full frame (or one
	// does and the other has stalled) so neither advances past the other.
	if haveMic && haveLoop {
		stalledAt := time.Now()
		stalled := func(s *streamBuffer) bool {
			return !s.lastDelivery.IsZero() && stalledAt.Sub(s.lastDelivery) > missingStreamZeroFillMS*time.Millisecond
		}
		micReady := len(m.mic.pending) >= FrameFloats
		loopReady := len(m.loop.pending) >= FrameFloats
		if !(micReady && loopReady) && !(micReady && stalled(&m.loop)) && !(loopReady && stalled(&m.mic)) {
			return nil, false
		}
	}

	var micFrame, loopFrame []float32
	var micOK, loopOK bool

	if haveMic {
		micFrame, micOK = m.mic.takeFrame()
	}
	if haveLoop {
		loopFrame, loopOK = m.loop.takeFrame()
	}

	// Zero-fill a stream that has stopped delivering for >500ms while the
	// other continues, keeping AEC time-aligned.
	now := time.Now()
	if haveMic && haveLoop {
		if !micOK && !m.mic.lastDelivery.IsZero() && now.Sub(m.mic.lastDelivery) > missingStreamZeroFillMS*time.Millisecond {
			micFrame = make([]float32, FrameFloats)
			micOK = true
		}
		if !loopOK && !m.loop.lastDelivery.IsZero() && now.Sub(m.loop.lastDelivery) > missingStreamZeroFillMS*time.Millisecond {
			loopFrame = make([]float32, FrameFloats)
			loopOK = true
			m.aec.reset()
		}
	}

	if !micOK && !loopOK {
		return nil, false
	}

	switch {
	case haveMic && haveLoop && micOK && loopOK:
		return m.combineDual(micFrame, loopFrame), true
	case haveMic && micOK:
		return passthrough(micFrame), true
	case haveLoop && loopOK:
		return passthrough(loopFrame), true
	default:
		return nil, false
	}
}

func passthrough(frame []float32) []float32 {
	out := make([]float32, len(frame))
	copy(out, frame)
	return out
}

// combineDual applies render-first AEC then the mode-dependent combine.
func (m *Mixer) combineDual(mic, loop []float32) []float32 {
	params := m.params.Load()
	var micEC []float32
	if params.AECEnabled {
		m.aec.AnalyzeRender(loop)
		micEC = m.aec.ProcessCapture(mic)
	} else {
		micEC = mic
	}

	out := make([]float32, len(mic))
	switch params.RecordingMode {
	case RecordingModeEchoCancel:
		copy(out, micEC)
	default: // RecordingModeMixed
		for i := range out {
			out[i] = softClip(micEC[i] + loop[i])
		}
	}
	return out
}

func softClip(x float32) float32 {
	return float32(math.Tanh(float64(softClipGain) * float64(x)))
}

func init() {
	// Keep the logger import exercised even when the package is used
	// purely for DSP in tests without a session wired up.
	logger.Debug(logger.CategoryMixer, "mixer package initialized")
}
