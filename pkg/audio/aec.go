package audio

// echoCanceller is a from-scratch per-channel normalized-least-mean-squares
// (NLMS) adaptive filter implementing the same two-call contract a real
// AEC3 (libwebrtc) binding would expose: AnalyzeRender buffers the
// reference (loopback) signal, ProcessCapture subtracts the filter's
// estimate of the echo from the microphone signal and adapts the taps.
//
// No third-party Go AEC3 binding exists anywhere in the example corpus;
// this mirrors the correlation/adaptive-filter style the pack's own
// echo-suppression code uses (pure Go/math, no cgo), see DESIGN.md. The
// two-call shape keeps a future swap to a real AEC3 cgo binding a drop-in
// replacement.
type echoCanceller struct {
	taps      int
	mu        []float32 // filter weights, per channel, flattened [channel*taps+i]
	reference []float32 // circular reference history, per channel interleaved
	refLen    int
	refPos    int
	channels  int
	stepSize  float32
	leak      float32
}

const (
	aecDefaultTaps     = 256
	aecDefaultStepSize = 0.15
	aecLeak            = 1e-6
)

// newEchoCanceller builds a canceller for the given channel count, sized
// for FrameSamples-granularity stereo frames.
func newEchoCanceller(channels int) *echoCanceller {
	refLen := aecDefaultTaps * 4
	return &echoCanceller{
		taps:      aecDefaultTaps,
		mu:        make([]float32, channels*aecDefaultTaps),
		reference: make([]float32, channels*refLen),
		refLen:    refLen,
		channels:  channels,
		stepSize:  aecDefaultStepSize,
		leak:      aecLeak,
	}
}

// AnalyzeRender pushes one 480-stereo-frame render (loopback) block into the
// reference history. Must be called before ProcessCapture for the same
// frame time (render-first ordering).
func (e *echoCanceller) AnalyzeRender(render []float32) {
	frames := len(render) / e.channels
	for f := 0; f < frames; f++ {
		for c := 0; c < e.channels; c++ {
			e.reference[c*e.refLen+e.refPos] = render[f*e.channels+c]
		}
		e.refPos = (e.refPos + 1) % e.refLen
	}
}

// ProcessCapture echo-cancels one 480-stereo-frame mic block against the
// most recently analyzed render history and adapts the filter via NLMS.
func (e *echoCanceller) ProcessCapture(mic []float32) []float32 {
	frames := len(mic) / e.channels
	out := make([]float32, len(mic))

	for f := 0; f < frames; f++ {
		// Position of this frame's reference sample, walking backward from
		// the most recent write.
		framePos := (e.refPos - frames + f + e.refLen) % e.refLen

		for c := 0; c < e.channels; c++ {
			weights := e.mu[c*e.taps : c*e.taps+e.taps]

			var estimate float32
			var energy float32
			for i := 0; i < e.taps; i++ {
				refIdx := (framePos - i + e.refLen) % e.refLen
				r := e.reference[c*e.refLen+refIdx]
				estimate += weights[i] * r
				energy += r * r
			}

			micSample := mic[f*e.channels+c]
			errSample := micSample - estimate
			out[f*e.channels+c] = errSample

			norm := e.stepSize / (energy + e.leak)
			for i := 0; i < e.taps; i++ {
				refIdx := (framePos - i + e.refLen) % e.refLen
				r := e.reference[c*e.refLen+refIdx]
				weights[i] += norm * errSample * r
			}
		}
	}
	return out
}

// reset clears adaptive state, used when a loopback stream drops out for
// more than 500ms and the mixer starts zero-filling it.
func (e *echoCanceller) reset() {
	for i := range e.mu {
		e.mu[i] = 0
	}
}
