// Package audio implements FlowSTT's per-OS capture backends, the resampler,
// and the frame-synchronous mixer with echo cancellation.
package audio

import "time"

// DeviceKind distinguishes microphone-class sources from loopback/monitor
// class sources.
type DeviceKind int

const (
	// DeviceKindInput is a microphone-class capture device.
	DeviceKindInput DeviceKind = iota
	// DeviceKindSystem is a loopback/monitor/tap capture device that mirrors
	// system audio output.
	DeviceKindSystem
)

func (k DeviceKind) String() string {
	if k == DeviceKindSystem {
		return "system"
	}
	return "input"
}

// Device describes one enumerable audio source. ID is platform-opaque
// (PipeWire node id, WASAPI device-id string, CoreAudio AudioDeviceID
// stringified) and unique within a single enumeration pass.
type Device struct {
	ID   string
	Name string
	Kind DeviceKind
}

// StreamSamples is a single capture-goroutine to mixer message. Samples are
// stereo interleaved at SourceRate; every backend resamples to 48 kHz via
// the Resampler before pushing, and the mixer buffers them as-is.
type StreamSamples struct {
	Samples    []float32
	SourceRate int
	IsLoopback bool
}

// FrameSamples is the number of stereo sample-frames in one 10 ms @ 48 kHz
// AEC/mixer frame.
const FrameSamples = 480

// FrameFloats is the number of interleaved float32 values in one AudioFrame
// (480 stereo frames = 960 floats).
const FrameFloats = FrameSamples * 2

// MixerSampleRate is the fixed internal rate the mixer and AEC operate at.
const MixerSampleRate = 48000

// RecordingMode selects how the mixer combines mic-after-AEC and system
// audio.
type RecordingMode int

const (
	// RecordingModeMixed sums mic-after-AEC and system audio with soft-clip.
	RecordingModeMixed RecordingMode = iota
	// RecordingModeEchoCancel outputs mic-after-AEC only.
	RecordingModeEchoCancel
)

// CaptureState reports backend capture health toward the session/GUI layer.
type CaptureState struct {
	Capturing bool
	Err       error
}

// Params is the atomically-swappable set of mixer/backend knobs read once
// per frame by the audio loop. Callers replace the whole struct via
// atomic.Pointer rather than mutating fields in place.
type Params struct {
	AECEnabled    bool
	RecordingMode RecordingMode
}

// backendShutdownDeadline bounds how long StopCapture waits for capture
// goroutines to exit before treating the backend instance as abandoned.
const backendShutdownDeadline = 2 * time.Second
