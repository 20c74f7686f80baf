// Package ferrors defines the error-kind taxonomy shared across FlowSTT's
// capture, mixing, detection, and transcription components. Concrete errors
// wrap one of these sentinels with errors.Is-compatible %w formatting so
// callers can classify failures without string matching.
package ferrors

import "errors"

var (
	// ErrDeviceNotFound indicates a requested device id is not present in
	// the current enumeration.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceOpenFailed indicates the native API refused to open a
	// device that was found during enumeration.
	ErrDeviceOpenFailed = errors.New("device open failed")
	// ErrUnsupportedFormat indicates a negotiated format could not be
	// converted to stereo f32.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrPermissionDenied indicates an OS-level permission grant is
	// missing (accessibility, screen recording, microphone).
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotImplemented indicates a platform gap: the operation is a
	// deliberate stub on this OS.
	ErrNotImplemented = errors.New("not implemented on this platform")
	// ErrCaptureFailed indicates a transient per-callback capture error;
	// the current sample batch was dropped.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrCaptureAborted indicates a persistent capture error; the capture
	// goroutine has exited.
	ErrCaptureAborted = errors.New("capture aborted")
	// ErrAecFailure indicates the echo canceller could not process a
	// frame.
	ErrAecFailure = errors.New("echo cancellation failure")
	// ErrModelMissing indicates the configured Whisper model file does
	// not exist or failed to load.
	ErrModelMissing = errors.New("whisper model missing")
	// ErrTranscriptionFailed indicates a single segment failed to
	// transcribe; the worker continues with the next segment.
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrRingBufferOverwritten indicates a requested read range has
	// already been overwritten by newer writes.
	ErrRingBufferOverwritten = errors.New("ring buffer range overwritten")
	// ErrQueueFull indicates the bounded transcription queue is full and
	// the oldest entry was dropped to make room.
	ErrQueueFull = errors.New("transcription queue full")
	// ErrInvalidState indicates a requested state transition is not
	// permitted (e.g. mode change while transcription is active).
	ErrInvalidState = errors.New("invalid state for requested operation")
)
