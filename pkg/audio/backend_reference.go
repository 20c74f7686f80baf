package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/jeff-barlow-spady/ramble/pkg/ferrors"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// ReferenceBackend is a single-source, input-only backend built on
// portaudio, grounded on the teacher's own pkg/audio/capture.go. It carries
// no build tag so it is always available: the diagnostics command and
// hardware-independent tests use it rather than requiring a live
// platform-specific native stack. It does not support system/loopback
// capture, so StartCaptureSources rejects a DeviceKindSystem argument.
type ReferenceBackend struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	queue  *streamQueue
	stop   chan struct{}
	source *captureSource
}

// NewReferenceBackend constructs a portaudio-backed Backend. Call
// portaudio.Initialize before use and portaudio.Terminate at process exit,
// same lifecycle the teacher's code followed.
func NewReferenceBackend() *ReferenceBackend {
	return &ReferenceBackend{queue: newStreamQueue()}
}

func (b *ReferenceBackend) ListInputDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate portaudio devices: %v", ferrors.ErrDeviceOpenFailed, err)
	}
	var out []Device
	for i, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		out = append(out, Device{ID: fmt.Sprintf("%d", i), Name: d.Name, Kind: DeviceKindInput})
	}
	return out, nil
}

// ListSystemDevices always returns empty: the reference backend has no
// loopback capability.
func (b *ReferenceBackend) ListSystemDevices() ([]Device, error) { return nil, nil }

func (b *ReferenceBackend) StartCaptureSources(primary, secondary *Device) error {
	if secondary != nil {
		return fmt.Errorf("%w: reference backend supports one source only", ferrors.ErrUnsupportedFormat)
	}
	if primary == nil {
		return nil
	}
	if primary.Kind == DeviceKindSystem {
		return ferrors.ErrNotImplemented
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("%w: enumerate portaudio devices: %v", ferrors.ErrDeviceOpenFailed, err)
	}
	var idx int
	if _, err := fmt.Sscanf(primary.ID, "%d", &idx); err != nil || idx < 0 || idx >= len(devices) {
		return ferrors.ErrDeviceNotFound
	}
	info := devices[idx]
	mono := info.MaxInputChannels < 2

	b.source = newCaptureSource(*primary, int(info.DefaultSampleRate))
	inputChannels := 2
	if mono {
		inputChannels = 1
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: inputChannels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      info.DefaultSampleRate,
		FramesPerBuffer: 480,
	}

	var stream *portaudio.Stream
	if mono {
		stream, err = portaudio.OpenStream(params, b.onMonoAudio)
	} else {
		stream, err = portaudio.OpenStream(params, b.onStereoAudio)
	}
	if err != nil {
		return fmt.Errorf("%w: open portaudio stream: %v", ferrors.ErrDeviceOpenFailed, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start portaudio stream: %v", ferrors.ErrDeviceOpenFailed, err)
	}
	b.stream = stream
	logger.Info(logger.CategoryAudio, "started reference capture source %s", primary.Name)
	return nil
}

func (b *ReferenceBackend) onStereoAudio(in []float32) {
	b.publish(in)
}

func (b *ReferenceBackend) onMonoAudio(in []float32) {
	b.publish(MonoToStereo(in))
}

func (b *ReferenceBackend) publish(stereo []float32) {
	if b.source == nil {
		return
	}
	resampled := b.source.resampler.Process(stereo)
	if len(resampled) > 0 {
		b.queue.push(StreamSamples{Samples: resampled, SourceRate: MixerSampleRate, IsLoopback: false})
	}
}

func (b *ReferenceBackend) StopCapture() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return nil
	}
	err := b.stream.Stop()
	b.stream.Close()
	b.stream = nil
	b.source = nil
	return err
}

func (b *ReferenceBackend) TryRecv() (StreamSamples, bool) { return b.queue.tryRecv() }
func (b *ReferenceBackend) SampleRate() int                { return MixerSampleRate }
