//go:build windows

package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/jeff-barlow-spady/ramble/pkg/ferrors"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// windowsBackend captures via miniaudio's WASAPI backend. Capture-class
// devices map to MMDevice capture endpoints in shared mode; system audio
// uses miniaudio's dedicated loopback device type over a render endpoint,
// which wraps WASAPI loopback mode. Each device's audio thread runs with
// COM implicitly initialized (MTA) by miniaudio, matching the spec's
// per-thread-MTA requirement without a manual CoInitializeEx call.
type windowsBackend struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	queue   *streamQueue
	sources []*captureSource
	devices []*malgo.Device
}

func newPlatformBackend() Backend {
	return &windowsBackend{queue: newStreamQueue()}
}

func (b *windowsBackend) ensureContext() error {
	if b.ctx != nil {
		return nil
	}
	ctx, err := malgo.InitContext([]malgo.Backend{malgo.BackendWasapi}, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init audio context: %v", ferrors.ErrDeviceOpenFailed, err)
	}
	b.ctx = ctx
	return nil
}

func (b *windowsBackend) ListInputDevices() ([]Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureContext(); err != nil {
		return nil, err
	}
	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate capture devices: %v", ferrors.ErrDeviceOpenFailed, err)
	}
	var out []Device
	for _, info := range infos {
		out = append(out, Device{ID: info.ID.String(), Name: info.Name(), Kind: DeviceKindInput})
	}
	return out, nil
}

func (b *windowsBackend) ListSystemDevices() ([]Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureContext(); err != nil {
		return nil, err
	}
	infos, err := b.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate render endpoints: %v", ferrors.ErrDeviceOpenFailed, err)
	}
	var out []Device
	for _, info := range infos {
		out = append(out, Device{ID: info.ID.String(), Name: info.Name(), Kind: DeviceKindSystem})
	}
	return out, nil
}

func (b *windowsBackend) StartCaptureSources(primary, secondary *Device) error {
	if err := validateSourceKinds(primary, secondary, true); err != nil {
		return err
	}
	if primary == nil && secondary == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureContext(); err != nil {
		return err
	}

	for _, dev := range []*Device{primary, secondary} {
		if dev == nil {
			continue
		}
		if err := b.openSource(*dev); err != nil {
			b.stopLocked()
			return err
		}
	}
	return nil
}

func (b *windowsBackend) openSource(dev Device) error {
	deviceID, err := malgo.ParseDeviceID(dev.ID)
	if err != nil {
		return fmt.Errorf("%w: parse device id %q: %v", ferrors.ErrDeviceNotFound, dev.ID, err)
	}

	deviceType := malgo.Capture
	if dev.Kind == DeviceKindSystem {
		deviceType = malgo.Loopback
	}

	cfg := malgo.DefaultDeviceConfig(deviceType)
	if dev.Kind == DeviceKindSystem {
		cfg.Playback.Format = malgo.FormatF32
		cfg.Playback.Channels = 2
		cfg.Playback.DeviceID = deviceID.Pointer()
	} else {
		cfg.Capture.Format = malgo.FormatF32
		cfg.Capture.Channels = 2
		cfg.Capture.DeviceID = deviceID.Pointer()
	}
	cfg.SampleRate = 0

	source := newCaptureSource(dev, MixerSampleRate)

	callback := func(_, input []byte, framecount uint32) {
		select {
		case <-source.stop:
			return
		default:
		}
		samples := bytesToFloat32LE(input)
		if len(samples) == 0 {
			return
		}
		resampled := source.resampler.Process(samples)
		if len(resampled) > 0 {
			b.queue.push(StreamSamples{Samples: resampled, SourceRate: MixerSampleRate, IsLoopback: dev.Kind == DeviceKindSystem})
		}
	}

	device, err := malgo.InitDevice(b.ctx.Context, cfg, malgo.DeviceCallbacks{Data: callback})
	if err != nil {
		return fmt.Errorf("%w: init device %s: %v", ferrors.ErrDeviceOpenFailed, dev.Name, err)
	}
	source.resampler.SetRates(int(device.SampleRate()), MixerSampleRate)

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("%w: start device %s: %v", ferrors.ErrDeviceOpenFailed, dev.Name, err)
	}

	go func() {
		<-source.stop
		device.Stop()
		device.Uninit()
		close(source.done)
	}()

	b.sources = append(b.sources, source)
	b.devices = append(b.devices, device)
	logger.Info(logger.CategoryAudio, "started windows capture source %s (%s)", dev.Name, dev.Kind)
	return nil
}

func (b *windowsBackend) StopCapture() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked()
}

func (b *windowsBackend) stopLocked() error {
	if len(b.sources) == 0 {
		return nil
	}
	for _, s := range b.sources {
		select {
		case <-s.stop:
		default:
			close(s.stop)
		}
	}
	err := joinAll(b.sources)
	b.sources = nil
	b.devices = nil
	return err
}

func (b *windowsBackend) TryRecv() (StreamSamples, bool) { return b.queue.tryRecv() }
func (b *windowsBackend) SampleRate() int                { return MixerSampleRate }
