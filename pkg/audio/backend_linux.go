//go:build linux

package audio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/jeff-barlow-spady/ramble/pkg/ferrors"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// linuxBackend captures via miniaudio's PipeWire-over-PulseAudio backend.
// Grounded on other_examples' agalue-sherpa-voice-assistant malgo capturer
// for the device-config/callback shape, and on pozitronik-steelclock-go's
// Linux audiovisualizer for the "sink monitor == system-audio source"
// naming convention (reimplemented here as a malgo device-name classifier
// rather than a parallel pw-record subprocess; see DESIGN.md).
type linuxBackend struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	queue   *streamQueue
	sources []*captureSource
	devices []*malgo.Device
}

func newPlatformBackend() Backend {
	return &linuxBackend{queue: newStreamQueue()}
}

func (b *linuxBackend) ensureContext() error {
	if b.ctx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(
		[]malgo.Backend{malgo.BackendPipewire, malgo.BackendPulseaudio, malgo.BackendAlsa},
		malgo.ContextConfig{},
		nil,
	)
	if err != nil {
		return fmt.Errorf("%w: init audio context: %v", ferrors.ErrDeviceOpenFailed, err)
	}
	b.ctx = ctx
	return nil
}

// isMonitorDevice classifies a PipeWire capture-class device as system
// audio when its name carries PulseAudio/PipeWire's monitor-source marker.
func isMonitorDevice(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "monitor of") || strings.Contains(lower, ".monitor")
}

func (b *linuxBackend) listDevices(kind DeviceKind) ([]Device, error) {
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
		monitor := isMonitorDevice(info.Name())
		if kind == DeviceKindSystem && !monitor {
			continue
		}
		if kind == DeviceKindInput && monitor {
			continue
		}
		out = append(out, Device{ID: info.ID.String(), Name: info.Name(), Kind: kind})
	}
	return out, nil
}

func (b *linuxBackend) ListInputDevices() ([]Device, error)  { return b.listDevices(DeviceKindInput) }
func (b *linuxBackend) ListSystemDevices() ([]Device, error) { return b.listDevices(DeviceKindSystem) }

func (b *linuxBackend) StartCaptureSources(primary, secondary *Device) error {
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

func (b *linuxBackend) openSource(dev Device) error {
	deviceID, err := malgo.ParseDeviceID(dev.ID)
	if err != nil {
		return fmt.Errorf("%w: parse device id %q: %v", ferrors.ErrDeviceNotFound, dev.ID, err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 2
	cfg.Capture.DeviceID = deviceID.Pointer()
	cfg.SampleRate = 0 // negotiate native rate, resample ourselves via C1

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
		return fmt.Errorf("%w: init capture device %s: %v", ferrors.ErrDeviceOpenFailed, dev.Name, err)
	}
	source.resampler.SetRates(int(device.SampleRate()), MixerSampleRate)

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("%w: start capture device %s: %v", ferrors.ErrDeviceOpenFailed, dev.Name, err)
	}

	go func() {
		<-source.stop
		device.Stop()
		device.Uninit()
		close(source.done)
	}()

	b.sources = append(b.sources, source)
	b.devices = append(b.devices, device)
	logger.Info(logger.CategoryAudio, "started linux capture source %s (%s)", dev.Name, dev.Kind)
	return nil
}

func (b *linuxBackend) StopCapture() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked()
}

func (b *linuxBackend) stopLocked() error {
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

func (b *linuxBackend) TryRecv() (StreamSamples, bool) { return b.queue.tryRecv() }
func (b *linuxBackend) SampleRate() int                { return MixerSampleRate }

func bytesToFloat32LE(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32frombits(data[i*4 : i*4+4])
	}
	return out
}
