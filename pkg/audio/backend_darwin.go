//go:build darwin

package audio

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AudioToolbox -framework CoreAudio -framework CoreFoundation

#include <AudioToolbox/AudioToolbox.h>
#include <CoreAudio/CoreAudio.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdlib.h>
#include <string.h>

// flowstt_ring is a small lock-free SPSC float-sample ring the HAL render callback
// writes into and the Go side drains on its own goroutine, mirroring the
// teacher-pack's AudioRingBuffer helper for the HAL AudioUnit path.
typedef struct {
	float *buf;
	int    capFrames;
	int    channels;
	volatile int writePos;
	volatile int readPos;
} flowstt_ring;

static flowstt_ring *flowstt_ring_new(int capFrames, int channels) {
	flowstt_ring *r = (flowstt_ring *)malloc(sizeof(flowstt_ring));
	r->buf = (float *)calloc((size_t)capFrames * channels, sizeof(float));
	r->capFrames = capFrames;
	r->channels = channels;
	r->writePos = 0;
	r->readPos = 0;
	return r;
}

static void flowstt_ring_free(flowstt_ring *r) {
	if (!r) return;
	free(r->buf);
	free(r);
}

static void flowstt_ring_write(flowstt_ring *r, const float *frames, int nFrames) {
	for (int i = 0; i < nFrames; i++) {
		int w = r->writePos;
		int next = (w + 1) % r->capFrames;
		if (next == r->readPos) {
			// full: drop oldest
			r->readPos = (r->readPos + 1) % r->capFrames;
		}
		memcpy(r->buf + (size_t)w * r->channels, frames + (size_t)i * r->channels, sizeof(float) * r->channels);
		r->writePos = next;
	}
}

static int flowstt_ring_read(flowstt_ring *r, float *out, int maxFrames) {
	int n = 0;
	while (n < maxFrames && r->readPos != r->writePos) {
		memcpy(out + (size_t)n * r->channels, r->buf + (size_t)r->readPos * r->channels, sizeof(float) * r->channels);
		r->readPos = (r->readPos + 1) % r->capFrames;
		n++;
	}
	return n;
}

// flowstt_ctx bundles the unit and its ring so the render callback (which
// only receives a single opaque refcon pointer) can reach both.
typedef struct {
	AudioUnit unit;
	flowstt_ring *ring;
} flowstt_ctx;

static OSStatus flowstt_input_callback(
	void *inRefCon,
	AudioUnitRenderActionFlags *ioActionFlags,
	const AudioTimeStamp *inTimeStamp,
	UInt32 inBusNumber,
	UInt32 inNumberFrames,
	AudioBufferList *ioData)
{
	flowstt_ctx *ctx = (flowstt_ctx *)inRefCon;
	static float samples[4096 * 2];
	if (inNumberFrames > 4096) inNumberFrames = 4096;

	AudioBufferList bufferList;
	bufferList.mNumberBuffers = 1;
	bufferList.mBuffers[0].mNumberChannels = 2;
	bufferList.mBuffers[0].mDataByteSize = inNumberFrames * 2 * sizeof(float);
	bufferList.mBuffers[0].mData = samples;

	OSStatus status = AudioUnitRender(ctx->unit, ioActionFlags, inTimeStamp, inBusNumber, inNumberFrames, &bufferList);
	if (status == noErr) {
		flowstt_ring_write(ctx->ring, samples, (int)inNumberFrames);
	}
	return status;
}

static flowstt_ctx *flowstt_open_input_unit(AudioDeviceID deviceID, flowstt_ring *ring, OSStatus *outStatus) {
	AudioComponentDescription desc;
	desc.componentType = kAudioUnitType_Output;
	desc.componentSubType = kAudioUnitSubType_HALOutput;
	desc.componentManufacturer = kAudioUnitManufacturer_Apple;
	desc.componentFlags = 0;
	desc.componentFlagsMask = 0;

	AudioComponent comp = AudioComponentFindNext(NULL, &desc);
	AudioUnit unit;
	OSStatus status = AudioComponentInstanceNew(comp, &unit);
	if (status != noErr) { *outStatus = status; return NULL; }

	UInt32 enableIO = 1;
	AudioUnitSetProperty(unit, kAudioOutputUnitProperty_EnableIO, kAudioUnitScope_Input, 1, &enableIO, sizeof(enableIO));
	UInt32 disableIO = 0;
	AudioUnitSetProperty(unit, kAudioOutputUnitProperty_EnableIO, kAudioUnitScope_Output, 0, &disableIO, sizeof(disableIO));
	AudioUnitSetProperty(unit, kAudioOutputUnitProperty_CurrentDevice, kAudioUnitScope_Global, 0, &deviceID, sizeof(deviceID));

	AudioStreamBasicDescription fmt;
	memset(&fmt, 0, sizeof(fmt));
	fmt.mSampleRate = 48000;
	fmt.mFormatID = kAudioFormatLinearPCM;
	fmt.mFormatFlags = kAudioFormatFlagIsFloat | kAudioFormatFlagIsPacked;
	fmt.mChannelsPerFrame = 2;
	fmt.mBitsPerChannel = 32;
	fmt.mBytesPerFrame = 2 * sizeof(float);
	fmt.mFramesPerPacket = 1;
	fmt.mBytesPerPacket = fmt.mBytesPerFrame;
	AudioUnitSetProperty(unit, kAudioUnitProperty_StreamFormat, kAudioUnitScope_Output, 1, &fmt, sizeof(fmt));

	flowstt_ctx *ctx = (flowstt_ctx *)malloc(sizeof(flowstt_ctx));
	ctx->unit = unit;
	ctx->ring = ring;

	AURenderCallbackStruct cb;
	cb.inputProc = flowstt_input_callback;
	cb.inputProcRefCon = ctx;
	AudioUnitSetProperty(unit, kAudioOutputUnitProperty_SetInputCallback, kAudioUnitScope_Global, 0, &cb, sizeof(cb));

	status = AudioUnitInitialize(unit);
	*outStatus = status;
	if (status != noErr) {
		free(ctx);
		return NULL;
	}
	return ctx;
}

// flowstt_list_device_ids fills ids with up to maxCount AudioDeviceIDs from
// kAudioHardwarePropertyDevices, the same AudioObjectGetPropertyData(Size)
// pair flowstt_open_input_unit's sibling parseAudioDeviceID already uses for
// the default-device selector.
static OSStatus flowstt_list_device_ids(AudioDeviceID *ids, UInt32 maxCount, UInt32 *outCount) {
	AudioObjectPropertyAddress addr;
	addr.mSelector = kAudioHardwarePropertyDevices;
	addr.mScope = kAudioObjectPropertyScopeGlobal;
	addr.mElement = kAudioObjectPropertyElementMaster;

	UInt32 size = 0;
	OSStatus status = AudioObjectGetPropertyDataSize(kAudioObjectSystemObject, &addr, 0, NULL, &size);
	if (status != noErr) {
		*outCount = 0;
		return status;
	}

	UInt32 count = size / (UInt32)sizeof(AudioDeviceID);
	if (count > maxCount) count = maxCount;
	size = count * (UInt32)sizeof(AudioDeviceID);

	status = AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, ids);
	if (status != noErr) {
		*outCount = 0;
		return status;
	}
	*outCount = count;
	return noErr;
}

// flowstt_device_input_channels sums the channel counts of every buffer in
// the device's input-scope stream configuration; zero means the device has
// no input streams (a pure output/system device).
static int flowstt_device_input_channels(AudioDeviceID deviceID) {
	AudioObjectPropertyAddress addr;
	addr.mSelector = kAudioDevicePropertyStreamConfiguration;
	addr.mScope = kAudioDevicePropertyScopeInput;
	addr.mElement = kAudioObjectPropertyElementMaster;

	UInt32 size = 0;
	if (AudioObjectGetPropertyDataSize(deviceID, &addr, 0, NULL, &size) != noErr || size == 0) {
		return 0;
	}

	AudioBufferList *list = (AudioBufferList *)malloc(size);
	OSStatus status = AudioObjectGetPropertyData(deviceID, &addr, 0, NULL, &size, list);
	if (status != noErr) {
		free(list);
		return 0;
	}

	int channels = 0;
	for (UInt32 i = 0; i < list->mNumberBuffers; i++) {
		channels += (int)list->mBuffers[i].mNumberChannels;
	}
	free(list);
	return channels;
}

// flowstt_device_name copies the device's human-readable name (UTF-8) into
// outName, truncating to maxLen.
static OSStatus flowstt_device_name(AudioDeviceID deviceID, char *outName, int maxLen) {
	AudioObjectPropertyAddress addr;
	addr.mSelector = kAudioObjectPropertyName;
	addr.mScope = kAudioObjectPropertyScopeGlobal;
	addr.mElement = kAudioObjectPropertyElementMaster;

	CFStringRef name = NULL;
	UInt32 size = (UInt32)sizeof(CFStringRef);
	OSStatus status = AudioObjectGetPropertyData(deviceID, &addr, 0, NULL, &size, &name);
	if (status != noErr || name == NULL) {
		outName[0] = '\0';
		return status;
	}
	if (!CFStringGetCString(name, outName, maxLen, kCFStringEncodingUTF8)) {
		outName[0] = '\0';
	}
	CFRelease(name);
	return noErr;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/jeff-barlow-spady/ramble/pkg/ferrors"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// darwinBackend uses a HAL-output AudioUnit per input source, configured
// input-enabled/output-disabled on a specific AudioDeviceID, grounded on
// the pack's CoreAudio HAL render-callback idiom (dougsko-js8d's
// pkg/hardware/coreaudio_darwin.go). System audio (Core Audio Taps on
// macOS >=14.2, ScreenCaptureKit on 12.3-14.1) has no equivalent Go
// binding anywhere in the example pack; StartCaptureSources rejects a
// system source with ErrNotImplemented on every macOS version.
type darwinBackend struct {
	mu      sync.Mutex
	sources []*darwinSource
	queue   *streamQueue
}

type darwinSource struct {
	device    Device
	ctx       *C.flowstt_ctx
	ring      *C.flowstt_ring
	stop      chan struct{}
	done      chan struct{}
	resampler *Resampler
}

func newPlatformBackend() Backend {
	return &darwinBackend{queue: newStreamQueue()}
}

func (b *darwinBackend) ListInputDevices() ([]Device, error) {
	return enumerateCoreAudioDevices(true)
}

// ListSystemDevices reports none on every macOS version, since
// coreAudioTapsSupported always returns false: no tap/ScreenCaptureKit
// binding exists in this codebase's dependency tree; see DESIGN.md.
func (b *darwinBackend) ListSystemDevices() ([]Device, error) {
	if !coreAudioTapsSupported() {
		return nil, nil
	}
	return enumerateCoreAudioDevices(false)
}

func (b *darwinBackend) StartCaptureSources(primary, secondary *Device) error {
	if err := validateSourceKinds(primary, secondary, coreAudioTapsSupported()); err != nil {
		return err
	}
	if primary == nil && secondary == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, dev := range []*Device{primary, secondary} {
		if dev == nil {
			continue
		}
		if dev.Kind == DeviceKindSystem {
			// No Core Audio Taps / ScreenCaptureKit binding exists in this
			// tree; macOS system-audio capture is a literal stub above the
			// version gate too, same discipline as the hotkey stubs.
			b.stopLocked()
			return ferrors.ErrNotImplemented
		}
		if err := b.openHALSource(*dev); err != nil {
			b.stopLocked()
			return err
		}
	}
	return nil
}

func (b *darwinBackend) openHALSource(dev Device) error {
	deviceID, err := parseAudioDeviceID(dev.ID)
	if err != nil {
		return fmt.Errorf("%w: parse device id %q: %v", ferrors.ErrDeviceNotFound, dev.ID, err)
	}

	ring := C.flowstt_ring_new(48000, 2)
	var status C.OSStatus
	ctx := C.flowstt_open_input_unit(deviceID, ring, &status)
	if status != C.noErr || ctx == nil {
		C.flowstt_ring_free(ring)
		return fmt.Errorf("%w: open HAL input unit for %s: osstatus %d", ferrors.ErrDeviceOpenFailed, dev.Name, int(status))
	}

	source := &darwinSource{
		device:    dev,
		ctx:       ctx,
		ring:      ring,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		resampler: NewResampler(MixerSampleRate, MixerSampleRate, 2),
	}

	if status := C.AudioOutputUnitStart(ctx.unit); status != C.noErr {
		C.AudioUnitUninitialize(ctx.unit)
		C.flowstt_ring_free(source.ring)
		return fmt.Errorf("%w: start HAL input unit for %s: osstatus %d", ferrors.ErrDeviceOpenFailed, dev.Name, int(status))
	}

	go b.drainLoop(source)

	b.sources = append(b.sources, source)
	logger.Info(logger.CategoryAudio, "started macOS HAL capture source %s", dev.Name)
	return nil
}

// drainLoop polls the C ring buffer at roughly the AEC frame cadence,
// converting and resampling each batch before handing it to the mixer
// queue. Real native-callback delivery happens inside CoreAudio's render
// thread via flowstt_input_callback; this goroutine only ever touches the
// lock-free ring, never the AudioUnit itself.
func (b *darwinBackend) drainLoop(s *darwinSource) {
	defer close(s.done)
	buf := make([]float32, 4096*2)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			C.AudioOutputUnitStop(s.ctx.unit)
			C.AudioUnitUninitialize(s.ctx.unit)
			C.flowstt_ring_free(s.ring)
			return
		case <-ticker.C:
			n := int(C.flowstt_ring_read(s.ring, (*C.float)(unsafe.Pointer(&buf[0])), C.int(len(buf)/2)))
			if n == 0 {
				continue
			}
			samples := s.resampler.Process(buf[:n*2])
			if len(samples) > 0 {
				b.queue.push(StreamSamples{Samples: samples, SourceRate: MixerSampleRate, IsLoopback: s.device.Kind == DeviceKindSystem})
			}
		}
	}
}

func (b *darwinBackend) StopCapture() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked()
}

func (b *darwinBackend) stopLocked() error {
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
	for _, s := range b.sources {
		select {
		case <-s.done:
		case <-time.After(backendShutdownDeadline):
			logger.Error(logger.CategoryAudio, "capture goroutine for %s did not exit within %s, abandoning", s.device.Name, backendShutdownDeadline)
		}
	}
	b.sources = nil
	return nil
}

func (b *darwinBackend) TryRecv() (StreamSamples, bool) { return b.queue.tryRecv() }
func (b *darwinBackend) SampleRate() int                { return MixerSampleRate }

// coreAudioTapsSupported reports whether this machine's macOS version is
// new enough for Core Audio Taps (>=14.2). No version check is implemented;
// this always returns false so ListSystemDevices/StartCaptureSources take
// the ErrNotImplemented path rather than claim a tap capability this tree
// cannot exercise. See DESIGN.md.
func coreAudioTapsSupported() bool {
	return false
}

const maxEnumeratedDevices = 64

// enumerateCoreAudioDevices lists live CoreAudio devices via
// kAudioHardwarePropertyDevices, following the same
// AudioObjectGetPropertyData(Size) idiom parseAudioDeviceID already uses for
// the default-device selector. inputOnly filters to devices exposing at
// least one input-scope stream channel; otherwise it filters to
// output-capable devices, the usual tap target for system audio once
// coreAudioTapsSupported is true.
func enumerateCoreAudioDevices(inputOnly bool) ([]Device, error) {
	var ids [maxEnumeratedDevices]C.AudioDeviceID
	var count C.UInt32
	status := C.flowstt_list_device_ids(&ids[0], C.UInt32(len(ids)), &count)
	if status != C.noErr {
		return nil, fmt.Errorf("%w: enumerate core audio devices: osstatus %d", ferrors.ErrDeviceOpenFailed, int(status))
	}

	var out []Device
	for i := 0; i < int(count); i++ {
		id := ids[i]
		inputChannels := int(C.flowstt_device_input_channels(id))
		isInput := inputChannels > 0
		if isInput != inputOnly {
			continue
		}

		var nameBuf [256]C.char
		if nameStatus := C.flowstt_device_name(id, &nameBuf[0], C.int(len(nameBuf))); nameStatus != C.noErr {
			continue
		}
		name := C.GoString(&nameBuf[0])
		if name == "" {
			continue
		}

		kind := DeviceKindInput
		if !inputOnly {
			kind = DeviceKindSystem
		}
		out = append(out, Device{ID: fmt.Sprintf("%d", uint32(id)), Name: name, Kind: kind})
	}
	return out, nil
}

func parseAudioDeviceID(id string) (C.AudioDeviceID, error) {
	if id == "default" || id == "" {
		var deviceID C.AudioDeviceID
		var size C.UInt32 = C.UInt32(unsafe.Sizeof(deviceID))
		addr := C.AudioObjectPropertyAddress{
			mSelector: C.kAudioHardwarePropertyDefaultInputDevice,
			mScope:    C.kAudioObjectPropertyScopeGlobal,
			mElement:  C.kAudioObjectPropertyElementMaster,
		}
		status := C.AudioObjectGetPropertyData(C.AudioObjectID(C.kAudioObjectSystemObject), &addr, 0, nil, &size, unsafe.Pointer(&deviceID))
		if status != C.noErr {
			return 0, fmt.Errorf("osstatus %d", int(status))
		}
		return deviceID, nil
	}
	var n uint32
	_, err := fmt.Sscanf(id, "%d", &n)
	if err != nil {
		return 0, err
	}
	return C.AudioDeviceID(n), nil
}
