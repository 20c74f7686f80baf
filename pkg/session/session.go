// Package session wires FlowSTT's audio backend, mixer, detector, ring
// buffer, transcribe controller, transcription worker, and hotkey backend
// into the single external-interface surface the GUI/caller drives.
package session

import (
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/jeff-barlow-spady/ramble/config"
	"github.com/jeff-barlow-spady/ramble/pkg/audio"
	"github.com/jeff-barlow-spady/ramble/pkg/detect"
	"github.com/jeff-barlow-spady/ramble/pkg/ferrors"
	"github.com/jeff-barlow-spady/ramble/pkg/hotkey"
	"github.com/jeff-barlow-spady/ramble/pkg/logger"
	"github.com/jeff-barlow-spady/ramble/pkg/ring"
	"github.com/jeff-barlow-spady/ramble/pkg/transcribe"
	"github.com/jeff-barlow-spady/ramble/pkg/visual"
)

// Event is one item on the Session.Events() channel, toward the GUI.
type Event struct {
	Kind       string
	Text       string
	Err        error
	Capturing  bool
	DurationMS int64
	Payload    visual.Payload
}

// PttStatus reports the hotkey backend's observable state.
type PttStatus struct {
	Key       hotkey.KeyCode
	IsActive  bool
	Available bool
	Error     error
}

const (
	audioLoopInterval = 5 * time.Millisecond
	ringCapacity      = ring.DefaultCapacity
	workingSampleRate = 16000
)

// Session owns every FlowSTT subsystem and exposes the §6 operation set.
// The GUI/caller issues commands only through Session; it never touches
// audio data directly.
type Session struct {
	backend    audio.Backend
	mixer      *audio.Mixer
	detector   *detect.Detector
	visualizer *visual.Processor
	ring       *ring.Buffer
	controller *transcribe.Controller
	worker     *transcribe.Worker
	hotkeyBE   hotkey.Backend

	downsampler *audio.Resampler // 48kHz stereo -> 16kHz mono for the ring

	events chan Event
	stop   chan struct{}
	done   chan struct{}

	pttActive     atomic.Bool
	capturing     atomic.Bool
	pttAvailable  atomic.Bool
	activeSources atomic.Int32

	cfg *config.Config
}

// New builds a Session from the given configuration. It does not start
// capture; call AppReady to begin the audio loop and worker.
func New(cfg *config.Config) *Session {
	s := &Session{
		backend:     audio.NewBackend(),
		mixer:       audio.NewMixer(audio.Params{AECEnabled: cfg.AECEnabled, RecordingMode: cfg.RecordingMode.ToAudio()}),
		detector:    detect.New(detect.Params{VoicedThresholdDB: cfg.VoicedThresholdDB, WhisperThresholdDB: cfg.WhisperThresholdDB, VoicedOnsetMS: cfg.VoicedOnsetMS, WhisperOnsetMS: cfg.WhisperOnsetMS, HoldMS: cfg.HoldMS}),
		visualizer:  visual.NewProcessor(),
		ring:        ring.New(ringCapacity),
		downsampler: audio.NewResampler(audio.MixerSampleRate, workingSampleRate, 1),
		hotkeyBE:    hotkey.New(),
		events:      make(chan Event, 64),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		cfg:         cfg,
	}

	transcribeParams := transcribe.Params{
		Mode:                  automaticOrPTT(cfg.TranscriptionMode),
		Enabled:               true,
		VADLookbackMS:         cfg.VADLookbackMS,
		PTTLookbackMS:         cfg.PTTLookbackMS,
		OverflowSplitFraction: cfg.OverflowSplitFraction,
	}
	s.controller = transcribe.New(s.ring, cfg.RecordingsDir, workingSampleRate, transcribeParams)
	s.worker = transcribe.NewWorker(s.controller, cfg.ModelPath)

	return s
}

func automaticOrPTT(m config.TranscriptionMode) transcribe.Mode {
	if m == config.TranscriptionModePushToTalk {
		return transcribe.ModePushToTalk
	}
	return transcribe.ModeAutomatic
}

// Events returns the session's outbound event channel.
func (s *Session) Events() <-chan Event { return s.events }

// AppReady starts the audio loop, transcription worker, and hotkey
// backend, per the lifecycle signal in SPEC_FULL §6.
func (s *Session) AppReady() error {
	key, err := hotkey.ParseKeyCode(s.cfg.PTTKey)
	if err != nil {
		key = hotkey.KeyRightControl
	}
	if err := s.hotkeyBE.Start(key); err != nil {
		if errors.Is(err, ferrors.ErrNotImplemented) || errors.Is(err, hotkey.ErrPermissionRequired) {
			s.pttAvailable.Store(false)
			logger.Warning(logger.CategorySystem, "hotkey backend unavailable: %v", err)
		} else {
			return err
		}
	} else {
		s.pttAvailable.Store(true)
	}

	s.worker.Start()
	go s.audioLoop()
	return nil
}

// AppDisconnect stops capture and tears down the audio loop and worker.
func (s *Session) AppDisconnect() error {
	close(s.stop)
	<-s.done
	s.worker.Stop()
	s.hotkeyBE.Stop()
	return s.backend.StopCapture()
}

func (s *Session) audioLoop() {
	defer close(s.done)
	ticker := time.NewTicker(audioLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.pollHotkey()
			s.drainCapture()
		}
	}
}

func (s *Session) pollHotkey() {
	for {
		ev, ok := s.hotkeyBE.TryRecv()
		if !ok {
			return
		}
		switch ev.Kind {
		case hotkey.EventKeyDown:
			s.pttActive.Store(true)
			s.controller.OnPTTPressed()
			s.emit(Event{Kind: "ptt-pressed"})
		case hotkey.EventKeyUp:
			s.pttActive.Store(false)
			s.controller.OnPTTReleased()
			s.emit(Event{Kind: "ptt-released"})
		}
	}
}

func (s *Session) drainCapture() {
	for {
		samples, ok := s.backend.TryRecv()
		if !ok {
			break
		}
		s.mixer.Feed(samples)
	}

	mixed := s.mixer.ProcessAvailable()
	if len(mixed) == 0 {
		return
	}

	mono := audio.StereoToMono(mixed)
	working := s.downsampler.Process(mono)
	if len(working) == 0 {
		return
	}

	s.ring.Write(working)
	s.controller.CheckOverflow()

	payload := s.visualizer.Process(mono)
	s.emit(Event{Kind: "visualization-data", Payload: payload})

	now := time.Now()
	const detectFrameSamples = 160 // 10ms @ 16kHz
	for i := 0; i+detectFrameSamples <= len(working); i += detectFrameSamples {
		frame := working[i : i+detectFrameSamples]
		if ev, fired := s.detector.Process(frame, now); fired {
			s.handleDetectorEvent(ev)
		}
	}

	s.drainWorkerEvents()
}

func (s *Session) handleDetectorEvent(ev detect.Event) {
	switch ev.Kind {
	case "speech-started":
		s.controller.OnSpeechStarted()
		s.emit(Event{Kind: "speech-started"})
	case "speech-ended":
		s.controller.OnSpeechEnded()
		s.emit(Event{Kind: "speech-ended", DurationMS: ev.DurationMS})
	}
}

func (s *Session) drainWorkerEvents() {
	for {
		select {
		case ev, ok := <-s.worker.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case "transcription-complete":
				s.emit(Event{Kind: "transcription-complete", Text: ev.Text})
			case "transcription-error":
				s.emit(Event{Kind: "transcription-error", Err: ev.Err})
			}
		default:
			return
		}
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		logger.Warning(logger.CategorySystem, "event channel full, dropping %s", ev.Kind)
	}
}

// ListAllSources enumerates input and system-audio devices across both
// device kinds.
func (s *Session) ListAllSources() ([]audio.Device, error) {
	inputs, err := s.backend.ListInputDevices()
	if err != nil {
		return nil, err
	}
	systems, err := s.backend.ListSystemDevices()
	if err != nil {
		return nil, err
	}
	return append(inputs, systems...), nil
}

// SetSources reconfigures capture sources.
func (s *Session) SetSources(primary, secondary *audio.Device) error {
	if err := s.backend.StopCapture(); err != nil {
		logger.Warning(logger.CategoryAudio, "stop capture before reconfigure: %v", err)
	}
	if err := s.backend.StartCaptureSources(primary, secondary); err != nil {
		s.activeSources.Store(0)
		s.capturing.Store(false)
		s.emit(Event{Kind: "capture-state-changed", Capturing: false, Err: err})
		return err
	}

	var count int32
	if primary != nil {
		count++
	}
	if secondary != nil {
		count++
	}
	s.activeSources.Store(count)

	s.capturing.Store(true)
	s.emit(Event{Kind: "capture-state-changed", Capturing: true})
	return nil
}

// SetTranscribeEnabled enables or disables the transcribe controller.
func (s *Session) SetTranscribeEnabled(enabled bool) error {
	p := s.controller.Params()
	p.Enabled = enabled
	return s.controller.SetParams(p)
}

// SetRecordingMode switches Mixed/EchoCancel. EchoCancel requires two
// active sources; SetSources must be called with both non-nil first.
func (s *Session) SetRecordingMode(mode audio.RecordingMode) error {
	if mode == audio.RecordingModeEchoCancel && s.activeSources.Load() < 2 {
		return ferrors.ErrInvalidState
	}
	s.cfg.RecordingMode = config.RecordingModeFromAudio(mode)
	s.mixer.SetParams(audio.Params{AECEnabled: s.cfg.AECEnabled, RecordingMode: mode})
	return nil
}

// SetAECEnabled toggles AEC on the mixer.
func (s *Session) SetAECEnabled(enabled bool) {
	s.cfg.AECEnabled = enabled
	s.mixer.SetParams(audio.Params{AECEnabled: enabled, RecordingMode: s.cfg.RecordingMode.ToAudio()})
}

// SetTranscriptionMode switches Automatic/PushToTalk; rejected while
// transcribe is active.
func (s *Session) SetTranscriptionMode(mode transcribe.Mode) error {
	p := s.controller.Params()
	p.Mode = mode
	return s.controller.SetParams(p)
}

// SetPTTKey restarts the hotkey backend with a new key.
func (s *Session) SetPTTKey(key hotkey.KeyCode) error {
	_ = s.hotkeyBE.Stop()
	if err := s.hotkeyBE.Start(key); err != nil {
		s.pttAvailable.Store(false)
		return err
	}
	s.pttAvailable.Store(true)
	return nil
}

// GetPTTStatus reports the hotkey backend's current observable state.
func (s *Session) GetPTTStatus() PttStatus {
	return PttStatus{IsActive: s.pttActive.Load(), Available: s.pttAvailable.Load()}
}

// CheckModelStatus reports whether the configured Whisper model file
// exists on disk.
func (s *Session) CheckModelStatus() (bool, string) {
	if s.cfg.ModelPath == "" {
		return false, ""
	}
	_, err := os.Stat(s.cfg.ModelPath)
	return err == nil, s.cfg.ModelPath
}

