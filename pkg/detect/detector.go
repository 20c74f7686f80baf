// Package detect implements FlowSTT's dual-mode (voiced/whisper) speech
// classifier and the onset/hold hysteresis that turns per-frame classes into
// speech-started/speech-ended events.
package detect

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/jeff-barlow-spady/ramble/pkg/logger"
)

// Class is the per-frame speech classification.
type Class int

const (
	ClassNone Class = iota
	ClassVoiced
	ClassWhisper
)

// State is the hysteresis state machine's current phase.
type State int

const (
	StateSilence State = iota
	StateOnset
	StateSpeech
	StateHolding
)

// Params is the detector's atomically-swappable threshold set, grounded on
// SPEC_FULL §4.5's configurable-parameters table.
type Params struct {
	VoicedThresholdDB  float64
	WhisperThresholdDB float64
	VoicedOnsetMS      int
	WhisperOnsetMS     int
	HoldMS             int
}

// DefaultParams matches config.DefaultConfig's detector fields.
func DefaultParams() Params {
	return Params{
		VoicedThresholdDB:  -40,
		WhisperThresholdDB: -50,
		VoicedOnsetMS:      100,
		WhisperOnsetMS:     150,
		HoldMS:             300,
	}
}

// Event is emitted on a Silence<->Speech transition.
type Event struct {
	Kind       string // "speech-started" or "speech-ended"
	Mode       Class
	DurationMS int64
}

const (
	transientZCRThreshold      = 0.40
	transientCentroidThreshold = 5500.0

	voicedZCRMin = 0.01
	voicedZCRMax = 0.20
	voicedCentroidMin = 250.0
	voicedCentroidMax = 4000.0

	whisperZCRMin = 0.10
	whisperZCRMax = 0.40
	whisperCentroidMin = 400.0
	whisperCentroidMax = 6000.0

	detectorSampleRate = 16000
	eps                = 1e-9
)

// Detector runs the per-frame feature extraction and state machine. Owned
// exclusively by the audio loop goroutine; Params are read via an atomic
// snapshot so the GUI/session layer can update thresholds without a restart.
type Detector struct {
	params atomic.Pointer[Params]

	state         State
	onsetMode     Class
	onsetStart    time.Time
	speechStart   time.Time
	holdStart     time.Time
}

// New builds a Detector with the given initial parameters.
func New(p Params) *Detector {
	d := &Detector{}
	d.params.Store(&p)
	d.state = StateSilence
	return d
}

// SetParams atomically replaces the active threshold set.
func (d *Detector) SetParams(p Params) { d.params.Store(&p) }

// classifyWithParams applies the precedence rules from SPEC_FULL §4.5 using
// the live threshold snapshot.
func (d *Detector) classifyWithParams(frame []float32) Class {
	rmsDB, zcr, centroidHz := d.features(frame)
	params := d.params.Load()

	if zcr > transientZCRThreshold && centroidHz > transientCentroidThreshold {
		return ClassNone
	}
	if rmsDB > params.VoicedThresholdDB && zcr >= voicedZCRMin && zcr <= voicedZCRMax &&
		centroidHz >= voicedCentroidMin && centroidHz <= voicedCentroidMax {
		return ClassVoiced
	}
	if rmsDB > params.WhisperThresholdDB && zcr >= whisperZCRMin && zcr <= whisperZCRMax &&
		centroidHz >= whisperCentroidMin && centroidHz <= whisperCentroidMax {
		return ClassWhisper
	}
	return ClassNone
}

func (d *Detector) features(frame []float32) (rmsDB, zcr, centroidHz float64) {
	n := len(frame)
	if n == 0 {
		return 0, 0, 0
	}
	var sumSq, sumAbs, sumAbsDiff float64
	var signChanges int
	for i, v := range frame {
		fv := float64(v)
		sumSq += fv * fv
		sumAbs += math.Abs(fv)
		if i > 0 {
			prev := float64(frame[i-1])
			if (prev < 0 && fv > 0) || (prev > 0 && fv < 0) {
				signChanges++
			}
			sumAbsDiff += math.Abs(fv - prev)
		}
	}
	rms := math.Sqrt(sumSq / float64(n))
	rmsDB = 20 * math.Log10(rms+eps)
	zcr = float64(signChanges) / float64(n)
	meanAbs := sumAbs / float64(n)
	if meanAbs > 0 {
		centroidHz = detectorSampleRate * (sumAbsDiff / float64(n)) / (2*meanAbs + eps)
	}
	return
}

// Process feeds one ~10ms mono 16kHz frame through the classifier and state
// machine, returning an Event if a Silence<->Speech transition fired.
func (d *Detector) Process(frame []float32, now time.Time) (Event, bool) {
	class := d.classifyWithParams(frame)
	params := d.params.Load()

	switch d.state {
	case StateSilence:
		if class != ClassNone {
			d.state = StateOnset
			d.onsetMode = class
			d.onsetStart = now
		}

	case StateOnset:
		if class == ClassNone {
			d.state = StateSilence
			return Event{}, false
		}
		onsetWindow := time.Duration(params.VoicedOnsetMS) * time.Millisecond
		if d.onsetMode == ClassWhisper {
			onsetWindow = time.Duration(params.WhisperOnsetMS) * time.Millisecond
		}
		if now.Sub(d.onsetStart) >= onsetWindow {
			d.state = StateSpeech
			d.speechStart = now
			logger.Debug(logger.CategoryDetector, "speech-started mode=%v", d.onsetMode)
			return Event{Kind: "speech-started", Mode: d.onsetMode}, true
		}

	case StateSpeech:
		if class == ClassNone {
			d.state = StateHolding
			d.holdStart = now
		}
		// mode flip while in Speech is allowed without interruption

	case StateHolding:
		if class != ClassNone {
			d.state = StateSpeech
			return Event{}, false
		}
		holdWindow := time.Duration(params.HoldMS) * time.Millisecond
		if now.Sub(d.holdStart) >= holdWindow {
			d.state = StateSilence
			durationMS := now.Sub(d.speechStart).Milliseconds()
			logger.Debug(logger.CategoryDetector, "speech-ended duration_ms=%d", durationMS)
			return Event{Kind: "speech-ended", DurationMS: durationMS}, true
		}
	}

	return Event{}, false
}

// CurrentState reports the detector's hysteresis phase, used by the
// visualization processor and diagnostics.
func (d *Detector) CurrentState() State { return d.state }
