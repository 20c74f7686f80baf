// Package visual turns mixed 48kHz audio into waveform and spectrogram
// payloads for the frontend, per FlowSTT's visualization processor.
package visual

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// MaxWaveformPoints bounds the peak-downsampled waveform per batch.
const MaxWaveformPoints = 128

// fftWindowSize is the internal FFT buffer length; a column is emitted
// each time it fills.
const fftWindowSize = 512

// SpectrogramBins is the number of log-spaced frequency bins per column.
const SpectrogramBins = 256

const (
	spectrogramMinHz = 20.0
	spectrogramMaxHz = 24000.0
	mixerRate        = 48000
)

// RGB is one color-mapped magnitude sample.
type RGB struct {
	R, G, B byte
}

// SpectrogramColumn is one FFT frame's log-binned, color-mapped magnitudes.
type SpectrogramColumn struct {
	Bins [SpectrogramBins]RGB
}

// Payload is one visualization batch. Spectrogram is nil for a
// waveform-only batch (the internal FFT window has not yet filled).
type Payload struct {
	Waveform    []float32
	Spectrogram *SpectrogramColumn
}

// Processor accumulates mono-mixed samples into fixed-size FFT windows and
// produces a Payload per incoming batch.
type Processor struct {
	fftBuf    []float64
	fftFilled int
	binEdges  [SpectrogramBins + 1]float64
}

// NewProcessor builds a Processor with precomputed log-spaced bin edges.
func NewProcessor() *Processor {
	p := &Processor{fftBuf: make([]float64, fftWindowSize)}
	logMin := math.Log2(spectrogramMinHz)
	logMax := math.Log2(spectrogramMaxHz)
	step := (logMax - logMin) / float64(SpectrogramBins)
	for i := range p.binEdges {
		p.binEdges[i] = math.Exp2(logMin + step*float64(i))
	}
	return p
}

// Process consumes one batch of mono-mixed float32 samples (downmixed from
// the mixer's stereo output by the caller) and returns a Payload.
func (p *Processor) Process(mono []float32) Payload {
	payload := Payload{Waveform: downsamplePeaks(mono, MaxWaveformPoints)}

	for _, s := range mono {
		p.fftBuf[p.fftFilled] = float64(s)
		p.fftFilled++
		if p.fftFilled == fftWindowSize {
			payload.Spectrogram = p.computeColumn(p.fftBuf)
			p.fftFilled = 0
		}
	}
	return payload
}

// downsamplePeaks reduces samples to at most maxPoints by taking the
// maximum-magnitude sample within each bucket, preserving transient peaks
// that averaging would smear.
func downsamplePeaks(samples []float32, maxPoints int) []float32 {
	if len(samples) <= maxPoints {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	bucketSize := len(samples) / maxPoints
	out := make([]float32, 0, maxPoints)
	for i := 0; i < maxPoints; i++ {
		start := i * bucketSize
		end := start + bucketSize
		if i == maxPoints-1 {
			end = len(samples)
		}
		var peak float32
		for _, v := range samples[start:end] {
			if a := float32(math.Abs(float64(v))); a > peak {
				peak = a
			}
		}
		out = append(out, peak)
	}
	return out
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func (p *Processor) computeColumn(frame []float64) *SpectrogramColumn {
	win := hannWindow(len(frame))
	windowed := make([]float64, len(frame))
	for i, v := range frame {
		windowed[i] = v * win[i]
	}

	spectrum := fft.FFTReal(windowed)
	half := len(spectrum) / 2
	magnitudes := make([]float64, half)
	for i := 0; i < half; i++ {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	col := &SpectrogramColumn{}
	binWidthHz := float64(mixerRate) / float64(len(frame))
	for b := 0; b < SpectrogramBins; b++ {
		loHz := p.binEdges[b]
		hiHz := p.binEdges[b+1]
		loIdx := int(loHz / binWidthHz)
		hiIdx := int(hiHz / binWidthHz)
		if hiIdx <= loIdx {
			hiIdx = loIdx + 1
		}
		if hiIdx > len(magnitudes) {
			hiIdx = len(magnitudes)
		}
		var sum float64
		var count int
		for i := loIdx; i < hiIdx; i++ {
			sum += magnitudes[i]
			count++
		}
		var mag float64
		if count > 0 {
			mag = sum / float64(count)
		}
		col.Bins[b] = colorMap(mag)
	}
	return col
}

// colorMap maps a magnitude to the fixed dark-blue -> cyan -> green ->
// yellow -> red ramp, normalized against a fixed reference ceiling rather
// than a per-column max so colors are comparable across columns.
func colorMap(magnitude float64) RGB {
	const ceiling = 40.0
	t := magnitude / ceiling
	if t > 1 {
		t = 1
	}
	if t < 0 {
		t = 0
	}

	stops := []RGB{
		{0, 0, 139},   // dark blue
		{0, 255, 255}, // cyan
		{0, 255, 0},   // green
		{255, 255, 0}, // yellow
		{255, 0, 0},   // red
	}
	segments := float64(len(stops) - 1)
	pos := t * segments
	idx := int(pos)
	if idx >= len(stops)-1 {
		return stops[len(stops)-1]
	}
	frac := pos - float64(idx)
	a, b := stops[idx], stops[idx+1]
	return RGB{
		R: lerpByte(a.R, b.R, frac),
		G: lerpByte(a.G, b.G, frac),
		B: lerpByte(a.B, b.B, frac),
	}
}

func lerpByte(a, b byte, t float64) byte {
	return byte(float64(a) + t*(float64(b)-float64(a)))
}
