package visual

import (
	"math"
	"testing"
)

func sine(freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/mixerRate))
	}
	return out
}

func TestProcessWaveformOnlyBelowFFTWindow(t *testing.T) {
	p := NewProcessor()
	payload := p.Process(sine(440, 100))
	if payload.Spectrogram != nil {
		t.Fatalf("expected nil spectrogram below fft window size")
	}
	if len(payload.Waveform) != 100 {
		t.Fatalf("expected passthrough waveform of 100 points, got %d", len(payload.Waveform))
	}
}

func TestProcessEmitsSpectrogramOnWindowFill(t *testing.T) {
	p := NewProcessor()
	payload := p.Process(sine(440, fftWindowSize))
	if payload.Spectrogram == nil {
		t.Fatalf("expected spectrogram once fft window fills")
	}
}

func TestWaveformDownsampledToMaxPoints(t *testing.T) {
	p := NewProcessor()
	payload := p.Process(sine(440, 10000))
	if len(payload.Waveform) != MaxWaveformPoints {
		t.Fatalf("expected %d waveform points, got %d", MaxWaveformPoints, len(payload.Waveform))
	}
}

func TestDownsamplePeaksPreservesTransient(t *testing.T) {
	samples := make([]float32, 1000)
	samples[500] = 0.9
	out := downsamplePeaks(samples, 10)
	var maxV float32
	for _, v := range out {
		if v > maxV {
			maxV = v
		}
	}
	if maxV < 0.8 {
		t.Fatalf("expected peak near 0.9 preserved, got max %v", maxV)
	}
}

func TestColorMapEndpointsAreRampEnds(t *testing.T) {
	low := colorMap(0)
	high := colorMap(1000)
	if low.R != 0 || low.G != 0 || low.B != 139 {
		t.Fatalf("expected dark blue at zero magnitude, got %+v", low)
	}
	if high.R != 255 || high.G != 0 || high.B != 0 {
		t.Fatalf("expected red at saturating magnitude, got %+v", high)
	}
}

func TestFFTWindowAccumulatesAcrossCalls(t *testing.T) {
	p := NewProcessor()
	p.Process(sine(440, fftWindowSize/2))
	payload := p.Process(sine(440, fftWindowSize/2))
	if payload.Spectrogram == nil {
		t.Fatalf("expected spectrogram once accumulated samples cross the window size")
	}
}
