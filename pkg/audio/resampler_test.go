package audio

import "testing"

func TestResamplerIdentity(t *testing.T) {
	r := NewResampler(48000, 48000, 1)
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out := r.Process(in)
	if len(out) != len(in) {
		t.Fatalf("expected identity passthrough length %d, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: expected %v got %v", i, in[i], out[i])
		}
	}
}

func TestResamplerDownsampleLength(t *testing.T) {
	r := NewResampler(48000, 16000, 1)
	in := make([]float32, 4800)
	for i := range in {
		in[i] = float32(i) / 4800
	}
	out := r.Process(in)
	want := len(in) / 3
	if out == nil || abs(len(out)-want) > 2 {
		t.Fatalf("expected ~%d samples downsampled 3:1, got %d", want, len(out))
	}
}

func TestResamplerPreservesStateAcrossCalls(t *testing.T) {
	r1 := NewResampler(48000, 16000, 1)
	in := make([]float32, 9600)
	for i := range in {
		in[i] = float32(i) / 9600
	}
	whole := r1.Process(in)

	r2 := NewResampler(48000, 16000, 1)
	part1 := r2.Process(in[:4800])
	part2 := r2.Process(in[4800:])
	split := append(part1, part2...)

	if abs(len(whole)-len(split)) > 2 {
		t.Fatalf("split call length %d diverges from whole call length %d", len(split), len(whole))
	}
	// Compare the overlapping prefix; stateful interpolation should track
	// closely even though the two runs don't align sample-for-sample.
	n := len(whole)
	if len(split) < n {
		n = len(split)
	}
	for i := 0; i < n-2; i++ {
		if d := float64(whole[i]) - float64(split[i]); d > 0.05 || d < -0.05 {
			t.Fatalf("sample %d diverges beyond tolerance: whole=%v split=%v", i, whole[i], split[i])
		}
	}
}

func TestMonoStereoRoundTrip(t *testing.T) {
	mono := []float32{0.1, -0.2, 0.3}
	stereo := MonoToStereo(mono)
	if len(stereo) != 6 {
		t.Fatalf("expected 6 stereo samples, got %d", len(stereo))
	}
	back := StereoToMono(stereo)
	for i := range mono {
		if back[i] != mono[i] {
			t.Errorf("sample %d: expected %v got %v", i, mono[i], back[i])
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
