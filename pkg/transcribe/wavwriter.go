package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV encodes mono float32 samples as 16-bit PCM WAV at sampleRate,
// grounded on the pack's go-audio/wav encoder usage rather than a
// hand-rolled RIFF writer.
func writeWAV(dir string, samples []float32, sampleRate int) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create recordings dir: %w", err)
	}

	name := nextSegmentName(time.Now())
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create wav file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	intSamples := make([]int, len(samples))
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		intSamples[i] = int(v)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:   intSamples,
	}
	if err := enc.Write(buf); err != nil {
		return "", fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("close wav encoder: %w", err)
	}

	return path, nil
}

var (
	segNameMu     sync.Mutex
	segNameSecond int64
	segNameSeq    int
)

// nextSegmentName formats the on-disk segment filename as
// segment-YYYYMMDD-HHMMSS-NNN.wav: a wall-clock timestamp plus a
// per-second sequence counter, so multiple segments finalized within the
// same second still sort uniquely by capture order.
func nextSegmentName(now time.Time) string {
	segNameMu.Lock()
	defer segNameMu.Unlock()

	sec := now.Unix()
	if sec != segNameSecond {
		segNameSecond = sec
		segNameSeq = 0
	}
	segNameSeq++

	return fmt.Sprintf("segment-%s-%03d.wav", now.Format("20060102-150405"), segNameSeq)
}
