package ring

import (
	"errors"
	"testing"
)

func TestWriteAdvancesPosition(t *testing.T) {
	b := New(100)
	b.Write([]float32{1, 2, 3})
	if b.Position() != 3 {
		t.Fatalf("expected position 3, got %d", b.Position())
	}
}

func TestReadRangeReturnsWrittenSamples(t *testing.T) {
	b := New(100)
	b.Write([]float32{1, 2, 3, 4, 5})

	out, err := b.ReadRange(1, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float32{2, 3, 4}
	for i, v := range want {
		if out[i] != v {
			t.Fatalf("index %d: want %v got %v", i, v, out[i])
		}
	}
}

func TestReadRangeRejectsOverwrittenRange(t *testing.T) {
	b := New(4)
	b.Write([]float32{1, 2, 3, 4, 5, 6}) // wraps once, overwriting 2; oldest available = 2

	_, err := b.ReadRange(0, 2)
	if !errors.Is(err, ErrOverwritten) {
		t.Fatalf("expected ErrOverwritten, got %v", err)
	}

	out, err := b.ReadRange(2, 6)
	if err != nil {
		t.Fatalf("unexpected error reading still-available range: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(out))
	}
}

func TestReadRangeRejectsInvalidRange(t *testing.T) {
	b := New(10)
	b.Write([]float32{1, 2, 3})

	if _, err := b.ReadRange(2, 1); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for begin>end, got %v", err)
	}
	if _, err := b.ReadRange(0, 10); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for end beyond writeAbs, got %v", err)
	}
}

func TestOldestAvailableBeforeWrap(t *testing.T) {
	b := New(10)
	b.Write([]float32{1, 2, 3})
	if b.OldestAvailable() != 0 {
		t.Fatalf("expected 0 before wrap, got %d", b.OldestAvailable())
	}
}

func TestOldestAvailableAfterWrap(t *testing.T) {
	b := New(5)
	b.Write([]float32{1, 2, 3, 4, 5, 6, 7})
	if b.OldestAvailable() != 2 {
		t.Fatalf("expected 2 after wrap, got %d", b.OldestAvailable())
	}
}
