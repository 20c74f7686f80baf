package audio

import (
	"encoding/binary"
	"math"
)

// float32frombits decodes one little-endian float32 from a 4-byte slice.
// Shared by the malgo-backed backends, which exchange raw byte buffers with
// the native audio callback.
func float32frombits(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
