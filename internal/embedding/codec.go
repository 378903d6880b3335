package embedding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidEncoding is returned when a stored buffer is not a whole number of
// float32 values or does not match the expected dimension.
var ErrInvalidEncoding = errors.New("invalid embedding encoding")

// Encode writes v as consecutive little-endian IEEE-754 float32 values.
func Encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// Decode reads a buffer produced by Encode. dim <= 0 accepts any whole length.
func Decode(buf []byte, dim int) ([]float32, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidEncoding, len(buf))
	}
	if dim > 0 && len(buf) != 4*dim {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidEncoding, len(buf), 4*dim)
	}

	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
