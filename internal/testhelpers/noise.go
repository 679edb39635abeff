package testhelpers

import "math/rand"

// FlipBits returns a copy of symbols with bit b of symbol i inverted for each
// (i, b) pair. Bits are addressed in the raw on-air symbol value.
func FlipBits(symbols []uint16, flips ...[2]int) []uint16 {
	out := make([]uint16, len(symbols))
	copy(out, symbols)
	for _, f := range flips {
		out[f[0]] ^= 1 << uint(f[1])
	}
	return out
}

// Truncate returns the first n symbols, or all of them when n is larger
func Truncate(symbols []uint16, n int) []uint16 {
	if n > len(symbols) {
		n = len(symbols)
	}
	out := make([]uint16, n)
	copy(out, symbols[:n])
	return out
}

// RandomNibbles returns n values in [0, 16) drawn from r
func RandomNibbles(r *rand.Rand, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(r.Intn(16))
	}
	return out
}
