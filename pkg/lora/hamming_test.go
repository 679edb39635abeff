package lora

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHammingEncodeKnownCodewords(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0xFF}, HammingEncode([]byte{0x0, 0xF}, 4))
	assert.Equal(t, []byte{0x00, 0x7F}, HammingEncode([]byte{0x0, 0xF}, 3))
	assert.Equal(t, []byte{0x00, 0x0F}, HammingEncode([]byte{0x0, 0xF}, 2))
	assert.Equal(t, []byte{0x00, 0x0F}, HammingEncode([]byte{0x0, 0xF}, 1))
	// d0 alone at rdd=4 sets p1 p2 p4 and d0
	assert.Equal(t, []byte{0xD2}, HammingEncode([]byte{0x1}, 4))
}

func TestHammingCleanRoundTrip(t *testing.T) {
	nibbles := make([]byte, 16)
	for i := range nibbles {
		nibbles[i] = byte(i)
	}

	for rdd := 1; rdd <= MaxRedundancy; rdd++ {
		codewords := HammingEncode(nibbles, rdd)
		for i, cw := range codewords {
			require.Less(t, int(cw), 1<<(4+rdd), "rdd %d nibble %x", rdd, i)
			checks := hammingChecks(cw, rdd)
			for level := 0; level < rdd && level < 3; level++ {
				require.Zero(t, checks[level], "rdd %d nibble %x check %d", rdd, i, level)
			}
			if rdd == 4 {
				// Check 8 skips bit 0, so over a codeword whose bit 0 holds the
				// overall parity it simply reads that bit back
				require.Equal(t, cw&1, checks[3], "rdd 4 nibble %x check 3", i)
			}
		}

		got, stats := hammingDecode(codewords, rdd)
		assert.Equal(t, nibbles, got, "rdd %d", rdd)
		assert.Zero(t, stats.corrected, "rdd %d", rdd)
		assert.Zero(t, stats.uncorrectable, "rdd %d", rdd)
	}
}

func TestHammingCodewordWeights(t *testing.T) {
	// rdd=4 codewords are an extended Hamming code: weights 0, 4 or 8
	for n := byte(0); n < 16; n++ {
		w := popcount16(uint16(hammingEncode(n, 4)))
		assert.Contains(t, []int{0, 4, 8}, w, "nibble %x", n)
	}
}

func TestHammingSingleBitCorrectionExtremes(t *testing.T) {
	for bit := 0; bit < 8; bit++ {
		zero := byte(0x00) ^ 1<<bit
		ones := byte(0xFF) ^ 1<<bit

		got := HammingDecode([]byte{zero, ones}, 4)
		assert.Equal(t, []byte{0x0, 0xF}, got, "bit %d flipped", bit)
	}
}

func TestHammingSingleBitCorrectionRDD4(t *testing.T) {
	for n := byte(0); n < 16; n++ {
		cw := hammingEncode(n, 4)
		for bit := 0; bit < 8; bit++ {
			if bit == 1 {
				// d0 hits all three low checks and is treated as uncorrectable
				continue
			}
			got := HammingDecode([]byte{cw ^ 1<<bit}, 4)
			assert.Equal(t, []byte{n}, got, "nibble %x bit %d", n, bit)
		}
	}
}

func TestHammingSingleBitCorrectionRDD3(t *testing.T) {
	for n := byte(0); n < 16; n++ {
		cw := hammingEncode(n, 3)
		for bit := 1; bit < 7; bit++ {
			got, stats := hammingDecode([]byte{cw ^ 1<<bit}, 3)
			assert.Equal(t, []byte{n}, got, "nibble %x bit %d", n, bit)
			assert.Equal(t, 1, stats.corrected)
		}
	}
}

func TestHammingAllFlagsSetIsNotFlipped(t *testing.T) {
	// nibble 0x5 at rdd=4 is weight 4; clearing d0 leaves weight 3 and a full syndrome
	cw := hammingEncode(0x5, 4) ^ 0x02
	got, stats := hammingDecode([]byte{cw}, 4)

	assert.Equal(t, []byte{0x4}, got)
	assert.Equal(t, 0, stats.corrected)
	assert.Equal(t, 1, stats.uncorrectable)
}

func TestHammingThresholdForcing(t *testing.T) {
	tests := []struct {
		name string
		cw   byte
		want byte
		zero int
		ones int
	}{
		{"two low bits", 0x03, 0x0, 1, 0},
		{"single parity bit", 0x01, 0x0, 1, 0},
		{"six high bits", 0xFC, 0xF, 0, 1},
		{"seven bits", 0xFE, 0xF, 0, 1},
		{"valid weight four", 0xD2, 0x1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stats := hammingDecode([]byte{tt.cw}, 4)
			assert.Equal(t, []byte{tt.want}, got)
			assert.Equal(t, tt.zero, stats.forcedZero)
			assert.Equal(t, tt.ones, stats.forcedOnes)
		})
	}
}

func TestHammingNoForcingBelowRDD4(t *testing.T) {
	got := HammingDecode([]byte{0x01}, 3)
	assert.Equal(t, []byte{0x1}, got)
}

func TestHammingLowRedundancyPassThrough(t *testing.T) {
	for rdd := 1; rdd <= 2; rdd++ {
		for v := 0; v < 1<<(4+rdd); v++ {
			got := HammingDecode([]byte{byte(v)}, rdd)
			require.Equal(t, []byte{byte(v) & 0x0F}, got, "rdd %d cw %02x", rdd, v)
		}
	}
}

func TestHammingLowRedundancyDetects(t *testing.T) {
	cw := hammingEncode(0x6, 2) ^ 0x01
	got, stats := hammingDecode([]byte{cw}, 2)
	assert.Equal(t, []byte{0x7}, got)
	assert.Equal(t, 1, stats.uncorrectable)
	assert.Equal(t, 0, stats.corrected)
}

func TestHammingDecodeEmpty(t *testing.T) {
	assert.Empty(t, HammingDecode(nil, 4))
}
