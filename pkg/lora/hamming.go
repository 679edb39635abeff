package lora

import "math/bits"

// Hamming(4+rdd, 4) decoding as done by the LoRa PHY
//
// Canonical bit layout after deinterleaving (MSB first):
//   rdd=4: p1 p2 d3 p4 d2 d1 d0 p0
//   rdd=3: p1 p2 d3 p4 d2 d1 d0
//   rdd=2: p1 p2 d3 d2 d1 d0
//   rdd=1: p1 d3 d2 d1 d0

// Parity check masks for a full rdd=4 codeword. Checks 1, 2 and 4 are shifted right
// by 4-rdd for narrower codewords; check 8 only exists at rdd=4.
var hammingCheckMasks = [MaxRedundancy]byte{0xAA, 0x66, 0x1E, 0xFE}

// Confidence thresholds applied to rdd=4 codewords after correction
const (
	minTrustedSetBits = 3
	maxTrustedSetBits = 5
)

// hammingStats counts what happened to codewords during decoding
type hammingStats struct {
	corrected     int
	uncorrectable int
	forcedZero    int
	forcedOnes    int
}

func parity(c, mask byte) byte {
	return byte(bits.OnesCount8(c&mask) & 1)
}

// hammingChecks computes the checks for redundancy levels 1..rdd, index 0 is t1
func hammingChecks(cw byte, rdd int) [MaxRedundancy]byte {
	var t [MaxRedundancy]byte
	for level := 0; level < rdd; level++ {
		mask := hammingCheckMasks[level]
		if level < 3 {
			mask >>= MaxRedundancy - rdd
		}
		t[level] = parity(cw, mask)
	}
	return t
}

// HammingDecode recovers one data nibble per codeword. It never fails: codewords
// that cannot be corrected still produce a best-effort nibble.
func HammingDecode(codewords []byte, rdd int) []byte {
	nibbles, _ := hammingDecode(codewords, rdd)
	return nibbles
}

func hammingDecode(codewords []byte, rdd int) ([]byte, hammingStats) {
	var stats hammingStats
	nibbles := make([]byte, len(codewords))

	for i, cw := range codewords {
		t := hammingChecks(cw, rdd)

		errorPos := -1 + int(t[0]) + 2*int(t[1]) + 4*int(t[2])
		setFlags := int(t[0] + t[1] + t[2])

		if rdd > 2 {
			if errorPos >= 0 && setFlags < 3 {
				cw ^= (0x80 >> (MaxRedundancy - rdd)) >> errorPos
				stats.corrected++
			} else if errorPos >= 0 {
				stats.uncorrectable++
			}

			if rdd == 4 {
				switch n := bits.OnesCount8(cw); {
				case n < minTrustedSetBits:
					cw = 0x00
					stats.forcedZero++
				case n > maxTrustedSetBits:
					cw = 0xFF
					stats.forcedOnes++
				}
			}
		} else if errorPos >= 0 {
			stats.uncorrectable++
		}

		nibbles[i] = extractNibble(cw, rdd)
	}

	return nibbles, stats
}

func extractNibble(cw byte, rdd int) byte {
	switch rdd {
	case 3:
		return ((cw&0x10)>>1 | cw&0x04 | cw&0x02 | cw&0x01) & 0x0F
	case 4:
		return ((cw&0x20)>>2 | (cw&0x08)>>1 | (cw&0x04)>>1 | (cw&0x02)>>1) & 0x0F
	default:
		return cw & 0x0F
	}
}

// HammingEncode builds one codeword per nibble in the canonical layout above. Checks
// 1, 2 and 4 come out zero. At rdd=4 bit 0 carries the parity of bits 7..1, so
// check 8, which excludes bit 0, equals bit 0 rather than zero.
func HammingEncode(nibbles []byte, rdd int) []byte {
	codewords := make([]byte, len(nibbles))
	for i, n := range nibbles {
		codewords[i] = hammingEncode(n&0x0F, rdd)
	}
	return codewords
}

func hammingEncode(n byte, rdd int) byte {
	d0, d1, d2, d3 := n&1, n>>1&1, n>>2&1, n>>3&1

	switch rdd {
	case 4:
		cw := d3<<5 | d2<<3 | d1<<2 | d0<<1
		cw |= (d3^d2^d0)<<7 | (d3^d1^d0)<<6 | (d2^d1^d0)<<4
		return cw | parity(cw, 0xFE)
	case 3:
		cw := d3<<4 | d2<<2 | d1<<1 | d0
		return cw | (d3^d2^d0)<<6 | (d3^d1^d0)<<5 | (d2^d1^d0)<<3
	case 2:
		return n | (d3^d1)<<5 | (d3^d0)<<4
	default:
		return n | (d2^d0)<<4
	}
}
