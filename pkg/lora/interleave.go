package lora

// Diagonal block interleaver
//
// Deinterleaver dimensions:
//   ppm     bits per symbol in, codewords out per block
//   4+rdd   symbols in per block, bits per codeword out
//
// The forward interleaver swaps the two roles.

// MaxRedundancy is the largest number of parity bits per codeword (CR 4/8)
const MaxRedundancy = 4

// swapMSBs exchanges bits ppm-1 and ppm-2 of v and drops everything above ppm
func swapMSBs(v uint16, ppm int) uint16 {
	hi := uint16(1) << (ppm - 1)
	lo := uint16(1) << (ppm - 2)
	return (v&hi)>>1 | (v&lo)<<1 | v&(lo-1)
}

// toHammingOrder moves the two parity bits that are swapped over the air back into
// canonical Hamming positions.
func toHammingOrder(cw byte, rdd int) byte {
	switch rdd {
	case 4:
		return cw&0x80 | cw&0x40 | (cw&0x20)>>1 | (cw&0x10)>>4 |
			(cw&0x08)<<2 | (cw&0x04)<<1 | (cw&0x02)<<1 | (cw&0x01)<<1
	case 3:
		return cw&0x40 | cw&0x20 | (cw&0x10)>>1 | (cw&0x08)<<1 | cw&0x04 | cw&0x02 | cw&0x01
	default:
		return cw
	}
}

// fromHammingOrder is the inverse of toHammingOrder
func fromHammingOrder(cw byte, rdd int) byte {
	switch rdd {
	case 4:
		return cw&0x80 | cw&0x40 | (cw&0x10)<<1 | (cw&0x01)<<4 |
			(cw&0x20)>>2 | (cw&0x08)>>1 | (cw&0x04)>>1 | (cw&0x02)>>1
	case 3:
		// bits 4 and 3 swap, which is its own inverse
		return toHammingOrder(cw, rdd)
	default:
		return cw
	}
}

// diagonalBit returns the symbol bit mask that carries bit j of codeword k
func diagonalBit(ppm, j, k int) uint16 {
	return (uint16(1) << (ppm - 1)) >> ((j + k) % ppm)
}

// Deinterleave turns blocks of 4+rdd ppm-bit symbols into ppm codewords of 4+rdd bits
// each. A trailing partial block is dropped.
func Deinterleave(symbols []uint16, ppm, rdd int) []byte {
	width := 4 + rdd
	blocks := len(symbols) / width
	codewords := make([]byte, 0, blocks*ppm)

	swapped := make([]uint16, len(symbols))
	for i, s := range symbols {
		swapped[i] = swapMSBs(s, ppm)
	}

	mask := byte(1<<width - 1)
	for b := 0; b < blocks; b++ {
		block := swapped[b*width : (b+1)*width]
		for k := 0; k < ppm; k++ {
			var cw byte
			for j := 0; j < width; j++ {
				if block[j]&diagonalBit(ppm, j, k) != 0 {
					cw |= 1 << j
				}
			}
			codewords = append(codewords, toHammingOrder(cw, rdd)&mask)
		}
	}

	return codewords
}

// Interleave is the transmit side inverse of Deinterleave. Every ppm codewords become
// 4+rdd symbols; a trailing partial group is padded with zero codewords.
func Interleave(codewords []byte, ppm, rdd int) []uint16 {
	width := 4 + rdd
	blocks := (len(codewords) + ppm - 1) / ppm
	symbols := make([]uint16, 0, blocks*width)

	mask := byte(1<<width - 1)
	for b := 0; b < blocks; b++ {
		block := make([]uint16, width)
		for k := 0; k < ppm; k++ {
			idx := b*ppm + k
			if idx >= len(codewords) {
				break
			}
			cw := fromHammingOrder(codewords[idx]&mask, rdd)
			for j := 0; j < width; j++ {
				if cw&(1<<j) != 0 {
					block[j] |= diagonalBit(ppm, j, k)
				}
			}
		}
		for _, s := range block {
			symbols = append(symbols, swapMSBs(s, ppm))
		}
	}

	return symbols
}
