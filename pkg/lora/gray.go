package lora

// Gray mapping for demodulated symbols
// The demodulator reports the bin index; the transmitter sent its inverse Gray code.

// grayShifts is the XOR-shift reduction used by FromGray, widest first.
var grayShifts = []uint{16, 8, 4, 2, 1}

// ToGray returns a copy of symbols with each value v replaced by v ^ (v >> 1)
func ToGray(symbols []uint16) []uint16 {
	out := make([]uint16, len(symbols))
	for i, v := range symbols {
		out[i] = v ^ (v >> 1)
	}
	return out
}

// FromGray returns a copy of symbols with the Gray mapping undone
func FromGray(symbols []uint16) []uint16 {
	out := make([]uint16, len(symbols))
	for i, v := range symbols {
		x := uint32(v)
		for _, s := range grayShifts {
			x ^= x >> s
		}
		out[i] = uint16(x)
	}
	return out
}
