package lora

import "fmt"

// WhiteningSequenceLength is the number of symbol masks in every whitening table.
// It covers a 255 byte payload at the densest geometry (SF6, CR 4/8).
const WhiteningSequenceLength = 1024

const (
	whiteningSeed = 0xFF
	// explicit header symbols are sent unwhitened
	explicitHeaderSymbols = 8
)

// WhiteningSequence is a read-only table of symbol masks XORed over a packet.
// Tables are built once at package init and never mutated, so a sequence may be
// shared between goroutines without locking.
type WhiteningSequence struct {
	name  string
	masks []uint16
}

// Name identifies the table, e.g. "sf8-explicit"
func (w *WhiteningSequence) Name() string {
	return w.name
}

// Len returns the number of masks in the table
func (w *WhiteningSequence) Len() int {
	return len(w.masks)
}

// At returns mask i
func (w *WhiteningSequence) At(i int) uint16 {
	return w.masks[i]
}

// Whiten returns a copy of symbols XORed with the table. Symbols past the end of
// the table are copied through unchanged. Applying Whiten twice restores the input.
func (w *WhiteningSequence) Whiten(symbols []uint16) []uint16 {
	out := make([]uint16, len(symbols))
	copy(out, symbols)
	for i := 0; i < len(out) && i < len(w.masks); i++ {
		out[i] ^= w.masks[i]
	}
	return out
}

type whiteningKey struct {
	sf       int
	explicit bool
}

var (
	whiteningSF7Implicit  = newWhiteningSequence("sf7-implicit", 7, 0)
	whiteningSF8Implicit  = newWhiteningSequence("sf8-implicit", 8, 0)
	whiteningSF8Explicit  = newWhiteningSequence("sf8-explicit", 8, explicitHeaderSymbols)
	whiteningSF9Implicit  = newWhiteningSequence("sf9-implicit", 9, 0)
	whiteningSF10Implicit = newWhiteningSequence("sf10-implicit", 10, 0)
	whiteningSF11Implicit = newWhiteningSequence("sf11-implicit", 11, 0)
	whiteningSF12Implicit = newWhiteningSequence("sf12-implicit", 12, 0)

	// SF6 has no table of its own and shares the SF7 implicit sequence.
	// SF6 is implicit header only, so only the implicit key exists.
	whiteningSF6Alias = whiteningSF7Implicit
)

// whiteningTables maps (SF, header mode) to a table. Only SF8 distinguishes the
// explicit header layout; SF9..SF12 use their implicit table in both modes.
var whiteningTables = map[whiteningKey]*WhiteningSequence{
	{6, false}:  whiteningSF6Alias,
	{7, false}:  whiteningSF7Implicit,
	{7, true}:   whiteningSF7Implicit,
	{8, false}:  whiteningSF8Implicit,
	{8, true}:   whiteningSF8Explicit,
	{9, false}:  whiteningSF9Implicit,
	{9, true}:   whiteningSF9Implicit,
	{10, false}: whiteningSF10Implicit,
	{10, true}:  whiteningSF10Implicit,
	{11, false}: whiteningSF11Implicit,
	{11, true}:  whiteningSF11Implicit,
	{12, false}: whiteningSF12Implicit,
	{12, true}:  whiteningSF12Implicit,
}

// SequenceFor returns the whitening table bound to a spreading factor and header mode
func SequenceFor(sf int, header bool) (*WhiteningSequence, error) {
	seq, ok := whiteningTables[whiteningKey{sf: sf, explicit: header}]
	if !ok {
		return nil, fmt.Errorf("no whitening sequence for SF%d header=%t: %w", sf, header, ErrInvalidConfig)
	}
	return seq, nil
}

// newWhiteningSequence packs the LoRa whitening LFSR output (x^8+x^6+x^5+x^4+1,
// seed 0xFF, LSB first) into sf-bit masks. The first skip masks are zero.
func newWhiteningSequence(name string, sf, skip int) *WhiteningSequence {
	masks := make([]uint16, WhiteningSequenceLength)
	lfsr := newWhiteningLFSR()
	for i := skip; i < len(masks); i++ {
		var m uint16
		for b := 0; b < sf; b++ {
			m |= uint16(lfsr.nextBit()) << b
		}
		masks[i] = m
	}
	return &WhiteningSequence{name: name, masks: masks}
}

type whiteningLFSR struct {
	reg  uint8
	bits int // bits of reg already emitted
}

func newWhiteningLFSR() *whiteningLFSR {
	return &whiteningLFSR{reg: whiteningSeed}
}

func (l *whiteningLFSR) nextBit() uint8 {
	if l.bits == 8 {
		l.step()
	}
	bit := (l.reg >> l.bits) & 1
	l.bits++
	return bit
}

func (l *whiteningLFSR) step() {
	fb := (l.reg>>7 ^ l.reg>>5 ^ l.reg>>4 ^ l.reg>>3) & 1
	l.reg = l.reg<<1 | fb
	l.bits = 0
}
