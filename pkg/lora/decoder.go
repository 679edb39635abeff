package lora

import (
	"errors"
	"fmt"
)

// Spreading factor and code rate bounds
const (
	MinSpreadingFactor = 6
	MaxSpreadingFactor = 12
	MinCodeRate        = 1
	MaxCodeRate        = 4

	// HeaderSymbols is the number of symbols always sent at reduced rate, CR 4/8
	HeaderSymbols = 8
	// HeaderRedundancy is the parity bit count used for the header block
	HeaderRedundancy = 4
)

var (
	// ErrInvalidConfig is wrapped by every configuration error
	ErrInvalidConfig = errors.New("invalid lora configuration")
	// ErrInvalidSpreadingFactor is returned for SF outside 6..12
	ErrInvalidSpreadingFactor = fmt.Errorf("%w: spreading factor out of range", ErrInvalidConfig)
	// ErrInvalidCodeRate is returned for CR outside 1..4
	ErrInvalidCodeRate = fmt.Errorf("%w: code rate out of range", ErrInvalidConfig)
	// ErrImplicitHeaderOnly is returned when SF6 is combined with an explicit header
	ErrImplicitHeaderOnly = fmt.Errorf("%w: SF6 supports implicit header mode only", ErrInvalidConfig)
)

// Config holds the transmission parameters a decoder is bound to
type Config struct {
	SpreadingFactor int  `json:"spreading_factor" yaml:"spreading_factor"`
	CodeRate        int  `json:"code_rate" yaml:"code_rate"` // 1..4 for 4/5..4/8
	Header          bool `json:"header" yaml:"header"`
}

// Validate checks the parameter ranges and the SF6 implicit header rule
func (c Config) Validate() error {
	if c.SpreadingFactor < MinSpreadingFactor || c.SpreadingFactor > MaxSpreadingFactor {
		return fmt.Errorf("SF%d: %w", c.SpreadingFactor, ErrInvalidSpreadingFactor)
	}
	if c.CodeRate < MinCodeRate || c.CodeRate > MaxCodeRate {
		return fmt.Errorf("CR %d: %w", c.CodeRate, ErrInvalidCodeRate)
	}
	if c.SpreadingFactor == 6 && c.Header {
		return ErrImplicitHeaderOnly
	}
	return nil
}

// String renders the configuration as e.g. "SF7 CR4/8 explicit"
func (c Config) String() string {
	mode := "implicit"
	if c.Header {
		mode = "explicit"
	}
	return fmt.Sprintf("SF%d CR4/%d %s", c.SpreadingFactor, 4+c.CodeRate, mode)
}

// HeaderPPM is the number of bits carried per header symbol
func (c Config) HeaderPPM() int {
	return c.SpreadingFactor - 2
}

// PayloadPPM is the number of bits carried per payload symbol
func (c Config) PayloadPPM() int {
	return c.SpreadingFactor
}

// Stats describes what a single decode did to the packet
type Stats struct {
	Symbols          int `json:"symbols" yaml:"symbols"`
	MaskedSymbols    int `json:"masked_symbols" yaml:"masked_symbols"`
	DroppedSymbols   int `json:"dropped_symbols" yaml:"dropped_symbols"`
	HeaderCodewords  int `json:"header_codewords" yaml:"header_codewords"`
	PayloadCodewords int `json:"payload_codewords" yaml:"payload_codewords"`
	Corrected        int `json:"corrected" yaml:"corrected"`
	Uncorrectable    int `json:"uncorrectable" yaml:"uncorrectable"`
	ForcedZero       int `json:"forced_zero" yaml:"forced_zero"`
	ForcedOnes       int `json:"forced_ones" yaml:"forced_ones"`
}

// Codewords returns the total number of decoded codewords
func (s Stats) Codewords() int {
	return s.HeaderCodewords + s.PayloadCodewords
}

func (s *Stats) add(h hammingStats) {
	s.Corrected += h.corrected
	s.Uncorrectable += h.uncorrectable
	s.ForcedZero += h.forcedZero
	s.ForcedOnes += h.forcedOnes
}

// Decoder recovers nibbles from demodulated LoRa symbols. A Decoder holds only its
// configuration and a shared read-only whitening table, so one instance may decode
// packets from many goroutines at once.
type Decoder struct {
	cfg       Config
	whitening *WhiteningSequence
	symMask   uint16
}

// NewDecoder validates cfg and binds the matching whitening sequence
func NewDecoder(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seq, err := SequenceFor(cfg.SpreadingFactor, cfg.Header)
	if err != nil {
		return nil, err
	}

	return &Decoder{
		cfg:       cfg,
		whitening: seq,
		symMask:   uint16(1)<<cfg.SpreadingFactor - 1,
	}, nil
}

// Config returns the configuration the decoder was built with
func (d *Decoder) Config() Config {
	return d.cfg
}

// Whitening returns the bound whitening sequence
func (d *Decoder) Whitening() *WhiteningSequence {
	return d.whitening
}

// Decode turns one packet worth of symbols into nibbles, one per output byte: header
// nibbles first, then payload nibbles. Short or ragged packets yield fewer nibbles.
func (d *Decoder) Decode(symbols []uint16) []byte {
	out, _ := d.DecodeWithStats(symbols)
	return out
}

// DecodeWithStats is Decode plus a report of masked, dropped and corrected data
func (d *Decoder) DecodeWithStats(symbols []uint16) ([]byte, Stats) {
	stats := Stats{Symbols: len(symbols)}

	masked := make([]uint16, len(symbols))
	for i, s := range symbols {
		if s&^d.symMask != 0 {
			stats.MaskedSymbols++
		}
		masked[i] = s & d.symMask
	}

	whitened := d.whitening.Whiten(ToGray(masked))

	split := HeaderSymbols
	if len(whitened) < split {
		split = len(whitened)
	}
	header, payload := whitened[:split], whitened[split:]

	stats.DroppedSymbols = len(header)%(4+HeaderRedundancy) + len(payload)%(4+d.cfg.CodeRate)

	headerCW := Deinterleave(header, d.cfg.HeaderPPM(), HeaderRedundancy)
	headerNibbles, hs := hammingDecode(headerCW, HeaderRedundancy)
	stats.HeaderCodewords = len(headerCW)
	stats.add(hs)

	payloadCW := Deinterleave(payload, d.cfg.PayloadPPM(), d.cfg.CodeRate)
	payloadNibbles, ps := hammingDecode(payloadCW, d.cfg.CodeRate)
	stats.PayloadCodewords = len(payloadCW)
	stats.add(ps)

	out := make([]byte, 0, len(headerNibbles)+len(payloadNibbles))
	out = append(out, headerNibbles...)
	out = append(out, payloadNibbles...)
	return out, stats
}

// PackNibbles packs pairs of nibbles into bytes, first nibble in the high half.
// An odd trailing nibble fills the high half of the last byte.
func PackNibbles(nibbles []byte) []byte {
	packed := make([]byte, (len(nibbles)+1)/2)
	for i, n := range nibbles {
		if i%2 == 0 {
			packed[i/2] = (n & 0x0F) << 4
		} else {
			packed[i/2] |= n & 0x0F
		}
	}
	return packed
}

// unpackNibbles splits each byte into two nibbles, high half first
func unpackNibbles(data []byte) []byte {
	nibbles := make([]byte, 0, 2*len(data))
	for _, b := range data {
		nibbles = append(nibbles, b>>4, b&0x0F)
	}
	return nibbles
}
