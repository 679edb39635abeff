package lora

// Encoder runs the transmit side of the symbol pipeline: Hamming encoding,
// interleaving, whitening and the inverse Gray mapping. It exists so captures can be
// synthesized and so the decoder can be checked against its exact inverse.
type Encoder struct {
	cfg       Config
	whitening *WhiteningSequence
	symMask   uint16
}

// NewEncoder validates cfg and binds the matching whitening sequence
func NewEncoder(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seq, err := SequenceFor(cfg.SpreadingFactor, cfg.Header)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		cfg:       cfg,
		whitening: seq,
		symMask:   uint16(1)<<cfg.SpreadingFactor - 1,
	}, nil
}

// Config returns the configuration the encoder was built with
func (e *Encoder) Config() Config {
	return e.cfg
}

// Encode produces the symbols for a packet. Header nibbles fill one 8 symbol block of
// SF-2 codewords at CR 4/8 and are zero padded; more than SF-2 header nibbles are
// truncated. Without header nibbles no header block is sent, which only decodes
// cleanly when the payload itself starts on the header geometry.
func (e *Encoder) Encode(header, payload []byte) []uint16 {
	var symbols []uint16

	if len(header) > 0 {
		hppm := e.cfg.HeaderPPM()
		if len(header) > hppm {
			header = header[:hppm]
		}
		cw := HammingEncode(header, HeaderRedundancy)
		symbols = append(symbols, Interleave(cw, hppm, HeaderRedundancy)...)
	}

	if len(payload) > 0 {
		cw := HammingEncode(payload, e.cfg.CodeRate)
		symbols = append(symbols, Interleave(cw, e.cfg.PayloadPPM(), e.cfg.CodeRate)...)
	}

	// SF6 borrows the 7 bit SF7 table; the extra bit never reaches the air
	whitened := e.whitening.Whiten(symbols)
	for i := range whitened {
		whitened[i] &= e.symMask
	}
	return FromGray(whitened)
}

// PacketSymbols returns how many symbols Encode emits for the given nibble counts
func (c Config) PacketSymbols(headerNibbles, payloadNibbles int) int {
	n := 0
	if headerNibbles > 0 {
		n += HeaderSymbols
	}
	if payloadNibbles > 0 {
		blocks := (payloadNibbles + c.PayloadPPM() - 1) / c.PayloadPPM()
		n += blocks * (4 + c.CodeRate)
	}
	return n
}
