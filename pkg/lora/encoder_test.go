package lora

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncoder_RejectsInvalidConfig(t *testing.T) {
	_, err := NewEncoder(Config{SpreadingFactor: 6, CodeRate: 1, Header: true})
	assert.ErrorIs(t, err, ErrImplicitHeaderOnly)
}

func TestEncode_SymbolCountAndWidth(t *testing.T) {
	for sf := MinSpreadingFactor; sf <= MaxSpreadingFactor; sf++ {
		for cr := MinCodeRate; cr <= MaxCodeRate; cr++ {
			cfg := Config{SpreadingFactor: sf, CodeRate: cr}
			enc, err := NewEncoder(cfg)
			require.NoError(t, err)

			hdr := make([]byte, sf-2)
			payload := make([]byte, 2*sf+1)
			for i := range payload {
				payload[i] = byte(i) & 0x0F
			}

			symbols := enc.Encode(hdr, payload)
			assert.Len(t, symbols, cfg.PacketSymbols(len(hdr), len(payload)), cfg.String())
			for i, s := range symbols {
				require.Less(t, s, uint16(1)<<sf, "%s symbol %d", cfg, i)
			}
		}
	}
}

func TestEncode_TruncatesLongHeader(t *testing.T) {
	cfg := Config{SpreadingFactor: 7, CodeRate: 1, Header: true}
	enc, err := NewEncoder(cfg)
	require.NoError(t, err)
	dec, err := NewDecoder(cfg)
	require.NoError(t, err)

	symbols := enc.Encode([]byte{1, 2, 3, 4, 5, 6, 7}, nil)
	require.Len(t, symbols, HeaderSymbols)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, dec.Decode(symbols))
}

func TestEncode_Empty(t *testing.T) {
	enc, err := NewEncoder(Config{SpreadingFactor: 9, CodeRate: 2})
	require.NoError(t, err)
	assert.Empty(t, enc.Encode(nil, nil))
	assert.Equal(t, 0, enc.Config().PacketSymbols(0, 0))
}

func TestPacketSymbols(t *testing.T) {
	cfg := Config{SpreadingFactor: 7, CodeRate: 4, Header: true}
	assert.Equal(t, 8, cfg.PacketSymbols(5, 0))
	assert.Equal(t, 16, cfg.PacketSymbols(5, 7))
	assert.Equal(t, 24, cfg.PacketSymbols(5, 8))
	assert.Equal(t, 8, cfg.PacketSymbols(0, 1))
}
