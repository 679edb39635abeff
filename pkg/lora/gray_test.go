package lora

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGrayKnownValues(t *testing.T) {
	in := []uint16{0, 1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, []uint16{0, 1, 3, 2, 6, 7, 5, 4}, ToGray(in))
	// input must not be touched
	assert.Equal(t, []uint16{0, 1, 2, 3, 4, 5, 6, 7}, in)
}

func TestGrayInvolutionFullRange(t *testing.T) {
	all := make([]uint16, 1<<16)
	for i := range all {
		all[i] = uint16(i)
	}

	back := FromGray(ToGray(all))
	require.Len(t, back, len(all))
	for i := range all {
		if back[i] != all[i] {
			t.Fatalf("FromGray(ToGray(%d)) = %d", all[i], back[i])
		}
	}

	fwd := ToGray(FromGray(all))
	for i := range all {
		if fwd[i] != all[i] {
			t.Fatalf("ToGray(FromGray(%d)) = %d", all[i], fwd[i])
		}
	}
}

func TestGrayAdjacentValuesDifferByOneBit(t *testing.T) {
	g := ToGray([]uint16{0x7E, 0x7F, 0x80})
	assert.Equal(t, 1, popcount16(g[0]^g[1]))
	assert.Equal(t, 1, popcount16(g[1]^g[2]))
}

func TestGrayEmpty(t *testing.T) {
	assert.Empty(t, ToGray(nil))
	assert.Empty(t, FromGray(nil))
}

func popcount16(v uint16) int {
	n := 0
	for ; v != 0; v &= v - 1 {
		n++
	}
	return n
}
