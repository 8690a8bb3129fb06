package buddy

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestAllocReturnsAlignedBlocks(t *testing.T) {
	a := New(3)

	for order := 0; order <= 3; order++ {
		block := a.Alloc(order)
		require.NotNil(t, block, "order %d", order)

		size := BlockSize(order)
		require.Zero(t, uintptr(block)%size, "block for order %d not aligned to its own size", order)

		a.Free(block, order)
	}
}

func TestSplitAndCoalesce(t *testing.T) {
	a := New(2)

	// Allocating the smallest order should split a root block down.
	small := a.Alloc(0)
	require.NotNil(t, small)

	// There should still be room for another small block carved from the
	// same split without needing a second root block.
	small2 := a.Alloc(0)
	require.NotNil(t, small2)
	require.NotEqual(t, small, small2)

	a.Free(small, 0)
	a.Free(small2, 0)

	// After freeing both buddies, all eight root blocks New reserves must be
	// allocatable at max order again, which only holds if the split block
	// coalesced back into one root.
	var bigs []unsafe.Pointer
	for i := 0; i < 8; i++ {
		big := a.Alloc(2)
		require.NotNil(t, big, "root block %d", i)
		bigs = append(bigs, big)
	}
	for _, big := range bigs {
		a.Free(big, 2)
	}
}

func TestAllocExhaustion(t *testing.T) {
	a := New(0)

	var blocks []unsafe.Pointer
	for {
		b := a.Alloc(0)
		if b == nil {
			break
		}
		blocks = append(blocks, b)
	}
	require.NotEmpty(t, blocks)

	require.Nil(t, a.Alloc(0))

	for _, b := range blocks {
		a.Free(b, 0)
	}
	require.NotNil(t, a.Alloc(0))
}

func TestOrderOutOfRange(t *testing.T) {
	a := New(1)
	require.Nil(t, a.Alloc(5))
	require.Nil(t, a.Alloc(-1))
}
