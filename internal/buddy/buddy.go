// Package buddy implements the page-granular buddy allocator that the slab
// engine is layered on top of.
package buddy

import (
	"unsafe"

	"github.com/shenjiangwei/slaballoc/internal/xlog"
)

const (
	// Page is the platform page size the buddy allocator divides the arena
	// into. A block of order o is Page << o bytes.
	Page = 4096

	// MaxOrder bounds how large a single allocation can grow. 20 orders on
	// top of a 4096-byte page reaches 4GiB, comfortably above any slab size
	// the directory will ever request.
	MaxOrder = 20
)

// Allocator is a single-arena buddy allocator. A block returned by Alloc is
// always aligned to its own size (Page<<order) — the slab engine relies on
// this to recover a slab's header address by masking a slot pointer.
//
// Not safe for concurrent use — Alloc is a synchronous, non-blocking call
// owned entirely by its single caller, so this type carries no internal
// locking.
type Allocator struct {
	arena      []byte
	arenaStart uintptr
	maxOrder   int
	freeLists  [][]uintptr // freeLists[o] holds offsets of free blocks of order o
}

// New creates an allocator over a freshly reserved arena capable of serving
// allocations up to order maxOrder. The arena holds exactly eight blocks of
// the largest order, so every order's blocks tile it evenly.
func New(maxOrder int) *Allocator {
	if maxOrder < 0 {
		maxOrder = 0
	}
	if maxOrder > MaxOrder {
		maxOrder = MaxOrder
	}
	rootSize := Page << uint(maxOrder)
	// Eight root blocks at the requested order; the arena is fixed-size for
	// the lifetime of the allocator.
	arena := alignedArena(rootSize * 8)

	a := &Allocator{
		arena:      arena,
		arenaStart: uintptr(unsafe.Pointer(&arena[0])),
		maxOrder:   maxOrder,
		freeLists:  make([][]uintptr, maxOrder+1),
	}
	numRoots := len(arena) / rootSize
	a.freeLists[maxOrder] = make([]uintptr, 0, numRoots)
	for i := 0; i < numRoots; i++ {
		a.freeLists[maxOrder] = append(a.freeLists[maxOrder], uintptr(i*rootSize))
	}
	xlog.Debug("buddy: arena ready, %d root blocks of order %d", numRoots, maxOrder)
	return a
}

// alignedArena allocates a []byte whose start address is aligned to size.
// Go's allocator doesn't offer aligned allocation directly, so this
// over-allocates and slices to the first aligned offset, the same technique
// cloudwego's buddy allocator and most userspace slab allocators use.
func alignedArena(size int) []byte {
	buf := make([]byte, size*2)
	start := uintptr(unsafe.Pointer(&buf[0]))
	mask := uintptr(size - 1)
	pad := (uintptr(size) - (start & mask)) & mask
	return buf[pad : pad+uintptr(size)]
}

// Alloc returns a block of Page<<order bytes, aligned to that size, or nil
// if the arena has no free block of a suitable order and none can be
// produced by splitting a larger one.
func (a *Allocator) Alloc(order int) unsafe.Pointer {
	if order < 0 || order > a.maxOrder {
		xlog.Error("buddy: order %d out of range [0,%d]", order, a.maxOrder)
		return nil
	}

	for o := order; o <= a.maxOrder; o++ {
		if n := len(a.freeLists[o]); n > 0 {
			offset := a.freeLists[o][n-1]
			a.freeLists[o] = a.freeLists[o][:n-1]
			a.split(offset, o, order)
			return unsafe.Pointer(a.arenaStart + offset)
		}
	}
	xlog.Debug("buddy: no block available for order %d", order)
	return nil
}

// split breaks a block of order `from` down to order `to`, pushing each
// right-half buddy produced along the way onto its own free list. The left
// half keeps `offset` and is what's eventually returned to the caller.
func (a *Allocator) split(offset uintptr, from, to int) {
	for from > to {
		from--
		rightOffset := offset + uintptr(Page<<uint(from))
		a.freeLists[from] = append(a.freeLists[from], rightOffset)
	}
}

// Free releases a block previously returned by Alloc(order) back to the
// allocator, coalescing with its buddy when possible.
func (a *Allocator) Free(block unsafe.Pointer, order int) {
	if block == nil {
		return
	}
	offset := uintptr(block) - a.arenaStart
	a.coalesce(offset, order)
}

func (a *Allocator) coalesce(offset uintptr, order int) {
	blockSize := uintptr(Page << uint(order))
	for order < a.maxOrder {
		buddyOffset := offset ^ blockSize
		list := a.freeLists[order]
		idx := -1
		for i, o := range list {
			if o == buddyOffset {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		// remove buddy from its free list
		list[idx] = list[len(list)-1]
		a.freeLists[order] = list[:len(list)-1]

		if buddyOffset < offset {
			offset = buddyOffset
		}
		order++
		blockSize <<= 1
	}
	a.freeLists[order] = append(a.freeLists[order], offset)
}

// BlockSize returns the byte size of a block of the given order.
func BlockSize(order int) uintptr {
	return uintptr(Page << uint(order))
}
