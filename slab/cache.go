package slab

import (
	"unsafe"

	"github.com/shenjiangwei/slaballoc/internal/buddy"
	"github.com/shenjiangwei/slaballoc/internal/xlog"
)

// newCache computes objectsInSlab from the slab layout formula (how many
// object-size-plus-index-entry units fit in the space a buddy block of this
// order leaves after the header) and returns an empty, ready-to-use Cache.
// Fails only if the resulting objectsInSlab would be zero.
func newCache(b *buddy.Allocator, index map[uintptr]*slabMeta, objectSize uintptr, order int) (*Cache, error) {
	blockSize := uintptr(buddy.BlockSize(order))
	available := blockSize - slabHeaderSize
	objectsInSlab := available / (indexEntrySize + objectSize)
	if objectsInSlab == 0 {
		return nil, ErrObjectTooLarge
	}

	return &Cache{
		objectSize:    objectSize,
		order:         order,
		objectsInSlab: uint32(objectsInSlab),
		buddy:         b,
		index:         index,
	}, nil
}

// Alloc returns the address of a free slot, or nil if the buddy allocator
// has no room for a new slab. Tie-break order: partial slab head, then free
// slab head, then a freshly created slab.
func (c *Cache) Alloc() (unsafe.Pointer, error) {
	var slab *slabMeta
	fromFree := false

	switch {
	case c.slabsPartial != nil:
		slab = c.slabsPartial
	case c.slabsFree != nil:
		slab = c.slabsFree
		fromFree = true
	default:
		newSlab, err := c.createSlab()
		if err != nil {
			return nil, err
		}
		addSlabToList(newSlab, &c.slabsFree)
		slab = newSlab
		fromFree = true
	}

	retPtr := unsafe.Pointer(slab.objectsPtr + uintptr(slab.freeObjectIndex)*c.objectSize)
	slab.freeObjectIndex = readFreeSlot(slab, slab.freeObjectIndex)
	slab.objectsInUse++

	switch {
	case slab.objectsInUse == c.objectsInSlab:
		from := &c.slabsPartial
		if fromFree {
			from = &c.slabsFree
		}
		c.moveSlab(slab, from, &c.slabsFull)
	case fromFree:
		c.moveSlab(slab, &c.slabsFree, &c.slabsPartial)
	}

	return retPtr, nil
}

// Free releases the slot at ptr back to its slab. No-op on nil. The owning
// slab is located in O(1) by masking ptr to its block base (every block
// returned by the buddy allocator is aligned to its own size) and looking
// the base up in the cache's slab index. A pointer that isn't aligned to a
// slot boundary within that slab is silently ignored, and validated
// *before* any state is mutated, so a bad pointer can never corrupt
// accounting.
func (c *Cache) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	blockSize := buddy.BlockSize(c.order)
	base := uintptr(ptr) &^ (blockSize - 1)
	slab, ok := c.index[base]
	if !ok || slab.owner != c {
		xlog.Debug("slab: free at %#x does not belong to any slab of this cache", uintptr(ptr))
		return
	}

	i := (uintptr(ptr) - slab.objectsPtr) / c.objectSize
	if uintptr(ptr) != slab.objectsPtr+i*c.objectSize {
		xlog.Debug("slab: ignoring misaligned free at %#x", uintptr(ptr))
		return
	}

	wasFull := slab.objectsInUse == c.objectsInSlab

	writeFreeSlot(slab, uint32(i), slab.freeObjectIndex)
	slab.freeObjectIndex = uint32(i)
	slab.objectsInUse--

	switch {
	case slab.objectsInUse == 0:
		from := &c.slabsPartial
		if wasFull {
			from = &c.slabsFull
		}
		c.moveSlab(slab, from, &c.slabsFree)
	case wasFull:
		c.moveSlab(slab, &c.slabsFull, &c.slabsPartial)
	}
}

// Shrink releases every slab on the free list back to the buddy allocator,
// leaving partial and full slabs untouched.
func (c *Cache) Shrink() {
	for c.slabsFree != nil {
		s := c.slabsFree
		c.slabsFree = s.next
		c.destroySlab(s)
	}
}

// Release releases every slab this cache owns — free, partial, and full —
// back to the buddy allocator. After Release the cache is equivalent to a
// freshly constructed one.
func (c *Cache) Release() {
	for _, head := range []**slabMeta{&c.slabsFree, &c.slabsPartial, &c.slabsFull} {
		for *head != nil {
			s := *head
			*head = s.next
			c.destroySlab(s)
		}
	}
}

func (c *Cache) createSlab() (*slabMeta, error) {
	block := c.buddy.Alloc(c.order)
	if block == nil {
		xlog.Debug("slab: buddy allocator refused a new block for order %d", c.order)
		return nil, ErrOutOfMemory
	}

	base := uintptr(block)
	slab := &slabMeta{
		base:         base,
		freeIndexPtr: base + slabHeaderSize,
		owner:        c,
	}
	slab.objectsPtr = slab.freeIndexPtr + uintptr(c.objectsInSlab)*indexEntrySize

	for i := uint32(0); i < c.objectsInSlab; i++ {
		writeFreeSlot(slab, i, i+1)
	}

	if c.index != nil {
		c.index[base] = slab
	}
	return slab, nil
}

func (c *Cache) destroySlab(slab *slabMeta) {
	if c.index != nil {
		delete(c.index, slab.base)
	}
	c.buddy.Free(unsafe.Pointer(slab.base), c.order)
}

// moveSlab unlinks slab from the list headed by *from and pushes it onto
// the head of *to.
func (c *Cache) moveSlab(slab *slabMeta, from, to **slabMeta) {
	if slab == *from {
		*from = slab.next
	} else {
		if slab.next != nil {
			slab.next.prev = slab.prev
		}
		if slab.prev != nil {
			slab.prev.next = slab.next
		}
	}
	slab.next = nil
	slab.prev = nil
	addSlabToList(slab, to)
}

func addSlabToList(slab *slabMeta, list **slabMeta) {
	slab.next = *list
	slab.prev = nil
	if *list != nil {
		(*list).prev = slab
	}
	*list = slab
}

func readFreeSlot(slab *slabMeta, i uint32) uint32 {
	return *(*uint32)(unsafe.Pointer(slab.freeIndexPtr + uintptr(i)*indexEntrySize))
}

func writeFreeSlot(slab *slabMeta, i, value uint32) {
	*(*uint32)(unsafe.Pointer(slab.freeIndexPtr + uintptr(i)*indexEntrySize)) = value
}
