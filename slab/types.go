// Package slab implements the two-level slab allocator: a size-class engine
// (Cache) and a size-class directory (Directory) layered on top of the
// buddy page allocator in internal/buddy.
//
// Not safe for concurrent use. Callers that need thread-safety wrap a
// Directory with their own lock, the way objpool.Pool does.
package slab

import (
	"github.com/shenjiangwei/slaballoc/internal/buddy"
)

const (
	// DefaultOrder is the buddy order new caches are created with. Every
	// dynamically created cache in this module runs at this single order —
	// see DESIGN.md's Open Question log for why that's a deliberate choice
	// (it's what makes Directory.Free's owner lookup O(1)).
	DefaultOrder = 1

	// slabHeaderSize is the number of bytes reserved at the front of every
	// slab's buddy block for header bookkeeping, mirroring the six
	// pointer/counter fields a slab header needs. The bytes are reserved
	// (so the object-count formula holds exactly) but never dereferenced as
	// a Go struct — see DESIGN.md for why the authoritative header lives in
	// slabMeta on the Go heap instead.
	slabHeaderSize = 48

	// indexEntrySize is the width of one entry in a slab's free-slot index
	// array: a uint32.
	indexEntrySize = 4
)

// slabMeta is the out-of-band header for one slab. A more literal design
// would embed the header physically inside the slab's buddy block; this
// implementation keeps the header as an ordinary Go heap value instead,
// because Go's precise garbage collector does not scan raw,
// non-pointer-typed memory (the buddy arena is backed by a []byte) for
// embedded pointers — placement-constructing a struct containing *Cache /
// *slabMeta fields inside that memory would be unsound.
//
// objectsPtr and freeIndexPtr still point into the slab's raw buddy bytes —
// those regions only ever hold object payload bytes and uint32 indices,
// never Go pointers, so reading/writing them via unsafe.Pointer is sound.
type slabMeta struct {
	base            uintptr // block base address, also the slabIndex key
	objectsPtr      uintptr // address of the object area
	freeIndexPtr    uintptr // address of the free-slot index array
	freeObjectIndex uint32  // head of the free chain; valid iff objectsInUse < objectsInSlab
	objectsInUse    uint32
	next            *slabMeta
	prev            *slabMeta
	owner           *Cache
}

// Cache is the size-class engine for one fixed objectSize. It owns every
// slab serving that size and maintains the free/partial/full membership
// invariant: a slab is free with zero live objects, partial with some but
// not all slots in use, full once every slot is taken.
type Cache struct {
	objectSize    uintptr
	order         int
	objectsInSlab uint32

	slabsFree    *slabMeta
	slabsPartial *slabMeta
	slabsFull    *slabMeta

	buddy *buddy.Allocator

	// index is the directory's slab-base -> metadata map, shared by every
	// cache the directory owns so Directory.Free can look up the owning
	// cache in O(1). Maps are reference types, so every Cache created by
	// the same Directory holds the same underlying table.
	index map[uintptr]*slabMeta

	// next chains this cache into the directory's allCaches list.
	next *Cache

	// bootstrapSlot is the slot this Cache's own record was accounted for
	// in the directory's cache-of-caches, zero for the cache-of-caches
	// itself. See directory.go.
	bootstrapSlot uintptr
}

// Directory is the size-class directory: it maps an object size to the
// Cache serving it, creating new caches on demand, and routes Free(ptr) to
// the owning cache.
type Directory struct {
	buddy *buddy.Allocator

	allCaches     *Cache
	cacheOfCaches *Cache

	// slabIndex maps a slab's base address to its metadata, giving
	// Directory.Free an O(1) owner lookup by masking the pointer to its
	// slab base and looking the base up here.
	slabIndex map[uintptr]*slabMeta

	metrics *metrics
}
