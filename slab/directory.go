package slab

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/shenjiangwei/slaballoc/internal/buddy"
	"github.com/shenjiangwei/slaballoc/internal/xlog"
)

// cacheRecordSize is the size of a Cache record for the purposes of the
// cache-of-caches bootstrap. See DESIGN.md: the actual Cache value lives on
// the Go heap (a placement-constructed Cache inside buddy memory would
// contain pointers the GC can't see), so this is only the unit the
// bootstrap cache measures its capacity in.
const cacheRecordSize = unsafe.Sizeof(Cache{})

// NewDirectory creates a size-class directory backed by b. It bootstraps
// the "cache of caches" — an internal Cache whose objectSize equals
// cacheRecordSize, used to account for the capacity consumed by every
// dynamically created Cache record.
func NewDirectory(b *buddy.Allocator) (*Directory, error) {
	index := make(map[uintptr]*slabMeta)

	cacheOfCaches, err := newCache(b, index, cacheRecordSize, DefaultOrder)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap cache-of-caches")
	}

	d := &Directory{
		buddy:         b,
		cacheOfCaches: cacheOfCaches,
		slabIndex:     index,
		metrics:       newMetrics(),
	}
	return d, nil
}

// Alloc locates or creates the cache serving objectSize and delegates to
// its Alloc(). Returns nil if the buddy allocator is out of memory.
func (d *Directory) Alloc(objectSize uintptr) (unsafe.Pointer, error) {
	cache, err := d.getOrCreateCache(objectSize)
	if err != nil {
		d.metrics.oom.Inc()
		return nil, errors.Wrapf(err, "create cache for object size %d", objectSize)
	}

	ptr, err := cache.Alloc()
	if err != nil {
		d.metrics.oom.Inc()
		return nil, errors.Wrapf(err, "allocate object of size %d", objectSize)
	}
	d.metrics.allocs.Inc()
	return ptr, nil
}

// Free routes ptr to its owning cache and frees the slot. The owner is
// found in O(1) by masking ptr to its slab's block base and looking the
// base up in d.slabIndex.
func (d *Directory) Free(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}

	blockSize := buddy.BlockSize(DefaultOrder)
	base := uintptr(ptr) &^ (blockSize - 1)

	slab, ok := d.slabIndex[base]
	if !ok || slab.owner == nil {
		xlog.Error("slab: free at %#x matches no known slab", uintptr(ptr))
		return ErrUnknownPointer
	}

	slab.owner.Free(ptr)
	d.metrics.frees.Inc()
	return nil
}

// freeLinearScan is the baseline find-then-free behavior: walk every
// cache's full and partial slab lists looking for one that contains ptr.
// Kept unexported and unit-tested to document that baseline; Free above is
// what the directory actually uses.
func (d *Directory) freeLinearScan(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}

	for cache := d.allCaches; cache != nil; cache = cache.next {
		blockSize := buddy.BlockSize(cache.order)
		if cache.containsInList(cache.slabsFull, ptr, blockSize) ||
			cache.containsInList(cache.slabsPartial, ptr, blockSize) {
			cache.Free(ptr)
			return nil
		}
	}
	return ErrUnknownPointer
}

// containsInList reports whether ptr falls within the open byte range
// (slab, slab + blockSize), exclusive at both ends, of any slab on the given
// list.
func (c *Cache) containsInList(list *slabMeta, ptr unsafe.Pointer, blockSize uintptr) bool {
	p := uintptr(ptr)
	for s := list; s != nil; s = s.next {
		if p > s.base && p < s.base+blockSize {
			return true
		}
	}
	return false
}

// getOrCreateCache implements the locate-or-create rule: a linear scan of
// allCaches for a matching objectSize, creating a new cache record
// (allocated from cacheOfCaches) on a miss.
func (d *Directory) getOrCreateCache(objectSize uintptr) (*Cache, error) {
	for cache := d.allCaches; cache != nil; cache = cache.next {
		if cache.objectSize == objectSize {
			return cache, nil
		}
	}

	slot, err := d.cacheOfCaches.Alloc()
	if err != nil {
		return nil, err
	}

	cache, err := newCache(d.buddy, d.slabIndex, objectSize, DefaultOrder)
	if err != nil {
		d.cacheOfCaches.Free(slot)
		return nil, err
	}
	cache.bootstrapSlot = uintptr(slot)

	cache.next = d.allCaches
	d.allCaches = cache
	d.metrics.cacheCount.Inc()

	return cache, nil
}

// Release walks allCaches, releasing every cache's slabs back to the buddy
// allocator and freeing the slot its record is accounted in, then releases
// the cache-of-caches itself last — mandatory ordering, since every dynamic
// cache holds a bootstrap slot owned by the cache-of-caches.
func (d *Directory) Release() {
	for d.allCaches != nil {
		cache := d.allCaches
		d.allCaches = cache.next
		cache.Release()
		d.cacheOfCaches.Free(unsafe.Pointer(cache.bootstrapSlot))
	}
	d.cacheOfCaches.Release()
}

// Shrink releases every free (but not partial or full) slab across every
// cache the directory owns, including the cache-of-caches.
func (d *Directory) Shrink() {
	for cache := d.allCaches; cache != nil; cache = cache.next {
		cache.Shrink()
	}
	d.cacheOfCaches.Shrink()
}
