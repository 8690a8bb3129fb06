package slab

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/slaballoc/internal/buddy"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	b := buddy.New(4)
	d, err := NewDirectory(b)
	require.NoError(t, err)
	return d
}

func TestDirectoryAllocFree(t *testing.T) {
	d := newTestDirectory(t)

	p, err := d.Alloc(64)
	require.NoError(t, err)
	require.NotNil(t, p)

	require.NoError(t, d.Free(p))
	d.Release()
}

// TestDistinctSizeClasses is spec.md §8 scenario 4.
func TestDistinctSizeClasses(t *testing.T) {
	d := newTestDirectory(t)

	a1, err := d.Alloc(32)
	require.NoError(t, err)
	a2, err := d.Alloc(64)
	require.NoError(t, err)
	a3, err := d.Alloc(32)
	require.NoError(t, err)

	require.Len(t, allCaches(d), 2)

	require.NoError(t, d.Free(a1))
	require.NoError(t, d.Free(a2))
	require.NoError(t, d.Free(a3))

	d.Release()
	require.Nil(t, d.allCaches)
}

func TestFreeRoutesToOwningCache(t *testing.T) {
	d := newTestDirectory(t)

	small, err := d.Alloc(16)
	require.NoError(t, err)
	large, err := d.Alloc(512)
	require.NoError(t, err)

	require.NoError(t, d.Free(large))
	require.NoError(t, d.Free(small))
}

func TestFreeUnknownPointerIsHardError(t *testing.T) {
	d := newTestDirectory(t)

	bogus := unsafe.Pointer(uintptr(0xdeadbeef))
	err := d.Free(bogus)
	require.ErrorIs(t, err, ErrUnknownPointer)
}

// freeLinearScan documents the baseline §4.2 lookup and must agree with the
// O(1) alignment-derived Free for the same inputs.
func TestFreeLinearScanAgreesWithOwnerLookup(t *testing.T) {
	d := newTestDirectory(t)

	p, err := d.Alloc(96)
	require.NoError(t, err)
	q, err := d.Alloc(96)
	require.NoError(t, err)

	// Both slots share one slab, which sits on slabsPartial — one of the two
	// lists (full and partial) the linear scan walks.
	cache := d.allCaches
	require.NotNil(t, cache)
	require.NotNil(t, cache.slabsPartial)

	require.NoError(t, d.freeLinearScan(p))
	require.NoError(t, d.Free(q))

	// Both lookups reached the same slab: it is now empty and on slabsFree.
	require.Nil(t, cache.slabsPartial)
	require.NotNil(t, cache.slabsFree)
	require.EqualValues(t, 0, cache.slabsFree.objectsInUse)
}

func TestBootstrapOrderingOnRelease(t *testing.T) {
	d := newTestDirectory(t)

	for _, size := range []uintptr{16, 32, 48, 96} {
		_, err := d.Alloc(size)
		require.NoError(t, err)
	}
	require.Len(t, allCaches(d), 4)

	d.Release()
	require.Nil(t, slabsAnyLive(d), "release must return every slab, including the cache-of-caches")
}

// TestOOMPropagation is spec.md §8 scenario 5: when the buddy allocator can't
// produce another slab, Alloc fails and leaves list heads untouched.
func TestOOMPropagation(t *testing.T) {
	b := buddy.New(DefaultOrder) // fixed-size arena: a handful of root blocks, eventually exhausted
	d, err := NewDirectory(b)
	require.NoError(t, err)

	var allocated []unsafe.Pointer
	for {
		p, err := d.Alloc(8)
		if err != nil {
			break
		}
		allocated = append(allocated, p)
	}
	require.NotEmpty(t, allocated)

	cache := d.allCaches
	partialBefore := cache.slabsPartial
	fullBefore := cache.slabsFull

	_, err = d.Alloc(8)
	require.Error(t, err)
	require.Same(t, partialBefore, cache.slabsPartial)
	require.Same(t, fullBefore, cache.slabsFull)

	for _, p := range allocated {
		require.NoError(t, d.Free(p))
	}
}

func allCaches(d *Directory) []*Cache {
	var out []*Cache
	for c := d.allCaches; c != nil; c = c.next {
		out = append(out, c)
	}
	return out
}

// slabsAnyLive reports a non-nil slab head if any cache (including the
// bootstrap cache) still owns a slab, used to assert a clean Release.
func slabsAnyLive(d *Directory) *slabMeta {
	for _, c := range append([]*Cache{d.cacheOfCaches}, allCaches(d)...) {
		for _, head := range []*slabMeta{c.slabsFree, c.slabsPartial, c.slabsFull} {
			if head != nil {
				return head
			}
		}
	}
	return nil
}
