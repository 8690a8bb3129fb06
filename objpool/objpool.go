// Package objpool is a typed convenience layer over slab.Directory, adapted
// from the teacher repo's mpool.MemoryPool. Where mpool pre-sized three
// fixed buckets (small/medium/large) of pre-allocated raw blocks, Pool[T]
// is slab-native: one pool per Go type, its object size pinned to
// unsafe.Sizeof(T), handing out *T backed directly by a slab slot.
package objpool

import (
	"sync"
	"unsafe"

	"github.com/shenjiangwei/slaballoc/internal/xlog"
	"github.com/shenjiangwei/slaballoc/slab"
)

// Stats mirrors the counters the teacher's mpool.PoolStats tracked, renamed
// to this package's vocabulary.
type Stats struct {
	TotalAllocations uint64
	TotalFrees       uint64
}

// Pool hands out *T values backed by slots from a shared slab.Directory.
// Safe for concurrent use — it serializes access to the directory with a
// mutex, since slab.Directory itself is single-threaded by design
// (spec.md §5).
//
// T must be a fixed-size, pointer-free type (numeric types, arrays, and
// structs built only from those — the same restriction TimeWtr-BlitzMem's
// AllocInts/AllocFloat64s helpers apply to their scalar allocations). The
// slab's object area lives in the buddy arena's raw bytes, which the
// garbage collector does not scan for pointers; storing a T containing a
// pointer, slice, map, interface, or string there is unsound.
type Pool[T any] struct {
	mu        sync.Mutex
	directory *slab.Directory
	stats     Stats
}

// New creates a pool of T backed by directory. Multiple pools, of the same
// or different T, may share one directory; each object size gets its own
// cache inside it automatically.
func New[T any](directory *slab.Directory) *Pool[T] {
	return &Pool[T]{directory: directory}
}

// Get returns a pointer to a zero-valued T. The memory is not
// zero-initialized by the allocator (spec.md's non-goals explicitly
// exclude that guarantee), so Get clears it itself before handing it back.
func (p *Pool[T]) Get() (*T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	size := unsafe.Sizeof(zero)

	ptr, err := p.directory.Alloc(size)
	if err != nil {
		xlog.Debug("objpool: allocation of %T failed: %v", zero, err)
		return nil, err
	}

	obj := (*T)(ptr)
	*obj = zero
	p.stats.TotalAllocations++
	return obj, nil
}

// Put returns obj's slot to the pool. obj must have come from Get on this
// pool (or another pool over the same directory backing the same T),
// otherwise the directory treats it as a precondition violation per
// spec.md §7.
func (p *Pool[T]) Put(obj *T) error {
	if obj == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.directory.Free(unsafe.Pointer(obj)); err != nil {
		return err
	}
	p.stats.TotalFrees++
	return nil
}

// Stats returns a snapshot of this pool's allocation counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
