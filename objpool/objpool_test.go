package objpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/slaballoc/internal/buddy"
	"github.com/shenjiangwei/slaballoc/slab"
)

type vec3 struct {
	X, Y, Z float64
}

func newTestDirectory(t *testing.T) *slab.Directory {
	t.Helper()
	d, err := slab.NewDirectory(buddy.New(4))
	require.NoError(t, err)
	return d
}

func TestPoolGetPutRoundTrip(t *testing.T) {
	d := newTestDirectory(t)
	pool := New[vec3](d)

	v, err := pool.Get()
	require.NoError(t, err)
	require.Equal(t, vec3{}, *v)

	v.X, v.Y, v.Z = 1, 2, 3
	require.NoError(t, pool.Put(v))

	stats := pool.Stats()
	require.EqualValues(t, 1, stats.TotalAllocations)
	require.EqualValues(t, 1, stats.TotalFrees)
}

func TestPoolReusesFreedSlot(t *testing.T) {
	d := newTestDirectory(t)
	pool := New[vec3](d)

	v1, err := pool.Get()
	require.NoError(t, err)
	addr1 := v1

	require.NoError(t, pool.Put(v1))

	v2, err := pool.Get()
	require.NoError(t, err)

	require.Same(t, addr1, v2, "freeing the only live slot should make it the next one handed out")
}

func TestPoolPutNilIsNoop(t *testing.T) {
	d := newTestDirectory(t)
	pool := New[vec3](d)
	require.NoError(t, pool.Put(nil))
}

func TestMultipleTypesShareDirectory(t *testing.T) {
	d := newTestDirectory(t)
	vecs := New[vec3](d)
	ints := New[int64](d)

	v, err := vecs.Get()
	require.NoError(t, err)
	i, err := ints.Get()
	require.NoError(t, err)

	require.NoError(t, vecs.Put(v))
	require.NoError(t, ints.Put(i))
}
