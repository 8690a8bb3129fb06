package rpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestPair starts a Server on an ephemeral loopback port and returns a
// Client already dialed into it, skipping Start's infinite Accept loop by
// driving net/rpc directly over an in-process listener.
func newTestPair(t *testing.T) (*Server, *Client) {
	t.Helper()

	s, err := NewServer(4)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go s.Serve(listener)

	c, err := Dial(listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return s, c
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	_, c := newTestPair(t)

	handle, err := c.Allocate(64)
	require.NoError(t, err)

	require.NoError(t, c.Free(handle))
}

func TestFreeUnknownHandleIsError(t *testing.T) {
	_, c := newTestPair(t)

	err := c.Free(999999)
	require.Error(t, err)
}

func TestDistinctAllocationsGetDistinctHandles(t *testing.T) {
	_, c := newTestPair(t)

	h1, err := c.Allocate(32)
	require.NoError(t, err)
	h2, err := c.Allocate(32)
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)

	require.NoError(t, c.Free(h1))
	require.NoError(t, c.Free(h2))
}
