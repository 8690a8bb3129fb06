// Package rpc adapts the teacher repo's net/rpc memory-pool client/server
// into a remote allocation service fronting a slab.Directory. The teacher's
// version could hand raw addresses over the wire because its allocator
// only ever dealt in offsets into a simulated address space; this module's
// slab.Directory returns real process memory addresses, so the server
// keeps those server-side and gives the client an opaque handle instead.
package rpc

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shenjiangwei/slaballoc/internal/buddy"
	"github.com/shenjiangwei/slaballoc/internal/xlog"
	"github.com/shenjiangwei/slaballoc/slab"
)

// AllocRequest mirrors the teacher's AllocRequest field-for-field.
type AllocRequest struct {
	Size uint64
}

// AllocResponse replaces the teacher's raw Start address with an opaque
// Handle — the client never sees a real pointer.
type AllocResponse struct {
	Handle uint64
	Error  string
}

// FreeRequest takes the handle returned by AllocResponse instead of an
// address.
type FreeRequest struct {
	Handle uint64
}

// FreeResponse mirrors the teacher's FreeResponse.
type FreeResponse struct {
	Error string
}

// Server exposes a slab.Directory over net/rpc.
//
// Each Server owns a private *rpc.Server rather than registering against
// net/rpc's process-wide DefaultServer, so more than one Server can live in
// the same process (as the test suite does) without a "service already
// defined" collision.
type Server struct {
	directory *slab.Directory
	rpcServer *rpc.Server

	mu         sync.Mutex
	nextHandle uint64
	live       map[uint64]unsafe.Pointer
}

// NewServer creates a server backed by a fresh buddy arena and directory.
func NewServer(maxOrder int) (*Server, error) {
	directory, err := slab.NewDirectory(buddy.New(maxOrder))
	if err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	s := &Server{
		directory: directory,
		rpcServer: rpc.NewServer(),
		live:      make(map[uint64]unsafe.Pointer),
	}
	if err := s.rpcServer.RegisterName("Server", s); err != nil {
		return nil, fmt.Errorf("register server: %w", err)
	}
	return s, nil
}

// Start listens on address and serves RPC connections. Once listening it
// does not return: a failed Accept is logged and the loop keeps accepting.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}
	defer listener.Close()

	xlog.Info("rpc: server listening on %s", address)
	for {
		conn, err := listener.Accept()
		if err != nil {
			xlog.Error("rpc: accept failed: %v", err)
			continue
		}
		go s.rpcServer.ServeConn(conn)
	}
}

// Serve accepts and serves connections from listener until it is closed,
// giving callers (such as tests) control over listener lifecycle that
// Start's own net.Listen doesn't offer.
func (s *Server) Serve(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go s.rpcServer.ServeConn(conn)
	}
}

// Allocate is the RPC-exported allocation call.
func (s *Server) Allocate(req *AllocRequest, resp *AllocResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ptr, err := s.directory.Alloc(uintptr(req.Size))
	if err != nil {
		resp.Error = err.Error()
		return nil
	}

	s.nextHandle++
	handle := s.nextHandle
	s.live[handle] = ptr
	resp.Handle = handle
	return nil
}

// Free is the RPC-exported free call.
func (s *Server) Free(req *FreeRequest, resp *FreeResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ptr, ok := s.live[req.Handle]
	if !ok {
		resp.Error = "rpc: unknown handle"
		return nil
	}
	delete(s.live, req.Handle)

	if err := s.directory.Free(ptr); err != nil {
		resp.Error = err.Error()
	}
	return nil
}

// Close releases every slab still outstanding and returns the directory to
// its post-init state.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory.Release()
	return nil
}

// Collectors exposes the underlying directory's Prometheus collectors so a
// caller can scrape allocation counters for the served directory.
func (s *Server) Collectors() []prometheus.Collector {
	return s.directory.Collectors()
}
