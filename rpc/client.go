package rpc

import (
	"fmt"
	"net/rpc"
)

// Client is a thin wrapper over net/rpc.Client speaking the Allocate/Free
// protocol, adapted from the teacher's client of the same shape.
type Client struct {
	conn *rpc.Client
}

// Dial connects to a Server listening at address.
func Dial(address string) (*Client, error) {
	conn, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Allocate requests a slot of size bytes and returns the opaque handle that
// identifies it server-side.
func (c *Client) Allocate(size uint64) (uint64, error) {
	req := &AllocRequest{Size: size}
	resp := &AllocResponse{}
	if err := c.conn.Call("Server.Allocate", req, resp); err != nil {
		return 0, fmt.Errorf("rpc call Allocate: %w", err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("remote allocate: %s", resp.Error)
	}
	return resp.Handle, nil
}

// Free releases the slot identified by handle.
func (c *Client) Free(handle uint64) error {
	req := &FreeRequest{Handle: handle}
	resp := &FreeResponse{}
	if err := c.conn.Call("Server.Free", req, resp); err != nil {
		return fmt.Errorf("rpc call Free: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("remote free: %s", resp.Error)
	}
	return nil
}
