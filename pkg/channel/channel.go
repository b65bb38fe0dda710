// Package channel connects a remote operation client to an execution
// endpoint. A Channel is the raw transport; a Conn wraps one channel with
// a process-unique identity and a cached capability manifest, which is
// what the builder pins imported objects to.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("channel: connection closed")

// Channel is an execution endpoint: something that can run a linearized
// program and report what it supports.
type Channel interface {
	// Execute runs the request to completion. A non-nil error means the
	// transport failed; program-level failures come back in the response.
	Execute(ctx context.Context, req *bytecode.Request) (*bytecode.Response, error)

	// Manifest reports the endpoint's version and capabilities.
	Manifest(ctx context.Context) (*Manifest, error)
}

var nextConnID atomic.Uint64

// Conn is an open connection to an execution endpoint. Every Conn gets a
// process-unique ID; operands imported through one connection cannot be
// mixed into a program bound to another.
type Conn struct {
	id       uint64
	ch       Channel
	manifest *Manifest
	closed   atomic.Bool
}

// Open establishes a connection over the channel. The endpoint manifest is
// fetched once here and served from cache afterwards.
func Open(ctx context.Context, ch Channel) (*Conn, error) {
	m, err := ch.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("channel: fetching manifest: %w", err)
	}
	return &Conn{
		id:       nextConnID.Add(1),
		ch:       ch,
		manifest: m,
	}, nil
}

// ID returns the process-unique identity of this connection.
func (c *Conn) ID() uint64 { return c.id }

// Manifest returns the cached endpoint manifest.
func (c *Conn) Manifest() *Manifest { return c.manifest }

// SupportsOpcode reports whether the endpoint can execute the opcode.
func (c *Conn) SupportsOpcode(op bytecode.Opcode) bool {
	return c.manifest.SupportsOpcode(op)
}

// SupportsCapability reports whether the endpoint declared the capability.
func (c *Conn) SupportsCapability(name string) bool {
	return c.manifest.SupportsCapability(name)
}

// Execute runs a request on the endpoint.
func (c *Conn) Execute(ctx context.Context, req *bytecode.Request) (*bytecode.Response, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.ch.Execute(ctx, req)
}

// Close marks the connection closed. The underlying channel owns any
// transport resources and is not touched here.
func (c *Conn) Close() error {
	c.closed.Store(true)
	return nil
}
