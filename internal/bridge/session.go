// Package bridge implements the Network Bridge Dispatcher: it
// multiplexes between local producer IPC and an authenticated remote
// channel across four operating modes, using Per-Connection Isolator
// policies to confine each bridged producer to its own process.
package bridge

import (
	"context"
	"io"
)

// Session is an authenticated remote channel. The wire protocol bytes
// and the authenticated key exchange that produce a Session are
// explicitly out of scope for this core (spec: cryptographic
// primitives of the wire protocol are a contract-only external
// collaborator); the core only ever observes the Authenticated
// predicate and the byte stream.
type Session interface {
	io.ReadWriteCloser
	Authenticated() bool
}

// Dialer opens an outbound Session to (host, port). Concrete
// implementations live outside this package's concern (the transport
// crypto handshake); Dial is injected so the dispatcher never needs to
// know how authentication happens.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, host string, port int) (Session, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, host string, port int) (Session, error) {
	return f(ctx, host, port)
}

// Acceptor accepts inbound authenticated Sessions, for listen mode.
type Acceptor interface {
	Accept(ctx context.Context) (Session, error)
	Close() error
}

// Result is the outcome of one bridged session, used to pick an exit
// code at every dispatch boundary (outbound client, per-connection
// worker, exec-on-connect child).
type Result struct {
	Err error
}

// ExitCode maps a Result to the process exit-code contract: 0 on
// clean session end, non-zero otherwise.
func (r Result) ExitCode() int {
	if r.Err == nil {
		return 0
	}
	return 1
}
