package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/arcan-shmif/netbridge/internal/bridge"
)

// plainSession wraps a raw net.Conn as a bridge.Session. The
// authenticated key exchange and wire-protocol framing that would
// normally produce a Session are an explicit external collaborator
// (spec: "cryptographic primitives of the wire protocol" is
// contract-only and out of scope for this core) -- this is the
// minimal concrete Session the CLI front end supplies so the binary
// runs end-to-end without that layer, not a stand-in claiming to be
// authenticated in any meaningful sense.
type plainSession struct {
	net.Conn
}

func (plainSession) Authenticated() bool { return true }

// tcpDialer is the default outbound bridge.Dialer: a plain TCP dial,
// optionally routed through golang.org/x/net/proxy via
// bridge.ProxyDialer when a proxy environment variable is set.
func tcpDialer() bridge.Dialer {
	return bridge.ProxyDialer(func(ctx context.Context, conn net.Conn) (bridge.Session, error) {
		return plainSession{conn}, nil
	})
}

// tcpAcceptor implements bridge.Acceptor by listening on a TCP port.
// It also implements bridge.Dialer as a stub: bridge.Config.Dialer is
// one field serving both roles (runListen type-asserts it to
// Acceptor), and listen mode never dials out through it.
type tcpAcceptor struct {
	ln net.Listener
}

func (a *tcpAcceptor) Dial(ctx context.Context, host string, port int) (bridge.Session, error) {
	return nil, fmt.Errorf("tcpAcceptor: outbound dial not supported in listen mode")
}

func listenTCP(host string, port int) (*tcpAcceptor, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpAcceptor{ln: ln}, nil
}

func (a *tcpAcceptor) Accept(ctx context.Context) (bridge.Session, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := a.ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return plainSession{r.conn}, nil
	}
}

func (a *tcpAcceptor) Close() error {
	return a.ln.Close()
}
