package bridge

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/net/proxy"

	"github.com/arcan-shmif/netbridge/internal/keystore"
	"github.com/arcan-shmif/netbridge/internal/producer"
)

// DefaultPort is the outbound client's default remote port when none
// is given.
const DefaultPort = 6680

// ResolveTarget parses the outbound client's positional argument
// "[tag@]host [port]": if a tag is present, it resolves (host, port)
// through the keystore, which also wins over an explicit port operand
// present on the command line; otherwise host/port are taken
// literally, defaulting port to DefaultPort.
func ResolveTarget(ks *keystore.Store, spec string, explicitPort int) (host string, port int, err error) {
	tag, rest, hasTag := strings.Cut(spec, "@")
	if !hasTag {
		tag, rest = "", spec
	}

	if tag != "" {
		if ks == nil {
			return "", 0, fmt.Errorf("bridge: outbound: tag %q given but no keystore is open", tag)
		}
		e, ok, lookupErr := ks.Lookup(tag)
		if lookupErr != nil {
			return "", 0, fmt.Errorf("bridge: outbound: keystore lookup %q: %w", tag, lookupErr)
		}
		if !ok {
			return "", 0, fmt.Errorf("bridge: outbound: unknown keystore tag %q", tag)
		}
		return e.Host, e.Port, nil
	}

	host = rest
	port = explicitPort
	if port == 0 {
		port = DefaultPort
	}
	return host, port, nil
}

// ProxyDialer builds an outbound Dialer that honours standard proxy
// environment variables (HTTP_PROXY/HTTPS_PROXY/ALL_PROXY, including
// SOCKS5) via golang.org/x/net/proxy, handing the resulting raw
// connection to wrap to produce an authenticated Session. wrap is the
// (out of scope) wire-protocol handshake step.
func ProxyDialer(wrap func(ctx context.Context, conn net.Conn) (Session, error)) Dialer {
	return DialerFunc(func(ctx context.Context, host string, port int) (Session, error) {
		d := proxy.FromEnvironment()
		addr := net.JoinHostPort(host, strconv.Itoa(port))

		type contextDialer interface {
			DialContext(ctx context.Context, network, address string) (net.Conn, error)
		}
		var (
			conn net.Conn
			err  error
		)
		if cd, ok := d.(contextDialer); ok {
			conn, err = cd.DialContext(ctx, "tcp", addr)
		} else {
			conn, err = d.Dial("tcp", addr)
		}
		if err != nil {
			return nil, fmt.Errorf("bridge: outbound: dial %s: %w", addr, err)
		}
		return wrap(ctx, conn)
	})
}

// RunOutboundClient implements the no-mode outbound client: retry the
// connection to (cfg.Host, cfg.Port) with backoff until the retry
// count is exhausted, then bridge pr against the resulting session and
// return the bridge Result, whose ExitCode is the process exit code.
func RunOutboundClient(ctx context.Context, cfg Config, pr *producer.Record) Result {
	sess, err := Dial(ctx, cfg.Dialer, cfg.Host, cfg.Port, cfg.Retries, func() bool { return pr.Alive }, cfg.Metrics)
	if err != nil {
		return Result{Err: err}
	}
	return bridgeOne(ctx, pr, sess)
}
