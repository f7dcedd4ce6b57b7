package bridge

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/arcan-shmif/netbridge/internal/producer"
)

// runInheritedSocket implements inherited-socket mode: adopt a
// caller-supplied file descriptor that must fstat as a socket,
// skipping the named-socket path (no SSA connection point is ever
// bound), then proceed straight to the forward-local dispatch step.
func runInheritedSocket(ctx context.Context, cfg Config) error {
	conn, err := adoptSocketFD(cfg.InheritedFD)
	if err != nil {
		return fmt.Errorf("bridge: inherited-socket: %w", err)
	}

	pr := &producer.Record{
		Conn:      conn,
		ChildPid:  producer.NonePid,
		Alive:     true,
		FeedState: producer.StateReady,
		Metrics:   cfg.Metrics,
	}
	if cfg.Metrics != nil {
		cfg.Metrics.ProducersAccepted.Inc()
		cfg.Metrics.ActiveProducers.Inc()
	}

	sess, err := Dial(ctx, cfg.Dialer, cfg.Host, cfg.Port, cfg.Retries, func() bool { return pr.Alive }, cfg.Metrics)
	if err != nil {
		pr.Destroy()
		return fmt.Errorf("bridge: inherited-socket: outbound connect: %w", err)
	}

	result := bridgeOne(ctx, pr, sess)
	pr.Destroy()
	return result.Err
}

// adoptSocketFD wraps fd as a net.Conn, failing if fd does not fstat
// as a socket.
func adoptSocketFD(fd int) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), "inherited-socket")
	if f == nil {
		return nil, fmt.Errorf("invalid descriptor %d", fd)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("fstat fd %d: %w", fd, err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		f.Close()
		return nil, fmt.Errorf("fd %d is not a socket", fd)
	}
	conn, err := net.FileConn(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wrap fd %d: %w", fd, err)
	}
	f.Close()
	return conn, nil
}
