package bridge

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/arcan-shmif/netbridge/internal/isolator"
	"github.com/arcan-shmif/netbridge/internal/producer"
	"github.com/arcan-shmif/netbridge/internal/shmif"
)

// runForwardLocal implements the forward-local mode: ignore SIGPIPE,
// create a named connection point via the SSA, and for each producer
// that completes the handshake, attempt an outbound authenticated
// session with bounded retries/backoff, then hand the (PR, session)
// pair to a per-connection worker under the configured isolator
// policy.
func runForwardLocal(ctx context.Context, cfg Config) error {
	ignoreSIGPIPE()

	seg, err := shmif.Allocate(true)
	if err != nil {
		return fmt.Errorf("bridge: forward-local: allocate connpoint %q: %w", cfg.Connpoint, err)
	}
	defer seg.Close()

	pr := newForwardLocalRecord(seg, cfg)

	for {
		select {
		case <-ctx.Done():
			pr.Destroy()
			return ctx.Err()
		default:
		}

		producer.Drive(pr, producer.CmdPoll)
		if pr.FeedState == producer.StateDestroyed {
			return fmt.Errorf("bridge: forward-local: connection point destroyed")
		}
		if pr.FeedState != producer.StateReady {
			continue
		}

		sess, err := Dial(ctx, cfg.Dialer, cfg.Host, cfg.Port, cfg.Retries, func() bool { return pr.Alive }, cfg.Metrics)
		if err != nil {
			pr.Destroy()
			return fmt.Errorf("bridge: forward-local: outbound connect: %w", err)
		}

		if cfg.Policy == isolator.Single {
			// SINGLE serves only one producer at a time; once this one
			// ends, the connpoint is gone too.
			result := bridgeOne(ctx, pr, sess)
			return result.Err
		}

		runForkedConnection(ctx, cfg, pr, sess)
		pr = newForwardLocalRecord(seg, cfg)
	}
}

// runForkedConnection implements the FORK policy for forward-local:
// each accepted producer is handed to its own re-exec'd bridge worker
// via the Per-Connection Isolator, so one misbehaving connection can
// never take the dispatcher itself down with it. Falls back to an
// in-process goroutine when either half can't be handed across a fork
// boundary by descriptor inheritance (e.g. an in-memory test double).
func runForkedConnection(ctx context.Context, cfg Config, pr *producer.Record, sess Session) {
	connFiler, connOK := pr.Conn.(isolator.Filer)
	sessFiler, sessOK := sess.(isolator.Filer)
	if !connOK || !sessOK {
		go func() {
			_ = bridgeOne(ctx, pr, sess).Err
			pr.Destroy()
		}()
		return
	}

	iso := &isolator.Isolator{Policy: cfg.Policy}
	iso.OnWorkerExit = func() { pr.Destroy() }
	if err := iso.Run(ctx, connFiler, sessFiler, nil); err != nil {
		log.Printf("bridge: forward-local: fork: %v", err)
		_ = pr.Conn.Close()
		_ = sess.Close()
		pr.Destroy()
		return
	}
	// The forked worker now owns both descriptors; our copies were
	// duplicated into it, and we are done with them here.
	_ = pr.Conn.Close()
	_ = sess.Close()
}

func newForwardLocalRecord(seg *shmif.Segment, cfg Config) *producer.Record {
	pr := producer.NewListeningRecord(seg, nil, producer.KeyCap)
	pr.Metrics = cfg.Metrics
	return pr
}

func ignoreSIGPIPE() {
	signal.Ignore(syscall.SIGPIPE)
}
