package bridge

import (
	"context"
	"fmt"
	"net"

	"github.com/arcan-shmif/netbridge/internal/config"
	"github.com/arcan-shmif/netbridge/internal/isolator"
	"github.com/arcan-shmif/netbridge/internal/producer"
	"github.com/arcan-shmif/netbridge/internal/shmif"
	"github.com/arcan-shmif/netbridge/internal/supervisor"
)

// finishProducer retires pr once its bridged session has ended: Destroy
// releases its resources and updates the active-producer gauge, and --
// for exec-on-connect producers this bridge owns -- the nanny reaper
// runs for its child process.
func finishProducer(cfg Config, pr *producer.Record) {
	pr.Destroy()
	if pr.ChildPid == producer.NonePid {
		return
	}
	supervisor.Reap(&config.Config{NoNanny: cfg.NoNanny}, pr.ChildPid, cfg.Metrics)
}

// runListen implements listen and exec-on-connect: bind and accept
// remote authenticated connections. For each, either forward to a
// local PR found via the connection point, or (exec-on-connect) spawn
// the configured binary per the producer-spawn contract and wire its
// fresh PR to the authenticated session.
func runListen(ctx context.Context, cfg Config) error {
	acceptor, ok := cfg.Dialer.(Acceptor)
	if !ok {
		return fmt.Errorf("bridge: listen: configured dialer cannot accept inbound sessions")
	}
	defer acceptor.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sess, err := acceptor.Accept(ctx)
		if err != nil {
			return fmt.Errorf("bridge: listen: accept: %w", err)
		}
		if !sess.Authenticated() {
			_ = sess.Close()
			continue
		}

		pr, err := localProducerFor(ctx, cfg)
		if err != nil {
			_ = sess.Close()
			continue
		}

		work := func(ctx context.Context) error {
			return bridgeOne(ctx, pr, sess).Err
		}

		iso := &isolator.Isolator{Policy: cfg.Policy}
		if cfg.Policy == isolator.Single {
			_ = iso.Run(ctx, nil, nil, work)
			finishProducer(cfg, pr)
		} else {
			connFiler, connOK := pr.Conn.(isolator.Filer)
			sessFiler, sessOK := sess.(isolator.Filer)
			if connOK && sessOK {
				iso.OnWorkerExit = func() { finishProducer(cfg, pr) }
				if err := iso.Run(ctx, connFiler, sessFiler, nil); err != nil {
					_ = sess.Close()
					finishProducer(cfg, pr)
				} else {
					// The forked worker now owns both descriptors (File()
					// already duplicated them); our copies are done here.
					// finishProducer (via OnWorkerExit) still runs later to
					// reap the child and update the active-producer gauge.
					_ = sess.Close()
					_ = pr.Conn.Close()
				}
			} else {
				// Neither half supports descriptor inheritance (e.g. an
				// in-memory test double); fall back to in-process handling
				// rather than silently dropping the connection.
				go func() {
					_ = work(ctx)
					finishProducer(cfg, pr)
				}()
			}
		}
	}
}

// localProducerFor resolves the local producer side for an inbound
// connection: in exec-on-connect mode, spawn the configured binary
// per the producer-spawn contract; in plain listen mode, connect to
// the named connection point the local frameserver is already
// listening on.
func localProducerFor(ctx context.Context, cfg Config) (*producer.Record, error) {
	if cfg.Mode == ModeExecOnConnect {
		return spawnExecProducer(ctx, cfg)
	}
	return dialLocalConnpoint(cfg)
}

func spawnExecProducer(ctx context.Context, cfg Config) (*producer.Record, error) {
	if cfg.ExecBin == "" {
		return nil, fmt.Errorf("bridge: exec-on-connect: no binary configured")
	}
	child, err := supervisor.Launch(ctx, "exec-on-connect", supervisor.LaunchSpec{
		Path: cfg.ExecBin,
		Args: cfg.ExecArgs,
	})
	if err != nil {
		return nil, err
	}
	pr := &producer.Record{
		ChildPid:  child.Pid,
		Alive:     true,
		FeedState: producer.StateReady,
		Metrics:   cfg.Metrics,
	}
	if cfg.Metrics != nil {
		cfg.Metrics.ProducersAccepted.Inc()
		cfg.Metrics.ActiveProducers.Inc()
	}
	return pr, nil
}

func dialLocalConnpoint(cfg Config) (*producer.Record, error) {
	conn, err := net.Dial("unix", shmif.ConnpointPrefix+cfg.Connpoint)
	if err != nil {
		return nil, fmt.Errorf("bridge: listen: dial local connpoint: %w", err)
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
	return pr, nil
}
