package bridge

import (
	"context"
	"fmt"

	"github.com/arcan-shmif/netbridge/internal/isolator"
	"github.com/arcan-shmif/netbridge/internal/metrics"
	"github.com/arcan-shmif/netbridge/internal/producer"
)

// Mode selects one of the Network Bridge Dispatcher's four operating
// modes, chosen once at startup from the CLI surface.
type Mode int

const (
	ModeForwardLocal Mode = iota
	ModeInheritedSocket
	ModeListen
	ModeExecOnConnect
)

func (m Mode) String() string {
	switch m {
	case ModeForwardLocal:
		return "forward-local"
	case ModeInheritedSocket:
		return "inherited-socket"
	case ModeListen:
		return "listen"
	case ModeExecOnConnect:
		return "exec-on-connect"
	default:
		return "unknown"
	}
}

// Config bundles the parameters a Dispatcher needs, matching the CLI
// surface for the selected Mode.
type Config struct {
	Mode Mode

	// forward-local / outbound
	Connpoint string
	Host      string
	Port      int

	// inherited-socket
	InheritedFD int

	// listen
	ListenPort int
	ListenHost string
	ExecBin    string
	ExecArgs   []string

	Dialer   Dialer
	Policy   isolator.Policy
	Retries  int
	Redirect string // ARCAN_CONNPATH: redirect target on remote exit ("" disables)

	// Metrics is the ambient counters/gauges set; nil disables
	// instrumentation entirely rather than requiring a discard sink.
	Metrics *metrics.Metrics
	// NoNanny mirrors config.Config.NoNanny (ARCAN_DEBUG_NONANNY):
	// disables the child supervisor's bounded-wait-then-kill reaper.
	NoNanny bool
}

// Dispatcher runs the bridge for a fixed Mode until its governing
// context is cancelled.
type Dispatcher struct {
	cfg Config
}

// New builds a Dispatcher for cfg.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// Run executes the dispatch skeleton for the configured Mode.
func (d *Dispatcher) Run(ctx context.Context) error {
	switch d.cfg.Mode {
	case ModeForwardLocal:
		return runForwardLocal(ctx, d.cfg)
	case ModeInheritedSocket:
		return runInheritedSocket(ctx, d.cfg)
	case ModeListen, ModeExecOnConnect:
		return runListen(ctx, d.cfg)
	default:
		return fmt.Errorf("bridge: unknown mode %v", d.cfg.Mode)
	}
}

// bridgeOne pipes a single (local PR, remote Session) pair until
// either side closes, then reports a Result. The framebuffer/event
// pump itself lives with the (out of scope) video pipeline; this
// drives only the byte-stream relay the core owns.
func bridgeOne(ctx context.Context, pr *producer.Record, sess Session) Result {
	if pr == nil || pr.Conn == nil || sess == nil {
		return Result{Err: fmt.Errorf("bridge: missing producer connection or session")}
	}

	errCh := make(chan error, 2)
	go func() { _, err := copyCtx(ctx, sess, pr.Conn); errCh <- err }()
	go func() { _, err := copyCtx(ctx, pr.Conn, sess); errCh <- err }()

	select {
	case <-ctx.Done():
		_ = sess.Close()
		_ = pr.Conn.Close()
		return Result{Err: ctx.Err()}
	case err := <-errCh:
		_ = sess.Close()
		_ = pr.Conn.Close()
		return Result{Err: err}
	}
}
