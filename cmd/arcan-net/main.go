// Command arcan-net is the network bridge front end: it wires a local
// frame-producer connection point (or an already-connected socket) to
// a remote authenticated session, in any of four modes, and also
// doubles as the keystore CLI and the bare outbound client.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcan-shmif/netbridge/internal/bridge"
	"github.com/arcan-shmif/netbridge/internal/config"
	"github.com/arcan-shmif/netbridge/internal/isolator"
	"github.com/arcan-shmif/netbridge/internal/keystore"
	"github.com/arcan-shmif/netbridge/internal/metrics"
	"github.com/arcan-shmif/netbridge/internal/producer"
	"github.com/arcan-shmif/netbridge/internal/shmif"
)

const usage = `arcan-net -- frame-producer network bridge

  -s connpoint host port         forward-local: bridge a named connpoint to a remote host
  -S fd host port                forward-local with an inherited socket descriptor
  -l port [host] [-exec bin arg...]   listen (or exec-on-connect with -exec)
  -t                              single-connection, no fork
  -X                              disable on-exit redirect to ARCAN_CONNPATH
  -r n, --retry n                 bounded outbound retries (default: unbounded)
  -d <bitmap|csv>                  stderr trace-group selector
  -a [n]                          read an auth secret from stdin, pre-authorise n keys
  keystore [-b dir] tag host [port=6680]   register a keystore entry
  [tag@]host [port]                outbound client
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if os.Getenv(isolator.ChildEnvFlag) == "1" {
		return runWorker()
	}

	if len(argv) == 0 || argv[0] == "-h" || argv[0] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	opt, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arcan-net: %v\n%s", err, usage)
		return 1
	}

	cfg := config.Load()
	if cfg.ConnpointPrefix != "" {
		shmif.ConnpointPrefix = cfg.ConnpointPrefix
	}

	if opt.keystoreCmd {
		return runKeystoreCmd(cfg, opt)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opt.traceGroups != 0 {
		log.Printf("arcan-net: trace groups enabled: %b", uint32(opt.traceGroups))
	}

	if opt.authSet {
		secret, preauthKeys, err := readAuthSecret(os.Stdin, opt.authPreauth)
		if err != nil {
			fmt.Fprintf(os.Stderr, "arcan-net: read auth secret: %v\n", err)
			return 1
		}
		log.Printf("arcan-net: read %d-byte auth secret, pre-authorising %d key(s)", len(secret), len(preauthKeys))
	}

	m := metrics.New()
	startMetricsServer(m)

	redirect := cfg.ConnPath
	if opt.noRedirect {
		redirect = ""
	}

	dcfg := bridge.Config{
		Connpoint:   opt.connpoint,
		Host:        opt.host,
		Port:        opt.port,
		InheritedFD: opt.inheritedFD,
		ListenPort:  opt.listenPort,
		ListenHost:  opt.listenHost,
		ExecBin:     opt.execBin,
		ExecArgs:    opt.execArgs,
		Dialer:      tcpDialer(),
		Policy:      opt.isolatorPolicy(),
		Retries:     opt.retries,
		Redirect:    redirect,
		Metrics:     m,
		NoNanny:     cfg.NoNanny,
	}

	switch {
	case opt.mode == bridge.ModeForwardLocal && opt.connpoint != "":
		dcfg.Mode = bridge.ModeForwardLocal
	case opt.mode == bridge.ModeInheritedSocket:
		dcfg.Mode = bridge.ModeInheritedSocket
	case opt.mode == bridge.ModeListen || opt.mode == bridge.ModeExecOnConnect:
		dcfg.Mode = opt.mode
		acceptor, err := listenTCP(opt.listenHost, opt.listenPort)
		if err != nil {
			fmt.Fprintf(os.Stderr, "arcan-net: bind %s:%d: %v\n", opt.listenHost, opt.listenPort, err)
			return 1
		}
		defer acceptor.Close()
		dcfg.Dialer = acceptor // Acceptor and Dialer are disjoint interfaces; runListen asserts to Acceptor.
	case opt.hasOutbound:
		return runOutbound(ctx, cfg, opt, m)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	d := bridge.New(dcfg)
	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "arcan-net: %v\n", err)
		return 1
	}
	return 0
}

func runKeystoreCmd(cfg *config.Config, opt options) int {
	dir := opt.keystoreDir
	if dir == "" {
		dir = cfg.StatePath
	}
	if dir == "" {
		fmt.Fprintln(os.Stderr, "arcan-net: missing basedir with keystore (set ARCAN_STATEPATH or -b)")
		return 1
	}

	ks, err := keystore.Open(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arcan-net: keystore: %v\n", err)
		return 1
	}
	defer ks.Close()

	if err := ks.Register(opt.keystoreTag, opt.keystoreHost, opt.keystorePort, nil); err != nil {
		fmt.Fprintf(os.Stderr, "arcan-net: keystore register: %v\n", err)
		return 1
	}
	return 0
}

// runOutbound implements the bare "[tag@]host [port]" form: resolve
// the target (through the keystore if a tag was given), wait for a
// single local producer to complete the connection listener/verifier
// handshake, then bridge that one producer against the resolved
// remote and exit with the bridge result code (spec: reverse mode --
// outbound connection, inbound producer).
func runOutbound(ctx context.Context, cfg *config.Config, opt options, m *metrics.Metrics) int {
	var ks *keystore.Store
	if cfg.StatePath != "" {
		if opened, err := keystore.Open(cfg.StatePath); err == nil {
			ks = opened
			defer ks.Close()
		}
	}

	host, port, err := bridge.ResolveTarget(ks, opt.outboundSpec, opt.port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arcan-net: %v\n", err)
		return 1
	}

	pr, err := acceptOneLocalProducer(ctx, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arcan-net: %v\n", err)
		return 1
	}
	defer pr.Destroy()

	result := bridge.RunOutboundClient(ctx, bridge.Config{
		Host:    host,
		Port:    port,
		Dialer:  tcpDialer(),
		Policy:  opt.isolatorPolicy(),
		Retries: opt.retries,
		Metrics: m,
	}, pr)
	if result.Err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "arcan-net: %v\n", result.Err)
	}
	return result.ExitCode()
}

// acceptOneLocalProducer allocates a connection point whose socket path
// is built from a fresh segment key, and blocks until exactly one producer completes the handshake -- the
// bare outbound client bridges a single producer and exits, unlike
// forward-local's repeated accept loop.
func acceptOneLocalProducer(ctx context.Context, m *metrics.Metrics) (*producer.Record, error) {
	seg, err := shmif.Allocate(true)
	if err != nil {
		return nil, fmt.Errorf("allocate local connection point: %w", err)
	}
	pr := producer.NewListeningRecord(seg, nil, producer.KeyCap)
	pr.Metrics = m
	for {
		select {
		case <-ctx.Done():
			pr.Destroy()
			return nil, ctx.Err()
		default:
		}
		producer.Drive(pr, producer.CmdPoll)
		if pr.FeedState == producer.StateDestroyed {
			return nil, fmt.Errorf("local connection point destroyed before a producer connected")
		}
		if pr.FeedState == producer.StateReady {
			return pr, nil
		}
	}
}

// runWorker is the re-exec'd bridge worker's entry point (Fork
// policy's child), launched with ARCAN_NET_BRIDGE_WORKER=1 and the
// bridged connection/session inherited as descriptors 3 and 4.
func runWorker() int {
	err := isolator.RunWorkerSide(nil, func(conn, sess io.ReadWriteCloser) error {
		errCh := make(chan error, 2)
		go func() { _, err := io.Copy(sess, conn); errCh <- err }()
		go func() { _, err := io.Copy(conn, sess); errCh <- err }()
		err := <-errCh
		conn.Close()
		sess.Close()
		return err
	})
	if err != nil {
		log.Printf("arcan-net: worker: %v", err)
		return 1
	}
	return 0
}

func startMetricsServer(m *metrics.Metrics) {
	addr := os.Getenv("ARCAN_NET_METRICS_ADDR")
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("arcan-net: metrics server: %v", err)
		}
	}()
}
