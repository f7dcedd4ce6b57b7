package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/arcan-shmif/netbridge/internal/producer"
)

func TestModeString(t *testing.T) {
	cases := map[Mode]string{
		ModeForwardLocal:    "forward-local",
		ModeInheritedSocket: "inherited-socket",
		ModeListen:          "listen",
		ModeExecOnConnect:   "exec-on-connect",
	}
	for m, want := range cases {
		if got := m.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", m, got, want)
		}
	}
}

func TestResultExitCode(t *testing.T) {
	if (Result{}).ExitCode() != 0 {
		t.Fatalf("clean Result should exit 0")
	}
	if (Result{Err: context.Canceled}).ExitCode() == 0 {
		t.Fatalf("failed Result should exit non-zero")
	}
}

// pipeSession wraps one half of a net.Pipe as a Session for tests,
// since a Session only adds an Authenticated predicate atop a byte
// stream.
type pipeSession struct {
	net.Conn
}

func (p *pipeSession) Authenticated() bool { return true }

func TestBridgeOneRelaysBytesUntilClose(t *testing.T) {
	prLocal, prRemote := net.Pipe()
	sessLocal, sessRemote := net.Pipe()

	pr := &producer.Record{Conn: prLocal, Alive: true, FeedState: producer.StateReady}
	sess := &pipeSession{Conn: sessLocal}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan Result, 1)
	go func() { done <- bridgeOne(ctx, pr, sess) }()

	go func() {
		buf := make([]byte, 5)
		_, _ = prRemote.Read(buf)
		_ = prRemote.Close()
	}()
	relayed := make(chan string, 1)
	go func() {
		buf := make([]byte, 5)
		n, _ := sessRemote.Read(buf)
		relayed <- string(buf[:n])
		_ = sessRemote.Close()
	}()

	_, _ = prRemote.Write([]byte("hello"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("bridgeOne did not complete in time")
	}
	if got := <-relayed; got != "hello" {
		t.Fatalf("session side received %q, want %q", got, "hello")
	}
}

func TestBridgeOneRejectsMissingHalves(t *testing.T) {
	r := bridgeOne(context.Background(), nil, nil)
	if r.Err == nil {
		t.Fatalf("expected an error when the producer or session is missing")
	}
}
