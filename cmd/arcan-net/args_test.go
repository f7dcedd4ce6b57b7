package main

import (
	"testing"

	"github.com/arcan-shmif/netbridge/internal/bridge"
	"github.com/arcan-shmif/netbridge/internal/trace"
)

func TestParseForwardLocal(t *testing.T) {
	opt, err := parseArgs([]string{"-s", "mycp", "example.org", "6680"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opt.mode != bridge.ModeForwardLocal || opt.connpoint != "mycp" || opt.host != "example.org" || opt.port != 6680 {
		t.Fatalf("got %+v", opt)
	}
}

func TestParseForwardLocalRejectsBadConnpoint(t *testing.T) {
	if _, err := parseArgs([]string{"-s", "bad cp", "h", "1"}); err == nil {
		t.Fatalf("expected rejection of non-alnum connpoint")
	}
}

func TestParseInheritedSocket(t *testing.T) {
	opt, err := parseArgs([]string{"-S", "9", "example.org", "6680"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opt.mode != bridge.ModeInheritedSocket || opt.inheritedFD != 9 {
		t.Fatalf("got %+v", opt)
	}
}

func TestParseListenNoHostNoExec(t *testing.T) {
	opt, err := parseArgs([]string{"-l", "6680"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opt.mode != bridge.ModeListen || opt.listenPort != 6680 {
		t.Fatalf("got %+v", opt)
	}
}

func TestParseListenWithHost(t *testing.T) {
	opt, err := parseArgs([]string{"-l", "6680", "0.0.0.0"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opt.listenHost != "0.0.0.0" {
		t.Fatalf("got %+v", opt)
	}
}

func TestParseListenExec(t *testing.T) {
	opt, err := parseArgs([]string{"-l", "6680", "-exec", "/bin/producer", "arg1", "arg2"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opt.mode != bridge.ModeExecOnConnect || opt.execBin != "/bin/producer" {
		t.Fatalf("got %+v", opt)
	}
	if len(opt.execArgs) != 2 || opt.execArgs[0] != "arg1" || opt.execArgs[1] != "arg2" {
		t.Fatalf("execArgs = %v", opt.execArgs)
	}
}

func TestParseSingleAndRetryAndTrace(t *testing.T) {
	opt, err := parseArgs([]string{"-t", "-r", "3", "-d", "video,crypto", "-s", "cp", "h", "1"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !opt.single || opt.retries != 3 {
		t.Fatalf("got %+v", opt)
	}
	if opt.traceGroups != trace.Video|trace.Crypto {
		t.Fatalf("traceGroups = %d, want Video|Crypto", opt.traceGroups)
	}
}

func TestParseOutboundPositional(t *testing.T) {
	opt, err := parseArgs([]string{"relay@example.org", "7000"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !opt.hasOutbound || opt.outboundSpec != "relay@example.org" || opt.port != 7000 {
		t.Fatalf("got %+v", opt)
	}
}

func TestParseKeystore(t *testing.T) {
	opt, err := parseArgs([]string{"keystore", "-b", "/tmp/ks", "relay", "host.example", "7000"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !opt.keystoreCmd || opt.keystoreDir != "/tmp/ks" || opt.keystoreTag != "relay" ||
		opt.keystoreHost != "host.example" || opt.keystorePort != 7000 {
		t.Fatalf("got %+v", opt)
	}
}

func TestParseKeystoreDefaultPort(t *testing.T) {
	opt, err := parseArgs([]string{"keystore", "relay", "host.example"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opt.keystorePort != bridge.DefaultPort {
		t.Fatalf("port = %d, want %d", opt.keystorePort, bridge.DefaultPort)
	}
}

func TestParseMixedModeRejected(t *testing.T) {
	if _, err := parseArgs([]string{"-s", "cp", "h", "1", "-l", "99"}); err == nil {
		t.Fatalf("expected rejection of mixed -s/-l")
	}
}
