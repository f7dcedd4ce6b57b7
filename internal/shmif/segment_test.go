package shmif

import (
	"os"
	"testing"
)

func TestBuildSockPathLiteralPrefix(t *testing.T) {
	old := ConnpointPrefix
	defer func() { ConnpointPrefix = old }()

	ConnpointPrefix = "/tmp/arcan_"
	path, abstract, err := buildSockPath("mykey")
	if err != nil {
		t.Fatalf("buildSockPath: %v", err)
	}
	if abstract {
		t.Fatalf("literal prefix must not produce an abstract path")
	}
	if path != "/tmp/arcan_mykey" {
		t.Fatalf("path = %q, want /tmp/arcan_mykey", path)
	}
}

func TestBuildSockPathHomeRelative(t *testing.T) {
	old := ConnpointPrefix
	defer func() { ConnpointPrefix = old }()
	oldHome := os.Getenv("HOME")
	defer os.Setenv("HOME", oldHome)

	ConnpointPrefix = ".arcan/"
	os.Setenv("HOME", "/home/tester")
	path, abstract, err := buildSockPath("mykey")
	if err != nil {
		t.Fatalf("buildSockPath: %v", err)
	}
	if abstract {
		t.Fatalf("HOME-relative prefix must not produce an abstract path")
	}
	if path != "/home/tester/.arcan/mykey" {
		t.Fatalf("path = %q", path)
	}
}

func TestBuildSockPathHomeUnset(t *testing.T) {
	old := ConnpointPrefix
	defer func() { ConnpointPrefix = old }()
	oldHome := os.Getenv("HOME")
	defer os.Setenv("HOME", oldHome)

	ConnpointPrefix = ".arcan/"
	os.Unsetenv("HOME")
	if _, _, err := buildSockPath("mykey"); err != ErrHomeUnset {
		t.Fatalf("err = %v, want ErrHomeUnset", err)
	}
}

func TestBuildSockPathTooLong(t *testing.T) {
	old := ConnpointPrefix
	defer func() { ConnpointPrefix = old }()

	ConnpointPrefix = "/tmp/"
	longKey := make([]byte, 200)
	for i := range longKey {
		longKey[i] = 'x'
	}
	if _, _, err := buildSockPath(string(longKey)); err != ErrPathTooLong {
		t.Fatalf("err = %v, want ErrPathTooLong", err)
	}
}

func TestAllocateUnnamedRoundTrip(t *testing.T) {
	seg, err := Allocate(false)
	if err != nil {
		t.Skipf("memfd/semaphore facilities unavailable: %v", err)
	}
	defer seg.Close()

	if len(seg.Key) == 0 {
		t.Fatalf("expected a non-empty segment key")
	}
	if seg.Socket != nil {
		t.Fatalf("unnamed allocation should not open a listener")
	}
	h := GetHeader(seg.Page)
	if h.Cookie != Cookie() {
		t.Fatalf("cookie mismatch: got %d want %d", h.Cookie, Cookie())
	}
	if h.SegmentSize != StartSize {
		t.Fatalf("SegmentSize = %d, want %d", h.SegmentSize, uint64(StartSize))
	}
}

func TestAllocateNamedListens(t *testing.T) {
	old := ConnpointPrefix
	defer func() { ConnpointPrefix = old }()
	ConnpointPrefix = "/tmp/shmif_test_"

	seg, err := Allocate(true)
	if err != nil {
		t.Skipf("memfd/semaphore/socket facilities unavailable: %v", err)
	}
	defer seg.Close()

	if seg.Socket == nil {
		t.Fatalf("named allocation should open a listener")
	}
	if _, err := os.Stat(seg.SockPath); err != nil {
		t.Fatalf("expected socket path to exist: %v", err)
	}
}
