package shmif

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ConnpointPrefix is the compile-time-equivalent prefix used to build
// named-socket paths. It is a package variable rather than a true Go
// constant so main can override it from ARCAN_CONNPOINT_PREFIX before
// the first Allocate call.
var ConnpointPrefix = "arcan_"

// sockPathLimit mirrors the struct sockaddr_un sun_path capacity on
// Linux (108 bytes including the NUL terminator).
const sockPathLimit = 107

var (
	// ErrKeyMissing is returned when a named listener is requested but
	// no (or an empty) key was supplied.
	ErrKeyMissing = errors.New("shmif: named socket requested with empty key")
	// ErrPathTooLong is returned when the assembled socket path would
	// exceed the platform's sockaddr_un capacity.
	ErrPathTooLong = errors.New("shmif: assembled socket path exceeds platform limit")
	// ErrHomeUnset is returned when ConnpointPrefix is HOME-relative but
	// $HOME is not set in the environment.
	ErrHomeUnset = errors.New("shmif: connpoint prefix is HOME-relative but $HOME is unset")
)

// Segment is an allocated SharedPage plus its synchronisation
// primitives and (if requested) its named listening socket.
type Segment struct {
	Key    string
	Page   []byte
	Sems   SemaphoreTriple
	fd     int
	Socket net.Listener // nil unless a named listener was requested
	// SockPath is the filesystem (or abstract-namespace) path backing
	// Socket, non-empty only when Socket is non-nil. It is unlinked on
	// Close for the filesystem-path cases.
	SockPath string
}

// Allocate implements the Shared Segment Allocator: it draws a unique
// SharedSegmentKey, opens the semaphore triple derived from it, and --
// if named is true -- binds and listens on a connection-point socket
// built from ConnpointPrefix and the key, using three path-building
// rules:
//
//  1. abstract namespace, if ConnpointPrefix starts with NUL
//     (Linux only)
//  2. $HOME-relative, if ConnpointPrefix is not absolute
//  3. literal, if ConnpointPrefix is absolute
//
// The segment starts truncated to StartSize and is grown later via
// Resize.
func Allocate(named bool) (*Segment, error) {
	key, err := NewSegmentKey(MaxKeyLen, nil)
	if err != nil {
		return nil, err
	}

	sems, err := OpenSemaphoreTriple(key)
	if err != nil {
		return nil, err
	}

	var (
		ln       net.Listener
		sockPath string
	)
	if named {
		ln, sockPath, err = listenNamed(key)
		if err != nil {
			_ = sems.Close()
			return nil, err
		}
	}

	fd, err := unix.MemfdCreate(key, 0)
	if err != nil {
		_ = sems.Close()
		if ln != nil {
			_ = ln.Close()
			unlinkSockPath(sockPath)
		}
		return nil, fmt.Errorf("shmif: memfd_create: %w", err)
	}

	if err := unix.Ftruncate(fd, StartSize); err != nil {
		_ = unix.Close(fd)
		_ = sems.Close()
		if ln != nil {
			_ = ln.Close()
			unlinkSockPath(sockPath)
		}
		return nil, fmt.Errorf("shmif: ftruncate: %w", err)
	}

	page, err := unix.Mmap(fd, 0, StartSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		_ = sems.Close()
		if ln != nil {
			_ = ln.Close()
			unlinkSockPath(sockPath)
		}
		return nil, fmt.Errorf("shmif: mmap: %w", err)
	}

	w, h := uint32(DefaultW), uint32(DefaultH)
	PutHeader(page, Header{
		VersionMajor: 0,
		VersionMinor: 1,
		ParentPID:    int32(os.Getpid()),
		Cookie:       Cookie(),
		SegmentSize:  StartSize,
		Width:        w,
		Height:       h,
	})

	return &Segment{
		Key:      key,
		Page:     page,
		Sems:     sems,
		fd:       fd,
		Socket:   ln,
		SockPath: sockPath,
	}, nil
}

// Close tears the segment down: close and unlink the listening socket
// (if any), unmap, close the backing descriptor, then unlink the
// three semaphores. Order matters -- the socket goes first so a late
// racer cannot connect to a half-torn-down segment.
func (s *Segment) Close() error {
	var firstErr error
	if s.Socket != nil {
		if err := s.Socket.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		unlinkSockPath(s.SockPath)
	}
	if s.Page != nil {
		if err := unix.Munmap(s.Page); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.fd != 0 {
		if err := unix.Close(s.fd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.Sems.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// listenNamed builds the connection-point path for key under
// ConnpointPrefix and binds+listens a stream socket on it, per the
// three path-building rules. net.Listen takes no backlog argument, so
// the socket listens with the system default backlog, not a backlog
// of 1.
func listenNamed(key string) (net.Listener, string, error) {
	if key == "" {
		return nil, "", ErrKeyMissing
	}

	path, abstract, err := buildSockPath(key)
	if err != nil {
		return nil, "", err
	}

	addr := path
	if abstract {
		// Go's net package spells the Linux abstract namespace with a
		// leading NUL, exposed to callers as a leading '@'.
		addr = "@" + path[1:]
	} else {
		_ = os.Remove(path) // drop a stale listener from a prior run
	}

	ln, err := net.Listen("unix", addr)
	if err != nil {
		return nil, "", fmt.Errorf("shmif: listen on connpoint: %w", err)
	}

	if !abstract {
		if err := os.Chmod(path, 0o700); err != nil {
			_ = ln.Close()
			_ = os.Remove(path)
			return nil, "", fmt.Errorf("shmif: chmod connpoint: %w", err)
		}
	}

	return ln, path, nil
}

func buildSockPath(key string) (path string, abstract bool, err error) {
	prefix := ConnpointPrefix

	switch {
	case len(prefix) > 0 && prefix[0] == 0:
		p := prefix + key
		if len(p) > sockPathLimit {
			return "", false, ErrPathTooLong
		}
		return p, true, nil

	case !filepath.IsAbs(prefix):
		home := os.Getenv("HOME")
		if home == "" {
			return "", false, ErrHomeUnset
		}
		p := filepath.Join(home, prefix+key)
		if len(p) > sockPathLimit {
			return "", false, ErrPathTooLong
		}
		return p, false, nil

	default:
		p := prefix + key
		if len(p) > sockPathLimit {
			return "", false, ErrPathTooLong
		}
		return p, false, nil
	}
}

func unlinkSockPath(path string) {
	if path == "" || path[0] == 0 {
		return
	}
	_ = os.Remove(path)
}
