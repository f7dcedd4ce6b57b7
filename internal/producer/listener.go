package producer

import (
	"errors"
	"os"
	"time"
)

// KeyCap is the maximum number of bytes read while verifying a
// client's key before the attempt is treated as overflow.
const KeyCap = 32

// SendKeyRetries bounds the number of EAGAIN/EWOULDBLOCK/EINTR retries
// attempted while writing the segment key back to a verified client.
const SendKeyRetries = 32

// Command selects what the CLV driver should do on this invocation.
type Command int

const (
	CmdPoll Command = iota
	CmdDestroy
)

// Drive advances r's feed state by one step in response to cmd. It is
// the single entry point for the Connection Listener & Verifier state
// machine: socket-listening -> socket-verifying -> ready (or
// destroyed at any point).
func Drive(r *Record, cmd Command) {
	if cmd == CmdDestroy {
		r.Destroy()
		return
	}

	switch r.FeedState {
	case StateSocketListening:
		driveListening(r)
	case StateSocketVerifying:
		driveVerifying(r)
	case StateReady, StateDestroyed:
		// No-op: ready producers are driven by the event-queue pump, not
		// this handshake driver.
	}
}

func driveListening(r *Record) {
	if r.Listener == nil {
		r.Destroy()
		return
	}

	type deadlineSetter interface {
		SetDeadline(time.Time) error
	}
	if ds, ok := r.Listener.(deadlineSetter); ok {
		_ = ds.SetDeadline(time.Now())
	}

	conn, err := r.Listener.Accept()
	if err != nil {
		// No pending connection (deadline expired): stay in
		// socket-listening and try again on the next poll.
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return
		}
		r.Destroy()
		return
	}

	// A connection has been consumed: the named endpoint is no longer
	// reusable, so it is retired immediately rather than left to be
	// impersonated by a late racer.
	_ = r.Listener.Close()
	r.Listener = nil
	r.Conn = conn
	r.FeedState = StateSocketVerifying
	r.inbuf = r.inbuf[:0]
	r.inbufOffset = 0

	// Immediately re-enter with the same command, per the driver
	// contract.
	driveVerifying(r)
}

func driveVerifying(r *Record) {
	if r.Conn == nil {
		r.Destroy()
		return
	}

	if len(r.ExpectedClientKey) == 0 {
		transitionSendKey(r)
		return
	}

	_ = r.Conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	buf := make([]byte, 1)
	for {
		n, err := r.Conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return // no more bytes yet; stay in socket-verifying
			}
			r.Destroy()
			return
		}
		if n == 0 {
			continue
		}
		if buf[0] == '\n' {
			padded := make([]byte, KeyCap)
			copy(padded, r.inbuf)
			if constantTimeEqual(padded, padKey(r.ExpectedClientKey, KeyCap)) {
				transitionSendKey(r)
			} else {
				if r.Metrics != nil {
					r.Metrics.VerifyFailures.Inc()
				}
				r.Destroy()
			}
			return
		}
		if len(r.inbuf) >= KeyCap {
			r.Destroy() // overflow without newline
			return
		}
		r.inbuf = append(r.inbuf, buf[0])
	}
}

func transitionSendKey(r *Record) {
	payload := append([]byte(r.Segment.Key), '\n')
	_ = r.Conn.SetWriteDeadline(time.Time{})

	written := 0
	for attempt := 0; attempt < SendKeyRetries && written < len(payload); attempt++ {
		_ = r.Conn.SetWriteDeadline(time.Now().Add(10 * time.Millisecond))
		n, err := r.Conn.Write(payload[written:])
		written += n
		if err == nil {
			continue
		}
		if errors.Is(err, os.ErrDeadlineExceeded) || isTemporary(err) {
			continue
		}
		r.Destroy()
		return
	}
	if written < len(payload) {
		r.Destroy()
		return
	}

	_ = r.Conn.SetWriteDeadline(time.Time{})
	r.FeedState = StateReady
	// No audio channel is attached on this path (SpawnSubsegment does
	// not attach one either).
	if r.Metrics != nil {
		r.Metrics.ProducersAccepted.Inc()
		r.Metrics.ActiveProducers.Inc()
	}
}

func isTemporary(err error) bool {
	type temporary interface{ Temporary() bool }
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

func padKey(key []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, key)
	return out
}

// constantTimeEqual compares two equal-length byte slices by
// accumulating XOR differences over the full length -- it never
// short-circuits on the first mismatch, so the time to reject is
// independent of where the first differing byte falls.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
