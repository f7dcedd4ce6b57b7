// Package producer implements the Producer Record, the connection
// listener/verifier state machine that admits non-authoritative
// producers, and subsegment spawning.
package producer

import (
	"net"
	"time"

	"github.com/arcan-shmif/netbridge/internal/metrics"
	"github.com/arcan-shmif/netbridge/internal/shmif"
)

// NonePid is the child_pid sentinel for externally-launched
// (non-authoritative) producers the host must never signal.
const NonePid = 0

// FeedState names the state driving a Record's handshake, per the
// spec's feed-state enumeration.
type FeedState int

const (
	StateSocketListening FeedState = iota
	StateSocketVerifying
	StateReady
	StateDestroyed
)

func (s FeedState) String() string {
	switch s {
	case StateSocketListening:
		return "socket-listening"
	case StateSocketVerifying:
		return "socket-verifying"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Record is the in-process handle to one connected producer: the
// shared page, the control socket, supervision state and the
// feed-state driver. A Record is only ever mutated by the goroutine
// that owns it (the poll loop driving its feed state).
type Record struct {
	Segment *shmif.Segment

	// Listener is the accept-side socket for non-authoritative
	// producers (nil once accepted and replaced by Conn).
	Listener net.Listener
	// Conn is the live control socket once a connection has been
	// accepted (or, for authoritative producers, one half of a
	// socketpair passed to the child at launch).
	Conn net.Conn

	ChildPid     int // NonePid for non-authoritative producers
	Alive        bool
	IsSubsegment bool
	FeedState    FeedState

	// ExpectedClientKey may be empty, meaning accept-first (skip
	// verification).
	ExpectedClientKey []byte

	inbuf       []byte
	inbufOffset int

	SourceDescriptor string
	LaunchedTime     time.Time
	SegID            string

	// QueueMask restricts which event categories this Record's outbound
	// queue accepts; a freshly spawned subsegment defaults to
	// EventExternal only.
	QueueMask EventCategory

	// Metrics is the ambient counters/gauges set this Record reports
	// handshake/lifecycle events to; nil disables instrumentation.
	Metrics *metrics.Metrics

	// OutQueue is the parent's outbound event sink, used by
	// SpawnSubsegment to post fd-transfer-announce and
	// new-segment-announce events. Nil for Records that never spawn
	// subsegments.
	OutQueue OutQueue

	// PBO/socksig mirror the original's opaque per-segment flags;
	// carried through but not interpreted by this core.
	PBO     bool
	SockSig bool
}

// NewListeningRecord wraps a freshly allocated named segment as a
// Record waiting in socket-listening for its first connection.
func NewListeningRecord(seg *shmif.Segment, expectedKey []byte, keyCap int) *Record {
	return &Record{
		Segment:           seg,
		Listener:          seg.Socket,
		ChildPid:          NonePid,
		Alive:             true,
		FeedState:         StateSocketListening,
		ExpectedClientKey: expectedKey,
		inbuf:             make([]byte, 0, keyCap),
		LaunchedTime:      time.Now(),
	}
}

// Destroy runs the standard PR destruction sequence: stop the feed,
// unlink the socket path (exactly once), unmap/unlink the segment, and
// mark the record dead. It is idempotent.
func (r *Record) Destroy() {
	if r.FeedState == StateDestroyed {
		return
	}
	if r.Metrics != nil && r.FeedState == StateReady {
		r.Metrics.ActiveProducers.Dec()
	}
	r.FeedState = StateDestroyed
	r.Alive = false

	if r.Conn != nil {
		_ = r.Conn.Close()
		r.Conn = nil
	}
	if r.Listener != nil {
		_ = r.Listener.Close()
		r.Listener = nil
	}
	if r.Segment != nil {
		_ = r.Segment.Close()
		r.Segment = nil
	}
}
