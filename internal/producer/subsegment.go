package producer

import (
	"fmt"
	"net"

	"github.com/arcan-shmif/netbridge/internal/shmif"
)

// EventCategory tags the shape of an event placed on an event queue.
type EventCategory int

const (
	EventFDTransferAnnounce EventCategory = iota
	EventNewSegmentAnnounce
	EventExternal
)

// Event is the minimal shape the core needs to know about: a category
// tag and the few payload fields the IPC core itself inspects.
// Opaque "external" events carry their payload in Data and are passed
// through unexamined.
type Event struct {
	Category EventCategory
	IsInput  bool
	Tag      string
	Key      string
	Data     []byte
}

// OutQueue is the minimal outbound-event sink a Record needs for
// subsegment spawning: enqueue in FIFO order. Concrete event-queue
// ring-buffer mechanics live with the EventQueue data type; the core
// only needs ordering guarantees from this interface.
type OutQueue interface {
	Enqueue(Event)
}

// SpawnSubsegment implements spawn_subsegment(parent, is_input,
// hint_w, hint_h, tag): it allocates a new unnamed SharedPage/
// semaphore triple branched off parent, clamps the hinted dimensions,
// writes them into the new header before any notification goes out,
// pairs a connected socket with a kernel-assisted descriptor handoff
// to the parent's fd-transfer channel, and announces the new segment
// on the parent's outbound queue -- in that order, so the fd arrives
// before the announce that names it.
func SpawnSubsegment(parent *Record, isInput bool, hintW, hintH int, tag string, fdTransfer func(net.Conn) error) (*Record, error) {
	if parent == nil || !parent.Alive {
		return nil, fmt.Errorf("producer: spawn_subsegment: parent is not alive")
	}

	seg, err := shmif.Allocate(false)
	if err != nil {
		return nil, fmt.Errorf("producer: spawn_subsegment: allocate segment: %w", err)
	}

	w, h := shmif.ClampDims(hintW, hintH)
	shmif.SetDims(seg.Page, w, h)

	local, remote, err := socketpairConn()
	if err != nil {
		_ = seg.Close()
		return nil, fmt.Errorf("producer: spawn_subsegment: socketpair: %w", err)
	}

	child := &Record{
		Segment:      seg,
		Conn:         local,
		ChildPid:     parent.ChildPid, // subsegments share the parent's process
		Alive:        true,
		IsSubsegment: true,
		FeedState:    StateReady,
		SegID:        tag,
		QueueMask:    EventExternal,
		Metrics:      parent.Metrics,
	}
	child.SourceDescriptor = parent.SourceDescriptor
	if child.Metrics != nil {
		child.Metrics.ProducersAccepted.Inc()
		child.Metrics.ActiveProducers.Inc()
	}

	if fdTransfer != nil {
		if err := fdTransfer(remote); err != nil {
			child.Destroy()
			return nil, fmt.Errorf("producer: spawn_subsegment: fd transfer: %w", err)
		}
	}

	if parent.OutQueue != nil {
		parent.OutQueue.Enqueue(Event{Category: EventFDTransferAnnounce, Tag: tag})
		parent.OutQueue.Enqueue(Event{
			Category: EventNewSegmentAnnounce,
			IsInput:  isInput,
			Tag:      tag,
			Key:      seg.Key,
		})
	}

	// No audio channel is attached here, for input and non-input
	// subsegments alike: isInput only travels in the announce event,
	// and the audio region of the new page is reserved either way.
	_ = isInput

	return child, nil
}

func socketpairConn() (net.Conn, net.Conn, error) {
	return newUnixSocketpair()
}
