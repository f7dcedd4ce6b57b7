package shmif

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/arcan-shmif/netbridge/internal/metrics"
)

// ErrDead marks a Segment whose Page was left nil after a failed
// remap. Per the remap-failure contract, the PR must be treated as
// dead by the next poll rather than retried in place.
var ErrDead = errors.New("shmif: segment remap failed, page is now nil")

// shrinkThreshold is the fraction of the current size below which a
// shrink must still fall before a remap is worth doing -- otherwise
// resize short-circuits to success without touching the mapping.
const shrinkThreshold = 0.8

// Resize negotiates a new (w, h) for seg. It rejects sizes beyond
// MaxSize, short-circuits to success when the new size is within the
// shrink threshold of the current mapping, and otherwise snapshots the
// header, unmaps, truncates, remaps, and restores the header with the
// updated segment_size.
//
// On remap failure seg.Page is left nil; callers must treat the
// segment as dead starting from their next poll, per ErrDead. m may
// be nil; when set, every remap that actually touches the mapping
// (the short-circuited case does not) increments m.Resizes.
func Resize(seg *Segment, w, h uint32, m *metrics.Metrics) (bool, error) {
	newSize, err := RequiredSize(w, h)
	if err != nil {
		return false, err
	}

	curSize := uint64(len(seg.Page))

	if newSize < curSize && float64(newSize) > float64(curSize)*shrinkThreshold {
		return true, nil
	}

	var headerSnapshot [HeaderSize]byte
	copy(headerSnapshot[:], seg.Page[:HeaderSize])

	if err := unix.Munmap(seg.Page); err != nil {
		seg.Page = nil
		return false, fmt.Errorf("%w: munmap: %v", ErrDead, err)
	}
	seg.Page = nil

	if err := unix.Ftruncate(seg.fd, int64(newSize)); err != nil {
		return false, fmt.Errorf("%w: ftruncate: %v", ErrDead, err)
	}

	page, err := unix.Mmap(seg.fd, 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return false, fmt.Errorf("%w: mmap: %v", ErrDead, err)
	}

	copy(page[:HeaderSize], headerSnapshot[:])
	SetSegmentSize(page, newSize)
	SetDims(page, w, h)
	seg.Page = page

	if m != nil {
		m.Resizes.Inc()
	}
	return true, nil
}
