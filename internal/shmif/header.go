package shmif

import "encoding/binary"

// Header is the control header that always occupies offset 0 of a
// segment. Fields are (de)serialised at fixed byte offsets rather than
// overlaid as a Go struct so the on-disk layout stays bit-exact
// regardless of Go's own alignment rules -- the same approach the
// HDHomeRun packet codec in this codebase's lineage uses for its wire
// structures.
type Header struct {
	VersionMajor uint16
	VersionMinor uint16
	ParentPID    int32
	Cookie       uint64
	SegmentSize  uint64
	Width        uint32
	Height       uint32
	DMS          bool
}

// Cookie is computed from the sizes of ABI-sensitive structures so a
// producer built against a mismatched layout can detect the skew
// instead of silently misreading the page.
func Cookie() uint64 {
	var c uint64 = 0x61726361 // "arca" seed
	c = c*31 + uint64(HeaderSize)
	c = c*31 + uint64(eventSlotSize)
	c = c*31 + uint64(eventSlots)
	c = c*31 + uint64(audioBufSize)
	return c
}

const (
	offVersionMajor = 0
	offVersionMinor = 2
	offParentPID    = 4
	offCookie       = 8
	offSegmentSize  = 16
	offWidth        = 24
	offHeight       = 28
	offDMS          = 32
)

// PutHeader writes h into the first HeaderSize bytes of page.
func PutHeader(page []byte, h Header) {
	binary.LittleEndian.PutUint16(page[offVersionMajor:], h.VersionMajor)
	binary.LittleEndian.PutUint16(page[offVersionMinor:], h.VersionMinor)
	binary.LittleEndian.PutUint32(page[offParentPID:], uint32(h.ParentPID))
	binary.LittleEndian.PutUint64(page[offCookie:], h.Cookie)
	binary.LittleEndian.PutUint64(page[offSegmentSize:], h.SegmentSize)
	binary.LittleEndian.PutUint32(page[offWidth:], h.Width)
	binary.LittleEndian.PutUint32(page[offHeight:], h.Height)
	if h.DMS {
		page[offDMS] = 1
	} else {
		page[offDMS] = 0
	}
}

// GetHeader reads the control header out of page.
func GetHeader(page []byte) Header {
	return Header{
		VersionMajor: binary.LittleEndian.Uint16(page[offVersionMajor:]),
		VersionMinor: binary.LittleEndian.Uint16(page[offVersionMinor:]),
		ParentPID:    int32(binary.LittleEndian.Uint32(page[offParentPID:])),
		Cookie:       binary.LittleEndian.Uint64(page[offCookie:]),
		SegmentSize:  binary.LittleEndian.Uint64(page[offSegmentSize:]),
		Width:        binary.LittleEndian.Uint32(page[offWidth:]),
		Height:       binary.LittleEndian.Uint32(page[offHeight:]),
		DMS:          page[offDMS] != 0,
	}
}

// SetDims updates only the width/height fields of the header in page,
// without disturbing any other field -- used by the resize negotiator
// and the subsegment spawner, both of which must write dimensions
// before the producer is woken.
func SetDims(page []byte, w, h uint32) {
	binary.LittleEndian.PutUint32(page[offWidth:], w)
	binary.LittleEndian.PutUint32(page[offHeight:], h)
}

// SetSegmentSize updates only the segment_size field, used by the
// resize negotiator after a successful remap.
func SetSegmentSize(page []byte, sz uint64) {
	binary.LittleEndian.PutUint64(page[offSegmentSize:], sz)
}
