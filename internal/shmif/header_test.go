package shmif

import "testing"

func TestPutGetHeaderRoundTrip(t *testing.T) {
	page := make([]byte, HeaderSize)
	h := Header{
		VersionMajor: 1,
		VersionMinor: 2,
		ParentPID:    4242,
		Cookie:       Cookie(),
		SegmentSize:  1 << 20,
		Width:        640,
		Height:       480,
		DMS:          true,
	}
	PutHeader(page, h)
	got := GetHeader(page)
	if got != h {
		t.Fatalf("GetHeader() = %+v, want %+v", got, h)
	}
}

func TestSetDimsLeavesOtherFieldsAlone(t *testing.T) {
	page := make([]byte, HeaderSize)
	h := Header{VersionMajor: 1, ParentPID: 99, Cookie: Cookie(), SegmentSize: 4096}
	PutHeader(page, h)

	SetDims(page, 800, 600)

	got := GetHeader(page)
	if got.Width != 800 || got.Height != 600 {
		t.Fatalf("dims = %dx%d, want 800x600", got.Width, got.Height)
	}
	if got.ParentPID != 99 || got.Cookie != Cookie() || got.SegmentSize != 4096 {
		t.Fatalf("SetDims disturbed other fields: %+v", got)
	}
}

func TestSetSegmentSize(t *testing.T) {
	page := make([]byte, HeaderSize)
	PutHeader(page, Header{Width: 10, Height: 10})
	SetSegmentSize(page, 123456)
	if got := GetHeader(page).SegmentSize; got != 123456 {
		t.Fatalf("SegmentSize = %d, want 123456", got)
	}
}

func TestCookieStable(t *testing.T) {
	if Cookie() != Cookie() {
		t.Fatalf("Cookie() is not deterministic")
	}
}
