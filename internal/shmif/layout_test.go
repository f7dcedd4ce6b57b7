package shmif

import "testing"

func TestComputeLayoutOrdering(t *testing.T) {
	l := ComputeLayout(64, 64)
	if l.EventQueueOff != HeaderSize {
		t.Fatalf("EventQueueOff = %d, want %d", l.EventQueueOff, uint64(HeaderSize))
	}
	if l.VideoOff <= l.EventQueueOff {
		t.Fatalf("VideoOff must follow EventQueueOff")
	}
	if l.AudioOff != l.VideoOff+l.VideoSize {
		t.Fatalf("AudioOff must immediately follow the video buffer")
	}
	if l.Total != l.AudioOff+l.AudioSize {
		t.Fatalf("Total must cover the audio buffer")
	}
}

func TestRequiredSizeRejectsOversize(t *testing.T) {
	if _, err := RequiredSize(MaxW, MaxH); err == nil {
		t.Fatalf("RequiredSize(MaxW, MaxH) should exceed MaxSize")
	}
}

func TestRequiredSizeAccepted(t *testing.T) {
	sz, err := RequiredSize(DefaultW, DefaultH)
	if err != nil {
		t.Fatalf("RequiredSize(default dims) returned error: %v", err)
	}
	if sz == 0 {
		t.Fatalf("RequiredSize returned 0")
	}
}

func TestClampDims(t *testing.T) {
	cases := []struct {
		w, h       int
		wantW      uint32
		wantH      uint32
	}{
		{32, 32, 32, 32},
		{0, 10, DefaultW, 10},
		{10, 0, 10, DefaultH},
		{MaxW + 1, MaxH + 1, DefaultW, DefaultH},
		{-5, -5, DefaultW, DefaultH},
	}
	for _, c := range cases {
		gw, gh := ClampDims(c.w, c.h)
		if gw != c.wantW || gh != c.wantH {
			t.Errorf("ClampDims(%d, %d) = (%d, %d), want (%d, %d)", c.w, c.h, gw, gh, c.wantW, c.wantH)
		}
	}
}
