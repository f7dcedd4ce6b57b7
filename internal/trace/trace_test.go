package trace

import "testing"

func TestParseBitmap(t *testing.T) {
	g, err := Parse("1024")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if g != BTransfer {
		t.Fatalf("got %d, want BTransfer (1024)", g)
	}
}

func TestParseCSV(t *testing.T) {
	g, err := Parse("video,crypto")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !g.Has(Video) || !g.Has(Crypto) || g.Has(Audio) {
		t.Fatalf("got %d, want Video|Crypto only", g)
	}
}

func TestParseUnknownGroup(t *testing.T) {
	if _, err := Parse("bogus"); err == nil {
		t.Fatalf("expected an error for an unknown group name")
	}
}

func TestBitPositions(t *testing.T) {
	want := []Group{Video, Audio, System, Event, Transfer, Debug, Missing, Alloc, Crypto, VDetail, BTransfer}
	for i, g := range want {
		if g != 1<<uint(i) {
			t.Errorf("group %d = %d, want %d", i, g, 1<<uint(i))
		}
	}
}
