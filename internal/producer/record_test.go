package producer

import "testing"

func TestDestroyIsIdempotent(t *testing.T) {
	r := &Record{Alive: true, FeedState: StateReady}
	r.Destroy()
	if r.FeedState != StateDestroyed || r.Alive {
		t.Fatalf("expected destroyed+not alive after first Destroy")
	}
	r.Destroy() // must not panic on a second call
	if r.FeedState != StateDestroyed {
		t.Fatalf("second Destroy must be a no-op, not a state change")
	}
}

func TestFeedStateString(t *testing.T) {
	cases := map[FeedState]string{
		StateSocketListening: "socket-listening",
		StateSocketVerifying: "socket-verifying",
		StateReady:           "ready",
		StateDestroyed:       "destroyed",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("FeedState(%d).String() = %q, want %q", s, got, want)
		}
	}
}
