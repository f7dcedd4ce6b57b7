package bridge

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/arcan-shmif/netbridge/internal/metrics"
)

// MaxBackoff is the ceiling on the outbound retry sleep: the delay
// grows by one second per failed attempt and never exceeds this.
const MaxBackoff = 10 * time.Second

// Backoff paces outbound connection retries with a 1..10-second
// monotonically increasing delay, matching find_connection's
// timesleep/rc loop: a golang.org/x/time/rate.Limiter stands in for
// the original's bare sleep() call, reconfigured after every failure
// so the wait itself is the thing rate-limited rather than hand-rolled
// with time.Sleep.
type Backoff struct {
	limiter *rate.Limiter
	delay   time.Duration
	retries int // remaining attempts; negative means unbounded
	metrics *metrics.Metrics
}

// NewBackoff starts a Backoff with the given retry budget (negative
// for unbounded retries, matching the CLI's "-r n" / "--retry n"
// option where a negative count disables the cap). m may be nil.
func NewBackoff(retries int, m *metrics.Metrics) *Backoff {
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	// A new limiter starts with its burst token available; spend it so
	// the first Wait also sleeps for the initial one-second delay.
	limiter.Allow()
	return &Backoff{
		limiter: limiter,
		delay:   time.Second,
		retries: retries,
		metrics: m,
	}
}

// Exhausted reports whether the retry budget has been spent.
func (b *Backoff) Exhausted() bool {
	return b.retries == 0
}

// Wait blocks for the current backoff delay, then grows the delay by
// one second (capped at MaxBackoff) and decrements the retry budget
// (if bounded), ready for the next attempt.
func (b *Backoff) Wait(ctx context.Context) error {
	b.limiter.SetLimit(rate.Every(b.delay))
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if b.metrics != nil {
		b.metrics.OutboundRetries.Inc()
	}
	if b.delay < MaxBackoff {
		b.delay += time.Second
	}
	if b.retries > 0 {
		b.retries--
	}
	return nil
}

// Dial retries dialer.Dial against (host, port) until it succeeds, the
// context is cancelled, the retry budget is exhausted, or alive
// (typically "is the local producer still alive") reports false --
// the outbound loop must not keep retrying a connection nobody will
// ever consume.
func Dial(ctx context.Context, dialer Dialer, host string, port int, retries int, alive func() bool, m *metrics.Metrics) (Session, error) {
	b := NewBackoff(retries, m)
	for {
		if alive != nil && !alive() {
			return nil, context.Canceled
		}
		sess, err := dialer.Dial(ctx, host, port)
		if err == nil {
			return sess, nil
		}
		if b.Exhausted() {
			return nil, err
		}
		if werr := b.Wait(ctx); werr != nil {
			return nil, werr
		}
	}
}
