package bridge

import (
	"context"
	"io"
)

// copyCtx is io.Copy with early-out on context cancellation, used by
// bridgeOne so a cancelled dispatch doesn't wait for a stalled
// producer or remote peer to notice on its own.
func copyCtx(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	type result struct {
		n   int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := io.Copy(dst, src)
		done <- result{n, err}
	}()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		return r.n, r.err
	}
}
