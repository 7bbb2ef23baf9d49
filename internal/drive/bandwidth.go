package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/time/rate"

	"github.com/mvasconcellos/driveup/internal/config"
)

// burstMultiplier sizes the token bucket relative to the sustained
// rate. A burst of two seconds' worth keeps chunked reads smooth.
const burstMultiplier = 2

// ParseRate parses a bandwidth rate like "1MiB/s" or "500KB" into
// bytes per second. Zero means unlimited.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "/s")

	bytesPerSec, err := config.ParseSize(s)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth rate: %w", err)
	}

	return bytesPerSec, nil
}

// NewLimiter builds a rate limiter from a rate string. Returns nil for
// a zero rate, which callers treat as unlimited.
func NewLimiter(rateStr string) (*rate.Limiter, error) {
	bytesPerSec, err := ParseRate(rateStr)
	if err != nil {
		return nil, err
	}

	if bytesPerSec == 0 {
		return nil, nil
	}

	burst := bytesPerSec * burstMultiplier
	if burst > int64(maxInt) {
		burst = int64(maxInt)
	}

	return rate.NewLimiter(rate.Limit(bytesPerSec), int(burst)), nil
}

const maxInt = int(^uint(0) >> 1)

// WrapReader wraps r so reads are throttled by limiter. A nil limiter
// returns r unchanged.
func WrapReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil {
		return r
	}

	return &rateLimitedReader{r: r, limiter: limiter, ctx: ctx}
}

type rateLimitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

// Read reads from the wrapped reader and then waits until the limiter
// permits the bytes just read. Waiting after the read keeps the first
// read fast while still converging on the configured rate.
func (r *rateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := waitN(r.ctx, r.limiter, n); werr != nil {
			return n, werr
		}
	}

	return n, err
}

// waitN waits for n tokens, splitting requests larger than the burst
// into burst-sized pieces since WaitN rejects n > burst.
func waitN(ctx context.Context, limiter *rate.Limiter, n int) error {
	burst := limiter.Burst()

	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}

		if err := limiter.WaitN(ctx, chunk); err != nil {
			return err
		}

		n -= chunk
	}

	return nil
}
