package llm

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	llmclient "snapshotter/internal/llm/client"
)

// rpsLimiter is a lightweight token-bucket limiter that throttles to at
// most R requests per second with an optional burst capacity.
type rpsLimiter struct {
	tokens   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// newRPSLimiter creates a limiter that allows up to rps events per
// second with a burst capacity of 'burst'. If rps <= 0 the limiter is
// disabled (Acquire becomes a no-op).
func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	l := &rpsLimiter{
		tokens: make(chan struct{}, burst),
		stopCh: make(chan struct{}),
	}

	// Pre-fill bucket to allow an initial burst.
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}

	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case l.tokens <- struct{}{}:
				default:
					// bucket full; drop token
				}
			case <-l.stopCh:
				return
			}
		}
	}()

	return l
}

// Acquire blocks until a token is available or the context is canceled.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return context.Canceled
	case <-l.tokens:
		return nil
	}
}

// Stop terminates the limiter's refill goroutine. Safe to call more
// than once and on a disabled (nil) limiter.
func (l *rpsLimiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// RateLimit limits request rate. Useful when the provider enforces a
// requests-per-minute quota across the generate and repair calls.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.Client) llmclient.Client {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

// RateLimitFromEnv reads <prefix>_RPS and <prefix>_BURST from the
// environment, taking the first prefix that has an RPS set. With no
// matching variables the limiter is disabled.
func RateLimitFromEnv(prefixes ...string) Middleware {
	readFloat := func(key string) float64 {
		f, _ := strconv.ParseFloat(os.Getenv(key), 64)
		return f
	}
	readInt := func(key string) int {
		n, _ := strconv.Atoi(os.Getenv(key))
		return n
	}
	return func(next llmclient.Client) llmclient.Client {
		for _, p := range prefixes {
			if p == "" || os.Getenv(p+"_RPS") == "" {
				continue
			}
			rl := newRPSLimiter(readFloat(p+"_RPS"), readInt(p+"_BURST"))
			return &rateLimited{next: next, rl: rl}
		}
		return &rateLimited{next: next, rl: nil}
	}
}

type rateLimited struct {
	next llmclient.Client
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }

func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}

func (c *rateLimited) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return "", err
	}
	return c.next.GenerateJSON(ctx, system, user)
}
