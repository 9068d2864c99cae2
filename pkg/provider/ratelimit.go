package provider

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/canvasbuilder/pkg/ports"
)

// rpsLimiter is a lightweight token-bucket limiter that throttles to at most
// R requests per second with an optional burst capacity.
type rpsLimiter struct {
	tokens   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// newRPSLimiter creates a limiter that allows up to rps events per second
// with a burst capacity of 'burst'. If rps <= 0, the limiter is disabled
// (Acquire becomes a no-op).
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
					// bucket full
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

// Stop terminates the refill goroutine. Safe to call more than once.
func (l *rpsLimiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// RateLimit limits the request rate. If rps <= 0 the limiter is disabled.
// Close the resulting provider (see Close) to stop the refill goroutine.
func RateLimit(rps float64, burst int) Middleware {
	return func(next ports.CompletionProvider) ports.CompletionProvider {
		return &rateLimited{wrapped: wrapped{next}, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	wrapped
	rl *rpsLimiter
}

func (r *rateLimited) Complete(ctx context.Context, prompt, system string) (string, error) {
	if err := r.rl.Acquire(ctx); err != nil {
		return "", &Error{Provider: r.next.Name(), Kind: KindRateLimited, Err: err}
	}
	return r.next.Complete(ctx, prompt, system)
}

func (r *rateLimited) Close() error {
	r.rl.Stop()
	return Close(r.next)
}
