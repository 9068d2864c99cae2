package provider

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/canvasbuilder/pkg/ports"
)

// Middleware decorates a CompletionProvider to inject cross-cutting concerns
// (rate limiting, retries, logging, caching, etc.).
type Middleware func(ports.CompletionProvider) ports.CompletionProvider

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner ports.CompletionProvider, mws ...Middleware) ports.CompletionProvider {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// Close releases resources held by p and every provider it wraps.
func Close(p ports.CompletionProvider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// wrapped forwards Name and Close to the inner provider.
type wrapped struct {
	next ports.CompletionProvider
}

func (w wrapped) Name() string { return w.next.Name() }
func (w wrapped) Close() error { return Close(w.next) }

// -------- Retry with exponential backoff --------

// Retry retries Complete up to maxAttempts with exponential backoff starting
// at baseDelay. Non-retryable errors and context cancellation stop immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next ports.CompletionProvider) ports.CompletionProvider {
		return &retrying{wrapped: wrapped{next}, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	wrapped
	max  int
	base time.Duration
}

func (r *retrying) Complete(ctx context.Context, prompt, system string) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Complete(ctx, prompt, system)
		if err == nil {
			return out, nil
		}
		last = err
		if !IsRetryable(err) || i == r.max-1 {
			break
		}

		timer := time.NewTimer(r.base * time.Duration(1<<i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", last
}

// -------- Timeout --------

// Timeout bounds every call to d.
func Timeout(d time.Duration) Middleware {
	return func(next ports.CompletionProvider) ports.CompletionProvider {
		if d <= 0 {
			return next
		}
		return &timeout{wrapped: wrapped{next}, d: d}
	}
}

type timeout struct {
	wrapped
	d time.Duration
}

func (t *timeout) Complete(ctx context.Context, prompt, system string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Complete(ctx, prompt, system)
}

// -------- Logging --------

// WithLogging logs request size, latency and errors.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ports.CompletionProvider) ports.CompletionProvider {
		return &logged{wrapped: wrapped{next}, log: logger}
	}
}

type logged struct {
	wrapped
	log *slog.Logger
}

func (l *logged) Complete(ctx context.Context, prompt, system string) (string, error) {
	start := time.Now()
	out, err := l.next.Complete(ctx, prompt, system)
	if err != nil {
		l.log.Warn("Completion failed",
			"provider", l.next.Name(),
			"kind", Classify(err),
			"duration", time.Since(start),
			"err", err,
		)
		return out, err
	}
	l.log.Debug("Completion",
		"provider", l.next.Name(),
		"prompt_bytes", len(prompt)+len(system),
		"response_bytes", len(out),
		"duration", time.Since(start),
	)
	return out, nil
}

// -------- Metrics --------

// Observer receives one observation per completed call.
type Observer interface {
	ObserveCompletion(provider string, kind Kind, d time.Duration)
}

// WithMetrics reports every call to obs. kind is empty on success.
func WithMetrics(obs Observer) Middleware {
	return func(next ports.CompletionProvider) ports.CompletionProvider {
		if obs == nil {
			return next
		}
		return &observed{wrapped: wrapped{next}, obs: obs}
	}
}

type observed struct {
	wrapped
	obs Observer
}

func (o *observed) Complete(ctx context.Context, prompt, system string) (string, error) {
	start := time.Now()
	out, err := o.next.Complete(ctx, prompt, system)
	o.obs.ObserveCompletion(o.next.Name(), Classify(err), time.Since(start))
	return out, err
}
