package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/aretw0/canvasbuilder/pkg/ports"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes successful completions keyed by prompt and system instruction.
// Concurrent identical requests share a single upstream call. The shared call
// keeps the first caller's context values but not its cancellation, so each
// caller only stops waiting when its own context ends. Deadlines for the
// upstream call come from the middleware below (Timeout).
// size <= 0 disables caching.
func Cache(size int, ttl time.Duration) Middleware {
	return func(next ports.CompletionProvider) ports.CompletionProvider {
		if size <= 0 {
			return next
		}
		return &cached{
			wrapped: wrapped{next},
			lru:     expirable.NewLRU[string, string](size, nil, ttl),
		}
	}
}

type cached struct {
	wrapped
	lru   *expirable.LRU[string, string]
	group singleflight.Group
}

func (c *cached) Complete(ctx context.Context, prompt, system string) (string, error) {
	key := cacheKey(prompt, system)
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		out, err := c.next.Complete(context.WithoutCancel(ctx), prompt, system)
		if err != nil {
			return "", err
		}
		c.lru.Add(key, out)
		return out, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func cacheKey(prompt, system string) string {
	h := sha256.New()
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
