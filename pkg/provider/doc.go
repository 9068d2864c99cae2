/*
Package provider contains completion providers and the middleware that wraps them.

Providers implement ports.CompletionProvider. Cross-cutting concerns (retries,
rate limiting, caching, logging, metrics) are layered with Wrap:

	p := provider.Wrap(gemini,
		provider.WithLogging(logger),
		provider.Retry(3, 300*time.Millisecond),
		provider.RateLimit(2, 4),
		provider.Cache(256, 10*time.Minute),
	)

Wrap(inner, A, B) yields A(B(inner)), so the first middleware sees the call first.
*/
package provider
