/*
Package observability exposes Prometheus metrics for the dialogue engine.

Metrics records provider calls (as a provider.Observer) and turn lifecycle
events (through domain.LifecycleHooks), and serves them on its own registry.
*/
package observability
