package runner

import "log/slog"

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithInputHandler configures the IOHandler used by Run.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.handler = handler
	}
}

// WithSessionIDGenerator replaces the generator of IDs for requests without one.
func WithSessionIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		r.newID = fn
	}
}
