package middleware

import "github.com/aretw0/canvasbuilder/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Wrap applies middlewares in left-to-right order: Wrap(s, A, B) saves
// through A, then B, then s.
func Wrap(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	out := store
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}
