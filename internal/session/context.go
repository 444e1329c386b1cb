package session

import (
	"context"
)

type ctxKey struct{}

// NewContext returns a context carrying the session manager
func NewContext(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// FromContext extracts the session manager, if one was injected
func FromContext(ctx context.Context) (*Manager, bool) {
	m, ok := ctx.Value(ctxKey{}).(*Manager)
	return m, ok
}

// MustFromContext extracts the session manager and panics when none is
// present. A missing manager is a structural misuse (a handler mounted
// outside the session middleware), not a runtime condition to recover from.
func MustFromContext(ctx context.Context) *Manager {
	m, ok := FromContext(ctx)
	if !ok {
		panic("session: manager not found in context; handler mounted outside the session middleware")
	}
	return m
}
