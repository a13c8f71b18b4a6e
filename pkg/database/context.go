package database

import (
	"context"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request's database connection.
	ScopeKey contextKey = "dbScope"
)

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	if !ok || scope == nil || scope.Conn == nil {
		return nil, false
	}
	return scope, true
}

// ReleaseScope returns the connection held by the scope in ctx to the pool.
// Later GetScope calls on ctx report no scope. No-op when ctx carries none.
func ReleaseScope(ctx context.Context) {
	if scope, ok := GetScope(ctx); ok {
		scope.Close()
	}
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeFunc acquires a fresh connection and returns a context carrying it.
// The cleanup function must be called when the scope is no longer needed.
// Background work that outlives or runs beside a request uses this instead of
// sharing the request's connection. Work inside a request must ReleaseScope the
// request's connection before acquiring another, or busy requests can hold
// every pooled connection while each waits for one more.
type ScopeFunc func(ctx context.Context) (context.Context, func(), error)

// NewScopeFunc creates a ScopeFunc backed by the given pool.
func NewScopeFunc(db *DB) ScopeFunc {
	return func(ctx context.Context) (context.Context, func(), error) {
		scope, err := db.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return SetScope(ctx, scope), scope.Close, nil
	}
}
