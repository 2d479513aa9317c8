package progress

import (
	"context"

	"github.com/google/uuid"
)

type contextIDKey struct{}

// NewContextID returns a fresh correlation ID.
func NewContextID() string {
	return uuid.NewString()
}

// WithContextID returns a copy of ctx carrying the correlation ID id.
//
// The ID tags every progress event of one logical call, so that operations
// sharing reporters can be told apart.
func WithContextID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextIDKey{}, id)
}

// ContextID returns the correlation ID carried by ctx.
func ContextID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextIDKey{}).(string)
	return id, ok && id != ""
}

// EnsureContextID returns ctx and its correlation ID, attaching a new one
// when ctx carries none.
func EnsureContextID(ctx context.Context) (context.Context, string) {
	if id, ok := ContextID(ctx); ok {
		return ctx, id
	}
	id := NewContextID()
	return WithContextID(ctx, id), id
}
