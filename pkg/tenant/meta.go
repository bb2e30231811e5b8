package tenant

import (
	"context"
	"sync"
)

type metaKey struct{}

// metaCell is a mutable request-scoped bag. Unlike the tenant binding it
// is written after the context has been passed down, so access is locked.
type metaCell struct {
	mu     sync.RWMutex
	values map[string]any
}

// WithMeta returns a child context carrying an empty metadata cell.
// The middleware attaches one per request; later handlers and audit hooks
// write into the same cell without re-deriving the context.
func WithMeta(ctx context.Context) context.Context {
	return context.WithValue(ctx, metaKey{}, &metaCell{values: make(map[string]any)})
}

// SetMeta stores a value in the context's metadata cell. Reports false
// when the context carries no cell.
func SetMeta(ctx context.Context, key string, value any) bool {
	cell, ok := ctx.Value(metaKey{}).(*metaCell)
	if !ok {
		return false
	}
	cell.mu.Lock()
	cell.values[key] = value
	cell.mu.Unlock()
	return true
}

// GetMeta reads a value from the context's metadata cell.
func GetMeta(ctx context.Context, key string) (any, bool) {
	cell, ok := ctx.Value(metaKey{}).(*metaCell)
	if !ok {
		return nil, false
	}
	cell.mu.RLock()
	defer cell.mu.RUnlock()
	v, ok := cell.values[key]
	return v, ok
}

// MetaSnapshot copies the metadata cell into a plain map, for audit
// events recorded after the handler returns.
func MetaSnapshot(ctx context.Context) map[string]any {
	cell, ok := ctx.Value(metaKey{}).(*metaCell)
	if !ok {
		return nil
	}
	cell.mu.RLock()
	defer cell.mu.RUnlock()
	if len(cell.values) == 0 {
		return nil
	}
	out := make(map[string]any, len(cell.values))
	for k, v := range cell.values {
		out[k] = v
	}
	return out
}
