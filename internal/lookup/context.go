package lookup

import (
	"context"
	"net/http"
)

type ctxKey string

const loadersKey ctxKey = "lookupLoaders"

// WithLoaders attaches loaders to ctx for the rules evaluated under it.
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// FromContext retrieves the loaders attached to ctx.
func FromContext(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return l
	}
	return nil
}

// Middleware attaches fresh loaders to every request context.
func Middleware(source Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(source))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
