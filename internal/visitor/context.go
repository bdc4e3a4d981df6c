package visitor

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ctxKey struct{}

// WithVisitor returns a copy of ctx carrying v.
func WithVisitor(ctx context.Context, v *Visitor) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

// FromContext returns the visitor stored by Middleware, or nil.
func FromContext(ctx context.Context) *Visitor {
	v, _ := ctx.Value(ctxKey{}).(*Visitor)
	return v
}

// Middleware resolves the visitor for every request and stores it in the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := m.Resolve(w, r)
		if err != nil {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("[visitor] resolve failed")
			http.Error(w, "visitor unavailable", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithVisitor(r.Context(), v)))
	})
}
