package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/config"
	"github.com/codeturtle/turtle-web/internal/http/handlers"
	"github.com/codeturtle/turtle-web/internal/http/views"
	"github.com/codeturtle/turtle-web/internal/identity"
	"github.com/codeturtle/turtle-web/internal/middleware"
	"github.com/codeturtle/turtle-web/internal/render"
	"github.com/codeturtle/turtle-web/internal/visitor"
)

// Deps are the long-lived components the routes use.
type Deps struct {
	Visitors *visitor.Manager
	Previews handlers.PreviewReader
	Identity identity.Provider
	Views    *views.Renderer
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           Routes(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		// No write timeout: a solve waits on the backend for as long as it takes.
		IdleTimeout: 120 * time.Second,
	}
	return &Server{inner: httpServer}
}

// Routes builds the router; it is exported for tests.
func Routes(cfg config.Config, deps Deps) http.Handler {
	site := &handlers.Site{
		Views:        deps.Views,
		Identity:     deps.Identity,
		CheckoutURL:  cfg.CheckoutURL,
		SupportEmail: cfg.SupportEmail,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, middleware.Logging, chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	handlers.NewHealthHandler(time.Now(), deps.Visitors.Len).Register(r)
	r.Get("/static/chroma.css", chromaCSS)
	r.Handle("/static/*", views.Static("/static/"))

	r.Group(func(r chi.Router) {
		r.Use(deps.Visitors.Middleware)
		handlers.NewAuthHandler(site, deps.Visitors).Register(r)
		handlers.NewPaymentsHandler(site).Register(r)
		handlers.NewPagesHandler(site).Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard("/login"))
			handlers.NewSolveHandler(site, deps.Previews).Register(r)
		})
	})
	return r
}

func chromaCSS(w http.ResponseWriter, _ *http.Request) {
	css, err := render.Stylesheet()
	if err != nil {
		log.Error().Err(err).Msg("[server] chroma stylesheet")
		http.Error(w, "stylesheet unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(css))
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
