package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeturtle/turtle-web/internal/http/views"
)

var staticPages = map[string]struct{ page, title string }{
	"/about":    {views.PageAbout, "About Us"},
	"/contact":  {views.PageContact, "Contact Us"},
	"/terms":    {views.PageTerms, "Terms & Conditions"},
	"/privacy":  {views.PagePrivacy, "Privacy Policy"},
	"/refund":   {views.PageRefund, "Refund & Cancellation"},
	"/shipping": {views.PageShipping, "Shipping Policy"},
}

// PagesHandler serves the informational pages and sends every unknown path to /solve.
type PagesHandler struct {
	site *Site
}

// NewPagesHandler constructs the handler.
func NewPagesHandler(site *Site) *PagesHandler {
	return &PagesHandler{site: site}
}

// Register attaches the static pages and the catch-all redirect.
func (h *PagesHandler) Register(r chi.Router) {
	for path, pg := range staticPages {
		r.Get(path, h.static(pg.page, pg.title))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/solve", http.StatusFound)
	})
}

func (h *PagesHandler) static(page, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.site.Views.Render(w, http.StatusOK, page, h.site.page(r, title))
	}
}
