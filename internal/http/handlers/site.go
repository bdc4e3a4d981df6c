package handlers

import (
	"net/http"

	"github.com/codeturtle/turtle-web/internal/http/views"
	"github.com/codeturtle/turtle-web/internal/identity"
	"github.com/codeturtle/turtle-web/internal/visitor"
)

// Site is what every page handler shares: templates and the page chrome settings.
type Site struct {
	Views        *views.Renderer
	Identity     identity.Provider
	CheckoutURL  string
	SupportEmail string
}

// page builds the common page data for r. It waits for the visitor's initial
// session check so the header does not flash the anonymous links.
func (s *Site) page(r *http.Request, title string) views.Page {
	p := views.Page{
		Title:        title,
		Path:         r.URL.Path,
		CheckoutURL:  s.CheckoutURL,
		SupportEmail: s.SupportEmail,
	}
	if s.Identity != nil && s.Identity.Enabled() {
		p.GoogleClientID = s.Identity.ClientID()
	}
	if v := visitor.FromContext(r.Context()); v != nil {
		select {
		case <-v.Session.Ready():
		case <-r.Context().Done():
		}
		p.User = v.Session.Snapshot().User
	}
	return p
}

// mustVisitor returns the request's visitor, answering 500 when the middleware did not run.
func mustVisitor(w http.ResponseWriter, r *http.Request) *visitor.Visitor {
	v := visitor.FromContext(r.Context())
	if v == nil {
		http.Error(w, "visitor unavailable", http.StatusInternalServerError)
	}
	return v
}

func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}
