// Package views renders the site's pages from embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Link is an entry of the policy menu.
type Link struct {
	Path  string
	Label string
}

// PolicyLinks are the informational pages listed in the menu.
var PolicyLinks = []Link{
	{Path: "/about", Label: "About Us"},
	{Path: "/pricing", Label: "Pricing"},
	{Path: "/contact", Label: "Contact Us"},
	{Path: "/terms", Label: "Terms & Conditions"},
	{Path: "/privacy", Label: "Privacy Policy"},
	{Path: "/refund", Label: "Refund & Cancellation"},
	{Path: "/shipping", Label: "Shipping Policy"},
}

// Page is the data every template receives.
type Page struct {
	Title          string
	Path           string
	User           *models.User
	GoogleClientID string
	CheckoutURL    string
	SupportEmail   string
	Error          string
	Data           any
}

// HideHeader is true on the solve page, which carries its own navigation.
func (p Page) HideHeader() bool { return p.Path == "/solve" }

// Policies is the menu content.
func (p Page) Policies() []Link { return PolicyLinks }

// Names of the renderable pages.
const (
	PageLogin    = "login"
	PageSignup   = "signup"
	PageSolve    = "solve"
	PagePricing  = "pricing"
	PageAbout    = "about"
	PageContact  = "contact"
	PageTerms    = "terms"
	PagePrivacy  = "privacy"
	PageRefund   = "refund"
	PageShipping = "shipping"
)

var pageNames = []string{
	PageLogin, PageSignup, PageSolve, PagePricing,
	PageAbout, PageContact, PageTerms, PagePrivacy, PageRefund, PageShipping,
}

var funcs = template.FuncMap{
	"plural": func(n int, word string) string {
		if n == 1 {
			return word
		}
		return word + "s"
	},
	"add": func(a, b int) int { return a + b },
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page with status. Templates render into a buffer first so a
// failure never leaves a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p Page) {
	t, ok := r.pages[name]
	if !ok {
		log.Error().Str("page", name).Msg("[views] unknown page")
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		log.Error().Err(err).Str("page", name).Msg("[views] render failed")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Str("page", name).Msg("[views] write failed")
	}
}

// Static serves the embedded css and js under the prefix it is mounted at.
func Static(prefix string) http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix(prefix, http.FileServerFS(sub))
}
