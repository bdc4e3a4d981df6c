package middleware

import (
	"net/http"

	"github.com/codeturtle/turtle-web/internal/session"
	"github.com/codeturtle/turtle-web/internal/visitor"
)

// Decision is what the guard does with a request for a protected page.
type Decision int

const (
	// DecisionLoading renders nothing; the initial session check has not finished.
	DecisionLoading Decision = iota
	// DecisionAllow serves the protected page.
	DecisionAllow
	// DecisionRedirect sends the browser to the login page.
	DecisionRedirect
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionAllow:
		return "allow"
	default:
		return "redirect"
	}
}

// Decide maps a session snapshot to a guard decision.
func Decide(s session.Snapshot) Decision {
	switch {
	case s.Loading:
		return DecisionLoading
	case s.Authenticated():
		return DecisionAllow
	default:
		return DecisionRedirect
	}
}

// Guard protects next behind an authenticated session. It waits for the visitor's
// initial session check, for at most as long as the request lives.
func Guard(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := visitor.FromContext(r.Context())
			if v == nil {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			select {
			case <-v.Session.Ready():
			case <-r.Context().Done():
			}

			switch Decide(v.Session.Snapshot()) {
			case DecisionLoading:
				w.WriteHeader(http.StatusNoContent)
			case DecisionRedirect:
				http.Redirect(w, r, loginPath, http.StatusFound)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
