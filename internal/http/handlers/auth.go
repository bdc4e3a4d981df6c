package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/http/respond"
	"github.com/codeturtle/turtle-web/internal/http/views"
	"github.com/codeturtle/turtle-web/internal/identity"
	"github.com/codeturtle/turtle-web/internal/models/dto"
	"github.com/codeturtle/turtle-web/internal/session"
	"github.com/codeturtle/turtle-web/internal/visitor"
)

// credentialsForm is echoed back into the form after a failed attempt. Passwords never are.
type credentialsForm struct {
	Username string
	Email    string
}

// AuthHandler owns the login, signup, Google sign-in and logout routes.
type AuthHandler struct {
	site     *Site
	visitors *visitor.Manager
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(site *Site, visitors *visitor.Manager) *AuthHandler {
	return &AuthHandler{site: site, visitors: visitors}
}

// Register attaches auth routes to the router.
func (h *AuthHandler) Register(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.handleSignup)
	r.Post("/auth/google", h.handleGoogle)
	r.Post("/logout", h.handleLogout)
}

func (h *AuthHandler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.site.Views.Render(w, http.StatusOK, views.PageLogin, h.site.page(r, "Login"))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	fail := func(status int, msg string) {
		p := h.site.page(r, "Login")
		p.Error = msg
		p.Data = credentialsForm{Username: username}
		h.site.Views.Render(w, status, views.PageLogin, p)
	}
	if msg := session.ValidateLogin(username, password); msg != "" {
		fail(http.StatusBadRequest, msg)
		return
	}

	v.Lock()
	res := v.Session.Login(r.Context(), username, password)
	v.Unlock()
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Invalid credentials"
		}
		fail(http.StatusUnauthorized, msg)
		return
	}
	seeOther(w, r, "/solve")
}

func (h *AuthHandler) showSignup(w http.ResponseWriter, r *http.Request) {
	h.site.Views.Render(w, http.StatusOK, views.PageSignup, h.site.page(r, "Sign up"))
}

func (h *AuthHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	email := strings.TrimSpace(r.PostFormValue("email"))

	fail := func(status int, msg string) {
		p := h.site.page(r, "Sign up")
		p.Error = msg
		p.Data = credentialsForm{Username: username, Email: email}
		h.site.Views.Render(w, status, views.PageSignup, p)
	}
	if msg := session.ValidateSignup(username, password, email); msg != "" {
		fail(http.StatusBadRequest, msg)
		return
	}

	v.Lock()
	res := v.Session.Register(r.Context(), username, password, email)
	v.Unlock()
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Signup failed"
		}
		fail(http.StatusBadRequest, msg)
		return
	}
	seeOther(w, r, "/solve")
}

// handleGoogle receives the credential the Google button produced.
func (h *AuthHandler) handleGoogle(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	var req dto.GoogleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if h.site.Identity == nil {
		respond.Error(w, http.StatusNotFound, "Google sign-in is not configured")
		return
	}
	if err := h.site.Identity.Verify(r.Context(), req.IDToken); err != nil {
		switch {
		case errors.Is(err, identity.ErrDisabled):
			respond.Error(w, http.StatusNotFound, "Google sign-in is not configured")
		case errors.Is(err, identity.ErrMissingCredential):
			respond.Error(w, http.StatusBadRequest, "missing credential")
		default:
			log.Warn().Err(err).Msg("[auth] google credential rejected")
			respond.Error(w, http.StatusUnauthorized, "invalid credential")
		}
		return
	}

	v.Lock()
	res := v.Session.LoginWithGoogle(r.Context(), req.IDToken)
	v.Unlock()
	if !res.Success {
		respond.Error(w, http.StatusUnauthorized, res.Error)
		return
	}
	respond.OK(w)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	v := mustVisitor(w, r)
	if v == nil {
		return
	}
	v.Lock()
	h.visitors.Logout(r.Context(), v)
	v.Unlock()
	seeOther(w, r, "/login")
}
