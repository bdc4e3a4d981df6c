package backend

import (
	"context"

	"github.com/codeturtle/turtle-web/internal/models/dto"
)

// AuthCalls groups the /auth endpoints.
type AuthCalls struct {
	c *Client
}

func (a *AuthCalls) Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := a.c.postJSON(ctx, "/auth/register", req, &out)
	return out, err
}

func (a *AuthCalls) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := a.c.postJSON(ctx, "/auth/login", req, &out)
	return out, err
}

func (a *AuthCalls) LoginWithGoogle(ctx context.Context, idToken string) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := a.c.postJSON(ctx, "/auth/google", dto.GoogleLoginRequest{IDToken: idToken}, &out)
	return out, err
}

func (a *AuthCalls) Logout(ctx context.Context) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := a.c.postJSON(ctx, "/auth/logout", nil, &out)
	return out, err
}

// Me answers 401 when there is no backend session.
func (a *AuthCalls) Me(ctx context.Context) (dto.AuthResponse, error) {
	var out dto.AuthResponse
	err := a.c.getJSON(ctx, "/auth/me", &out)
	return out, err
}
