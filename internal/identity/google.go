// Package identity checks credentials issued by an external sign-in provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

var (
	// ErrDisabled is returned when no client id is configured.
	ErrDisabled = errors.New("sign-in provider not configured")
	// ErrMissingCredential is returned for an empty credential.
	ErrMissingCredential = errors.New("missing credential")
)

// Provider is a sign-in button plus a credential check.
type Provider interface {
	Enabled() bool
	ClientID() string
	Verify(ctx context.Context, credential string) error
}

// Google validates Google Identity credentials. The backend stays authoritative;
// the local check only filters obviously bad tokens.
type Google struct {
	clientID  string
	validator *idtoken.Validator
}

// NewGoogle builds a provider for clientID. With verify set, credentials are checked
// against Google's keys and audience; otherwise only for presence.
func NewGoogle(ctx context.Context, clientID string, verify bool, httpClient *http.Client) (*Google, error) {
	g := &Google{clientID: strings.TrimSpace(clientID)}
	if g.clientID == "" || !verify {
		return g, nil
	}
	var opts []option.ClientOption
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google validator: %w", err)
	}
	g.validator = v
	return g, nil
}

func (g *Google) Enabled() bool    { return g.clientID != "" }
func (g *Google) ClientID() string { return g.clientID }

func (g *Google) Verify(ctx context.Context, credential string) error {
	if !g.Enabled() {
		return ErrDisabled
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return ErrMissingCredential
	}
	if g.validator == nil {
		return nil
	}
	if _, err := g.validator.Validate(ctx, credential, g.clientID); err != nil {
		return fmt.Errorf("validate google credential: %w", err)
	}
	return nil
}
