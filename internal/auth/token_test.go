package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm, err := NewTokenManager("s3cret", "code-turtle-web", time.Hour)
	require.NoError(t, err)

	raw, err := tm.Generate("visitor-1")
	require.NoError(t, err)

	id, err := tm.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "visitor-1", id)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	a, err := NewTokenManager("one", "code-turtle-web", time.Hour)
	require.NoError(t, err)
	b, err := NewTokenManager("two", "code-turtle-web", time.Hour)
	require.NoError(t, err)

	raw, err := a.Generate("visitor-1")
	require.NoError(t, err)

	_, err = b.Parse(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenRejectsOtherIssuer(t *testing.T) {
	a, err := NewTokenManager("same", "issuer-a", time.Hour)
	require.NoError(t, err)
	b, err := NewTokenManager("same", "issuer-b", time.Hour)
	require.NoError(t, err)

	raw, err := a.Generate("visitor-1")
	require.NoError(t, err)

	_, err = b.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpires(t *testing.T) {
	tm, err := NewTokenManager("s3cret", "code-turtle-web", time.Minute)
	require.NoError(t, err)

	issued := time.Now()
	tm.now = func() time.Time { return issued }
	raw, err := tm.Generate("visitor-1")
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tm.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManagerNeedsSecret(t *testing.T) {
	_, err := NewTokenManager("  ", "code-turtle-web", time.Hour)
	require.Error(t, err)
}

func TestParseGarbage(t *testing.T) {
	tm, err := NewTokenManager("s3cret", "code-turtle-web", time.Hour)
	require.NoError(t, err)
	_, err = tm.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
