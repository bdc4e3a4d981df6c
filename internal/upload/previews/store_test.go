package previews

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeturtle/turtle-web/internal/upload"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateReadRevoke(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	h, err := s.Create(ctx, "a.png", "image/png", []byte("pixels"))
	require.NoError(t, err)

	ct, data, err := s.Read(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, []byte("pixels"), data)

	require.NoError(t, s.Revoke(ctx, h))
	_, _, err = s.Read(ctx, h)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestDoubleRevokeIsReported(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	h, err := s.Create(ctx, "a.png", "image/png", []byte("pixels"))
	require.NoError(t, err)
	require.NoError(t, s.Revoke(ctx, h))

	assert.ErrorIs(t, s.Revoke(ctx, h), ErrUnknownHandle)
	assert.ErrorIs(t, s.Revoke(ctx, upload.Handle("never-issued")), ErrUnknownHandle)
}

func TestHandlesAreDistinct(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a, err := s.Create(ctx, "a.png", "image/png", []byte("a"))
	require.NoError(t, err)
	b, err := s.Create(ctx, "a.png", "image/png", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	require.NoError(t, s.Revoke(ctx, a))
	_, data, err := s.Read(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
}

func TestSelectionOverPebble(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	sel := upload.NewSelection(s)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, sel.Select(ctx, []upload.File{{Name: "a.png", Data: png}, {Name: "b.png", Data: png}}))
	entries := sel.Entries()

	sel.Teardown(ctx)
	for _, e := range entries {
		_, _, err := s.Read(ctx, e.Preview)
		assert.ErrorIs(t, err, ErrUnknownHandle)
	}
}

func TestEncodeDecode(t *testing.T) {
	ct, data, err := decode(encode("image/jpeg", []byte{0xff, 0xd8}))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, []byte{0xff, 0xd8}, data)

	_, _, err = decode([]byte{0x05, 'a'})
	assert.Error(t, err)
}
