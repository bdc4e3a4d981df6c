package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// countingStore records how often each handle is revoked.
type countingStore struct {
	mu       sync.Mutex
	next     int
	created  []Handle
	revoked  map[Handle]int
	failFrom int // Create fails once this many handles exist; 0 disables
}

func newCountingStore() *countingStore {
	return &countingStore{revoked: make(map[Handle]int)}
}

func (c *countingStore) Create(_ context.Context, name, _ string, _ []byte) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFrom > 0 && len(c.created) >= c.failFrom {
		return "", errors.New("disk full")
	}
	c.next++
	h := Handle(fmt.Sprintf("h%d-%s", c.next, name))
	c.created = append(c.created, h)
	return h, nil
}

func (c *countingStore) Revoke(_ context.Context, h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[h]++
	return nil
}

func (c *countingStore) assertEachRevokedOnce(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.created {
		assert.Equal(t, 1, c.revoked[h], "handle %s", h)
	}
	assert.Len(t, c.revoked, len(c.created))
}

func images(names ...string) []File {
	out := make([]File, 0, len(names))
	for _, n := range names {
		out = append(out, File{Name: n, Data: pngBytes})
	}
	return out
}

func TestSelectKeepsFirstThree(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	sel := NewSelection(store)
	sel.SetError("stale")

	require.NoError(t, sel.Select(ctx, images("a.png", "b.png", "c.png", "d.png", "e.png")))

	entries := sel.Entries()
	require.Len(t, entries, MaxFiles)
	assert.Equal(t, "a.png", entries[0].DisplayName)
	assert.Equal(t, "c.png", entries[2].DisplayName)
	assert.Equal(t, "image/png", entries[0].File.ContentType)
	assert.Empty(t, sel.ErrorMessage())
	assert.Len(t, store.created, 3)
	assert.True(t, sel.InputDisabled(false))
	assert.Equal(t, 0, sel.Remaining())
}

func TestSelectReplacesAndRevokesPrevious(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	sel := NewSelection(store)

	require.NoError(t, sel.Select(ctx, images("a.png", "b.png")))
	first := sel.Entries()
	require.NoError(t, sel.Select(ctx, images("c.png")))

	for _, e := range first {
		assert.Equal(t, 1, store.revoked[e.Preview])
	}
	assert.Equal(t, 0, store.revoked[sel.Entries()[0].Preview])

	sel.Teardown(ctx)
	store.assertEachRevokedOnce(t)
}

func TestRemoveRevokesOnlyThatEntry(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	sel := NewSelection(store)
	require.NoError(t, sel.Select(ctx, images("a.png", "b.png", "c.png")))
	before := sel.Entries()

	require.NoError(t, sel.Remove(ctx, 1))

	after := sel.Entries()
	require.Len(t, after, 2)
	assert.Equal(t, "a.png", after[0].DisplayName)
	assert.Equal(t, "c.png", after[1].DisplayName)
	assert.Equal(t, 1, store.revoked[before[1].Preview])
	assert.Zero(t, store.revoked[before[0].Preview])
	assert.Zero(t, store.revoked[before[2].Preview])
	assert.False(t, sel.Owns(before[1].Preview))
	assert.True(t, sel.Owns(before[2].Preview))
	assert.Equal(t, 1, sel.Remaining())
	assert.False(t, sel.InputDisabled(false))
	assert.True(t, sel.InputDisabled(true))
}

func TestRemoveOutOfRange(t *testing.T) {
	sel := NewSelection(newCountingStore())
	err := sel.Remove(context.Background(), 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestTeardownRevokesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	sel := NewSelection(store)
	require.NoError(t, sel.Select(ctx, images("a.png", "b.png", "c.png")))
	require.NoError(t, sel.Remove(ctx, 0))

	sel.Teardown(ctx)
	sel.Teardown(ctx)

	assert.Zero(t, sel.Len())
	store.assertEachRevokedOnce(t)
}

func TestSelectRejectsNonImages(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	sel := NewSelection(store)
	require.NoError(t, sel.Select(ctx, images("keep.png")))

	err := sel.Select(ctx, []File{{Name: "notes.txt", Data: []byte("plain text")}})
	assert.ErrorIs(t, err, ErrNotImage)
	require.Len(t, sel.Entries(), 1)
	assert.Equal(t, "keep.png", sel.Entries()[0].DisplayName)
}

func TestSelectRollsBackOnPreviewFailure(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	sel := NewSelection(store)
	require.NoError(t, sel.Select(ctx, images("keep.png")))
	store.failFrom = 2

	err := sel.Select(ctx, images("a.png", "b.png"))
	require.Error(t, err)
	require.Len(t, sel.Entries(), 1)

	sel.Teardown(ctx)
	store.assertEachRevokedOnce(t)
}

func TestDisplayNameStripsDirectories(t *testing.T) {
	assert.Equal(t, "shot.png", displayName(`C:\Users\me\shot.png`))
	assert.Equal(t, "shot.png", displayName("/tmp/shot.png"))
	assert.Equal(t, "image", displayName("  "))
}
