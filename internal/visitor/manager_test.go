package visitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeturtle/turtle-web/internal/auth"
	"github.com/codeturtle/turtle-web/internal/storage"
	"github.com/codeturtle/turtle-web/internal/storage/memory"
	"github.com/codeturtle/turtle-web/internal/upload"
	"github.com/codeturtle/turtle-web/internal/upload/previews"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	mgr      *Manager
	store    *memory.Store
	previews *previews.Store
	meCalls  *atomic.Int32
}

// newFixture starts a fake backend that knows one session cookie.
func newFixture(t *testing.T) fixture {
	t.Helper()
	var meCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "backend-session", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"user":{"id":"u1","username":"ada"}}`))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls.Add(1)
		if c, err := r.Cookie("sid"); err == nil && c.Value == "backend-session" {
			_, _ = w.Write([]byte(`{"success":true,"user":{"id":"u1","username":"ada"}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":"Not authenticated"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens, err := auth.NewTokenManager("secret", "test", time.Hour)
	require.NoError(t, err)
	pv, err := previews.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pv.Close() })
	store := memory.New()

	mgr := NewManager(Options{
		APIURL:   srv.URL,
		Previews: pv,
		Store:    store,
		Tokens:   tokens,
		IdleTTL:  time.Minute,
	})
	return fixture{mgr: mgr, store: store, previews: pv, meCalls: &meCalls}
}

func resolve(t *testing.T, m *Manager, cookie *http.Cookie) (*Visitor, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/solve", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	v, err := m.Resolve(rec, req)
	require.NoError(t, err)
	select {
	case <-v.Session.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("session never became ready")
	}
	return v, rec
}

func visitorCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("no visitor cookie set")
	return nil
}

func TestResolveCreatesAndReuses(t *testing.T) {
	f := newFixture(t)

	v1, rec := resolve(t, f.mgr, nil)
	c := visitorCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.False(t, v1.Session.Snapshot().Authenticated())

	v2, rec2 := resolve(t, f.mgr, c)
	assert.Same(t, v1, v2)
	assert.Empty(t, rec2.Result().Cookies())
	assert.Equal(t, 1, f.mgr.Len())
	assert.Equal(t, int32(1), f.meCalls.Load())

	// Anonymous visitors leave nothing in the store.
	_, err := f.store.FindVisitor(context.Background(), v1.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolveIgnoresForgedCookie(t *testing.T) {
	f := newFixture(t)
	v, rec := resolve(t, f.mgr, &http.Cookie{Name: CookieName, Value: "forged"})
	assert.NotEmpty(t, v.ID)
	visitorCookie(t, rec)
}

func TestLoginIsPersistedAndRestored(t *testing.T) {
	f := newFixture(t)
	v, rec := resolve(t, f.mgr, nil)
	c := visitorCookie(t, rec)

	res := v.Session.Login(context.Background(), "ada", "password1")
	require.True(t, res.Success)

	saved, err := f.store.FindVisitor(context.Background(), v.ID)
	require.NoError(t, err)
	require.NotNil(t, saved.User)
	assert.Equal(t, "ada", saved.User.Username)
	require.Len(t, saved.Cookies, 1)
	assert.Equal(t, "backend-session", saved.Cookies[0].Value)

	// A second manager over the same store plays the part of a restarted process.
	restarted := NewManager(f.mgr.opts)
	v2, rec2 := resolve(t, restarted, c)
	assert.Equal(t, v.ID, v2.ID)
	assert.Empty(t, rec2.Result().Cookies())
	snap := v2.Session.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, "ada", snap.User.Username)
}

func TestLogoutTearsDownSelection(t *testing.T) {
	f := newFixture(t)
	v, _ := resolve(t, f.mgr, nil)
	require.True(t, v.Session.Login(context.Background(), "ada", "password1").Success)
	require.NoError(t, v.Selection.Select(context.Background(), []upload.File{{Name: "a.png", Data: pngBytes}}))
	h := v.Selection.Entries()[0].Preview

	f.mgr.Logout(context.Background(), v)

	assert.False(t, v.Session.Snapshot().Authenticated())
	assert.Zero(t, v.Selection.Len())
	_, _, err := f.previews.Read(context.Background(), h)
	assert.ErrorIs(t, err, previews.ErrUnknownHandle)

	_, err = f.store.FindVisitor(context.Background(), v.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSweepDropsIdleVisitors(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.mgr.now = func() time.Time { return now }

	v, _ := resolve(t, f.mgr, nil)
	require.NoError(t, v.Selection.Select(context.Background(), []upload.File{{Name: "a.png", Data: pngBytes}}))
	h := v.Selection.Entries()[0].Preview

	assert.Zero(t, f.mgr.Sweep(context.Background()))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, f.mgr.Sweep(context.Background()))
	assert.Zero(t, f.mgr.Len())
	_, _, err := f.previews.Read(context.Background(), h)
	assert.ErrorIs(t, err, previews.ErrUnknownHandle)

	_, err = f.store.FindVisitor(context.Background(), v.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSweepKeepsOnlySignedInRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.mgr.now = func() time.Time { return now }

	var anonymous []string
	for range 200 {
		v, _ := resolve(t, f.mgr, nil)
		anonymous = append(anonymous, v.ID)
	}
	member, _ := resolve(t, f.mgr, nil)
	require.True(t, member.Session.Login(ctx, "ada", "password1").Success)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 201, f.mgr.Sweep(ctx))
	assert.Zero(t, f.mgr.Len())

	for _, id := range anonymous {
		_, err := f.store.FindVisitor(ctx, id)
		require.ErrorIs(t, err, storage.ErrNotFound)
	}
	_, err := f.store.FindVisitor(ctx, member.ID)
	require.NoError(t, err)

	// Past the cookie lifetime the record can never be resolved again.
	now = now.Add(2 * time.Hour)
	assert.Zero(t, f.mgr.Sweep(ctx))
	_, err = f.store.FindVisitor(ctx, member.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRestoredVisitorWithoutSessionLosesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveVisitor(ctx, storage.VisitorRecord{
		ID:      "stale",
		Cookies: []storage.Cookie{{Name: "sid", Value: "expired", Path: "/"}},
	}))
	token, err := f.mgr.opts.Tokens.Generate("stale")
	require.NoError(t, err)

	v, _ := resolve(t, f.mgr, &http.Cookie{Name: CookieName, Value: token})
	assert.Equal(t, "stale", v.ID)
	assert.False(t, v.Session.Snapshot().Authenticated())

	_, err = f.store.FindVisitor(ctx, "stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMiddlewareStoresVisitor(t *testing.T) {
	f := newFixture(t)
	var got *Visitor
	h := f.mgr.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, got)
	assert.Nil(t, FromContext(context.Background()))
}

var _ storage.VisitorStore = (*memory.Store)(nil)
