// Package visitor keeps the per-browser state of the web front end.
//
// Each browser is a visitor, named by a signed cookie. A visitor owns its own
// backend client (and so its own backend session), a session store, an image
// selection and a solve workflow.
package visitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/auth"
	"github.com/codeturtle/turtle-web/internal/backend"
	"github.com/codeturtle/turtle-web/internal/models"
	"github.com/codeturtle/turtle-web/internal/session"
	"github.com/codeturtle/turtle-web/internal/solve"
	"github.com/codeturtle/turtle-web/internal/storage"
	"github.com/codeturtle/turtle-web/internal/upload"
)

// CookieName is the browser cookie carrying the visitor token.
const CookieName = "ct_visitor"

// Visitor is one browser's state. Mutating requests hold Lock for their duration.
type Visitor struct {
	ID        string
	Client    *backend.Client
	Session   *session.Store
	Selection *upload.Selection
	Workflow  *solve.Workflow

	mu sync.Mutex
	// stored is set while a record for the visitor exists in the store.
	stored atomic.Bool

	seenMu   sync.Mutex
	lastSeen time.Time
}

func (v *Visitor) Lock()   { v.mu.Lock() }
func (v *Visitor) Unlock() { v.mu.Unlock() }

func (v *Visitor) touch(now time.Time) {
	v.seenMu.Lock()
	v.lastSeen = now
	v.seenMu.Unlock()
}

// LastSeen is the time of the visitor's latest request.
func (v *Visitor) LastSeen() time.Time {
	v.seenMu.Lock()
	defer v.seenMu.Unlock()
	return v.lastSeen
}

// Options configures a Manager.
type Options struct {
	APIURL        string
	Solve         solve.Options
	Previews      upload.PreviewStore
	Store         storage.VisitorStore
	Tokens        *auth.TokenManager
	SecureCookies bool
	// IdleTTL is how long an untouched visitor stays in memory. Zero keeps visitors forever.
	IdleTTL time.Duration
}

// Manager creates, restores and tears down visitors.
type Manager struct {
	opts Options
	now  func() time.Time

	mu       sync.Mutex
	visitors map[string]*Visitor
}

// NewManager returns an empty manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts,
		now:      time.Now,
		visitors: make(map[string]*Visitor),
	}
}

// Resolve returns the request's visitor, restoring it from storage or creating a
// new one (and setting its cookie) as needed. The visitor's initial session fetch
// has been started when Resolve returns. Nothing is stored until the visitor signs in.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Visitor, error) {
	id := ""
	if c, err := r.Cookie(CookieName); err == nil {
		if parsed, err := m.opts.Tokens.Parse(c.Value); err == nil {
			id = parsed
		} else {
			log.Debug().Err(err).Msg("[visitor] ignoring cookie")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.visitors[id]; ok && id != "" {
		v.touch(m.now())
		return v, nil
	}

	var rec storage.VisitorRecord
	fresh := id == ""
	found := false
	if !fresh {
		stored, err := m.opts.Store.FindVisitor(r.Context(), id)
		switch {
		case err == nil:
			rec, found = stored, true
		case errors.Is(err, storage.ErrNotFound):
			rec = storage.VisitorRecord{ID: id}
		default:
			return nil, fmt.Errorf("find visitor: %w", err)
		}
	} else {
		rec = storage.VisitorRecord{ID: uuid.NewString()}
	}

	v, err := m.build(rec)
	if err != nil {
		return nil, err
	}
	v.stored.Store(found)
	if fresh {
		if err := m.issueCookie(w, v.ID); err != nil {
			return nil, err
		}
	}
	m.visitors[v.ID] = v
	v.touch(m.now())
	v.Session.Start(context.WithoutCancel(r.Context()))
	return v, nil
}

func (m *Manager) build(rec storage.VisitorRecord) (*Visitor, error) {
	client, err := backend.New(m.opts.APIURL)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	client.SetCookies(storage.HTTPCookies(rec.Cookies))

	sel := upload.NewSelection(m.opts.Previews)
	v := &Visitor{
		ID:        rec.ID,
		Client:    client,
		Session:   session.NewStore(client.Auth(), rec.User),
		Selection: sel,
		Workflow:  solve.NewWorkflow(sel, client, m.opts.Solve),
	}
	v.Session.OnChange(func(u *models.User) {
		if u == nil {
			m.forget(context.Background(), v)
			return
		}
		m.persist(context.Background(), v, u)
	})
	return v, nil
}

func (m *Manager) issueCookie(w http.ResponseWriter, id string) error {
	token, err := m.opts.Tokens.Generate(id)
	if err != nil {
		return fmt.Errorf("visitor token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.opts.Tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   m.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// persist saves who the visitor is and the backend cookies proving it. Failures
// are logged; the visitor keeps working from memory.
func (m *Manager) persist(ctx context.Context, v *Visitor, u *models.User) {
	rec := storage.VisitorRecord{
		ID:        v.ID,
		User:      u,
		Cookies:   storage.FromHTTPCookies(v.Client.Cookies()),
		UpdatedAt: m.now(),
	}
	if err := m.opts.Store.SaveVisitor(ctx, rec); err != nil {
		log.Error().Err(err).Str("visitor", v.ID).Msg("[visitor] persist failed")
		return
	}
	v.stored.Store(true)
}

// forget deletes the visitor's record, if it has one.
func (m *Manager) forget(ctx context.Context, v *Visitor) {
	if !v.stored.Swap(false) {
		return
	}
	if err := m.opts.Store.DeleteVisitor(ctx, v.ID); err != nil {
		log.Error().Err(err).Str("visitor", v.ID).Msg("[visitor] delete record failed")
		v.stored.Store(true)
	}
}

// Logout ends the visitor's backend session and discards its selection, results and record.
func (m *Manager) Logout(ctx context.Context, v *Visitor) {
	v.Session.Logout(ctx)
	v.Selection.Teardown(ctx)
	v.Workflow.Reset()
}

// Len is the number of visitors held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors)
}

// Sweep drops visitors idle longer than IdleTTL from memory and revokes their
// previews. Signed-in visitors keep their records and are restored on their next
// request; the others lose theirs. Records older than the cookie lifetime can no
// longer be reached and are purged.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var idle []*Visitor
	for id, v := range m.visitors {
		if v.LastSeen().Before(cutoff) {
			idle = append(idle, v)
			delete(m.visitors, id)
		}
	}
	m.mu.Unlock()

	for _, v := range idle {
		v.Selection.Teardown(ctx)
		if !v.Session.Snapshot().Authenticated() {
			m.forget(ctx, v)
		}
	}
	if len(idle) > 0 {
		log.Info().Int("visitors", len(idle)).Msg("[visitor] swept idle visitors")
	}

	purged, err := m.opts.Store.PurgeVisitors(ctx, m.now().Add(-m.opts.Tokens.TTL()))
	switch {
	case err != nil:
		log.Error().Err(err).Msg("[visitor] purge expired records")
	case purged > 0:
		log.Info().Int("records", purged).Msg("[visitor] purged expired records")
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Close tears down every visitor held in memory.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	all := m.visitors
	m.visitors = make(map[string]*Visitor)
	m.mu.Unlock()

	for _, v := range all {
		v.Selection.Teardown(ctx)
	}
}
