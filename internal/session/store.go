// Package session holds a visitor's authenticated-user state.
//
// A Store is created per visitor and passed explicitly to whatever needs it;
// only the Store mutates the user it holds.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codeturtle/turtle-web/internal/backend"
	"github.com/codeturtle/turtle-web/internal/models"
	"github.com/codeturtle/turtle-web/internal/models/dto"
)

// AuthAPI is the subset of backend calls the store needs. *backend.AuthCalls satisfies it.
type AuthAPI interface {
	Register(ctx context.Context, req dto.RegisterRequest) (dto.AuthResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error)
	LoginWithGoogle(ctx context.Context, idToken string) (dto.AuthResponse, error)
	Logout(ctx context.Context) (dto.AuthResponse, error)
	Me(ctx context.Context) (dto.AuthResponse, error)
}

var _ AuthAPI = (*backend.AuthCalls)(nil)

// Snapshot is a consistent read of the store.
type Snapshot struct {
	User    *models.User
	Loading bool
}

// Authenticated reports whether a user is present.
func (s Snapshot) Authenticated() bool { return s.User != nil }

// Result is the uniform outcome of login, register and google login.
type Result struct {
	Success bool
	Error   string
	User    *models.User
}

// Store is the per-visitor session state.
type Store struct {
	api AuthAPI

	mu       sync.RWMutex
	user     *models.User
	gen      uint64 // bumped on every change of user
	loading  bool
	onChange func(*models.User)

	startOnce sync.Once
	ready     chan struct{}
}

// NewStore returns a store in the loading state. seed, when non-nil, is the user
// remembered from an earlier process and is kept until the first fetch says otherwise.
func NewStore(api AuthAPI, seed *models.User) *Store {
	return &Store{
		api:     api,
		user:    cloneUser(seed),
		loading: true,
		ready:   make(chan struct{}),
	}
}

// OnChange registers fn to be called after every change of the user.
func (s *Store) OnChange(fn func(*models.User)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Start issues the initial "who am I" fetch once. Ready is closed after its result is applied.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		gen := s.generation()
		go func() {
			defer func() {
				s.mu.Lock()
				s.loading = false
				s.mu.Unlock()
				close(s.ready)
			}()
			s.fetchMe(ctx, true, gen)
		}()
	})
}

// Ready is closed once the initial fetch has been applied.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{User: cloneUser(s.user), Loading: s.loading}
}

// Login authenticates with username and password.
func (s *Store) Login(ctx context.Context, username, password string) Result {
	res, err := s.api.Login(ctx, dto.LoginRequest{Username: username, Password: password})
	return s.apply(res, err, "Login failed")
}

// Register creates an account and signs it in. email may be empty.
func (s *Store) Register(ctx context.Context, username, password, email string) Result {
	res, err := s.api.Register(ctx, dto.RegisterRequest{Username: username, Password: password, Email: strings.TrimSpace(email)})
	return s.apply(res, err, "Registration failed")
}

// LoginWithGoogle exchanges an identity-provider credential for a session.
func (s *Store) LoginWithGoogle(ctx context.Context, idToken string) Result {
	res, err := s.api.LoginWithGoogle(ctx, idToken)
	return s.apply(res, err, "Login failed")
}

// Logout asks the backend to end the session. Local state is cleared regardless of the outcome.
func (s *Store) Logout(ctx context.Context) {
	defer s.setUser(nil)
	if _, err := s.api.Logout(ctx); err != nil {
		log.Error().Err(err).Msg("[session] logout failed")
	}
}

// Refresh re-fetches the current user. Failures are ignored.
func (s *Store) Refresh(ctx context.Context) {
	s.fetchMe(ctx, false, s.generation())
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// fetchMe applies the backend's answer unless the user changed since gen.
func (s *Store) fetchMe(ctx context.Context, initial bool, gen uint64) {
	res, err := s.api.Me(ctx)
	switch {
	case err == nil:
		if res.Success {
			s.commit(res.User, gen, true)
		}
	case backend.IsUnauthorized(err):
		// No session is a normal outcome.
		if initial {
			s.commit(nil, gen, true)
		}
	case initial:
		log.Error().Err(err).Msg("[session] auth refresh failed")
	}
}

func (s *Store) apply(res dto.AuthResponse, err error, fallback string) Result {
	if err != nil {
		return Result{Success: false, Error: backend.Message(err, fallback)}
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = res.Details
		}
		if msg == "" {
			msg = fallback
		}
		return Result{Success: false, Error: msg}
	}
	s.setUser(res.User)
	return Result{Success: true, User: cloneUser(res.User)}
}

func (s *Store) setUser(u *models.User) {
	s.commit(u, 0, false)
}

// commit replaces the user. A fetched result (ifUnchanged) is dropped when the
// user changed after the fetch started, so a slow "who am I" never undoes a login.
func (s *Store) commit(u *models.User, gen uint64, ifUnchanged bool) {
	s.mu.Lock()
	if ifUnchanged && s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.user = cloneUser(u)
	fn := s.onChange
	current := cloneUser(s.user)
	s.mu.Unlock()

	if fn != nil {
		fn(current)
	}
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Credits != nil {
		n := *u.Credits
		c.Credits = &n
	}
	return &c
}
