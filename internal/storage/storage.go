package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/codeturtle/turtle-web/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// Cookie is the persisted form of one backend cookie.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// VisitorRecord is what survives a restart: who the visitor was and the backend cookies that prove it.
type VisitorRecord struct {
	ID        string
	User      *models.User
	Cookies   []Cookie
	UpdatedAt time.Time
}

// VisitorStore captures persistence operations needed by the session manager.
type VisitorStore interface {
	SaveVisitor(ctx context.Context, rec VisitorRecord) error
	FindVisitor(ctx context.Context, id string) (VisitorRecord, error)
	DeleteVisitor(ctx context.Context, id string) error
	// PurgeVisitors deletes records last updated before the cutoff and reports how many went.
	PurgeVisitors(ctx context.Context, before time.Time) (int, error)
	Close()
}

// FromHTTPCookies converts jar cookies for persistence.
func FromHTTPCookies(in []*http.Cookie) []Cookie {
	out := make([]Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	return out
}

// HTTPCookies converts persisted cookies back for a jar.
func HTTPCookies(in []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	return out
}
