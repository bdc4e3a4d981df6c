// Package previews stores the bytes behind revocable preview handles.
//
// A handle is live from Create until Revoke. Revoking twice, or revoking a
// handle that was never issued, is reported with ErrUnknownHandle.
package previews

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/google/uuid"

	"github.com/codeturtle/turtle-web/internal/upload"
)

var _ upload.PreviewStore = (*Store)(nil)

// ErrUnknownHandle means the handle is not live.
var ErrUnknownHandle = errors.New("unknown preview handle")

const keyPrefix = "p:"

// Store is a pebble-backed preview blob store.
type Store struct {
	db *pebble.DB

	revokeMu sync.Mutex
}

// Open opens (or creates) a store in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open preview store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("open in-memory preview store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores data and returns a fresh handle for it.
func (s *Store) Create(_ context.Context, name, contentType string, data []byte) (upload.Handle, error) {
	h := upload.Handle(uuid.NewString())
	if err := s.db.Set(key(h), encode(contentType, data), pebble.Sync); err != nil {
		return "", fmt.Errorf("store preview %q: %w", name, err)
	}
	return h, nil
}

// Revoke deletes the bytes behind h.
func (s *Store) Revoke(_ context.Context, h upload.Handle) error {
	s.revokeMu.Lock()
	defer s.revokeMu.Unlock()
	if !s.live(h) {
		return fmt.Errorf("revoke %s: %w", h, ErrUnknownHandle)
	}
	if err := s.db.Delete(key(h), pebble.Sync); err != nil {
		return fmt.Errorf("revoke %s: %w", h, err)
	}
	return nil
}

// Read returns the content type and bytes behind a live handle.
func (s *Store) Read(_ context.Context, h upload.Handle) (string, []byte, error) {
	if strings.TrimSpace(string(h)) == "" {
		return "", nil, ErrUnknownHandle
	}
	val, closer, err := s.db.Get(key(h))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", nil, ErrUnknownHandle
		}
		return "", nil, fmt.Errorf("read preview %s: %w", h, err)
	}
	defer closer.Close()
	ct, data, err := decode(val)
	if err != nil {
		return "", nil, fmt.Errorf("read preview %s: %w", h, err)
	}
	return ct, data, nil
}

func (s *Store) live(h upload.Handle) bool {
	_, closer, err := s.db.Get(key(h))
	if err != nil {
		return false
	}
	_ = closer.Close()
	return true
}

func key(h upload.Handle) []byte {
	return []byte(keyPrefix + string(h))
}

// Value layout: uvarint(len(contentType)) | contentType | data.
func encode(contentType string, data []byte) []byte {
	var buf bytes.Buffer
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(contentType)))
	buf.Grow(n + len(contentType) + len(data))
	buf.Write(lenBuf[:n])
	buf.WriteString(contentType)
	buf.Write(data)
	return buf.Bytes()
}

func decode(val []byte) (string, []byte, error) {
	l, n := binary.Uvarint(val)
	if n <= 0 || uint64(len(val)-n) < l {
		return "", nil, errors.New("corrupt preview record")
	}
	ct := string(val[n : n+int(l)])
	data := append([]byte(nil), val[n+int(l):]...)
	return ct, data, nil
}
