// Package upload manages the bounded set of images a visitor has picked for a solve.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// MaxFiles is the most images a selection keeps.
const MaxFiles = 3

var (
	// ErrIndexOutOfRange is returned by Remove for a position that does not exist.
	ErrIndexOutOfRange = errors.New("selection index out of range")
	// ErrNotImage is returned for parts whose bytes are not an image.
	ErrNotImage = errors.New("only image files can be uploaded")
)

// Handle names a revocable preview of one selected file.
type Handle string

// PreviewStore issues and revokes preview handles.
type PreviewStore interface {
	Create(ctx context.Context, name, contentType string, data []byte) (Handle, error)
	Revoke(ctx context.Context, h Handle) error
}

// File is one locally chosen image.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Entry is a selected file and the preview handle it exclusively owns.
type Entry struct {
	File        File
	Preview     Handle
	DisplayName string
}

// Selection is an ordered list of at most MaxFiles entries.
type Selection struct {
	previews PreviewStore

	mu      sync.Mutex
	entries []Entry
	err     string
}

// NewSelection returns an empty selection backed by previews.
func NewSelection(previews PreviewStore) *Selection {
	return &Selection{previews: previews}
}

// Select replaces the selection with the first MaxFiles of files. Extra files are
// dropped without error. Handles of the replaced entries are revoked.
func (s *Selection) Select(ctx context.Context, files []File) error {
	if len(files) > MaxFiles {
		files = files[:MaxFiles]
	}
	files = append([]File(nil), files...)
	for i := range files {
		if err := normalize(&files[i]); err != nil {
			return err
		}
	}

	next := make([]Entry, 0, len(files))
	for _, f := range files {
		h, err := s.previews.Create(ctx, f.Name, f.ContentType, f.Data)
		if err != nil {
			s.revokeAll(ctx, next)
			return fmt.Errorf("create preview for %q: %w", f.Name, err)
		}
		next = append(next, Entry{File: f, Preview: h, DisplayName: displayName(f.Name)})
	}

	s.mu.Lock()
	prev := s.entries
	s.entries = next
	s.err = ""
	s.mu.Unlock()

	s.revokeAll(ctx, prev)
	return nil
}

// Remove revokes the entry's handle and then drops it, keeping the order of the rest.
func (s *Selection) Remove(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.entries) {
		s.mu.Unlock()
		return fmt.Errorf("remove %d: %w", index, ErrIndexOutOfRange)
	}
	removed := s.entries[index]
	s.entries = append(s.entries[:index:index], s.entries[index+1:]...)
	s.mu.Unlock()

	if err := s.previews.Revoke(ctx, removed.Preview); err != nil {
		return fmt.Errorf("remove %d: %w", index, err)
	}
	return nil
}

// Teardown revokes every remaining handle once and empties the selection.
func (s *Selection) Teardown(ctx context.Context) {
	s.mu.Lock()
	prev := s.entries
	s.entries = nil
	s.mu.Unlock()

	s.revokeAll(ctx, prev)
}

// Entries returns a copy of the current entries.
func (s *Selection) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Len is the number of selected files.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Owns reports whether h belongs to a current entry.
func (s *Selection) Owns(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Preview == h {
			return true
		}
	}
	return false
}

// Remaining is how many more files may be added.
func (s *Selection) Remaining() int {
	return MaxFiles - s.Len()
}

// InputDisabled is true once the selection is full or while a submission is in flight.
func (s *Selection) InputDisabled(inFlight bool) bool {
	return inFlight || s.Len() >= MaxFiles
}

// SetError records a selection-level error message for display.
func (s *Selection) SetError(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

// ErrorMessage is the selection-level error message, empty when there is none.
func (s *Selection) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Selection) revokeAll(ctx context.Context, entries []Entry) {
	for _, e := range entries {
		if err := s.previews.Revoke(ctx, e.Preview); err != nil {
			log.Warn().Err(err).Str("file", e.DisplayName).Msg("[upload] revoke preview")
		}
	}
}

func normalize(f *File) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%q: %w", f.Name, ErrNotImage)
	}
	sniffed := http.DetectContentType(f.Data)
	if f.ContentType == "" || f.ContentType == "application/octet-stream" {
		f.ContentType = sniffed
	}
	if !strings.HasPrefix(f.ContentType, "image/") {
		return fmt.Errorf("%q: %w", f.Name, ErrNotImage)
	}
	return nil
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "image"
	}
	return name
}
