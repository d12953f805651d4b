// Package store keeps the canonical spec document in memory and persists it
// after every change.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThalitaPinheiro/defacto/internal/spec"
)

var (
	// ErrNotFound is returned by a Backend that holds no document yet.
	ErrNotFound = errors.New("store: document not found")
	// ErrPersist wraps failures to write the document.
	ErrPersist = errors.New("store: persist document")
	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("store: closed")
)

// Backend reads and writes whole documents.
type Backend interface {
	Load() (*spec.Document, error)
	Save(*spec.Document) error
	Close() error
}

// Store is the single source of truth for one document. Updates are
// serialized and each one is persisted before Update returns.
type Store struct {
	mu      sync.Mutex
	doc     *spec.Document
	backend Backend
	logger  *slog.Logger
	closed  bool
}

// Option configures Open.
type Option func(*options)

type options struct {
	resume bool
	logger *slog.Logger
}

// WithResume continues from the document already held by the backend
// instead of starting from an empty one.
func WithResume() Option { return func(o *options) { o.resume = true } }

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Open prepares a Store over backend. Without WithResume, or when the
// backend has nothing to resume, an empty document is written immediately.
func Open(backend Backend, opts ...Option) (*Store, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{backend: backend, logger: o.logger}

	if o.resume {
		doc, err := backend.Load()
		switch {
		case err == nil:
			s.doc = doc
			s.logger.Debug("resumed document", "paths", len(doc.Paths))
			return s, nil
		case errors.Is(err, ErrNotFound):
			s.logger.Debug("nothing to resume, starting empty")
		default:
			return nil, fmt.Errorf("store: load document: %w", err)
		}
	}

	s.doc = spec.New()
	if err := backend.Save(s.doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return s, nil
}

// Update applies fn to a copy of the document, persists the copy and makes
// it canonical. If fn or the write fails the canonical document is left as
// it was, so memory never runs ahead of what was persisted.
func (s *Store) Update(fn func(*spec.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	next := s.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.backend.Save(next); err != nil {
		s.logger.Error("persist document", "err", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.doc = next
	return nil
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *spec.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Close releases the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}
