// Package provenance records an append-only history of content edits.
package provenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

// ErrInvalidEdit is returned for edits with no file path or a reversed range.
var ErrInvalidEdit = errors.New("invalid edit")

// Store is the persistence the log needs. It has no update or delete.
type Store interface {
	AppendProvenance(e *store.ProvenanceEntry) error
	ListProvenance(filePath string) ([]*store.ProvenanceEntry, error)
}

// Edit describes one change to a manuscript file.
// RangeStart and RangeEnd are a half-open byte range.
type Edit struct {
	FilePath     string
	RangeStart   int
	RangeEnd     int
	AuthorAction string
	AIInvolved   bool
	SuggestionID *string
	DiffHash     string
}

// Log appends entries with fresh identifiers and timestamps.
type Log struct {
	store Store
	now   func() time.Time
	newID func() string
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(newID func() string) Option {
	return func(l *Log) { l.newID = newID }
}

// New returns a Log writing to s.
func New(s Store, opts ...Option) *Log {
	l := &Log{
		store: s,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogEdit appends one entry for e and returns it.
func (l *Log) LogEdit(ctx context.Context, e Edit) (*store.ProvenanceEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.FilePath == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrInvalidEdit)
	}
	if e.RangeEnd < e.RangeStart {
		return nil, fmt.Errorf("%w: range %d..%d is reversed", ErrInvalidEdit, e.RangeStart, e.RangeEnd)
	}

	entry := &store.ProvenanceEntry{
		ID:           l.newID(),
		Timestamp:    l.now().UTC(),
		FilePath:     e.FilePath,
		RangeStart:   e.RangeStart,
		RangeEnd:     e.RangeEnd,
		AuthorAction: e.AuthorAction,
		AIInvolved:   e.AIInvolved,
		SuggestionID: e.SuggestionID,
		DiffHash:     e.DiffHash,
	}
	if err := l.store.AppendProvenance(entry); err != nil {
		return nil, fmt.Errorf("append provenance: %w", err)
	}
	return entry, nil
}

// History returns the entries for filePath, most recent first.
func (l *Log) History(ctx context.Context, filePath string) ([]*store.ProvenanceEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := l.store.ListProvenance(filePath)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	if entries == nil {
		entries = []*store.ProvenanceEntry{}
	}
	return entries, nil
}

// Fingerprint is the content hash recorded as DiffHash: xxhash64 as 16 hex digits.
func Fingerprint(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))
}
