package provenance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

// stepClock returns base, base+1s, base+2s, ...
func stepClock(base time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := base.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

func newTestStores(t *testing.T) map[string]Store {
	sqlite, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{"MemStore": store.NewMemStore(), "SQLiteStore": sqlite}
}

func TestLogEditCreatesEntry(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))
			log := New(s, WithClock(stepClock(base)))

			e, err := log.LogEdit(context.Background(), Edit{
				FilePath:     "chapter-001.md",
				RangeEnd:     42,
				AuthorAction: "save",
				DiffHash:     Fingerprint("hello"),
			})
			require.NoError(t, err)

			_, err = uuid.Parse(e.ID)
			assert.NoError(t, err)
			assert.Equal(t, time.UTC, e.Timestamp.Location())
			assert.True(t, e.Timestamp.Equal(base))
			assert.False(t, e.AIInvolved)

			hist, err := log.History(context.Background(), "chapter-001.md")
			require.NoError(t, err)
			require.Len(t, hist, 1)
			assert.Equal(t, e.ID, hist[0].ID)
			assert.Equal(t, 42, hist[0].RangeEnd)
		})
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			log := New(s, WithClock(stepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				_, err := log.LogEdit(ctx, Edit{FilePath: "chapter-002.md", RangeEnd: i, AuthorAction: "save"})
				require.NoError(t, err)
			}
			_, err := log.LogEdit(ctx, Edit{FilePath: "chapter-003.md", AuthorAction: "save"})
			require.NoError(t, err)

			hist, err := log.History(ctx, "chapter-002.md")
			require.NoError(t, err)
			require.Len(t, hist, 5)
			for i := 1; i < len(hist); i++ {
				assert.True(t, hist[i-1].Timestamp.After(hist[i].Timestamp), "entry %d out of order", i)
			}
			assert.Equal(t, 4, hist[0].RangeEnd)
		})
	}
}

func TestHistoryEqualTimestampsNewestInsertFirst(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			n := 0
			log := New(s,
				WithClock(func() time.Time { return fixed }),
				WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
			)

			for i := 0; i < 3; i++ {
				_, err := log.LogEdit(context.Background(), Edit{FilePath: "f.md"})
				require.NoError(t, err)
			}

			hist, err := log.History(context.Background(), "f.md")
			require.NoError(t, err)
			require.Len(t, hist, 3)
			assert.Equal(t, "id-3", hist[0].ID)
			assert.Equal(t, "id-1", hist[2].ID)
		})
	}
}

func TestLogEditValidation(t *testing.T) {
	log := New(store.NewMemStore())

	_, err := log.LogEdit(context.Background(), Edit{})
	assert.ErrorIs(t, err, ErrInvalidEdit)

	_, err = log.LogEdit(context.Background(), Edit{FilePath: "f.md", RangeStart: 5, RangeEnd: 2})
	assert.ErrorIs(t, err, ErrInvalidEdit)

	_, err = log.LogEdit(context.Background(), Edit{FilePath: "f.md", RangeStart: 5, RangeEnd: 5})
	assert.NoError(t, err, "empty range is allowed")
}

func TestLogEditCanceledContext(t *testing.T) {
	s := store.NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(s).LogEdit(ctx, Edit{FilePath: "f.md"})
	assert.ErrorIs(t, err, context.Canceled)

	count, err := s.CountProvenance()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

type failingStore struct{ store.MemStore }

func (*failingStore) AppendProvenance(*store.ProvenanceEntry) error { return errors.New("disk full") }

func TestLogEditPropagatesStoreError(t *testing.T) {
	_, err := New(&failingStore{}).LogEdit(context.Background(), Edit{FilePath: "f.md"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestHistoryUnknownFileIsEmpty(t *testing.T) {
	hist, err := New(store.NewMemStore()).History(context.Background(), "missing.md")
	require.NoError(t, err)
	assert.NotNil(t, hist)
	assert.Empty(t, hist)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("The night was dark.")
	assert.Len(t, a, 16)
	assert.Equal(t, a, Fingerprint("The night was dark."))
	assert.NotEqual(t, a, Fingerprint("The night was dark!"))
	assert.Equal(t, "ef46db3751d8e999", Fingerprint(""))
}
