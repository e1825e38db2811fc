// This file contains the Storer interface and the in-memory implementation for testing.

package store

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by callers that require a row to exist.
// Get* methods themselves return (nil, nil) for missing rows.
var ErrNotFound = errors.New("not found")

// Storer defines the interface for data persistence.
// This allows swapping between MemStore (testing) and SQLiteStore (production).
type Storer interface {
	// Characters
	UpsertCharacter(c *Character) error
	GetCharacter(id string) (*Character, error)
	ListCharacters() ([]*Character, error)
	CountCharacters() (int, error)

	// Locations
	UpsertLocation(l *Location) error
	ListLocations() ([]*Location, error)

	// Scenes
	UpsertScene(s *Scene) error
	GetScene(id string) (*Scene, error)
	ListScenes() ([]*Scene, error)
	ListSceneParticipants() ([][]string, error)

	// Relationships
	GetRelationship(fromID, toID string) (*Relationship, error)
	ListRelationships() ([]*Relationship, error)
	SaveRelationships(rels []*Relationship) error

	// Provenance (append-only)
	AppendProvenance(e *ProvenanceEntry) error
	ListProvenance(filePath string) ([]*ProvenanceEntry, error)
	CountProvenance() (int, error)

	// Settings
	GetSettings() (*Settings, error)
	SaveSettings(s *Settings) error

	// Lifecycle
	Close() error
}

// MemStore is an in-memory implementation of Storer for testing.
type MemStore struct {
	mu            sync.RWMutex
	characters    map[string]*Character
	locations     map[string]*Location
	scenes        map[string]*Scene
	relationships map[[2]string]*Relationship
	provenance    []*ProvenanceEntry
	settings      *Settings
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		characters:    make(map[string]*Character),
		locations:     make(map[string]*Location),
		scenes:        make(map[string]*Scene),
		relationships: make(map[[2]string]*Relationship),
	}
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error {
	return nil
}

// =============================================================================
// Characters
// =============================================================================

func (s *MemStore) UpsertCharacter(c *Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[c.ID] = cloneCharacter(c)
	return nil
}

func (s *MemStore) GetCharacter(id string) (*Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.characters[id]; ok {
		return cloneCharacter(c), nil
	}
	return nil, nil
}

func (s *MemStore) ListCharacters() ([]*Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Character, 0, len(s.characters))
	for _, c := range s.characters {
		out = append(out, cloneCharacter(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) CountCharacters() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.characters), nil
}

// =============================================================================
// Locations
// =============================================================================

func (s *MemStore) UpsertLocation(l *Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	cp.Adjacency = cloneStrings(l.Adjacency)
	s.locations[l.ID] = &cp
	return nil
}

func (s *MemStore) ListLocations() ([]*Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Location, 0, len(s.locations))
	for _, l := range s.locations {
		cp := *l
		cp.Adjacency = cloneStrings(l.Adjacency)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// Scenes
// =============================================================================

func (s *MemStore) UpsertScene(sc *Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes[sc.ID] = cloneScene(sc)
	return nil
}

func (s *MemStore) GetScene(id string) (*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sc, ok := s.scenes[id]; ok {
		return cloneScene(sc), nil
	}
	return nil, nil
}

func (s *MemStore) ListScenes() ([]*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Scene, 0, len(s.scenes))
	for _, sc := range s.scenes {
		out = append(out, cloneScene(sc))
	}
	sortScenes(out)
	return out, nil
}

func (s *MemStore) ListSceneParticipants() ([][]string, error) {
	scenes, err := s.ListScenes()
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(scenes))
	for _, sc := range scenes {
		out = append(out, sc.Participants)
	}
	return out, nil
}

// =============================================================================
// Relationships
// =============================================================================

func (s *MemStore) GetRelationship(fromID, toID string) (*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.relationships[[2]string{fromID, toID}]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *MemStore) ListRelationships() ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Relationship, 0, len(s.relationships))
	for _, r := range s.relationships {
		cp := *r
		out = append(out, &cp)
	}
	sortRelationships(out)
	return out, nil
}

func (s *MemStore) SaveRelationships(rels []*Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rels {
		cp := *r
		s.relationships[[2]string{r.FromID, r.ToID}] = &cp
	}
	return nil
}

// =============================================================================
// Provenance
// =============================================================================

func (s *MemStore) AppendProvenance(e *ProvenanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.provenance {
		if existing.ID == e.ID {
			return errors.New("provenance entry already exists: " + e.ID)
		}
	}
	cp := *e
	cp.Timestamp = e.Timestamp.UTC()
	s.provenance = append(s.provenance, &cp)
	return nil
}

func (s *MemStore) ListProvenance(filePath string) ([]*ProvenanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Walk backwards so equal timestamps keep newest-insert-first, matching SQLite's rowid tiebreak.
	var out []*ProvenanceEntry
	for i := len(s.provenance) - 1; i >= 0; i-- {
		if e := s.provenance[i]; e.FilePath == filePath {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemStore) CountProvenance() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.provenance), nil
}

// =============================================================================
// Settings
// =============================================================================

func (s *MemStore) GetSettings() (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, nil
	}
	cp := *s.settings
	return &cp, nil
}

func (s *MemStore) SaveSettings(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *settings
	s.settings = &cp
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneCharacter(c *Character) *Character {
	cp := *c
	cp.Aliases = cloneStrings(c.Aliases)
	cp.Traits = cloneStrings(c.Traits)
	cp.CurrentState = make(map[string]string, len(c.CurrentState))
	for k, v := range c.CurrentState {
		cp.CurrentState[k] = v
	}
	return &cp
}

func cloneScene(sc *Scene) *Scene {
	cp := *sc
	cp.LocationIDs = cloneStrings(sc.LocationIDs)
	cp.Participants = cloneStrings(sc.Participants)
	cp.ExtractedFacts = cloneStrings(sc.ExtractedFacts)
	return &cp
}

func sortScenes(scenes []*Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		if scenes[i].Order != scenes[j].Order {
			return scenes[i].Order < scenes[j].Order
		}
		return scenes[i].ID < scenes[j].ID
	})
}

func sortRelationships(rels []*Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].FromID != rels[j].FromID {
			return rels[i].FromID < rels[j].FromID
		}
		return rels[i].ToID < rels[j].ToID
	})
}
