// SQLite-backed Storer. Uses ncruces/go-sqlite3/driver which provides a database/sql interface.

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLiteStore is the SQLite-backed data store.
type SQLiteStore struct {
	mu  sync.RWMutex
	db  *sql.DB
	dec decoder
}

// schema defines all tables of a project database.
// List and map columns hold JSON text.
const schema = `
CREATE TABLE IF NOT EXISTS characters (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    aliases TEXT,
    traits TEXT,
    voice_notes TEXT,
    goals TEXT,
    secrets TEXT,
    current_state TEXT,
    first_appearance TEXT,
    last_seen TEXT
);

CREATE INDEX IF NOT EXISTS idx_characters_name ON characters(name);

CREATE TABLE IF NOT EXISTS locations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    rules TEXT,
    adjacency TEXT
);

CREATE TABLE IF NOT EXISTS scenes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    scene_order INTEGER,
    summary TEXT,
    pov TEXT,
    time_marker TEXT,
    location_ids TEXT,
    participants TEXT,
    extracted_facts TEXT
);

-- Reserved: not read by the analysis layer
CREATE TABLE IF NOT EXISTS facts (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    source_ref TEXT,
    confidence REAL,
    active INTEGER,
    retconned_by TEXT
);

-- One row per unordered character pair; (from_id, to_id) is lexically sorted
CREATE TABLE IF NOT EXISTS relationships (
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    relation_type TEXT,
    strength INTEGER,
    since_chapter TEXT,
    notes TEXT,
    PRIMARY KEY (from_id, to_id)
);

-- Reserved: not read by the analysis layer
CREATE TABLE IF NOT EXISTS timeline_events (
    id TEXT PRIMARY KEY,
    time_index INTEGER,
    description TEXT,
    participants TEXT,
    location_id TEXT,
    dependencies TEXT
);

-- Append-only edit log
CREATE TABLE IF NOT EXISTS provenance (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    file_path TEXT NOT NULL,
    range_start INTEGER,
    range_end INTEGER,
    author_action TEXT,
    ai_involved INTEGER,
    suggestion_id TEXT,
    diff_hash TEXT
);

CREATE INDEX IF NOT EXISTS idx_provenance_file ON provenance(file_path, timestamp);

CREATE TABLE IF NOT EXISTS settings (
    id TEXT PRIMARY KEY,
    ai_provider TEXT NOT NULL,
    ai_base_url TEXT,
    ai_api_key TEXT,
    ai_model TEXT
);
`

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for lenient-decode warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.dec.log = l
		}
	}
}

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:", opts...)
}

// OpenFile opens (or creates) a project database at path.
func OpenFile(path string, opts ...Option) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	return NewSQLiteStoreWithDSN(dsn, opts...)
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file DSN for persistent storage.
func NewSQLiteStoreWithDSN(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and a project has a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteStore{db: db, dec: decoder{log: slog.Default()}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Characters
// =============================================================================

const characterColumns = `id, name, aliases, traits, voice_notes, goals, secrets,
	current_state, first_appearance, last_seen`

// UpsertCharacter inserts or replaces a character.
func (s *SQLiteStore) UpsertCharacter(c *Character) error {
	aliases, err := encodeStrings(c.Aliases)
	if err != nil {
		return fmt.Errorf("failed to marshal aliases: %w", err)
	}
	traits, err := encodeStrings(c.Traits)
	if err != nil {
		return fmt.Errorf("failed to marshal traits: %w", err)
	}
	state, err := encodeStringMap(c.CurrentState)
	if err != nil {
		return fmt.Errorf("failed to marshal current_state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO characters (`+characterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			aliases = excluded.aliases,
			traits = excluded.traits,
			voice_notes = excluded.voice_notes,
			goals = excluded.goals,
			secrets = excluded.secrets,
			current_state = excluded.current_state,
			first_appearance = excluded.first_appearance,
			last_seen = excluded.last_seen
	`, c.ID, c.Name, aliases, traits, optional(c.VoiceNotes), optional(c.Goals), optional(c.Secrets),
		state, optional(c.FirstAppearance), optional(c.LastSeen))
	return err
}

// GetCharacter retrieves a character by ID.
func (s *SQLiteStore) GetCharacter(id string) (*Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.scanCharacter(s.db.QueryRow(`SELECT `+characterColumns+` FROM characters WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListCharacters returns the full roster ordered by id.
func (s *SQLiteStore) ListCharacters() ([]*Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT ` + characterColumns + ` FROM characters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Character
	for rows.Next() {
		c, err := s.scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountCharacters returns the roster size.
func (s *SQLiteStore) CountCharacters() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM characters").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanCharacter(row rowScanner) (*Character, error) {
	var c Character
	var aliases, traits, state sql.NullString
	var voice, goals, secrets, first, last sql.NullString

	if err := row.Scan(&c.ID, &c.Name, &aliases, &traits, &voice, &goals, &secrets,
		&state, &first, &last); err != nil {
		return nil, err
	}

	c.Aliases = s.dec.strings("characters", c.ID, "aliases", aliases)
	c.Traits = s.dec.strings("characters", c.ID, "traits", traits)
	c.CurrentState = s.dec.stringMap("characters", c.ID, "current_state", state)
	c.VoiceNotes = nullString(voice)
	c.Goals = nullString(goals)
	c.Secrets = nullString(secrets)
	c.FirstAppearance = nullString(first)
	c.LastSeen = nullString(last)
	return &c, nil
}

// =============================================================================
// Locations
// =============================================================================

// UpsertLocation inserts or replaces a location.
func (s *SQLiteStore) UpsertLocation(l *Location) error {
	adjacency, err := encodeStrings(l.Adjacency)
	if err != nil {
		return fmt.Errorf("failed to marshal adjacency: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO locations (id, name, description, rules, adjacency)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			rules = excluded.rules,
			adjacency = excluded.adjacency
	`, l.ID, l.Name, optional(l.Description), optional(l.Rules), adjacency)
	return err
}

// ListLocations returns all locations ordered by id.
func (s *SQLiteStore) ListLocations() ([]*Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, description, rules, adjacency FROM locations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Location
	for rows.Next() {
		var l Location
		var desc, rules, adjacency sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &desc, &rules, &adjacency); err != nil {
			return nil, err
		}
		l.Description = nullString(desc)
		l.Rules = nullString(rules)
		l.Adjacency = s.dec.strings("locations", l.ID, "adjacency", adjacency)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// =============================================================================
// Scenes
// =============================================================================

const sceneColumns = `id, title, scene_order, summary, pov, time_marker,
	location_ids, participants, extracted_facts`

// UpsertScene inserts or replaces a scene. Derived sets are written as given.
func (s *SQLiteStore) UpsertScene(sc *Scene) error {
	locations, err := encodeStrings(sc.LocationIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal location_ids: %w", err)
	}
	participants, err := encodeStrings(sc.Participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}
	facts, err := encodeStrings(sc.ExtractedFacts)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted_facts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO scenes (`+sceneColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			scene_order = excluded.scene_order,
			summary = excluded.summary,
			pov = excluded.pov,
			time_marker = excluded.time_marker,
			location_ids = excluded.location_ids,
			participants = excluded.participants,
			extracted_facts = excluded.extracted_facts
	`, sc.ID, sc.Title, sc.Order, optional(sc.Summary), optional(sc.POV), optional(sc.TimeMarker),
		locations, participants, facts)
	return err
}

// GetScene retrieves a scene by ID.
func (s *SQLiteStore) GetScene(id string) (*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, err := s.scanScene(s.db.QueryRow(`SELECT `+sceneColumns+` FROM scenes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sc, err
}

// ListScenes returns all scenes in manuscript order.
func (s *SQLiteStore) ListScenes() ([]*Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT ` + sceneColumns + ` FROM scenes ORDER BY scene_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Scene
	for rows.Next() {
		sc, err := s.scanScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListSceneParticipants returns only the participant list of every scene.
func (s *SQLiteStore) ListSceneParticipants() ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, participants FROM scenes ORDER BY scene_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var id string
		var raw sql.NullString
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		out = append(out, s.dec.strings("scenes", id, "participants", raw))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) scanScene(row rowScanner) (*Scene, error) {
	var sc Scene
	var order sql.NullInt64
	var summary, pov, timeMarker sql.NullString
	var locations, participants, facts sql.NullString

	if err := row.Scan(&sc.ID, &sc.Title, &order, &summary, &pov, &timeMarker,
		&locations, &participants, &facts); err != nil {
		return nil, err
	}

	sc.Order = int(order.Int64)
	sc.Summary = nullString(summary)
	sc.POV = nullString(pov)
	sc.TimeMarker = nullString(timeMarker)
	sc.LocationIDs = s.dec.strings("scenes", sc.ID, "location_ids", locations)
	sc.Participants = s.dec.strings("scenes", sc.ID, "participants", participants)
	sc.ExtractedFacts = s.dec.strings("scenes", sc.ID, "extracted_facts", facts)
	return &sc, nil
}

// =============================================================================
// Relationships
// =============================================================================

// GetRelationship retrieves the row for a (sorted) pair key.
func (s *SQLiteStore) GetRelationship(fromID, toID string) (*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRelationship(s.db.QueryRow(`
		SELECT from_id, to_id, relation_type, strength, since_chapter, notes
		FROM relationships WHERE from_id = ? AND to_id = ?
	`, fromID, toID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListRelationships returns all rows ordered by pair key.
func (s *SQLiteStore) ListRelationships() ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT from_id, to_id, relation_type, strength, since_chapter, notes
		FROM relationships ORDER BY from_id, to_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRelationships upserts a batch of rows in a single transaction.
func (s *SQLiteStore) SaveRelationships(rels []*Relationship) error {
	if len(rels) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO relationships (from_id, to_id, relation_type, strength, since_chapter, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id) DO UPDATE SET
			relation_type = excluded.relation_type,
			strength = excluded.strength,
			since_chapter = excluded.since_chapter,
			notes = excluded.notes
	`)
	if err != nil {
		return fmt.Errorf("prepare relationship upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rels {
		if _, err := stmt.Exec(r.FromID, r.ToID, r.RelationType, r.Strength, optional(r.SinceChapter), optional(r.Notes)); err != nil {
			return fmt.Errorf("upsert relationship %s/%s: %w", r.FromID, r.ToID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanRelationship(row rowScanner) (*Relationship, error) {
	var r Relationship
	var relType, since, notes sql.NullString
	var strength sql.NullInt64

	if err := row.Scan(&r.FromID, &r.ToID, &relType, &strength, &since, &notes); err != nil {
		return nil, err
	}
	r.RelationType = relType.String
	r.Strength = int(strength.Int64)
	r.SinceChapter = nullString(since)
	r.Notes = nullString(notes)
	return &r, nil
}

// =============================================================================
// Provenance
// =============================================================================

// AppendProvenance inserts one entry. There is no update or delete path.
func (s *SQLiteStore) AppendProvenance(e *ProvenanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO provenance (id, timestamp, file_path, range_start, range_end,
			author_action, ai_involved, suggestion_id, diff_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, formatTimestamp(e.Timestamp), e.FilePath, e.RangeStart, e.RangeEnd,
		e.AuthorAction, boolToInt(e.AIInvolved), optional(e.SuggestionID), e.DiffHash)
	return err
}

// ListProvenance returns every entry for filePath, most recent first.
func (s *SQLiteStore) ListProvenance(filePath string) ([]*ProvenanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, timestamp, file_path, range_start, range_end, author_action,
			ai_involved, suggestion_id, diff_hash
		FROM provenance WHERE file_path = ?
		ORDER BY timestamp DESC, rowid DESC
	`, filePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var ts string
		var action, hash, suggestion sql.NullString
		var aiInvolved int

		if err := rows.Scan(&e.ID, &ts, &e.FilePath, &e.RangeStart, &e.RangeEnd,
			&action, &aiInvolved, &suggestion, &hash); err != nil {
			return nil, err
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("provenance %s: bad timestamp %q: %w", e.ID, ts, err)
		}
		e.Timestamp = t
		e.AuthorAction = action.String
		e.AIInvolved = aiInvolved != 0
		e.SuggestionID = nullString(suggestion)
		e.DiffHash = hash.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CountProvenance returns the total log length.
func (s *SQLiteStore) CountProvenance() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM provenance").Scan(&count)
	return count, err
}

// =============================================================================
// Settings
// =============================================================================

// GetSettings returns the saved record, or nil when none exists.
func (s *SQLiteStore) GetSettings() (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Settings
	var baseURL, apiKey, model sql.NullString
	err := s.db.QueryRow(`
		SELECT ai_provider, ai_base_url, ai_api_key, ai_model FROM settings WHERE id = 'config'
	`).Scan(&st.AIProvider, &baseURL, &apiKey, &model)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.AIBaseURL = nullString(baseURL)
	st.AIAPIKey = nullString(apiKey)
	st.AIModel = nullString(model)
	return &st, nil
}

// SaveSettings upserts the single settings row.
func (s *SQLiteStore) SaveSettings(st *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO settings (id, ai_provider, ai_base_url, ai_api_key, ai_model)
		VALUES ('config', ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ai_provider = excluded.ai_provider,
			ai_base_url = excluded.ai_base_url,
			ai_api_key = excluded.ai_api_key,
			ai_model = excluded.ai_model
	`, st.AIProvider, optional(st.AIBaseURL), optional(st.AIAPIKey), optional(st.AIModel))
	return err
}

// Compile-time interface checks
var (
	_ Storer = (*SQLiteStore)(nil)
	_ Storer = (*MemStore)(nil)
)
