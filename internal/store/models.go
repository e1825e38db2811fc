// Package store provides SQLite-backed persistence for a bewritten project.
// Every story fact the analysis layer reads or derives lives here.
package store

import "time"

// Character is a member of the project's cast.
// CurrentState is an open-ended status bag; only "status" has meaning to the checker.
type Character struct {
	ID              string            `json:"id" yaml:"id"`
	Name            string            `json:"name" yaml:"name"`
	Aliases         []string          `json:"aliases" yaml:"aliases"`
	Traits          []string          `json:"traits" yaml:"traits"`
	VoiceNotes      *string           `json:"voice_notes,omitempty" yaml:"voice_notes,omitempty"`
	Goals           *string           `json:"goals,omitempty" yaml:"goals,omitempty"`
	Secrets         *string           `json:"secrets,omitempty" yaml:"secrets,omitempty"`
	CurrentState    map[string]string `json:"current_state" yaml:"current_state"`
	FirstAppearance *string           `json:"first_appearance,omitempty" yaml:"first_appearance,omitempty"`
	LastSeen        *string           `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
}

// StatusKey is the reserved CurrentState key.
const StatusKey = "status"

// Status returns the character's reserved status value, if any.
func (c *Character) Status() (string, bool) {
	if c == nil || c.CurrentState == nil {
		return "", false
	}
	v, ok := c.CurrentState[StatusKey]
	return v, ok
}

// Location is a place in the story world.
type Location struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description *string  `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       *string  `json:"rules,omitempty" yaml:"rules,omitempty"`
	Adjacency   []string `json:"adjacency" yaml:"adjacency"`
}

// Scene is one unit of the manuscript.
// LocationIDs and Participants are derived from scene text on save.
type Scene struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Order          int      `json:"order"`
	Summary        *string  `json:"summary,omitempty"`
	POV            *string  `json:"pov,omitempty"`
	TimeMarker     *string  `json:"time_marker,omitempty"`
	LocationIDs    []string `json:"location_ids"`
	Participants   []string `json:"participants"`
	ExtractedFacts []string `json:"extracted_facts"`
}

// Relationship links two characters. (FromID, ToID) is lexically sorted
// and acts as the composite key.
type Relationship struct {
	FromID       string  `json:"from_id"`
	ToID         string  `json:"to_id"`
	RelationType string  `json:"relation_type"`
	Strength     int     `json:"strength"`
	SinceChapter *string `json:"since_chapter,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// ProvenanceEntry is one immutable record of a content edit.
type ProvenanceEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	FilePath     string    `json:"file_path"`
	RangeStart   int       `json:"range_start"`
	RangeEnd     int       `json:"range_end"`
	AuthorAction string    `json:"author_action"`
	AIInvolved   bool      `json:"ai_involved"`
	SuggestionID *string   `json:"suggestion_id,omitempty"`
	DiffHash     string    `json:"diff_hash"`
}

// Fact is reserved for extracted story facts. Nothing reads it yet.
type Fact struct {
	ID          string  `json:"id"`
	Content     string  `json:"content"`
	SourceRef   string  `json:"source_ref"`
	Confidence  float64 `json:"confidence"`
	Active      bool    `json:"active"`
	RetconnedBy *string `json:"retconned_by,omitempty"`
}

// Settings is the per-project AI configuration record.
type Settings struct {
	AIProvider string  `json:"ai_provider"`
	AIBaseURL  *string `json:"ai_base_url,omitempty"`
	AIAPIKey   *string `json:"ai_api_key,omitempty"`
	AIModel    *string `json:"ai_model,omitempty"`
}

// DefaultSettings returns the record used when none has been saved.
func DefaultSettings() *Settings {
	return &Settings{AIProvider: "none"}
}
