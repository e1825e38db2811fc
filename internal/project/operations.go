package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/hack-pad/hackpadfs"

	"github.com/bit-bot-bit/bewritten/internal/store"
	"github.com/bit-bot-bit/bewritten/pkg/continuity"
	"github.com/bit-bot-bit/bewritten/pkg/graph"
	"github.com/bit-bot-bit/bewritten/pkg/provenance"
	"github.com/bit-bot-bit/bewritten/pkg/relations"
	"github.com/bit-bot-bit/bewritten/pkg/review"
	"github.com/bit-bot-bit/bewritten/pkg/scanner/extract"
)

// ActionSave is the provenance action recorded for a scene save.
const ActionSave = "save"

// ContinuityResult combines rule-based and AI-reported issues for a scene.
type ContinuityResult struct {
	LocalIssues []continuity.Issue `json:"local_issues"`
	AIIssues    []string           `json:"ai_issues"`
}

// ChapterFile is the manuscript file name for a scene order.
func ChapterFile(order int) string {
	return fmt.Sprintf("chapter-%03d.md", order)
}

// =============================================================================
// Characters & Locations
// =============================================================================

// Characters returns the roster ordered by id.
func (p *Project) Characters(ctx context.Context) ([]*store.Character, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.store.ListCharacters()
}

// SaveCharacter upserts c and rewrites context/characters.yaml.
func (p *Project) SaveCharacter(ctx context.Context, c *store.Character) error {
	if c == nil || c.ID == "" {
		return errors.New("character id is required")
	}
	unlock, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := p.store.UpsertCharacter(c); err != nil {
		return fmt.Errorf("save character %s: %w", c.ID, err)
	}
	return p.exportCharacters()
}

// Locations returns all locations ordered by id.
func (p *Project) Locations(ctx context.Context) ([]*store.Location, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.store.ListLocations()
}

// SaveLocation upserts l and rewrites context/locations.yaml.
func (p *Project) SaveLocation(ctx context.Context, l *store.Location) error {
	if l == nil || l.ID == "" {
		return errors.New("location id is required")
	}
	unlock, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := p.store.UpsertLocation(l); err != nil {
		return fmt.Errorf("save location %s: %w", l.ID, err)
	}
	return p.exportLocations()
}

// =============================================================================
// Scenes
// =============================================================================

// SaveScene derives participants and locations from content, persists the
// scene, records a provenance entry and writes the manuscript file.
// A failed manuscript write still leaves the scene row and its provenance entry.
func (p *Project) SaveScene(ctx context.Context, scene *store.Scene, content string) (*store.Scene, *store.ProvenanceEntry, error) {
	if scene == nil || scene.ID == "" {
		return nil, nil, errors.New("scene id is required")
	}
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	ents := extract.Extract(content)
	saved := *scene
	saved.Participants = ents.Characters.Sorted()
	saved.LocationIDs = ents.Locations.Sorted()

	if err := p.store.UpsertScene(&saved); err != nil {
		return nil, nil, fmt.Errorf("save scene %s: %w", scene.ID, err)
	}

	filename := ChapterFile(saved.Order)
	entry, err := p.prov.LogEdit(ctx, provenance.Edit{
		FilePath:     filename,
		RangeStart:   0,
		RangeEnd:     len(content),
		AuthorAction: ActionSave,
		AIInvolved:   false,
		DiffHash:     provenance.Fingerprint(content),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := hackpadfs.WriteFullFile(p.fs, p.path(DirManuscript, filename), []byte(content), 0o644); err != nil {
		return nil, nil, fmt.Errorf("write %s: %w", filename, err)
	}

	p.log.Debug("scene saved", "scene", saved.ID, "file", filename,
		"participants", len(saved.Participants), "locations", len(saved.LocationIDs))
	return &saved, entry, nil
}

// Scene returns a stored scene, or store.ErrNotFound.
func (p *Project) Scene(ctx context.Context, id string) (*store.Scene, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.sceneLocked(id)
}

func (p *Project) sceneLocked(id string) (*store.Scene, error) {
	sc, err := p.store.GetScene(id)
	if err != nil {
		return nil, fmt.Errorf("get scene %s: %w", id, err)
	}
	if sc == nil {
		return nil, fmt.Errorf("scene %s: %w", id, store.ErrNotFound)
	}
	return sc, nil
}

// Scenes returns all scenes in manuscript order.
func (p *Project) Scenes(ctx context.Context) ([]*store.Scene, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.store.ListScenes()
}

// =============================================================================
// Continuity
// =============================================================================

// CheckContinuity runs the continuity rules against scene and then the
// configured AI reviewer on the scene summary. The project lock is held only
// while the roster and settings are loaded. A reviewer failure fails the check.
func (p *Project) CheckContinuity(ctx context.Context, scene *store.Scene) (*ContinuityResult, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	roster, settings, err := p.loadCheckInputs()
	unlock()
	if err != nil {
		return nil, err
	}
	return p.check(ctx, scene, roster, settings)
}

// CheckContinuityByID checks a stored scene.
func (p *Project) CheckContinuityByID(ctx context.Context, sceneID string) (*ContinuityResult, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	scene, err := p.sceneLocked(sceneID)
	if err != nil {
		unlock()
		return nil, err
	}
	roster, settings, err := p.loadCheckInputs()
	unlock()
	if err != nil {
		return nil, err
	}
	return p.check(ctx, scene, roster, settings)
}

func (p *Project) loadCheckInputs() ([]*store.Character, *store.Settings, error) {
	roster, err := p.store.ListCharacters()
	if err != nil {
		return nil, nil, fmt.Errorf("list characters: %w", err)
	}
	settings, err := p.settingsLocked()
	if err != nil {
		return nil, nil, err
	}
	return roster, settings, nil
}

func (p *Project) check(ctx context.Context, scene *store.Scene, roster []*store.Character, settings *store.Settings) (*ContinuityResult, error) {
	local := p.checker.Check(scene, roster)

	reviewOpts := p.opts.Review
	if reviewOpts.Logger == nil {
		reviewOpts.Logger = p.log
	}
	reviewer := review.Select(settings, reviewOpts)

	summary := ""
	if scene != nil && scene.Summary != nil {
		summary = *scene.Summary
	}
	aiIssues, err := reviewer.Review(ctx, summary)
	if err != nil {
		return nil, err
	}

	return &ContinuityResult{LocalIssues: local, AIIssues: aiIssues}, nil
}

// =============================================================================
// Relationships
// =============================================================================

// RecalculateRelationships rebuilds co-occurrence strengths from every stored
// scene, upserts them and rewrites context/relationships.graph.json.
// It returns the rows it wrote.
func (p *Project) RecalculateRelationships(ctx context.Context) ([]*store.Relationship, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	scenes, err := p.store.ListSceneParticipants()
	if err != nil {
		return nil, fmt.Errorf("list scene participants: %w", err)
	}
	counts := relations.CountCoOccurrences(scenes)
	if len(counts) == 0 {
		return []*store.Relationship{}, nil
	}

	existing, err := p.store.ListRelationships()
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	plan := relations.Plan(counts, existing)
	if err := p.store.SaveRelationships(plan); err != nil {
		return nil, fmt.Errorf("save relationships: %w", err)
	}
	if err := p.exportRelationshipGraph(); err != nil {
		return nil, err
	}

	p.log.Info("relationships recalculated", "scenes", len(scenes), "pairs", len(plan))
	return plan, nil
}

// Relationships returns all stored relationships.
func (p *Project) Relationships(ctx context.Context) ([]*store.Relationship, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.store.ListRelationships()
}

// Graph returns the stored relationships as a graph.
func (p *Project) Graph(ctx context.Context) (*graph.RelationshipGraph, error) {
	rels, err := p.Relationships(ctx)
	if err != nil {
		return nil, err
	}
	return graph.FromRelationships(rels), nil
}

// =============================================================================
// Provenance
// =============================================================================

// History returns the provenance entries for a manuscript file, newest first.
func (p *Project) History(ctx context.Context, filePath string) ([]*store.ProvenanceEntry, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.prov.History(ctx, filePath)
}

// =============================================================================
// Settings
// =============================================================================

// Settings returns the stored AI settings or the defaults.
func (p *Project) Settings(ctx context.Context) (*store.Settings, error) {
	unlock, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return p.settingsLocked()
}

func (p *Project) settingsLocked() (*store.Settings, error) {
	s, err := p.store.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if s == nil {
		return store.DefaultSettings(), nil
	}
	return s, nil
}

// SaveSettings replaces the stored AI settings.
func (p *Project) SaveSettings(ctx context.Context, s *store.Settings) error {
	if s == nil {
		return errors.New("settings are required")
	}
	unlock, err := p.begin(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if err := p.store.SaveSettings(s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
