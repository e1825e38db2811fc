package project

import (
	"context"
	"errors"
	"sync"

	"github.com/bit-bot-bit/bewritten/internal/store"
	"github.com/bit-bot-bit/bewritten/pkg/graph"
)

// ErrNoProject is returned by workspace operations when no project is attached.
var ErrNoProject = errors.New("no project loaded")

// Workspace holds at most one attached project.
type Workspace struct {
	mu      sync.Mutex
	current *Project
	opts    Options
}

// NewWorkspace returns an empty workspace. opts apply to every project it opens.
func NewWorkspace(opts Options) *Workspace {
	return &Workspace{opts: opts}
}

// Create lays out a new project without attaching it.
func (w *Workspace) Create(ctx context.Context, root string) error {
	return Create(ctx, root, w.opts)
}

// Open attaches the project at root, closing any previously attached one.
func (w *Workspace) Open(ctx context.Context, root string) error {
	p, err := Open(ctx, root, w.opts)
	if err != nil {
		return err
	}

	w.mu.Lock()
	prev := w.current
	w.current = p
	w.mu.Unlock()

	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Close detaches and closes the current project, if any.
func (w *Workspace) Close() error {
	w.mu.Lock()
	p := w.current
	w.current = nil
	w.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Close()
}

// Current returns the attached project or ErrNoProject.
func (w *Workspace) Current() (*Project, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil, ErrNoProject
	}
	return w.current, nil
}

// =============================================================================
// Operations on the attached project
// =============================================================================

func (w *Workspace) Characters(ctx context.Context) ([]*store.Character, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.Characters(ctx)
}

func (w *Workspace) SaveCharacter(ctx context.Context, c *store.Character) error {
	p, err := w.Current()
	if err != nil {
		return err
	}
	return p.SaveCharacter(ctx, c)
}

func (w *Workspace) Locations(ctx context.Context) ([]*store.Location, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.Locations(ctx)
}

func (w *Workspace) SaveLocation(ctx context.Context, l *store.Location) error {
	p, err := w.Current()
	if err != nil {
		return err
	}
	return p.SaveLocation(ctx, l)
}

func (w *Workspace) SaveScene(ctx context.Context, scene *store.Scene, content string) (*store.Scene, *store.ProvenanceEntry, error) {
	p, err := w.Current()
	if err != nil {
		return nil, nil, err
	}
	return p.SaveScene(ctx, scene, content)
}

func (w *Workspace) CheckContinuity(ctx context.Context, scene *store.Scene) (*ContinuityResult, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.CheckContinuity(ctx, scene)
}

func (w *Workspace) CheckContinuityByID(ctx context.Context, sceneID string) (*ContinuityResult, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.CheckContinuityByID(ctx, sceneID)
}

func (w *Workspace) RecalculateRelationships(ctx context.Context) ([]*store.Relationship, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.RecalculateRelationships(ctx)
}

func (w *Workspace) Relationships(ctx context.Context) ([]*store.Relationship, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.Relationships(ctx)
}

func (w *Workspace) Graph(ctx context.Context) (*graph.RelationshipGraph, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.Graph(ctx)
}

func (w *Workspace) History(ctx context.Context, filePath string) ([]*store.ProvenanceEntry, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.History(ctx, filePath)
}

func (w *Workspace) Settings(ctx context.Context) (*store.Settings, error) {
	p, err := w.Current()
	if err != nil {
		return nil, err
	}
	return p.Settings(ctx)
}

func (w *Workspace) SaveSettings(ctx context.Context, s *store.Settings) error {
	p, err := w.Current()
	if err != nil {
		return err
	}
	return p.SaveSettings(ctx, s)
}
