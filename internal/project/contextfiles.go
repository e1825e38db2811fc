package project

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hack-pad/hackpadfs"
	"gopkg.in/yaml.v3"

	"github.com/bit-bot-bit/bewritten/internal/store"
	"github.com/bit-bot-bit/bewritten/pkg/graph"
)

// importContext seeds empty tables from the context YAML files.
// Missing or malformed files are skipped with a warning.
func (p *Project) importContext() error {
	count, err := p.store.CountCharacters()
	if err != nil {
		return fmt.Errorf("count characters: %w", err)
	}
	if count == 0 {
		var chars []*store.Character
		if p.readYAML(FileCharacters, &chars) {
			for _, c := range chars {
				if c == nil || c.ID == "" {
					continue
				}
				if err := p.store.UpsertCharacter(c); err != nil {
					return fmt.Errorf("import character %s: %w", c.ID, err)
				}
			}
			if len(chars) > 0 {
				p.log.Info("imported characters", "count", len(chars))
			}
		}
	}

	locs, err := p.store.ListLocations()
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}
	if len(locs) == 0 {
		var imported []*store.Location
		if p.readYAML(FileLocations, &imported) {
			for _, l := range imported {
				if l == nil || l.ID == "" {
					continue
				}
				if err := p.store.UpsertLocation(l); err != nil {
					return fmt.Errorf("import location %s: %w", l.ID, err)
				}
			}
		}
	}
	return nil
}

// readYAML decodes a context file into v, reporting whether it succeeded.
func (p *Project) readYAML(name string, v any) bool {
	data, err := hackpadfs.ReadFile(p.fs, p.path(name))
	if errors.Is(err, hackpadfs.ErrNotExist) {
		return false
	}
	if err != nil {
		p.log.Warn("read context file", "file", name, "err", err)
		return false
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		p.log.Warn("ignoring malformed context file", "file", name, "err", err)
		return false
	}
	return true
}

func (p *Project) exportCharacters() error {
	chars, err := p.store.ListCharacters()
	if err != nil {
		return fmt.Errorf("list characters: %w", err)
	}
	if chars == nil {
		chars = []*store.Character{}
	}
	return p.writeYAML(FileCharacters, chars)
}

func (p *Project) exportLocations() error {
	locs, err := p.store.ListLocations()
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}
	if locs == nil {
		locs = []*store.Location{}
	}
	return p.writeYAML(FileLocations, locs)
}

func (p *Project) writeYAML(name string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := hackpadfs.WriteFullFile(p.fs, p.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (p *Project) exportRelationshipGraph() error {
	rels, err := p.store.ListRelationships()
	if err != nil {
		return fmt.Errorf("list relationships: %w", err)
	}
	data, err := json.MarshalIndent(graph.FromRelationships(rels), "", "  ")
	if err != nil {
		return fmt.Errorf("encode relationship graph: %w", err)
	}
	if err := hackpadfs.WriteFullFile(p.fs, p.path(FileRelationships), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", FileRelationships, err)
	}
	return nil
}
