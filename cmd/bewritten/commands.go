package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bit-bot-bit/bewritten/internal/store"
	"github.com/bit-bot-bit/bewritten/pkg/scanner/extract"
	"github.com/bit-bot-bit/bewritten/pkg/scanner/mentions"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a new project directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ws.Create(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.emit(cmd, map[string]string{"created": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Created project at %s\n", args[0])
			})
		},
	}
}

type analysis struct {
	Characters []string           `json:"characters"`
	Locations  []string           `json:"locations"`
	Untagged   []mentions.Mention `json:"untagged_mentions,omitempty"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "List the characters and locations tagged in text",
		Long: `Extract @character and #location tags from a file or stdin.

With a project configured, plain-text mentions of known characters that
lack the @ tag are listed too.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			ents := extract.Extract(text)
			res := analysis{
				Characters: ents.Characters.Sorted(),
				Locations:  ents.Locations.Sorted(),
			}

			if a.cfg.Project != "" {
				if err := a.attach(cmd.Context()); err != nil {
					return err
				}
				roster, err := a.ws.Characters(cmd.Context())
				if err != nil {
					return err
				}
				res.Untagged = mentions.Compile(roster).Untagged(text)
			}

			return a.emit(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "Characters: %s\n", strings.Join(res.Characters, ", "))
				fmt.Fprintf(w, "Locations:  %s\n", strings.Join(res.Locations, ", "))
				for _, m := range res.Untagged {
					fmt.Fprintf(w, "Untagged mention %q at byte %d\n", m.Text, m.Start)
				}
			})
		},
	}
}

func newCharacterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "character",
		Short: "Manage the character roster",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "save <yaml-file>",
		Short: "Insert or replace a character from a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c store.Character
			if err := readYAMLFile(args[0], &c); err != nil {
				return err
			}
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			if err := a.ws.SaveCharacter(cmd.Context(), &c); err != nil {
				return err
			}
			return a.emit(cmd, &c, func(w io.Writer) {
				fmt.Fprintf(w, "Saved character %s (%s)\n", c.ID, c.Name)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List characters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			chars, err := a.ws.Characters(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd, chars, func(w io.Writer) {
				for _, c := range chars {
					status, _ := c.Status()
					fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, status)
				}
			})
		},
	})
	return cmd
}

func newLocationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Manage locations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "save <yaml-file>",
		Short: "Insert or replace a location from a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var l store.Location
			if err := readYAMLFile(args[0], &l); err != nil {
				return err
			}
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			if err := a.ws.SaveLocation(cmd.Context(), &l); err != nil {
				return err
			}
			return a.emit(cmd, &l, func(w io.Writer) {
				fmt.Fprintf(w, "Saved location %s (%s)\n", l.ID, l.Name)
			})
		},
	})
	return cmd
}

func newSceneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Manage manuscript scenes",
	}

	save := &cobra.Command{
		Use:   "save <file|->",
		Short: "Save scene text, refreshing its participants and locations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			id, _ := f.GetString("id")
			title, _ := f.GetString("title")
			order, _ := f.GetInt("order")
			scene := &store.Scene{ID: id, Title: title, Order: order}
			for flag, dst := range map[string]**string{"summary": &scene.Summary, "pov": &scene.POV, "time": &scene.TimeMarker} {
				if f.Changed(flag) {
					v, _ := f.GetString(flag)
					*dst = &v
				}
			}

			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			saved, entry, err := a.ws.SaveScene(cmd.Context(), scene, text)
			if err != nil {
				return err
			}

			out := struct {
				Scene      *store.Scene           `json:"scene"`
				Provenance *store.ProvenanceEntry `json:"provenance"`
			}{saved, entry}
			return a.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintf(w, "Saved scene %s to %s\n", saved.ID, entry.FilePath)
				fmt.Fprintf(w, "Participants: %s\n", strings.Join(saved.Participants, ", "))
				fmt.Fprintf(w, "Locations:    %s\n", strings.Join(saved.LocationIDs, ", "))
			})
		},
	}
	save.Flags().String("id", "", "Scene id (required)")
	save.Flags().String("title", "", "Scene title (required)")
	save.Flags().Int("order", 0, "Position in the manuscript; names the chapter file")
	save.Flags().String("summary", "", "Scene summary, sent to the AI reviewer")
	save.Flags().String("pov", "", "Point-of-view character")
	save.Flags().String("time", "", "In-story time marker")
	_ = save.MarkFlagRequired("id")
	_ = save.MarkFlagRequired("title")

	cmd.AddCommand(save)
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <scene-id>",
		Short: "Check a saved scene for continuity problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			res, err := a.ws.CheckContinuityByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) {
				if len(res.LocalIssues) == 0 && len(res.AIIssues) == 0 {
					fmt.Fprintln(w, "No continuity issues found")
					return
				}
				for _, is := range res.LocalIssues {
					fmt.Fprintf(w, "[%s] %s\n", is.Severity, is.Message)
				}
				for _, is := range res.AIIssues {
					fmt.Fprintf(w, "[ai] %s\n", is)
				}
			})
		},
	}
}

func newRecalcCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc",
		Short: "Rebuild relationship strengths from scene co-occurrence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			rels, err := a.ws.RecalculateRelationships(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd, rels, func(w io.Writer) {
				fmt.Fprintf(w, "Updated %d relationships\n", len(rels))
			})
		},
	}
}

func newRelationshipsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "relationships",
		Short: "List relationships and the most connected characters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			rels, err := a.ws.Relationships(cmd.Context())
			if err != nil {
				return err
			}
			g, err := a.ws.Graph(cmd.Context())
			if err != nil {
				return err
			}

			centrality := g.DegreeCentrality()
			ids := make([]string, 0, len(centrality))
			for id := range centrality {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool {
				if centrality[ids[i]] != centrality[ids[j]] {
					return centrality[ids[i]] > centrality[ids[j]]
				}
				return ids[i] < ids[j]
			})

			out := struct {
				Relationships []*store.Relationship `json:"relationships"`
				Centrality    map[string]float64    `json:"centrality"`
			}{rels, centrality}
			return a.emit(cmd, out, func(w io.Writer) {
				for _, r := range rels {
					fmt.Fprintf(w, "%s - %s\t%s\t%d\n", r.FromID, r.ToID, r.RelationType, r.Strength)
				}
				if len(ids) > 0 {
					fmt.Fprintln(w)
					fmt.Fprintln(w, "Centrality:")
				}
				for _, id := range ids {
					fmt.Fprintf(w, "  %s\t%.2f\n", id, centrality[id])
				}
			})
		},
	}
}

func newProvenanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "provenance <file>",
		Short: "Show the edit history of a manuscript file, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			entries, err := a.ws.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, entries, func(w io.Writer) {
				for _, e := range entries {
					ai := ""
					if e.AIInvolved {
						ai = " (ai)"
					}
					fmt.Fprintf(w, "%s  %s%s  bytes %d..%d  %s\n",
						e.Timestamp.Format("2006-01-02 15:04:05"), e.AuthorAction, ai, e.RangeStart, e.RangeEnd, e.DiffHash)
				}
			})
		},
	}
}

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the project's AI reviewer settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show AI settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			s, err := a.ws.Settings(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd, redacted(s), func(w io.Writer) {
				r := redacted(s)
				fmt.Fprintf(w, "provider: %s\n", r.AIProvider)
				fmt.Fprintf(w, "base_url: %s\n", deref(r.AIBaseURL))
				fmt.Fprintf(w, "api_key:  %s\n", deref(r.AIAPIKey))
				fmt.Fprintf(w, "model:    %s\n", deref(r.AIModel))
			})
		},
	})

	set := &cobra.Command{
		Use:   "set",
		Short: "Change AI settings; unset flags keep their current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.attach(cmd.Context()); err != nil {
				return err
			}
			s, err := a.ws.Settings(cmd.Context())
			if err != nil {
				return err
			}

			f := cmd.Flags()
			if f.Changed("provider") {
				s.AIProvider, _ = f.GetString("provider")
			}
			for flag, dst := range map[string]**string{"base-url": &s.AIBaseURL, "api-key": &s.AIAPIKey, "model": &s.AIModel} {
				if !f.Changed(flag) {
					continue
				}
				v, _ := f.GetString(flag)
				if v == "" {
					*dst = nil
				} else {
					*dst = &v
				}
			}

			if err := a.ws.SaveSettings(cmd.Context(), s); err != nil {
				return err
			}
			return a.emit(cmd, redacted(s), func(w io.Writer) {
				fmt.Fprintf(w, "Saved settings (provider %s)\n", s.AIProvider)
			})
		},
	}
	set.Flags().String("provider", "", "none, openai, ollama, anthropic, or anything else for the offline heuristic")
	set.Flags().String("base-url", "", "Endpoint override; empty clears it")
	set.Flags().String("api-key", "", "API key; empty clears it")
	set.Flags().String("model", "", "Model name; empty clears it")
	cmd.AddCommand(set)

	return cmd
}

// redacted returns a copy of s with the API key masked.
func redacted(s *store.Settings) *store.Settings {
	cp := *s
	if cp.AIAPIKey != nil && *cp.AIAPIKey != "" {
		masked := "********"
		cp.AIAPIKey = &masked
	}
	return &cp
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// readInput returns the contents of args[0], or stdin when it is "-" or absent.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readYAMLFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
