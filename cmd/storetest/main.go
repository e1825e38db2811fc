// Command storetest runs a quick read/write smoke test against every Storer
// implementation, or against an existing project database with --db.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

func main() {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "storetest",
		Short: "Smoke-test the bewritten stores",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if dbPath != "" {
				fmt.Printf("Inspecting %s...\n", dbPath)
				s, err := store.OpenFile(dbPath)
				if err != nil {
					log.Fatalf("OpenFile failed: %v", err)
				}
				defer s.Close()
				inspect(s)
				return
			}

			fmt.Println("Testing MemStore...")
			exercise(store.NewMemStore())

			fmt.Println("\nTesting SQLiteStore...")
			s, err := store.NewSQLiteStore()
			if err != nil {
				log.Fatalf("NewSQLiteStore failed: %v", err)
			}
			exercise(s)

			fmt.Println("\n✅ All tests passed!")
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Read-only summary of an existing app.db")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func exercise(s store.Storer) {
	defer s.Close()

	c := &store.Character{
		ID:           "1",
		Name:         "Bob",
		Aliases:      []string{"Bobby"},
		CurrentState: map[string]string{store.StatusKey: "dead"},
	}
	if err := s.UpsertCharacter(c); err != nil {
		log.Fatalf("UpsertCharacter failed: %v", err)
	}
	fmt.Println("  ✓ UpsertCharacter works")

	got, err := s.GetCharacter("1")
	if err != nil {
		log.Fatalf("GetCharacter failed: %v", err)
	}
	if status, _ := got.Status(); status != "dead" {
		log.Fatalf("GetCharacter status expected dead, got %q", status)
	}
	fmt.Println("  ✓ GetCharacter works")

	if err := s.UpsertScene(&store.Scene{ID: "s1", Title: "Opening", Order: 1, Participants: []string{"Alice", "Bob"}}); err != nil {
		log.Fatalf("UpsertScene failed: %v", err)
	}
	parts, err := s.ListSceneParticipants()
	if err != nil || len(parts) != 1 || len(parts[0]) != 2 {
		log.Fatalf("ListSceneParticipants expected one scene with two participants, got %v (%v)", parts, err)
	}
	fmt.Println("  ✓ Scenes work")

	if err := s.SaveRelationships([]*store.Relationship{{FromID: "Alice", ToID: "Bob", RelationType: "co-occurrence", Strength: 10}}); err != nil {
		log.Fatalf("SaveRelationships failed: %v", err)
	}
	fmt.Println("  ✓ SaveRelationships works")

	for i, id := range []string{"p1", "p2"} {
		err := s.AppendProvenance(&store.ProvenanceEntry{
			ID:           id,
			Timestamp:    time.Unix(1700000000+int64(i), 0),
			FilePath:     "chapter-001.md",
			AuthorAction: "save",
		})
		if err != nil {
			log.Fatalf("AppendProvenance failed: %v", err)
		}
	}
	entries, err := s.ListProvenance("chapter-001.md")
	if err != nil {
		log.Fatalf("ListProvenance failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "p2" {
		log.Fatalf("ListProvenance expected p2 first, got %d entries", len(entries))
	}
	fmt.Println("  ✓ Provenance works")
}

func inspect(s store.Storer) {
	chars, err := s.CountCharacters()
	if err != nil {
		log.Fatalf("CountCharacters failed: %v", err)
	}
	scenes, err := s.ListScenes()
	if err != nil {
		log.Fatalf("ListScenes failed: %v", err)
	}
	rels, err := s.ListRelationships()
	if err != nil {
		log.Fatalf("ListRelationships failed: %v", err)
	}
	edits, err := s.CountProvenance()
	if err != nil {
		log.Fatalf("CountProvenance failed: %v", err)
	}
	fmt.Printf("  characters:    %d\n", chars)
	fmt.Printf("  scenes:        %d\n", len(scenes))
	fmt.Printf("  relationships: %d\n", len(rels))
	fmt.Printf("  edits logged:  %d\n", edits)
}
