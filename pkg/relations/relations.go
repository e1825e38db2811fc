// Package relations infers character relationships from scene co-occurrence.
package relations

import (
	"sort"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

// RelationCoOccurrence is the type given to inferred relationships.
const RelationCoOccurrence = "co-occurrence"

// StrengthPerScene is the weight each shared scene adds.
const StrengthPerScene = 10

const autoNotes = "Auto-generated"

// Pair is an unordered character pair stored in lexical order.
type Pair struct {
	A, B string
}

// NewPair normalizes x and y into a Pair.
func NewPair(x, y string) Pair {
	if y < x {
		x, y = y, x
	}
	return Pair{A: x, B: y}
}

// Less orders pairs by A then B.
func (p Pair) Less(o Pair) bool {
	if p.A != o.A {
		return p.A < o.A
	}
	return p.B < o.B
}

// CountCoOccurrences counts, for every unordered pair of distinct names, the
// number of scenes in which both appear. Repeats within a scene count once.
func CountCoOccurrences(scenes [][]string) map[Pair]int {
	counts := make(map[Pair]int)
	for _, participants := range scenes {
		names := distinct(participants)
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				counts[NewPair(names[i], names[j])]++
			}
		}
	}
	return counts
}

// Strength converts a co-occurrence count into a relationship strength.
// The result is not clamped.
func Strength(count int) int {
	return count * StrengthPerScene
}

// Plan returns the upserts that bring stored relationships in line with counts.
// Existing rows keep every field except Strength. New rows are typed
// co-occurrence. Pairs absent from counts are left alone. The result is
// ordered by pair.
func Plan(counts map[Pair]int, existing []*store.Relationship) []*store.Relationship {
	byPair := make(map[Pair]*store.Relationship, len(existing))
	for _, r := range existing {
		byPair[Pair{A: r.FromID, B: r.ToID}] = r
	}

	pairs := make([]Pair, 0, len(counts))
	for p := range counts {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })

	out := make([]*store.Relationship, 0, len(pairs))
	for _, p := range pairs {
		strength := Strength(counts[p])
		if r, ok := byPair[p]; ok {
			cp := *r
			cp.Strength = strength
			out = append(out, &cp)
			continue
		}
		notes := autoNotes
		out = append(out, &store.Relationship{
			FromID:       p.A,
			ToID:         p.B,
			RelationType: RelationCoOccurrence,
			Strength:     strength,
			Notes:        &notes,
		})
	}
	return out
}

func distinct(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
