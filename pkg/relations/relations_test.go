package relations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

func TestNewPairIsSymmetric(t *testing.T) {
	assert.Equal(t, NewPair("Bob", "Alice"), NewPair("Alice", "Bob"))
	assert.Equal(t, Pair{A: "Alice", B: "Bob"}, NewPair("Bob", "Alice"))
}

func TestCountCoOccurrences(t *testing.T) {
	tests := []struct {
		name   string
		scenes [][]string
		want   map[Pair]int
	}{
		{"no scenes", nil, map[Pair]int{}},
		{"single participant", [][]string{{"Alice"}}, map[Pair]int{}},
		{"two scenes same pair", [][]string{{"Alice", "Bob"}, {"Bob", "Alice"}}, map[Pair]int{{"Alice", "Bob"}: 2}},
		{"three participants", [][]string{{"A", "B", "C"}}, map[Pair]int{{"A", "B"}: 1, {"A", "C"}: 1, {"B", "C"}: 1}},
		{"duplicates within scene", [][]string{{"Alice", "Alice", "Bob"}}, map[Pair]int{{"Alice", "Bob"}: 1}},
		{"self only", [][]string{{"Alice", "Alice"}}, map[Pair]int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountCoOccurrences(tt.scenes))
		})
	}
}

func TestStrength(t *testing.T) {
	assert.Equal(t, 0, Strength(0))
	assert.Equal(t, 20, Strength(2))
	assert.Equal(t, 150, Strength(15), "not clamped")
}

func TestPlanCreatesCoOccurrenceRows(t *testing.T) {
	counts := CountCoOccurrences([][]string{{"Alice", "Bob"}, {"Alice", "Bob"}, {"Carol", "Alice"}})
	plan := Plan(counts, nil)

	require.Len(t, plan, 2)
	assert.Equal(t, "Alice", plan[0].FromID)
	assert.Equal(t, "Bob", plan[0].ToID)
	assert.Equal(t, 20, plan[0].Strength)
	assert.Equal(t, RelationCoOccurrence, plan[0].RelationType)
	assert.Nil(t, plan[0].SinceChapter)
	require.NotNil(t, plan[0].Notes)
	assert.Equal(t, "Auto-generated", *plan[0].Notes)

	assert.Equal(t, "Carol", plan[1].ToID)
	assert.Equal(t, 10, plan[1].Strength)
}

func TestPlanKeepsExistingFields(t *testing.T) {
	notes := "siblings"
	since := "chapter-001"
	existing := []*store.Relationship{
		{FromID: "Alice", ToID: "Bob", RelationType: "family", Strength: 90, SinceChapter: &since, Notes: &notes},
	}

	plan := Plan(map[Pair]int{{"Alice", "Bob"}: 1}, existing)
	require.Len(t, plan, 1)
	assert.Equal(t, "family", plan[0].RelationType)
	assert.Equal(t, 10, plan[0].Strength)
	assert.Equal(t, "siblings", *plan[0].Notes)
	assert.Equal(t, "chapter-001", *plan[0].SinceChapter)

	// Input rows are not mutated.
	assert.Equal(t, 90, existing[0].Strength)
}

func TestPlanIsIdempotent(t *testing.T) {
	counts := CountCoOccurrences([][]string{{"Alice", "Bob"}, {"Alice", "Bob"}})
	first := Plan(counts, nil)
	second := Plan(counts, first)
	assert.Equal(t, first, second)
}

func TestPlanEmpty(t *testing.T) {
	assert.Empty(t, Plan(map[Pair]int{}, nil))
}
