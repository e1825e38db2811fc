package continuity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

func character(id, name, status string) *store.Character {
	c := &store.Character{ID: id, Name: name, CurrentState: map[string]string{}}
	if status != "" {
		c.CurrentState[store.StatusKey] = status
	}
	return c
}

func strPtr(s string) *string { return &s }

func TestDeadParticipant(t *testing.T) {
	roster := []*store.Character{
		character("1", "Bob", "dead"),
		character("2", "Alice", "alive"),
		character("3", "Carol", ""),
	}

	tests := []struct {
		name         string
		participants []string
		wantIDs      []string
	}{
		{"dead participant", []string{"Bob"}, []string{"1"}},
		{"living participants only", []string{"Alice", "Carol"}, nil},
		{"unknown name skipped", []string{"Zed", "Bob"}, []string{"1"}},
		{"empty scene", nil, nil},
		{"case must match", []string{"bob"}, nil},
	}

	checker := NewChecker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := checker.Check(&store.Scene{ID: "s1", Participants: tt.participants}, roster)
			require.NotNil(t, issues)
			require.Len(t, issues, len(tt.wantIDs))
			for i, id := range tt.wantIDs {
				assert.Equal(t, SeverityError, issues[i].Severity)
				require.NotNil(t, issues[i].EntityID)
				assert.Equal(t, id, *issues[i].EntityID)
			}
		})
	}
}

func TestDeadParticipantMessage(t *testing.T) {
	issues := NewChecker().Check(
		&store.Scene{Participants: []string{"Bob"}},
		[]*store.Character{character("1", "Bob", "dead")},
	)
	require.Len(t, issues, 1)
	assert.Equal(t, "Character Bob is dead but appears in this scene.", issues[0].Message)
}

func TestOtherStatusesIgnored(t *testing.T) {
	issues := NewChecker().Check(
		&store.Scene{Participants: []string{"Bob"}},
		[]*store.Character{character("1", "Bob", "missing")},
	)
	assert.Empty(t, issues)
}

func TestNilScene(t *testing.T) {
	issues := NewChecker().Check(nil, nil)
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestPOVAbsentOptIn(t *testing.T) {
	roster := []*store.Character{character("2", "Alice", "")}
	scene := &store.Scene{POV: strPtr("Alice"), Participants: []string{"Bob"}}

	assert.Empty(t, NewChecker().Check(scene, roster), "default rules do not include POVAbsent")

	issues := NewChecker(DeadParticipant(), POVAbsent()).Check(scene, roster)
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "2", *issues[0].EntityID)

	scene.Participants = append(scene.Participants, "Alice")
	assert.Empty(t, NewChecker(POVAbsent()).Check(scene, roster))
}

func TestRulesConcatenateInOrder(t *testing.T) {
	first := RuleFunc(func(*store.Scene, []*store.Character) []Issue {
		return []Issue{{Severity: SeverityWarning, Message: "first"}}
	})
	second := RuleFunc(func(*store.Scene, []*store.Character) []Issue {
		return []Issue{{Severity: SeverityError, Message: "second"}}
	})

	issues := NewChecker(first, second).Check(&store.Scene{}, nil)
	require.Len(t, issues, 2)
	assert.Equal(t, "first", issues[0].Message)
	assert.Equal(t, "second", issues[1].Message)
}
