// Package continuity checks a scene against the story's known facts.
//
// A Checker runs an ordered list of independent rules and concatenates the
// issues each one reports. Rules never see each other's output.
package continuity

import (
	"fmt"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// StatusDead is the CurrentState["status"] value that bars a character from scenes.
const StatusDead = "dead"

// Issue is a single continuity problem.
type Issue struct {
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	EntityID *string `json:"entity_id,omitempty"`
}

// Rule inspects one scene against the roster.
type Rule interface {
	Check(scene *store.Scene, roster []*store.Character) []Issue
}

// RuleFunc adapts a plain function to a Rule.
type RuleFunc func(scene *store.Scene, roster []*store.Character) []Issue

// Check calls f.
func (f RuleFunc) Check(scene *store.Scene, roster []*store.Character) []Issue {
	return f(scene, roster)
}

// DefaultRules is the rule set used when NewChecker gets none.
func DefaultRules() []Rule {
	return []Rule{DeadParticipant()}
}

// Checker evaluates rules in order.
type Checker struct {
	rules []Rule
}

// NewChecker returns a checker for rules, or for DefaultRules when none are given.
func NewChecker(rules ...Rule) *Checker {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Checker{rules: rules}
}

// Check returns every issue found in scene. The result is never nil.
func (c *Checker) Check(scene *store.Scene, roster []*store.Character) []Issue {
	issues := []Issue{}
	if scene == nil {
		return issues
	}
	for _, r := range c.rules {
		issues = append(issues, r.Check(scene, roster)...)
	}
	return issues
}

// DeadParticipant reports an error for every participant whose roster entry is dead.
// Participants are resolved by exact name; names missing from the roster are skipped.
func DeadParticipant() Rule {
	return RuleFunc(func(scene *store.Scene, roster []*store.Character) []Issue {
		byName := indexByName(roster)

		var issues []Issue
		for _, name := range scene.Participants {
			c, ok := byName[name]
			if !ok {
				continue
			}
			if status, _ := c.Status(); status == StatusDead {
				id := c.ID
				issues = append(issues, Issue{
					Severity: SeverityError,
					Message:  fmt.Sprintf("Character %s is dead but appears in this scene.", name),
					EntityID: &id,
				})
			}
		}
		return issues
	})
}

// POVAbsent warns when the scene's point-of-view character is on the roster
// but not tagged as a participant.
func POVAbsent() Rule {
	return RuleFunc(func(scene *store.Scene, roster []*store.Character) []Issue {
		if scene.POV == nil || *scene.POV == "" {
			return nil
		}
		pov := *scene.POV
		c, ok := indexByName(roster)[pov]
		if !ok {
			return nil
		}
		for _, name := range scene.Participants {
			if name == pov {
				return nil
			}
		}
		id := c.ID
		return []Issue{{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("POV character %s does not appear in this scene.", pov),
			EntityID: &id,
		}}
	})
}

// indexByName maps names to characters. On duplicate names the first roster entry wins.
func indexByName(roster []*store.Character) map[string]*store.Character {
	byName := make(map[string]*store.Character, len(roster))
	for _, c := range roster {
		if c == nil {
			continue
		}
		if _, dup := byName[c.Name]; !dup {
			byName[c.Name] = c
		}
	}
	return byName
}
