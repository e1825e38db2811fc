// Package extract pulls tagged entity references out of scene text.
//
// Characters are written as @Name and locations as #Place. A name is a
// maximal run of ASCII letters, digits and underscore following the sigil.
package extract

import (
	"sort"
	"strings"
)

const (
	sigilCharacter = '@'
	sigilLocation  = '#'
)

// Set is an unordered collection of distinct names.
type Set map[string]struct{}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names.
func (s Set) Len() int { return len(s) }

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Entities holds the distinct tags found in a text.
type Entities struct {
	Characters Set
	Locations  Set
}

// Extract scans text once and returns every tagged character and location.
// Matching is case-sensitive; "@alice" and "@Alice" are different names.
func Extract(text string) Entities {
	ents := Entities{Characters: Set{}, Locations: Set{}}
	n := len(text)
	i := 0

	for i < n {
		// Skip until next sigil
		next := strings.IndexAny(text[i:], "@#")
		if next == -1 {
			break
		}
		i += next

		sigil := text[i]
		end := scanToken(text, i+1)
		if end == i+1 {
			i++
			continue
		}

		name := text[i+1 : end]
		switch sigil {
		case sigilCharacter:
			ents.Characters[name] = struct{}{}
		case sigilLocation:
			ents.Locations[name] = struct{}{}
		}
		i = end
	}

	return ents
}

// scanToken returns the index just past the token starting at start.
func scanToken(text string, start int) int {
	k := start
	for k < len(text) && isTokenByte(text[k]) {
		k++
	}
	return k
}

func isTokenByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
