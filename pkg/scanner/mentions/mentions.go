// Package mentions finds roster characters referred to by plain name.
//
// Tag extraction only sees "@Name". Writers often forget the sigil, so the
// analyze command uses this index to point out untagged references to known
// characters. A single Aho-Corasick automaton built from every name and alias
// scans the text in one pass.
package mentions

import (
	"sort"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

// Mention is one occurrence of a known name in text.
type Mention struct {
	Start        int      `json:"start"` // Byte offset start
	End          int      `json:"end"`   // Byte offset end
	Text         string   `json:"text"`
	CharacterIDs []string `json:"character_ids"`
	Tagged       bool     `json:"tagged"`
}

// Index is a compiled roster.
type Index struct {
	ac ahocorasick.AhoCorasick

	// Pattern index -> character IDs (names and aliases may collide)
	patternToIDs [][]string

	// Lowercased surface form -> pattern index
	patternIndex map[string]int

	patterns []string
}

// Compile builds an Index from a roster. Matching ignores ASCII case and
// only accepts whole words. Where whole-word names overlap, the longest one
// starting leftmost wins.
func Compile(roster []*store.Character) *Index {
	idx := &Index{patternIndex: make(map[string]int)}

	for _, c := range roster {
		surfaces := append([]string{c.Name}, c.Aliases...)
		for _, surface := range surfaces {
			key := strings.ToLower(strings.TrimSpace(surface))
			if key == "" {
				continue
			}
			if i, ok := idx.patternIndex[key]; ok {
				idx.patternToIDs[i] = appendUnique(idx.patternToIDs[i], c.ID)
				continue
			}
			idx.patternIndex[key] = len(idx.patterns)
			idx.patterns = append(idx.patterns, key)
			idx.patternToIDs = append(idx.patternToIDs, []string{c.ID})
		}
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.StandardMatch, // required for IterOverlapping
	})
	idx.ac = builder.Build(idx.patterns)
	return idx
}

// Len returns the number of distinct surface forms.
func (idx *Index) Len() int { return len(idx.patterns) }

// Scan returns every mention in text in order of appearance.
func (idx *Index) Scan(text string) []Mention {
	if len(idx.patterns) == 0 || text == "" {
		return nil
	}

	// Collect every overlapping hit first; a longer name that fails the
	// word-boundary check must not hide a shorter one at the same offset.
	type span struct{ start, end, pattern int }
	var spans []span
	iter := idx.ac.IterOverlapping(text)
	for m := iter.Next(); m != nil; m = iter.Next() {
		if !wordBoundary(text, m.Start(), m.End()) {
			continue
		}
		spans = append(spans, span{m.Start(), m.End(), m.Pattern()})
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	out := make([]Mention, 0, len(spans))
	lastEnd := -1
	for _, sp := range spans {
		if sp.start < lastEnd {
			continue
		}
		lastEnd = sp.end
		ids := make([]string, len(idx.patternToIDs[sp.pattern]))
		copy(ids, idx.patternToIDs[sp.pattern])
		out = append(out, Mention{
			Start:        sp.start,
			End:          sp.end,
			Text:         text[sp.start:sp.end],
			CharacterIDs: ids,
			Tagged:       sp.start > 0 && text[sp.start-1] == '@',
		})
	}
	return out
}

// Untagged returns the mentions not written as "@Name".
func (idx *Index) Untagged(text string) []Mention {
	var out []Mention
	for _, m := range idx.Scan(text) {
		if !m.Tagged {
			out = append(out, m)
		}
	}
	return out
}

// wordBoundary reports whether text[start:end] is not embedded in a longer word.
func wordBoundary(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	if end < len(text) && isWordByte(text[end]) {
		return false
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}

func appendUnique(slice []string, s string) []string {
	for _, v := range slice {
		if v == s {
			return slice
		}
	}
	return append(slice, s)
}
