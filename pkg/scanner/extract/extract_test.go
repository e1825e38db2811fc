package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		characters []string
		locations  []string
	}{
		{"empty", "", []string{}, []string{}},
		{"no tags", "Alice walked to the park.", []string{}, []string{}},
		{"duplicates collapse", "@Alice @Alice #Park", []string{"Alice"}, []string{"Park"}},
		{"punctuation ends token", "@Alice, meet @Bob. #Old_Mill!", []string{"Alice", "Bob"}, []string{"Old_Mill"}},
		{"adjacent tags", "@Alice#Park", []string{"Alice"}, []string{"Park"}},
		{"bare sigils", "@ # @@ ##", []string{}, []string{}},
		{"doubled sigil", "@@Bob ##Cave", []string{"Bob"}, []string{"Cave"}},
		{"case sensitive", "@alice @Alice", []string{"Alice", "alice"}, []string{}},
		{"digits and underscore", "@agent_007 #room42", []string{"agent_007"}, []string{"room42"}},
		{"non-ascii stops token", "@Zoë #Café", []string{"Zo"}, []string{"Caf"}},
		{"mid-word sigil", "mail bob@example", []string{"example"}, []string{}},
		{"hyphen stops token", "@Mary-Jane", []string{"Mary"}, []string{}},
		{"trailing sigil", "the end @", []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			assert.Equal(t, tt.characters, got.Characters.Sorted())
			assert.Equal(t, tt.locations, got.Locations.Sorted())
		})
	}
}

func TestExtractIdempotent(t *testing.T) {
	text := "@Alice met @Bob at #Park. Later @Alice left #Park for #Mill."
	first := Extract(text)
	second := Extract(text)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, first.Characters.Len())
	assert.True(t, first.Locations.Has("Mill"))
	assert.False(t, first.Locations.Has("Alice"))
}
