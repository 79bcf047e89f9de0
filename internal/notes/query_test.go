package notes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryMatches(t *testing.T) {
	n := &Note{Title: "Weekly Review", Content: "ship the Parser", Tags: []string{"work", "go"}}

	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"no filters", Query{}, true},
		{"title substring", Query{Text: "review"}, true},
		{"content substring any case", Query{Text: "PARSER"}, true},
		{"text miss", Query{Text: "holiday"}, false},
		{"one tag of several", Query{Tags: []string{"home", "go"}}, true},
		{"tag case sensitive", Query{Tags: []string{"Go"}}, false},
		{"text and tag both hit", Query{Text: "weekly", Tags: []string{"work"}}, true},
		{"text hit tag miss", Query{Text: "weekly", Tags: []string{"home"}}, false},
		{"whitespace text is literal", Query{Text: " \t"}, false},
		{"empty text ignored", Query{Text: ""}, true},
		{"empty tag list ignored", Query{Tags: []string{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Matches(n))
		})
	}
}

func TestQueryMatches_SpaceIsASubstring(t *testing.T) {
	q := Query{Text: " "}
	assert.False(t, q.Matches(&Note{Title: "nospace", Content: "x"}))
	assert.True(t, q.Matches(&Note{Title: "two words", Content: "x"}))
}
