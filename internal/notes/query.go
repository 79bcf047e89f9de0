package notes

import "strings"

// Query holds the optional search filters. Both are independent: an empty
// Text or empty Tags disables that filter, and with neither set every note of
// the caller matches. Whitespace in Text is matched literally.
type Query struct {
	// Text is matched case-insensitively as a substring of title or content.
	Text string
	// Tags matches notes carrying at least one of the listed tags, compared
	// exactly.
	Tags []string
}

// Matches reports whether n passes every active filter. Ownership is not
// checked here.
func (q Query) Matches(n *Note) bool {
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		if !strings.Contains(strings.ToLower(n.Title), needle) &&
			!strings.Contains(strings.ToLower(n.Content), needle) {
			return false
		}
	}
	if len(q.Tags) > 0 && !hasAnyTag(n.Tags, q.Tags) {
		return false
	}
	return true
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
