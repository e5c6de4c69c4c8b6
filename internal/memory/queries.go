package memory

import (
	"regexp"
	"strings"
)

// QueryDeriver turns a user message into the search queries used to find
// relevant older messages.
type QueryDeriver interface {
	DeriveQueries(message string) []string
}

var topicPattern = regexp.MustCompile(`(?i)\b(?:about|regarding)\s+([^.?!,;]+)`)

// KeywordDeriver derives queries from the raw message, "about X" and
// "regarding X" phrases, and configured domain keywords found in the
// message. Duplicates are dropped and at most MaxQueries are returned.
type KeywordDeriver struct {
	Keywords   []string
	MaxQueries int
}

// DeriveQueries implements QueryDeriver.
func (d KeywordDeriver) DeriveQueries(message string) []string {
	limit := d.MaxQueries
	if limit <= 0 {
		limit = defaultMaxQueries
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(q string) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || len(out) >= limit {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}

	add(message)
	for _, m := range topicPattern.FindAllStringSubmatch(message, -1) {
		add(m[1])
	}
	lower := strings.ToLower(message)
	for _, kw := range d.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			add(kw)
		}
	}
	return out
}

var _ QueryDeriver = KeywordDeriver{}
