package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// customIDPatterns are tried in order, most specific first.
// Identifiers produced by different pipeline stages all end in the
// "line_<n>" convention but may carry extra namespace or field
// segments before it. The order decides which digit run wins on
// ambiguous identifiers; do not reorder.
var customIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`_line_(\d+)$`),
	regexp.MustCompile(`line_(\d+)$`),
}

// EncodeCustomID builds the correlation id embedded in every batch
// request: "{namespace}_{field}_line_{key}". The field segment is
// omitted when empty.
func EncodeCustomID(namespace, field string, key int) string {
	var b strings.Builder
	b.WriteString(namespace)
	if field != "" {
		b.WriteByte('_')
		b.WriteString(field)
	}
	b.WriteString("_line_")
	b.WriteString(strconv.Itoa(key))
	return b.String()
}

// DecodeCustomID recovers the record key from a custom id.
// Returns false for foreign or corrupted identifiers; callers skip
// the entry and count it, they never abort the run.
func DecodeCustomID(id string) (int, bool) {
	for _, p := range customIDPatterns {
		m := p.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// SanitizeNamespace makes a source file name safe for use as a
// custom-id namespace, replacing anything outside [A-Za-z0-9._-]
// with an underscore.
func SanitizeNamespace(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
