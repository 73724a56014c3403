// Package sqlnorm normalizes SQL query text into equivalence keys used by
// the N+1 detector and the query statistics views.
//
// Normalization replaces string and numeric literals and driver
// placeholders ($1, :name, ?) with "?" and collapses whitespace, so two
// executions of the same query shape compare equal regardless of bound
// values or formatting. Normalize is idempotent.
package sqlnorm

import (
	"regexp"
	"strings"
)

var (
	reSingleQuoted = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)
	reDoubleQuoted = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	rePlaceholder  = regexp.MustCompile(`\$\d+|:\w+`)
	reNumber       = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	reWhitespace   = regexp.MustCompile(`\s+`)

	// Table references after FROM / JOIN / INTO / UPDATE. Optionally
	// schema-qualified, optionally quoted.
	reTableRef = regexp.MustCompile(`(?i)\b(?:from|join|into|update)\s+["` + "`" + `]?([a-zA-Z_][\w.]*)["` + "`" + `]?`)
)

// Normalize returns the equivalence key for a SQL query.
func Normalize(query string) string {
	q := reSingleQuoted.ReplaceAllString(query, "?")
	q = reDoubleQuoted.ReplaceAllString(q, "?")
	q = rePlaceholder.ReplaceAllString(q, "?")
	q = reNumber.ReplaceAllString(q, "?")
	q = reWhitespace.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

// Operation classifies a query by its leading keyword.
// Returns one of SELECT, INSERT, UPDATE, DELETE, OTHER.
func Operation(query string) string {
	trimmed := strings.TrimSpace(query)
	// Skip leading parens and CTE prefix.
	trimmed = strings.TrimLeft(trimmed, "( \t\n")
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "SELECT"), strings.HasPrefix(upper, "WITH"):
		return "SELECT"
	case strings.HasPrefix(upper, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(upper, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(upper, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

// Tables extracts the table names referenced by a query, deduplicated in
// first-appearance order. Whitespace variations in the query do not change
// the result.
func Tables(query string) []string {
	matches := reTableRef.FindAllStringSubmatch(query, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		// Drop a trailing schema qualifier's quoting remnants.
		name = strings.Trim(name, `"`)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
