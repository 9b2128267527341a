package tablestore

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLength caps derived identifiers. SQLite has no hard limit;
// 64 keeps generated SQL and file names readable.
const MaxIdentifierLength = 64

// RowIDColumn is the physical name of the row identifier column.
const RowIDColumn = "row_id"

// validIdentifier is the allow-list every derived identifier must match
// before it is placed into SQL text.
var validIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,63}$`)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// stripMarks decomposes accented characters and drops the combining marks.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize derives a storage identifier candidate from a user-supplied name.
// It is pure and idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
// The result may be empty when name has no alphanumeric characters.
func Sanitize(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	s := strings.ToLower(folded)
	s = nonAlnumRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return ""
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	if len(s) > MaxIdentifierLength {
		s = s[:MaxIdentifierLength]
		if t := strings.TrimRight(s, "_"); t != "" {
			s = t
		}
	}
	return s
}

// sanitizeOr sanitizes name and falls back to def when nothing survives.
func sanitizeOr(name, def string) string {
	if s := Sanitize(name); s != "" {
		return s
	}
	return def
}

// reservedIdentifier reports names that can never be handed out as table identifiers.
func reservedIdentifier(id string) bool {
	return strings.HasPrefix(id, "sqlite_") ||
		strings.HasPrefix(id, "_catalog") ||
		id == "goose_db_version"
}

// tableIdentifier derives a free table identifier from name. Bases that
// fall in a reserved namespace are prefixed with "_" first.
func tableIdentifier(name string, taken map[string]bool) string {
	base := sanitizeOr(name, "table")
	if reservedIdentifier(base) {
		base = "_" + base
		if len(base) > MaxIdentifierLength {
			base = base[:MaxIdentifierLength]
		}
	}
	return uniqueIdentifier(base, func(c string) bool {
		return taken[c] || reservedIdentifier(c)
	})
}

// uniqueIdentifier returns base, or base_2, base_3, ... for the first
// candidate that taken reports as free. Suffixed candidates are truncated
// so they still fit MaxIdentifierLength.
func uniqueIdentifier(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf("_%d", n)
		stem := base
		if len(stem)+len(suffix) > MaxIdentifierLength {
			stem = stem[:MaxIdentifierLength-len(suffix)]
		}
		if candidate := stem + suffix; !taken(candidate) {
			return candidate
		}
	}
}

// quoteIdent validates id against the allow-list and double-quotes it.
func quoteIdent(id string) (string, error) {
	if !validIdentifier.MatchString(id) {
		return "", fmt.Errorf("unsafe identifier %q", id)
	}
	return `"` + id + `"`, nil
}
