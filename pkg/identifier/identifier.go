package identifier

import (
	"fmt"
	"regexp"
	"strings"
)

// maxInputLength caps how much input the validators will even look at.
// The length check runs before any regular expression so that
// adversarially long strings cannot drive up matching cost.
const maxInputLength = 512

// maxSQLIdentifierLength matches the PostgreSQL identifier limit, which is
// also the common denominator for MySQL and SQLite.
const maxSQLIdentifierLength = 63

var (
	// Tenant slug: lowercase letter, 1-61 letters/digits/hyphens, then a
	// letter or digit. 3-63 characters total.
	tenantIdentifierRe = regexp.MustCompile(`^[a-z][a-z0-9-]{1,61}[a-z0-9]$`)

	// SQL identifier: lowercase letter or underscore, then up to 62
	// letters/digits/underscores.
	sqlIdentifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

	nonSQLCharsRe       = regexp.MustCompile(`[^a-z0-9_]`)
	repeatUnderscoresRe = regexp.MustCompile(`_+`)
)

// ValidTenantIdentifier reports whether s is a valid tenant slug.
//
// A valid slug is 3-63 characters, starts with a lowercase letter, ends
// with a lowercase letter or digit, and contains only lowercase letters,
// digits, and hyphens in between. A valid slug is NOT automatically a
// valid SQL identifier; use Sanitize to derive one.
func ValidTenantIdentifier(s string) bool {
	if s == "" || len(s) > maxInputLength {
		return false
	}
	return tenantIdentifierRe.MatchString(s)
}

// ValidSchemaName reports whether s is safe to embed as a schema name in
// generated DDL: non-empty, at most 63 characters, starts with a lowercase
// letter or underscore, and contains only lowercase letters, digits, and
// underscores.
func ValidSchemaName(s string) bool {
	if s == "" || len(s) > maxInputLength {
		return false
	}
	return sqlIdentifierRe.MatchString(s)
}

// ValidDatabaseName reports whether s is a safe database name. PostgreSQL
// applies the same grammar to schema and database names, so the rules are
// identical to ValidSchemaName.
func ValidDatabaseName(s string) bool {
	return ValidSchemaName(s)
}

// AssertSafeSchemaName returns an error when s is not a safe SQL
// identifier. Call it immediately before every statement that interpolates
// a schema or table name; it never truncates or rewrites the value.
// The optional context string names the call site in the error message.
func AssertSafeSchemaName(s, context string) error {
	if ValidSchemaName(s) {
		return nil
	}
	if context != "" {
		return fmt.Errorf("%w: %q (%s)", ErrUnsafeIdentifier, s, context)
	}
	return fmt.Errorf("%w: %q", ErrUnsafeIdentifier, s)
}

// AssertSafeDatabaseName returns an error when s is not a safe database
// name.
func AssertSafeDatabaseName(s, context string) error {
	if ValidDatabaseName(s) {
		return nil
	}
	if context != "" {
		return fmt.Errorf("%w: %q (%s)", ErrUnsafeIdentifier, s, context)
	}
	return fmt.Errorf("%w: %q", ErrUnsafeIdentifier, s)
}

// Sanitize converts an arbitrary string into a valid SQL identifier.
//
// The conversion is lossy: lowercase, hyphens and dots become underscores,
// every other unsafe character is dropped, runs of underscores collapse,
// leading/trailing underscores are trimmed, a leading digit gets a "t_"
// prefix, the result is truncated to 63 characters, and an empty result
// falls back to "tenant". The output always satisfies ValidSchemaName.
//
// Use Sanitize only to derive artifacts (schema names, table prefixes)
// from trusted-enough slugs, never as an admission filter for untrusted
// input. Validators reject, Sanitize rewrites.
func Sanitize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", "_", ".", "_").Replace(s)
	s = nonSQLCharsRe.ReplaceAllString(s, "_")
	s = repeatUnderscoresRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s != "" && (s[0] < 'a' || s[0] > 'z') {
		s = "t_" + s
	}
	if s == "" {
		s = "tenant"
	}
	if len(s) > maxSQLIdentifierLength {
		s = s[:maxSQLIdentifierLength]
	}
	return s
}

// TablePrefix builds a short, deterministic table-name prefix for dialects
// without native schema support. The prefix is capped so that
// prefix+tablename stays within the 63-character identifier limit.
func TablePrefix(tenantIdentifier string) string {
	safe := Sanitize(tenantIdentifier)
	// Avoid "t_t_..." when Sanitize already prepended "t_" for a leading digit.
	base := strings.TrimPrefix(safe, "t_")
	if base == "" {
		base = safe
	}
	if len(base) > 20 {
		base = base[:20]
	}
	base = strings.TrimRight(base, "_")
	return "t_" + base + "_"
}
