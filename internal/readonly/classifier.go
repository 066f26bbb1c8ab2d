// Package readonly decides whether a SQL statement is guaranteed not to
// mutate the database. It is a conservative lexical filter, not a parser:
// when in doubt it rejects. A false negative here is a security failure,
// so the block-set errs wide and novel statement shapes fail closed.
package readonly

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyStatement is returned for statements that are empty after
// comment and literal stripping.
var ErrEmptyStatement = errors.New("empty statement")

// allowedFirst lists the statement-starting keywords of read operations.
var allowedFirst = map[string]struct{}{
	"SELECT":  {},
	"WITH":    {},
	"SHOW":    {},
	"EXPLAIN": {},
	"TABLE":   {},
	"VALUES":  {},
	"FETCH":   {},
}

// blockedKeywords rejects a statement wherever they appear as whole words
// in the stripped text. This is what defeats writes hidden inside CTEs or
// subqueries: "WITH x AS (DELETE ...) SELECT ..." passes the first-token
// check but trips on DELETE here. ANALYZE is blocked because EXPLAIN
// ANALYZE executes the inner statement. INTO is blocked because
// "SELECT ... INTO table" creates the table, same as CREATE TABLE AS.
var blockedKeywords = map[string]struct{}{
	"INSERT":     {},
	"INTO":       {},
	"UPDATE":     {},
	"DELETE":     {},
	"DROP":       {},
	"CREATE":     {},
	"ALTER":      {},
	"TRUNCATE":   {},
	"GRANT":      {},
	"REVOKE":     {},
	"REINDEX":    {},
	"VACUUM":     {},
	"ANALYZE":    {},
	"CLUSTER":    {},
	"REFRESH":    {},
	"COPY":       {},
	"MERGE":      {},
	"CALL":       {},
	"DO":         {},
	"EXECUTE":    {},
	"PREPARE":    {},
	"DEALLOCATE": {},
	"COMMENT":    {},
	"SECURITY":   {},
	"OWNER":      {},
	"LOCK":       {},
	"LISTEN":     {},
	"NOTIFY":     {},
	"UNLISTEN":   {},
	"BEGIN":      {},
	"COMMIT":     {},
	"ROLLBACK":   {},
	"SAVEPOINT":  {},
	"RELEASE":    {},
	"SET":        {},
	"RESET":      {},
	"DISCARD":    {},
	"IMPORT":     {},
}

// IsReadOnly reports whether the statement is guaranteed read-only.
func IsReadOnly(query string) bool {
	return Check(query) == nil
}

// Check classifies the statement, returning a descriptive error when it is
// rejected. Both passes run against a stripped copy so that keywords inside
// comments or string literals neither allow nor reject anything.
func Check(query string) error {
	stripped := strings.ToUpper(strings.TrimSpace(Strip(query)))
	if stripped == "" {
		return ErrEmptyStatement
	}

	// Pass 1: the first whitespace-delimited token must start a read
	// statement. Anything unrecognized is rejected, not special-cased.
	first := stripped
	if idx := strings.IndexFunc(stripped, isSpace); idx >= 0 {
		first = stripped[:idx]
	}
	if _, ok := allowedFirst[first]; !ok {
		return fmt.Errorf("statement starts with %q, which is not a read-only operation", first)
	}

	// Pass 2: no write, DDL, or transaction-control keyword anywhere in
	// the stripped text, regardless of what the first token looked like.
	for _, word := range splitWords(stripped) {
		if _, blocked := blockedKeywords[word]; blocked {
			return fmt.Errorf("statement contains write keyword %q", word)
		}
	}

	return nil
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// splitWords breaks the stripped text at every character that cannot be
// part of a SQL keyword, so "(DELETE" or "DELETE," still match.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '_' ||
			(r >= 'A' && r <= 'Z') ||
			(r >= 'a' && r <= 'z') ||
			(r >= '0' && r <= '9'))
	})
}
