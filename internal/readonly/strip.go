package readonly

import "strings"

// Strip replaces SQL regions that must never influence classification with
// spaces: line comments, block comments (nested), single-quoted literals
// (with '' escapes), double-quoted identifiers, and dollar-quoted bodies.
// Length and the position of everything outside those regions are
// preserved, so keyword scanning on the result cannot be fooled by a write
// keyword hidden in a literal or a comment.
func Strip(sql string) string {
	var out strings.Builder
	out.Grow(len(sql))

	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]
		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-':
			i = stripLineComment(sql, i, &out)
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i = stripBlockComment(sql, i, &out)
		case c == '\'':
			i = stripSingleQuoted(sql, i, &out)
		case c == '"':
			i = stripDoubleQuoted(sql, i, &out)
		case c == '$':
			if end, ok := stripDollarQuoted(sql, i, &out); ok {
				i = end
			} else {
				out.WriteByte(c)
				i++
			}
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String()
}

func stripLineComment(sql string, i int, out *strings.Builder) int {
	for i < len(sql) && sql[i] != '\n' {
		out.WriteByte(' ')
		i++
	}
	return i
}

func stripBlockComment(sql string, i int, out *strings.Builder) int {
	depth := 0
	n := len(sql)
	for i < n {
		if sql[i] == '/' && i+1 < n && sql[i+1] == '*' {
			depth++
			out.WriteString("  ")
			i += 2
			continue
		}
		if sql[i] == '*' && i+1 < n && sql[i+1] == '/' {
			depth--
			out.WriteString("  ")
			i += 2
			if depth == 0 {
				return i
			}
			continue
		}
		out.WriteByte(' ')
		i++
	}
	// Unterminated comment: everything to the end was stripped.
	return i
}

func stripSingleQuoted(sql string, i int, out *strings.Builder) int {
	out.WriteByte(' ')
	i++
	n := len(sql)
	for i < n {
		if sql[i] == '\'' {
			// '' is an escaped quote inside the literal.
			if i+1 < n && sql[i+1] == '\'' {
				out.WriteString("  ")
				i += 2
				continue
			}
			out.WriteByte(' ')
			return i + 1
		}
		out.WriteByte(' ')
		i++
	}
	return i
}

func stripDoubleQuoted(sql string, i int, out *strings.Builder) int {
	out.WriteByte(' ')
	i++
	n := len(sql)
	for i < n {
		if sql[i] == '"' {
			if i+1 < n && sql[i+1] == '"' {
				out.WriteString("  ")
				i += 2
				continue
			}
			out.WriteByte(' ')
			return i + 1
		}
		out.WriteByte(' ')
		i++
	}
	return i
}

// stripDollarQuoted handles $tag$ ... $tag$ bodies. Returns ok=false when
// the '$' at i does not open a valid dollar-quote delimiter. Tags follow
// identifier rules: a leading digit means a positional parameter like $1,
// not a quote.
func stripDollarQuoted(sql string, i int, out *strings.Builder) (int, bool) {
	tagEnd := i + 1
	for tagEnd < len(sql) && isTagChar(sql[tagEnd]) {
		tagEnd++
	}
	if tagEnd >= len(sql) || sql[tagEnd] != '$' {
		return i, false
	}
	if tagEnd > i+1 && sql[i+1] >= '0' && sql[i+1] <= '9' {
		return i, false
	}
	delim := sql[i : tagEnd+1]

	bodyStart := tagEnd + 1
	closeIdx := strings.Index(sql[bodyStart:], delim)

	// Blank the opening delimiter.
	for range delim {
		out.WriteByte(' ')
	}

	if closeIdx < 0 {
		// Unterminated: strip to the end.
		for range sql[bodyStart:] {
			out.WriteByte(' ')
		}
		return len(sql), true
	}

	for range sql[bodyStart : bodyStart+closeIdx+len(delim)] {
		out.WriteByte(' ')
	}
	return bodyStart + closeIdx + len(delim), true
}

func isTagChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
