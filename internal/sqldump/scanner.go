// Package sqldump reads MySQL-dialect dump text: it splits a blob into
// statements, tokenizes them, classifies what each statement does and parses
// the VALUES tuples of INSERT statements.
package sqldump

import "strings"

// Scanner yields the statements of a dump one at a time. It is lazy and can
// only be consumed once.
//
// Semicolons inside single-quoted, double-quoted or backtick-quoted text do
// not end a statement; backslash escapes are honored inside quotes. Comments
// (--, # and /* */) do not change the quote state, and fragments that consist
// only of comments are dropped. MySQL executable comments (/*! ... */) are
// kept as statement text.
type Scanner struct {
	src  string
	pos  int
	stmt string
}

// NewScanner returns a Scanner over sql.
func NewScanner(sql string) *Scanner {
	return &Scanner{src: sql}
}

// Next advances to the next non-empty statement and reports whether there
// was one. A trailing fragment without a terminating semicolon is returned as
// the last statement.
func (s *Scanner) Next() bool {
	for s.pos < len(s.src) {
		start := s.pos
		end := s.scanStatement()
		stmt := stripLeadingComments(strings.TrimSpace(s.src[start:end]))
		if stmt != "" {
			s.stmt = stmt
			return true
		}
	}
	s.stmt = ""
	return false
}

// Statement returns the statement found by the last call to Next, trimmed
// and without its terminating semicolon.
func (s *Scanner) Statement() string {
	return s.stmt
}

// Split returns every statement of sql.
func Split(sql string) []string {
	var out []string
	sc := NewScanner(sql)
	for sc.Next() {
		out = append(out, sc.Statement())
	}
	return out
}

// scanStatement moves pos past the next terminating semicolon (or to the end
// of input) and returns the end offset of the statement text.
func (s *Scanner) scanStatement() int {
	src := s.src
	var quote byte
	i := s.pos
	for i < len(src) {
		c := src[i]
		if quote != 0 {
			switch {
			case c == '\\' && quote != '`':
				i += 2
				continue
			case c == quote:
				quote = 0
			}
			i++
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			i++
		case c == ';':
			s.pos = i + 1
			return i
		case isLineComment(src, i):
			i = skipLine(src, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i = skipBlock(src, i)
		default:
			i++
		}
	}
	if i > len(src) {
		i = len(src)
	}
	s.pos = i
	return i
}

func isLineComment(src string, i int) bool {
	if src[i] == '#' {
		return true
	}
	if src[i] != '-' || i+1 >= len(src) || src[i+1] != '-' {
		return false
	}
	// MySQL requires whitespace (or end of input) after the double dash.
	return i+2 >= len(src) || isSpace(src[i+2])
}

func skipLine(src string, i int) int {
	if j := strings.IndexByte(src[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(src)
}

func skipBlock(src string, i int) int {
	if j := strings.Index(src[i+2:], "*/"); j >= 0 {
		return i + 2 + j + 2
	}
	return len(src)
}

// stripLeadingComments removes comment lines and plain block comments that
// precede the statement body. Executable comments are statement text.
func stripLeadingComments(stmt string) string {
	for stmt != "" {
		switch {
		case isLineComment(stmt, 0):
			stmt = strings.TrimSpace(stmt[skipLine(stmt, 0):])
		case strings.HasPrefix(stmt, "/*") && !strings.HasPrefix(stmt, "/*!"):
			stmt = strings.TrimSpace(stmt[skipBlock(stmt, 0):])
		default:
			return stmt
		}
	}
	return stmt
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
