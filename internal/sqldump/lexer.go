package sqldump

import "strings"

// TokenKind classifies a lexical token.
type TokenKind uint8

const (
	TokWord        TokenKind = iota // keyword or bare identifier
	TokIdent                        // backtick-quoted identifier
	TokString                       // single- or double-quoted literal
	TokNumber                       // numeric or hex literal
	TokPunct                        // any other single byte
	TokConditional                  // /*! ... */ executable comment
)

// Token is one lexical unit of a statement. Start and End are byte offsets
// into the statement text.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

// Is reports whether t is the given keyword, compared case-insensitively.
func (t Token) Is(word string) bool {
	return t.Kind == TokWord && strings.EqualFold(t.Text, word)
}

// Name returns the identifier value of a word or backtick token.
func (t Token) Name() string {
	if t.Kind == TokIdent {
		return strings.ReplaceAll(t.Text[1:len(t.Text)-1], "``", "`")
	}
	return t.Text
}

// Tokenize splits a single statement into tokens. Whitespace and plain
// comments are skipped. An unterminated quote yields a final token that runs
// to the end of the input.
func Tokenize(stmt string) []Token {
	var toks []Token
	i := 0
	for i < len(stmt) {
		c := stmt[i]
		start := i
		switch {
		case isSpace(c):
			i++
			continue
		case isLineComment(stmt, i):
			i = skipLine(stmt, i)
			continue
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			i = skipBlock(stmt, i)
			if strings.HasPrefix(stmt[start:], "/*!") {
				toks = append(toks, Token{Kind: TokConditional, Text: stmt[start:i], Start: start, End: i})
			}
			continue
		case c == '\'' || c == '"':
			i = skipQuoted(stmt, i, c, true)
			toks = append(toks, Token{Kind: TokString, Text: stmt[start:i], Start: start, End: i})
			continue
		case c == '`':
			i = skipQuoted(stmt, i, c, false)
			toks = append(toks, Token{Kind: TokIdent, Text: stmt[start:i], Start: start, End: i})
			continue
		case isDigit(c) || (c == '.' && i+1 < len(stmt) && isDigit(stmt[i+1])):
			i = skipNumber(stmt, i)
			toks = append(toks, Token{Kind: TokNumber, Text: stmt[start:i], Start: start, End: i})
			continue
		case isWordByte(c):
			for i < len(stmt) && isWordByte(stmt[i]) {
				i++
			}
			toks = append(toks, Token{Kind: TokWord, Text: stmt[start:i], Start: start, End: i})
			continue
		}
		i++
		toks = append(toks, Token{Kind: TokPunct, Text: stmt[start:i], Start: start, End: i})
	}
	return toks
}

// skipQuoted returns the offset just past the closing quote. Doubled quotes
// stay inside the literal.
func skipQuoted(s string, i int, q byte, escapes bool) int {
	end, _ := quotedEnd(s, i, q, escapes)
	return end
}

// quotedEnd is skipQuoted that also reports whether a closing quote was
// found before the end of s.
func quotedEnd(s string, i int, q byte, escapes bool) (int, bool) {
	i++
	for i < len(s) {
		switch {
		case escapes && s[i] == '\\':
			i += 2
			continue
		case s[i] == q:
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1, true
		}
		i++
	}
	return len(s), false
}

func skipNumber(s string, i int) int {
	if s[i] == '0' && i+1 < len(s) && (s[i+1] == 'x' || s[i+1] == 'X' || s[i+1] == 'b' || s[i+1] == 'B') {
		i += 2
		for i < len(s) && isWordByte(s[i]) {
			i++
		}
		return i
	}
	for i < len(s) {
		c := s[i]
		switch {
		case isDigit(c) || c == '.':
			i++
		case (c == 'e' || c == 'E') && i+1 < len(s):
			i++
			if s[i] == '+' || s[i] == '-' {
				i++
			}
		default:
			return i
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// Segment is a run of statement text that is either SQL code or the inside of
// a quoted string literal (quotes excluded from Text).
type Segment struct {
	Text    string
	Literal bool
}

// Segments cuts stmt into alternating code and string-literal segments. The
// quote characters stay in the surrounding code segments so that joining
// every Text reproduces stmt exactly. Backtick identifiers are code.
func Segments(stmt string) []Segment {
	var segs []Segment
	code := 0
	i := 0
	for i < len(stmt) {
		c := stmt[i]
		switch {
		case c == '\'' || c == '"':
			end, closed := quotedEnd(stmt, i, c, true)
			segs = append(segs, Segment{Text: stmt[code : i+1]})
			closing := end - 1
			if !closed {
				// Unterminated literal runs to the end of input.
				closing = len(stmt)
			}
			segs = append(segs, Segment{Text: stmt[i+1 : closing], Literal: true})
			code = closing
			i = end
		case c == '`':
			i = skipQuoted(stmt, i, c, false)
		case isLineComment(stmt, i):
			i = skipLine(stmt, i)
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			i = skipBlock(stmt, i)
		default:
			i++
		}
	}
	if code < len(stmt) {
		segs = append(segs, Segment{Text: stmt[code:]})
	}
	return segs
}

// MapCode applies fn to the code segments of stmt and lit to the literal
// segments, and joins the results. A nil function leaves its segments as is.
func MapCode(stmt string, fn, lit func(string) string) string {
	var b strings.Builder
	b.Grow(len(stmt))
	for _, seg := range Segments(stmt) {
		switch {
		case seg.Literal && lit != nil:
			b.WriteString(lit(seg.Text))
		case !seg.Literal && fn != nil:
			b.WriteString(fn(seg.Text))
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}
