package sqldump

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInsert is returned by ParseInsert for statements that do not add rows.
var ErrNotInsert = errors.New("statement is not an INSERT")

// LiteralKind classifies one value of a VALUES tuple.
type LiteralKind uint8

const (
	LitString LiteralKind = iota
	LitNumber
	LitNull
	// LitExpr is anything else (functions, hex or bit literals, keywords);
	// Text holds the raw SQL.
	LitExpr
)

// Literal is one value of a VALUES tuple.
type Literal struct {
	Kind LiteralKind
	Raw  string // SQL text as written
	Text string // unescaped string value, number text, or raw expression
}

// Row is one parenthesized VALUES tuple.
type Row struct {
	Raw    string // including the parentheses
	Values []Literal
}

// Insert is a parsed INSERT or REPLACE statement.
type Insert struct {
	Statement
	Columns []string
	Rows    []Row

	stmt string
	// head spans from after the leading verb keywords to the end of the
	// VALUES keyword; tail is anything after the last tuple.
	head string
	tail string
}

// ParseInsert parses an INSERT ... VALUES statement with literal tuples.
func ParseInsert(stmt string) (*Insert, error) {
	toks := Tokenize(stmt)
	p := &parser{toks: toks}
	first := p.next()
	if !first.Is("INSERT") && !first.Is("REPLACE") {
		return nil, ErrNotInsert
	}

	ins := &Insert{stmt: stmt, Statement: Statement{Verb: VerbInsert}}
	if first.Is("REPLACE") {
		ins.Verb = VerbReplace
	}
	for p.acceptAny("LOW_PRIORITY", "DELAYED", "HIGH_PRIORITY") {
	}
	ins.Ignore = p.accept("IGNORE")
	headStart := p.peek().Start
	p.accept("INTO")
	if ins.Table = p.tableName(); ins.Table == "" {
		return nil, fmt.Errorf("parsing insert: missing table name")
	}

	if p.acceptPunct("(") {
		for !p.done() && !p.acceptPunct(")") {
			t := p.next()
			if t.Kind == TokWord || t.Kind == TokIdent {
				ins.Columns = append(ins.Columns, t.Name())
			}
		}
	}

	if !p.accept("VALUES") && !p.accept("VALUE") {
		return nil, fmt.Errorf("parsing insert into %s: expected VALUES", ins.Table)
	}
	ins.head = stmt[headStart:p.toks[p.pos-1].End]

	for {
		row, err := p.row(stmt)
		if err != nil {
			return nil, fmt.Errorf("parsing insert into %s row %d: %w", ins.Table, len(ins.Rows)+1, err)
		}
		ins.Rows = append(ins.Rows, row)
		if !p.acceptPunct(",") {
			break
		}
	}
	if !p.done() {
		ins.tail = strings.TrimSpace(stmt[p.peek().Start:])
	}
	return ins, nil
}

// row parses `( value, value, ... )`.
func (p *parser) row(stmt string) (Row, error) {
	open := p.peek()
	if !p.acceptPunct("(") {
		return Row{}, fmt.Errorf("expected ( at offset %d", open.Start)
	}
	var vals []Literal
	for {
		lit, err := p.literal(stmt)
		if err != nil {
			return Row{}, err
		}
		vals = append(vals, lit)
		if p.acceptPunct(",") {
			continue
		}
		closing := p.peek()
		if !p.acceptPunct(")") {
			return Row{}, fmt.Errorf("expected ) at offset %d", closing.Start)
		}
		return Row{Raw: stmt[open.Start:closing.End], Values: vals}, nil
	}
}

func (p *parser) literal(stmt string) (Literal, error) {
	if p.done() {
		return Literal{}, errors.New("unexpected end of statement")
	}
	t := p.peek()
	switch {
	case t.Kind == TokString && p.endsValue(1):
		p.pos++
		return Literal{Kind: LitString, Raw: t.Text, Text: Unquote(t.Text)}, nil
	case t.Kind == TokNumber && p.endsValue(1):
		p.pos++
		return Literal{Kind: LitNumber, Raw: t.Text, Text: t.Text}, nil
	case t.Kind == TokPunct && (t.Text == "-" || t.Text == "+") && p.pos+1 < len(p.toks) &&
		p.toks[p.pos+1].Kind == TokNumber && p.endsValue(2):
		num := p.toks[p.pos+1]
		p.pos += 2
		raw := stmt[t.Start:num.End]
		return Literal{Kind: LitNumber, Raw: raw, Text: t.Text + num.Text}, nil
	case t.Is("NULL") && p.endsValue(1):
		p.pos++
		return Literal{Kind: LitNull, Raw: t.Text}, nil
	}

	// Expression: consume until a top-level comma or closing parenthesis.
	start := t.Start
	end := start
	depth := 0
scan:
	for !p.done() {
		t = p.peek()
		if t.Kind == TokPunct {
			switch t.Text {
			case "(":
				depth++
			case ")":
				if depth == 0 {
					break scan
				}
				depth--
			case ",":
				if depth == 0 {
					break scan
				}
			}
		}
		end = t.End
		p.pos++
	}
	if end == start {
		return Literal{}, fmt.Errorf("empty value at offset %d", start)
	}
	raw := stmt[start:end]
	return Literal{Kind: LitExpr, Raw: raw, Text: raw}, nil
}

// endsValue reports whether the token n positions ahead closes a value.
func (p *parser) endsValue(n int) bool {
	i := p.pos + n
	if i >= len(p.toks) {
		return true
	}
	t := p.toks[i]
	return t.Kind == TokPunct && (t.Text == "," || t.Text == ")")
}

// Build renders the statement with the given verb keyword ("INSERT",
// "INSERT IGNORE", "REPLACE") and rows. It returns "" when rows is empty.
func (ins *Insert) Build(verb string, rows []Row) string {
	if len(rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(verb)
	b.WriteByte(' ')
	b.WriteString(ins.head)
	b.WriteByte(' ')
	for i, r := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.Raw)
	}
	if ins.tail != "" {
		b.WriteByte(' ')
		b.WriteString(ins.tail)
	}
	return b.String()
}

// SQL returns the original statement text.
func (ins *Insert) SQL() string { return ins.stmt }

// Column returns the value at position i (zero-based) of row r, or false when
// the row is shorter.
func (r Row) Column(i int) (Literal, bool) {
	if i < 0 || i >= len(r.Values) {
		return Literal{}, false
	}
	return r.Values[i], true
}

// ColumnIndex returns the position of a named column, or -1 when the insert
// has no column list or does not name it.
func (ins *Insert) ColumnIndex(name string) int {
	for i, c := range ins.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}
