package sqldump

import "strings"

// Verb is the kind of work a statement does.
type Verb string

const (
	VerbInsert      Verb = "insert"
	VerbReplace     Verb = "replace"
	VerbCreateTable Verb = "create_table"
	VerbDropTable   Verb = "drop_table"
	VerbAlterTable  Verb = "alter_table"
	VerbTruncate    Verb = "truncate"
	VerbUpdate      Verb = "update"
	VerbDelete      Verb = "delete"
	VerbLock        Verb = "lock"
	VerbUnlock      Verb = "unlock"
	VerbSet         Verb = "set"
	VerbConditional Verb = "conditional"
	VerbOther       Verb = "other"
)

// Statement describes a classified statement.
type Statement struct {
	Verb  Verb
	Table string // first table named, unqualified; empty when none
	// Ignore is set for INSERT IGNORE.
	Ignore bool
	// IfExists is set for DROP TABLE IF EXISTS and CREATE TABLE IF NOT EXISTS.
	IfExists bool
}

// Classify inspects the leading keywords of stmt.
func Classify(stmt string) Statement {
	toks := Tokenize(stmt)
	if len(toks) == 0 {
		return Statement{Verb: VerbOther}
	}
	if toks[0].Kind == TokConditional {
		return Statement{Verb: VerbConditional}
	}

	p := &parser{toks: toks}
	first := p.next()
	switch {
	case first.Is("INSERT"), first.Is("REPLACE"):
		st := Statement{Verb: VerbInsert}
		if first.Is("REPLACE") {
			st.Verb = VerbReplace
		}
		for p.acceptAny("LOW_PRIORITY", "DELAYED", "HIGH_PRIORITY") {
		}
		st.Ignore = p.accept("IGNORE")
		p.accept("INTO")
		st.Table = p.tableName()
		return st

	case first.Is("CREATE"):
		p.accept("TEMPORARY")
		if !p.accept("TABLE") {
			return Statement{Verb: VerbOther}
		}
		st := Statement{Verb: VerbCreateTable}
		if p.accept("IF") {
			p.accept("NOT")
			p.accept("EXISTS")
			st.IfExists = true
		}
		st.Table = p.tableName()
		return st

	case first.Is("DROP"):
		p.accept("TEMPORARY")
		if !p.accept("TABLE") {
			return Statement{Verb: VerbOther}
		}
		st := Statement{Verb: VerbDropTable}
		if p.accept("IF") {
			p.accept("EXISTS")
			st.IfExists = true
		}
		st.Table = p.tableName()
		return st

	case first.Is("ALTER"):
		p.accept("ONLINE")
		p.accept("IGNORE")
		if !p.accept("TABLE") {
			return Statement{Verb: VerbOther}
		}
		return Statement{Verb: VerbAlterTable, Table: p.tableName()}

	case first.Is("TRUNCATE"):
		p.accept("TABLE")
		return Statement{Verb: VerbTruncate, Table: p.tableName()}

	case first.Is("UPDATE"):
		p.acceptAny("LOW_PRIORITY")
		p.accept("IGNORE")
		return Statement{Verb: VerbUpdate, Table: p.tableName()}

	case first.Is("DELETE"):
		for p.acceptAny("LOW_PRIORITY", "QUICK", "IGNORE") {
		}
		p.accept("FROM")
		return Statement{Verb: VerbDelete, Table: p.tableName()}

	case first.Is("LOCK"):
		if p.accept("TABLES") || p.accept("TABLE") {
			return Statement{Verb: VerbLock, Table: p.tableName()}
		}
	case first.Is("UNLOCK"):
		return Statement{Verb: VerbUnlock}
	case first.Is("SET"):
		return Statement{Verb: VerbSet}
	}
	return Statement{Verb: VerbOther}
}

// IsInsert reports whether the statement adds rows.
func (s Statement) IsInsert() bool {
	return s.Verb == VerbInsert || s.Verb == VerbReplace
}

// IsSchema reports whether the statement creates or drops a table.
func (s Statement) IsSchema() bool {
	return s.Verb == VerbCreateTable || s.Verb == VerbDropTable
}

// SchemaStatements returns the DROP TABLE and CREATE TABLE statements in
// dump that target table, in dump order.
func SchemaStatements(dump, table string) []string {
	var out []string
	sc := NewScanner(dump)
	for sc.Next() {
		stmt := sc.Statement()
		st := Classify(stmt)
		if st.IsSchema() && strings.EqualFold(st.Table, table) {
			out = append(out, stmt)
		}
	}
	return out
}

// HasCreateTable reports whether any statement in stmts is a CREATE TABLE.
func HasCreateTable(stmts []string) bool {
	for _, stmt := range stmts {
		if Classify(stmt).Verb == VerbCreateTable {
			return true
		}
	}
	return false
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() Token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return Token{Kind: TokPunct}
}

func (p *parser) next() Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) accept(word string) bool {
	if p.peek().Is(word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptAny(words ...string) bool {
	for _, w := range words {
		if p.accept(w) {
			return true
		}
	}
	return false
}

func (p *parser) acceptPunct(c string) bool {
	if t := p.peek(); t.Kind == TokPunct && t.Text == c {
		p.pos++
		return true
	}
	return false
}

// tableName reads an optionally schema-qualified table name and returns the
// unqualified part.
func (p *parser) tableName() string {
	t := p.peek()
	if t.Kind != TokWord && t.Kind != TokIdent {
		return ""
	}
	p.pos++
	name := t.Name()
	for p.acceptPunct(".") {
		t = p.peek()
		if t.Kind != TokWord && t.Kind != TokIdent {
			break
		}
		p.pos++
		name = t.Name()
	}
	return name
}
