package prefix

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/reign-theme/demo-install/internal/sqldump"
)

// verbs lists the keyword sequences that can be followed by a table name.
const verbs = `CREATE\s+TABLE(?:\s+IF\s+NOT\s+EXISTS)?|` +
	`INSERT\s+(?:IGNORE\s+)?INTO|` +
	`REPLACE\s+INTO|` +
	`DROP\s+TABLE(?:\s+IF\s+EXISTS)?|` +
	`ALTER\s+TABLE|` +
	`TRUNCATE\s+TABLE|` +
	`LOCK\s+TABLES|` +
	`UPDATE|` +
	`DELETE\s+FROM|` +
	`FROM|` +
	`JOIN`

// Rewriter rewrites table references from one prefix to another. It is safe
// for concurrent use.
type Rewriter struct {
	old, new   string
	verb       *regexp.Regexp
	backtick   *regexp.Regexp
	serialized *regexp.Regexp
}

// NewRewriter compiles the rewrite rules for old to new.
func NewRewriter(old, new string) *Rewriter {
	q := regexp.QuoteMeta(old)
	return &Rewriter{
		old: old,
		new: new,
		// $1 verb and spacing, $2 opening backtick, $3 bare name, $4 closing backtick.
		verb:     regexp.MustCompile(`(\b(?i:` + verbs + `)\s+)(` + "`?" + `)` + q + `(\w+)(` + "`?" + `)`),
		backtick: regexp.MustCompile("`" + q + `(\w+)` + "`"),
		// $1 length, $2 opening quote (possibly escaped), $3 name, $4 closing quote.
		serialized: regexp.MustCompile(`s:(\d+):(\\?")` + q + `(\w+)(\\?")`),
	}
}

// Rewrite returns sql with every table reference moved from old to new. It
// returns sql unchanged when the prefixes are equal. Serialized lengths are
// only recomputed inside SQL string literals; use RewriteSerialized for bare
// serialized text.
func Rewrite(sql, old, new string) string {
	if old == new || old == "" {
		return sql
	}
	return NewRewriter(old, new).Rewrite(sql)
}

// Rewrite applies the verb and backtick rules to SQL code outside string
// literals. The serialized-length rule applies only inside SQL string
// literals, so a serialized value outside quotes is left alone. Text that is
// not SQL, such as an option value read back from the database, goes
// through RewriteSerialized instead.
func (r *Rewriter) Rewrite(sql string) string {
	if r.old == r.new || r.old == "" {
		return sql
	}
	return sqldump.MapCode(sql, r.rewriteCode, r.RewriteSerialized)
}

func (r *Rewriter) rewriteCode(code string) string {
	if !strings.Contains(code, r.old) {
		return code
	}
	code = r.verb.ReplaceAllString(code, "${1}${2}"+escapeRepl(r.new)+"${3}${4}")
	return r.backtick.ReplaceAllString(code, "`"+escapeRepl(r.new)+"${1}`")
}

// RewriteSerialized rewrites PHP-serialized strings of the form
// s:<len>:"<old><name>" to s:<newlen>:"<new><name>", recomputing the byte
// length. Escaped quotes as found inside SQL literals are accepted.
func (r *Rewriter) RewriteSerialized(text string) string {
	if r.old == r.new || !strings.Contains(text, r.old) {
		return text
	}
	return r.serialized.ReplaceAllStringFunc(text, func(m string) string {
		sub := r.serialized.FindStringSubmatch(m)
		name := r.new + sub[3]
		return "s:" + strconv.Itoa(len(name)) + ":" + sub[2] + name + sub[4]
	})
}

// RewriteSerialized is the package-level form of Rewriter.RewriteSerialized.
func RewriteSerialized(text, old, new string) string {
	if old == new || old == "" {
		return text
	}
	return NewRewriter(old, new).RewriteSerialized(text)
}

func escapeRepl(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
