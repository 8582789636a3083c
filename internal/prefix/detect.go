// Package prefix detects the table prefix a dump was exported with and
// rewrites dump text from one prefix to another.
package prefix

import (
	"strings"

	"github.com/reign-theme/demo-install/internal/sqldump"
)

// Default is the prefix assumed when a dump carries no structural signal.
const Default = "wp_"

// Source records how a prefix was found.
type Source uint8

const (
	// SourceExact means a statement named <prefix><table> for the table
	// being imported.
	SourceExact Source = iota
	// SourceCoreScan means a statement named a core WordPress table and the
	// prefix was recovered from its suffix.
	SourceCoreScan
	// SourceDefault means no signal was found and Default was returned.
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourceExact:
		return "exact"
	case SourceCoreScan:
		return "core-scan"
	default:
		return "default"
	}
}

// Detection is the result of Detect.
type Detection struct {
	Prefix string
	Source Source
}

// Confident reports whether the prefix came from the dump itself.
func (d Detection) Confident() bool {
	return d.Source != SourceDefault
}

// CoreTables are the bare names of the WordPress core tables, longest first
// so that suffix checks prefer the most specific name.
var CoreTables = []string{
	"term_relationships",
	"term_taxonomy",
	"commentmeta",
	"comments",
	"postmeta",
	"usermeta",
	"termmeta",
	"options",
	"posts",
	"terms",
	"users",
	"links",
}

// Detect infers the prefix that sql was exported with. It first looks for a
// CREATE, INSERT, DROP, ALTER or TRUNCATE statement whose table name is a
// non-empty prefix followed by bareTable; the first such statement wins.
// Failing that it takes the first of those statements that names a core
// table as <prefix>_<core>. Otherwise it returns Default. Detect never fails.
func Detect(sql, bareTable string) Detection {
	var scan *Detection
	sc := sqldump.NewScanner(sql)
	for sc.Next() {
		st := sqldump.Classify(sc.Statement())
		if !detectable(st.Verb) || st.Table == "" {
			continue
		}
		if p, ok := cut(st.Table, bareTable); ok {
			return Detection{Prefix: p, Source: SourceExact}
		}
		if scan == nil {
			if p, ok := coreSuffix(st.Table); ok {
				scan = &Detection{Prefix: p, Source: SourceCoreScan}
			}
		}
	}
	if scan != nil {
		return *scan
	}
	return Detection{Prefix: Default, Source: SourceDefault}
}

func detectable(v sqldump.Verb) bool {
	switch v {
	case sqldump.VerbCreateTable, sqldump.VerbInsert, sqldump.VerbDropTable,
		sqldump.VerbAlterTable, sqldump.VerbTruncate:
		return true
	}
	return false
}

// cut returns the non-empty text before bare when name ends with it.
func cut(name, bare string) (string, bool) {
	if bare == "" || len(name) <= len(bare) || !strings.HasSuffix(name, bare) {
		return "", false
	}
	return name[:len(name)-len(bare)], true
}

// coreSuffix recovers "<x>_" from "<x>_<core table>".
func coreSuffix(name string) (string, bool) {
	for _, core := range CoreTables {
		p, ok := cut(name, core)
		if ok && strings.HasSuffix(p, "_") {
			return p, true
		}
	}
	return "", false
}

// Split separates a table name into its prefix and bare name using the
// detected prefix. A name that does not carry the prefix is treated as bare.
func Split(name, prefix string) (string, string) {
	if prefix != "" && len(name) > len(prefix) && strings.HasPrefix(name, prefix) {
		return prefix, name[len(prefix):]
	}
	return "", name
}
