package planner

import (
	"strings"

	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/prefix"
)

// coreDeps lists, for each core table, the core tables whose rows it
// references. Only edges between tables present in the package are used.
var coreDeps = map[string][]string{
	"users":              {"options"},
	"terms":              {"options"},
	"links":              {"options"},
	"usermeta":           {"users"},
	"posts":              {"users"},
	"termmeta":           {"terms"},
	"term_taxonomy":      {"terms"},
	"term_relationships": {"term_taxonomy", "posts", "links"},
	"postmeta":           {"posts"},
	"comments":           {"posts", "users"},
	"commentmeta":        {"comments"},
}

// Node wraps a dump file with forward and reverse dependency edges.
// Forward edges point from a table to the tables that reference it;
// reverse edges point back to the tables it references.
type Node struct {
	File    model.DumpFile
	Core    string // bare core table name, empty for plugin tables
	Forward map[string]struct{}
	Reverse map[string]struct{}
}

// DAG holds the dependency graph between the dump files of one package,
// keyed by file stem.
type DAG struct {
	Nodes map[string]*Node
}

// CoreName returns the bare WordPress core table a stem refers to, whether
// the stem is bare ("posts") or carries a prefix ("wp_posts").
func CoreName(stem string) (string, bool) {
	for _, core := range prefix.CoreTables {
		if stem == core || strings.HasSuffix(stem, "_"+core) {
			return core, true
		}
	}
	return "", false
}

// BuildDAG constructs the graph for files. Core tables are linked by
// coreDeps; every plugin table depends on every core table present, so
// plugin tables always come last.
func BuildDAG(files []model.DumpFile) *DAG {
	dag := &DAG{Nodes: make(map[string]*Node, len(files))}
	byCore := make(map[string]string)

	for _, f := range files {
		node := &Node{
			File:    f,
			Forward: make(map[string]struct{}),
			Reverse: make(map[string]struct{}),
		}
		if core, ok := CoreName(f.Stem); ok {
			node.Core = core
			if _, dup := byCore[core]; !dup {
				byCore[core] = f.Stem
			}
		}
		dag.Nodes[f.Stem] = node
	}

	for stem, node := range dag.Nodes {
		if node.Core == "" {
			for _, coreStem := range byCore {
				dag.link(coreStem, stem)
			}
			continue
		}
		for _, dep := range coreDeps[node.Core] {
			if depStem, ok := byCore[dep]; ok && depStem != stem {
				dag.link(depStem, stem)
			}
		}
	}

	return dag
}

// link adds an edge meaning "to depends on from".
func (d *DAG) link(from, to string) {
	d.Nodes[from].Forward[to] = struct{}{}
	d.Nodes[to].Reverse[from] = struct{}{}
}
