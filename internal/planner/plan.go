// Package planner orders the dump files of a demo package that ships
// without an import-order manifest.
package planner

import "github.com/reign-theme/demo-install/internal/model"

// Phase is a group of tables with no dependencies on each other.
type Phase struct {
	Number int
	Files  []model.DumpFile
}

// Plan is the dependency-safe import order.
type Plan struct {
	Phases      []Phase
	TotalTables int
}

// Files flattens the plan into import order.
func (p *Plan) Files() []model.DumpFile {
	out := make([]model.DumpFile, 0, p.TotalTables)
	for _, ph := range p.Phases {
		out = append(out, ph.Files...)
	}
	return out
}

// GeneratePlan builds the import plan for files: options first, then the
// tables that reference them, then plugin tables. Ties within a phase are
// broken by stem.
func GeneratePlan(files []model.DumpFile) (*Plan, error) {
	dag := BuildDAG(files)
	levels, err := TopoSort(dag)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	for _, level := range levels {
		phase := Phase{Number: len(plan.Phases) + 1}
		for _, stem := range level {
			phase.Files = append(phase.Files, dag.Nodes[stem].File)
		}
		plan.Phases = append(plan.Phases, phase)
		plan.TotalTables += len(phase.Files)
	}
	return plan, nil
}
