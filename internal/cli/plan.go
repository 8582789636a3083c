package cli

import (
	"fmt"
	"sort"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/reign-theme/demo-install/internal/demo"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/planner"
	"github.com/reign-theme/demo-install/internal/render"
)

// planPhaseJSON is the JSON wire format for a single import phase.
type planPhaseJSON struct {
	Phase int              `json:"phase"`
	Files []model.DumpFile `json:"files"`
}

// planResult is the JSON wire format for the plan command output.
type planResult struct {
	Demo        string          `json:"demo"`
	Source      string          `json:"source"`
	Phases      []planPhaseJSON `json:"phases"`
	Missing     []string        `json:"missing,omitempty"`
	TotalTables int             `json:"total_tables"`
	TotalBytes  int64           `json:"total_bytes"`
}

const (
	planFromManifest     = "manifest"
	planFromDependencies = "dependencies"
)

var planCmd = &cobra.Command{
	Use:         "plan <demo>",
	Short:       "Show the order a demo's tables will be imported in",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"skipJournal": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)

		pkg, err := openDemo(cmd, args[0])
		if err != nil {
			return err
		}

		plan, dag, err := packagePlan(pkg)
		if err != nil {
			return cmdErr(fmt.Errorf("ordering tables: %w", err), output.ErrConflict)
		}

		result := planResult{
			Demo:        pkg.ID,
			Source:      planFromManifest,
			Missing:     pkg.Missing,
			TotalTables: plan.TotalTables,
		}
		if dag != nil {
			result.Source = planFromDependencies
		}
		for _, phase := range plan.Phases {
			result.Phases = append(result.Phases, planPhaseJSON{Phase: phase.Number, Files: phase.Files})
			for _, f := range phase.Files {
				result.TotalBytes += f.Size
			}
		}

		jsonMode, _ := cmd.Flags().GetBool("json")
		var message string
		if !jsonMode {
			message = renderPlanHuman(result, dag)
		}
		w.Success(result, message)
		return nil
	},
}

// packagePlan returns the manifest order as a single phase, or the
// dependency phases with their graph when the package has no manifest.
func packagePlan(pkg *demo.Package) (*planner.Plan, *planner.DAG, error) {
	if pkg.Order != nil {
		return &planner.Plan{
			Phases:      []planner.Phase{{Number: 1, Files: pkg.Files}},
			TotalTables: len(pkg.Files),
		}, nil, nil
	}
	plan, err := planner.GeneratePlan(pkg.Files)
	if err != nil {
		return nil, nil, err
	}
	return plan, planner.BuildDAG(pkg.Files), nil
}

func phaseTitle(res planResult, number int) string {
	switch {
	case res.Source == planFromManifest:
		return "Import order (from import-order.json):"
	case number == 1:
		return fmt.Sprintf("Phase %d (start):", number)
	default:
		return fmt.Sprintf("Phase %d (after Phase %d):", number, number-1)
	}
}

func fileSize(f model.DumpFile) string {
	s := humanize.Bytes(uint64(f.Size))
	if f.Compressed {
		s += " gz"
	}
	return s
}

// renderPlanHuman renders the import plan as human-readable text.
func renderPlanHuman(res planResult, dag *planner.DAG) string {
	if res.TotalTables == 0 {
		return render.EmptyState("No tables to import.", "Check the demo's database directory.", false)
	}

	if !render.ColorsEnabled() {
		return renderPlanPlain(res, dag)
	}

	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	phaseStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	stemStyle := lipgloss.NewStyle().Bold(true)
	sizeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	depStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	separatorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boldMetric := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	b.WriteString(headerStyle.Render("Import Plan: " + res.Demo))
	b.WriteString("\n")

	for i, phase := range res.Phases {
		if i > 0 {
			b.WriteString(separatorStyle.Render("  ────────────────────────────────"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(phaseStyle.Render(phaseTitle(res, phase.Phase)))
		b.WriteString("\n")

		for _, f := range phase.Files {
			line := fmt.Sprintf("  %s %s", stemStyle.Render(fmt.Sprintf("%-32s", f.Stem)), sizeStyle.Render(fmt.Sprintf("%10s", fileSize(f))))
			if deps := collectDeps(f.Stem, dag); deps != "" {
				line += "  " + depStyle.Render("("+deps+")")
			}
			b.WriteString(line + "\n")
		}
	}

	if len(res.Missing) > 0 {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(render.ColorFromName("yellow")).Render(
			fmt.Sprintf("Missing dump files: %s", strings.Join(res.Missing, ", "))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Summary: %s tables, %s phases, %s",
		boldMetric.Render(fmt.Sprintf("%d", res.TotalTables)),
		boldMetric.Render(fmt.Sprintf("%d", len(res.Phases))),
		boldMetric.Render(humanize.Bytes(uint64(res.TotalBytes))),
	)
	return b.String()
}

// renderPlanPlain renders the import plan without colors.
func renderPlanPlain(res planResult, dag *planner.DAG) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Import Plan: %s\n", res.Demo)

	for _, phase := range res.Phases {
		b.WriteString("\n")
		b.WriteString(phaseTitle(res, phase.Phase) + "\n")

		for _, f := range phase.Files {
			fmt.Fprintf(&b, "  %-32s %10s", f.Stem, fileSize(f))
			if deps := collectDeps(f.Stem, dag); deps != "" {
				fmt.Fprintf(&b, "  (%s)", deps)
			}
			b.WriteString("\n")
		}
	}

	if len(res.Missing) > 0 {
		fmt.Fprintf(&b, "\nMissing dump files: %s\n", strings.Join(res.Missing, ", "))
	}

	fmt.Fprintf(&b, "\nSummary: %d tables, %d phases, %s",
		res.TotalTables, len(res.Phases), humanize.Bytes(uint64(res.TotalBytes)))
	return b.String()
}

// collectDeps describes what a table waits for. Plugin tables wait for every
// core table, so they are summarised.
func collectDeps(stem string, dag *planner.DAG) string {
	if dag == nil {
		return ""
	}
	node, ok := dag.Nodes[stem]
	if !ok || len(node.Reverse) == 0 {
		return ""
	}
	if node.Core == "" {
		return "after core tables"
	}
	deps := make([]string, 0, len(node.Reverse))
	for dep := range node.Reverse {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return "depends on " + strings.Join(deps, ", ")
}

func init() {
	rootCmd.AddCommand(planCmd)
}
