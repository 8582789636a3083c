package render

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/reign-theme/demo-install/internal/model"
)

// RenderRun renders a full view of one recorded run: header, metadata, the
// per-table outcomes and any errors.
func RenderRun(run *model.Run) string {
	if !ColorsEnabled() {
		return renderPlainRun(run)
	}

	sections := []string{renderRunHeader(run), renderRunMetadata(run)}
	if len(run.Tables) > 0 {
		sections = append(sections, renderRunTables(run.Tables))
	}
	if len(run.Errors) > 0 {
		sections = append(sections, renderRunErrors(run.Errors))
	}
	return strings.Join(sections, "\n\n")
}

func renderRunHeader(run *model.Run) string {
	idStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	demoStyle := lipgloss.NewStyle().Bold(true)
	statusStyle := lipgloss.NewStyle().
		Foreground(ColorFromName(run.Status.Color())).
		Bold(true)

	return fmt.Sprintf("%s  %s\n%s",
		idStyle.Render(run.ID),
		demoStyle.Render(run.DemoID),
		statusStyle.Render(statusLabel(run.Status)),
	)
}

func renderRunMetadata(run *model.Run) string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(10)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	var lines []string
	for _, kv := range runMetadata(run) {
		lines = append(lines, labelStyle.Render(kv[0])+" "+valueStyle.Render(kv[1]))
	}
	return strings.Join(lines, "\n")
}

func runMetadata(run *model.Run) [][2]string {
	return [][2]string{
		{"Admin", run.Admin},
		{"Prefix", run.SourcePrefix + " -> " + run.TargetPrefix},
		{"Imported", fmt.Sprintf("%d tables", run.Imported)},
		{"Skipped", fmt.Sprintf("%d tables", run.Skipped)},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05") + " (" + humanize.Time(run.StartedAt) + ")"},
		{"Took", run.Duration().Round(1e6).String()},
	}
}

func renderRunTables(tables []model.TableResult) string {
	heading := lipgloss.NewStyle().Bold(true).Render("Tables")
	t := tree.New().Root(heading)
	for _, tr := range tables {
		style := lipgloss.NewStyle().Foreground(ColorFromName(tr.Outcome.Color()))
		line := fmt.Sprintf("%s %s", style.Render(tr.Outcome.Icon()), tr.Table)
		if tr.Reason != "" {
			line += lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(" " + truncate(tr.Reason, maxReasonWidth))
		}
		node := tree.Root(line)
		for _, e := range tr.Errors {
			node.Child(truncate(e, 100))
		}
		t.Child(node)
	}
	return t.String()
}

func renderRunErrors(errs []string) string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(ColorFromName("red")).Render(fmt.Sprintf("Errors (%d)", len(errs)))
	lines := []string{heading}
	for _, e := range errs {
		lines = append(lines, "  "+e)
	}
	return strings.Join(lines, "\n")
}

func renderPlainRun(run *model.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", run.ID, run.DemoID)
	fmt.Fprintf(&b, "%s\n\n", statusLabel(run.Status))
	for _, kv := range runMetadata(run) {
		fmt.Fprintf(&b, "%-10s %s\n", kv[0], kv[1])
	}
	if len(run.Tables) > 0 {
		b.WriteString("\nTables\n")
		for _, tr := range run.Tables {
			fmt.Fprintf(&b, "  %s %s", tr.Outcome.Icon(), tr.Table)
			if tr.Reason != "" {
				fmt.Fprintf(&b, " (%s)", truncate(tr.Reason, maxReasonWidth))
			}
			b.WriteString("\n")
			for _, e := range tr.Errors {
				fmt.Fprintf(&b, "      %s\n", e)
			}
		}
	}
	if len(run.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors (%d)\n", len(run.Errors))
		for _, e := range run.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	return b.String()
}
