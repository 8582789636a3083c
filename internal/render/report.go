package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/reign-theme/demo-install/internal/verify"
)

func checkLabel(c verify.Check) (icon, color string) {
	switch {
	case c.Passed:
		return "✔", "green"
	case c.Critical:
		return "✘", "red"
	default:
		return "⚠", "yellow"
	}
}

func reportSummary(r *verify.Report) string {
	passed, failed, warnings := r.Counts()
	verdict := "all critical checks passed"
	if !r.Passed {
		verdict = "critical checks failed"
	}
	return fmt.Sprintf("%d passed, %d failed, %d warnings: %s", passed, failed, warnings, verdict)
}

// RenderReport renders verification checks as a table.
func RenderReport(r *verify.Report) string {
	if !ColorsEnabled() {
		var b strings.Builder
		for _, c := range r.Checks {
			icon, _ := checkLabel(c)
			fmt.Fprintf(&b, "%s %-22s %s\n", icon, c.Title, c.Detail)
		}
		return b.String() + reportSummary(r)
	}

	rows := make([][]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		icon, _ := checkLabel(c)
		rows = append(rows, []string{icon, c.Title, truncate(c.Detail, 60)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("", "Check", "Detail").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if row < 0 || row >= len(r.Checks) {
				return s
			}
			_, color := checkLabel(r.Checks[row])
			switch col {
			case 0:
				return s.Foreground(ColorFromName(color))
			case 1:
				return s.Bold(true)
			default:
				return s
			}
		})
	return t.Render() + "\n" + reportSummary(r)
}

// ReportMarkdown writes a verification report as markdown, one section for
// critical checks and one for warnings.
func ReportMarkdown(r *verify.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Import verification\n\nAdministrator: **%s**\n\n", r.Admin.String())

	section := func(title string, critical bool) {
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, c := range r.Checks {
			if c.Critical != critical {
				continue
			}
			mark := "x"
			if !c.Passed {
				mark = " "
			}
			fmt.Fprintf(&b, "- [%s] **%s**: %s\n", mark, c.Title, c.Detail)
		}
		b.WriteString("\n")
	}
	section("Critical checks", true)
	section("Content checks", false)

	fmt.Fprintf(&b, "> %s\n", reportSummary(r))
	return b.String()
}
