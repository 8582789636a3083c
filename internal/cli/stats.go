package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/render"
)

type demoStat struct {
	Demo  string `json:"demo"`
	Count int    `json:"count"`
}

type statsResult struct {
	Total        int                     `json:"total"`
	ByStatus     map[string]int          `json:"by_status"`
	Demos        []demoStat              `json:"demos"`
	FailedTables []journal.TableFailures `json:"failed_tables"`
}

const maxFailedTables = 10

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary statistics for recorded imports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		conn := getJournal(cmd)

		total, err := journal.CountRuns(conn)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		byStatus, err := journal.CountByStatus(conn)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		byDemo, err := journal.CountByDemo(conn)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		failed, err := journal.FailedTables(conn, maxFailedTables)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		demos := make([]demoStat, 0, len(byDemo))
		for d, n := range byDemo {
			demos = append(demos, demoStat{Demo: d, Count: n})
		}
		sort.Slice(demos, func(i, j int) bool {
			if demos[i].Count != demos[j].Count {
				return demos[i].Count > demos[j].Count
			}
			return demos[i].Demo < demos[j].Demo
		})
		if failed == nil {
			failed = []journal.TableFailures{}
		}

		result := statsResult{Total: total, ByStatus: byStatus, Demos: demos, FailedTables: failed}

		var message string
		if !w.JSONMode {
			message = renderStats(result)
		}
		w.Success(result, message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// renderStats renders the stats result as a styled human-readable string.
func renderStats(s statsResult) string {
	if !render.ColorsEnabled() {
		return renderPlainStats(s)
	}

	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle := lipgloss.NewStyle().Bold(true)

	var sections []string

	sections = append(sections, strings.Join([]string{
		sectionStyle.Render("Overview"),
		fmt.Sprintf("  %s %s", labelStyle.Render("Total runs:"), valueStyle.Render(fmt.Sprintf("%d", s.Total))),
	}, "\n"))

	statusLines := []string{sectionStyle.Render("By Status")}
	for _, status := range render.StatusOrder {
		count := s.ByStatus[string(status)]
		countStyle := lipgloss.NewStyle().Bold(true).Foreground(render.ColorFromName(status.Color()))
		statusLines = append(statusLines,
			fmt.Sprintf("  %s %s", labelStyle.Render(fmt.Sprintf("%-14s", string(status)+":")), countStyle.Render(fmt.Sprintf("%d", count))),
		)
	}
	sections = append(sections, strings.Join(statusLines, "\n"))

	demoLines := []string{sectionStyle.Render("Demos")}
	if len(s.Demos) == 0 {
		demoLines = append(demoLines, "  "+labelStyle.Render("(none)"))
	}
	for _, d := range s.Demos {
		demoLines = append(demoLines,
			fmt.Sprintf("  %s %s", labelStyle.Render(fmt.Sprintf("%-24s", d.Demo+":")), valueStyle.Render(fmt.Sprintf("%d", d.Count))),
		)
	}
	sections = append(sections, strings.Join(demoLines, "\n"))

	failStyle := lipgloss.NewStyle().Bold(true).Foreground(render.ColorFromName("red"))
	failLines := []string{sectionStyle.Render("Most Failed Tables")}
	if len(s.FailedTables) == 0 {
		failLines = append(failLines, "  "+labelStyle.Render("(none)"))
	}
	for _, f := range s.FailedTables {
		failLines = append(failLines,
			fmt.Sprintf("  %s %s", labelStyle.Render(fmt.Sprintf("%-32s", f.Table+":")), failStyle.Render(fmt.Sprintf("%d", f.Count))),
		)
	}
	sections = append(sections, strings.Join(failLines, "\n"))

	return strings.Join(sections, "\n\n")
}

// renderPlainStats renders the stats result as plain text without styling.
func renderPlainStats(s statsResult) string {
	var b strings.Builder

	b.WriteString("Overview\n")
	fmt.Fprintf(&b, "  Total runs:    %d\n", s.Total)

	b.WriteString("\nBy Status\n")
	for _, status := range render.StatusOrder {
		fmt.Fprintf(&b, "  %-14s %d\n", string(status)+":", s.ByStatus[string(status)])
	}

	b.WriteString("\nDemos\n")
	if len(s.Demos) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, d := range s.Demos {
		fmt.Fprintf(&b, "  %-24s %d\n", d.Demo+":", d.Count)
	}

	b.WriteString("\nMost Failed Tables\n")
	if len(s.FailedTables) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, f := range s.FailedTables {
		fmt.Fprintf(&b, "  %-32s %d\n", f.Table+":", f.Count)
	}

	return b.String()
}
