package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/reign-theme/demo-install/internal/model"
)

const (
	maxTableWidth  = 32
	maxReasonWidth = 48
)

// StyledText applies a lipgloss style to text when colors are enabled.
// When colors are disabled, it returns the plain text unchanged.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// ColorFromName maps model color name strings to lipgloss colors.
func ColorFromName(name string) lipgloss.Color {
	switch name {
	case "red":
		return lipgloss.Color("9")
	case "yellow":
		return lipgloss.Color("11")
	case "blue":
		return lipgloss.Color("12")
	case "green":
		return lipgloss.Color("10")
	case "magenta":
		return lipgloss.Color("13")
	case "gray":
		return lipgloss.Color("8")
	default:
		return lipgloss.Color("15")
	}
}

// truncate shortens a string to maxLen runes, appending an ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func outcomeLabel(o model.TableOutcome) string {
	return o.Icon() + " " + string(o)
}

func statusLabel(s model.RunStatus) string {
	return s.Icon() + " " + string(s)
}

// shortID is the first block of a run UUID, enough for prefix lookups.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// EmptyState renders a styled empty-state message with an optional contextual hint.
// When colors are enabled the message is rendered in dim gray and the hint is italic.
// When quiet is true the hint is suppressed.
func EmptyState(message, hint string, quiet bool) string {
	if !ColorsEnabled() {
		if quiet || hint == "" {
			return message
		}
		return message + "\n" + hint
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	result := dimStyle.Render(message)
	if !quiet && hint != "" {
		result += "\n" + hintStyle.Render(hint)
	}
	return result
}

// RenderResult renders the per-table outcome of an import followed by a
// one-line summary.
func RenderResult(res *model.ImportResult) string {
	if res == nil || len(res.Tables) == 0 {
		return EmptyState("No tables imported.", "Check the demo's database directory.", false)
	}
	summary := resultSummary(res)

	if !ColorsEnabled() {
		return renderPlainResult(res) + summary
	}

	headers := []string{"Table", "Class", "Outcome", "Statements", "Skipped rows", "Note"}
	rows := make([][]string, 0, len(res.Tables))
	for _, tr := range res.Tables {
		rows = append(rows, tableResultRow(tr))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if row < 0 || row >= len(res.Tables) {
				return s
			}
			tr := res.Tables[row]
			switch col {
			case 0:
				return s.Bold(true)
			case 1:
				return s.Foreground(ColorFromName(tr.Class.Color()))
			case 2:
				return s.Foreground(ColorFromName(tr.Outcome.Color()))
			case 3, 4:
				return s.Align(lipgloss.Right)
			default:
				return s.Foreground(lipgloss.Color("8"))
			}
		})

	return t.Render() + "\n" + summary
}

func tableResultRow(tr model.TableResult) []string {
	note := tr.Reason
	if tr.Created {
		note = strings.TrimSpace("created " + note)
	}
	if tr.Options > 0 {
		note = strings.TrimSpace(fmt.Sprintf("%d options %s", tr.Options, note))
	}
	return []string{
		truncate(tr.Table, maxTableWidth),
		string(tr.Class),
		outcomeLabel(tr.Outcome),
		humanize.Comma(int64(tr.Statements)),
		humanize.Comma(int64(tr.SkippedRows)),
		truncate(note, maxReasonWidth),
	}
}

func renderPlainResult(res *model.ImportResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-32s %-17s %-11s %10s %12s  %s\n",
		"Table", "Class", "Outcome", "Statements", "Skipped rows", "Note")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 110))

	for _, tr := range res.Tables {
		row := tableResultRow(tr)
		fmt.Fprintf(&b, "%-32s %-17s %-13s %10s %12s  %s\n",
			row[0], row[1], row[2], row[3], row[4], row[5])
	}
	return b.String()
}

func resultSummary(res *model.ImportResult) string {
	line := fmt.Sprintf("%d imported, %d skipped, %d errors in %s (prefix %s -> %s)",
		res.Imported, res.Skipped, len(res.Errors),
		res.Duration.Round(1e6), res.Prefix.Source, res.Prefix.Target)
	if len(res.Healed) > 0 {
		line += fmt.Sprintf(", %d healed", len(res.Healed))
	}
	return line
}

// RenderHistory renders recorded runs, newest first as given.
func RenderHistory(runs []*model.Run) string {
	if len(runs) == 0 {
		return EmptyState("No imports recorded.", "Run one with: reign-demo import <demo>", false)
	}

	if !ColorsEnabled() {
		return renderPlainHistory(runs)
	}

	headers := []string{"ID", "Demo", "Status", "Imported", "Skipped", "Errors", "Admin", "Started", "Took"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, runToRow(r))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if row < 0 || row >= len(runs) {
				return s
			}
			switch col {
			case 0:
				return s.Foreground(lipgloss.Color("15"))
			case 1:
				return s.Bold(true)
			case 2:
				return s.Foreground(ColorFromName(runs[row].Status.Color()))
			case 5:
				if len(runs[row].Errors) > 0 {
					return s.Foreground(ColorFromName("red"))
				}
				return s
			default:
				return s
			}
		})

	return t.Render()
}

func runToRow(r *model.Run) []string {
	return []string{
		shortID(r.ID),
		r.DemoID,
		statusLabel(r.Status),
		strconv.Itoa(r.Imported),
		strconv.Itoa(r.Skipped),
		strconv.Itoa(len(r.Errors)),
		r.Admin,
		humanize.Time(r.StartedAt),
		r.Duration().Round(1e6).String(),
	}
}

func renderPlainHistory(runs []*model.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-10s %-24s %-13s %8s %8s %6s %-15s %s\n",
		"ID", "Demo", "Status", "Imported", "Skipped", "Errors", "Admin", "Started")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 105))

	for _, r := range runs {
		row := runToRow(r)
		fmt.Fprintf(&b, "%-10s %-24s %-15s %8s %8s %6s %-15s %s\n",
			row[0], truncate(row[1], 24), row[2], row[3], row[4], row[5], row[6], row[7])
	}
	return b.String()
}
