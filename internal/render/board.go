package render

import (
	"fmt"
	"os"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/reign-theme/demo-install/internal/model"
)

const (
	maxCardsPerColumn = 10
	minColumnWidth    = 24
	defaultTermWidth  = 100
	cardPadding       = 2 // left+right padding inside cards
)

// StatusOrder defines the left-to-right column order for the board.
var StatusOrder = []model.RunStatus{
	model.RunSucceeded,
	model.RunPartial,
	model.RunFailed,
}

// RenderBoard renders recorded runs in one column per status.
func RenderBoard(runs []*model.Run) string {
	if len(runs) == 0 {
		return EmptyState("No imports recorded.", "Run one with: reign-demo import <demo>", false)
	}

	if !ColorsEnabled() {
		return renderPlainBoard(runs)
	}
	return renderColorBoard(runs)
}

// terminalWidth returns the current terminal width, falling back to a default.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultTermWidth
	}
	return w
}

func groupByStatus(runs []*model.Run) map[model.RunStatus][]*model.Run {
	groups := make(map[model.RunStatus][]*model.Run)
	for _, r := range runs {
		groups[r.Status] = append(groups[r.Status], r)
	}
	return groups
}

func activeStatuses(groups map[model.RunStatus][]*model.Run) []model.RunStatus {
	var active []model.RunStatus
	for _, s := range StatusOrder {
		if len(groups[s]) > 0 {
			active = append(active, s)
		}
	}
	return active
}

func renderColorBoard(runs []*model.Run) string {
	groups := groupByStatus(runs)
	active := activeStatuses(groups)
	if len(active) == 0 {
		return ""
	}

	tw := terminalWidth()
	gaps := len(active) - 1
	colWidth := (tw - gaps) / len(active)
	if colWidth < minColumnWidth {
		colWidth = minColumnWidth
	}
	cardContentWidth := max(colWidth-cardPadding-2, 5)

	columns := make([]string, 0, len(active))
	for _, status := range active {
		columns = append(columns, renderColorColumn(status, groups[status], colWidth, cardContentWidth))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func renderColorColumn(status model.RunStatus, runs []*model.Run, colWidth, contentWidth int) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorFromName(status.Color())).
		Width(colWidth).
		Align(lipgloss.Center)
	header := headerStyle.Render(fmt.Sprintf("%s %s (%d)", status.Icon(), strings.ToUpper(string(status)), len(runs)))

	visible, overflow := runs, 0
	if len(runs) > maxCardsPerColumn {
		visible = runs[:maxCardsPerColumn]
		overflow = len(runs) - maxCardsPerColumn
	}

	cards := make([]string, 0, len(visible)+2)
	cards = append(cards, header)
	for _, r := range visible {
		cards = append(cards, renderColorCard(r, colWidth, contentWidth))
	}
	if overflow > 0 {
		moreStyle := lipgloss.NewStyle().
			Width(colWidth).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("8"))
		cards = append(cards, moreStyle.Render(fmt.Sprintf("+%d more", overflow)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func renderColorCard(r *model.Run, colWidth, contentWidth int) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	lines := []string{
		fmt.Sprintf("%s %s", shortID(r.ID), dim.Render(humanize.Time(r.StartedAt))),
		lipgloss.NewStyle().Bold(true).Render(truncate(r.DemoID, contentWidth)),
		truncate(cardCounts(r), contentWidth),
	}

	cardStyle := lipgloss.NewStyle().
		Width(colWidth-2).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorFromName(r.Status.Color()))
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func cardCounts(r *model.Run) string {
	s := fmt.Sprintf("%d imported, %d skipped", r.Imported, r.Skipped)
	if len(r.Errors) > 0 {
		s += fmt.Sprintf(", %d errors", len(r.Errors))
	}
	return s
}

// --- Plain text fallback ---

func renderPlainBoard(runs []*model.Run) string {
	groups := groupByStatus(runs)
	active := activeStatuses(groups)

	var b strings.Builder
	for i, status := range active {
		if i > 0 {
			b.WriteString("\n")
		}
		col := groups[status]
		fmt.Fprintf(&b, "=== %s %s (%d) ===\n", status.Icon(), strings.ToUpper(string(status)), len(col))

		visible, overflow := col, 0
		if len(col) > maxCardsPerColumn {
			visible = col[:maxCardsPerColumn]
			overflow = len(col) - maxCardsPerColumn
		}
		for _, r := range visible {
			fmt.Fprintf(&b, "  %s %s\n", shortID(r.ID), r.DemoID)
			fmt.Fprintf(&b, "  %s\n\n", cardCounts(r))
		}
		if overflow > 0 {
			fmt.Fprintf(&b, "  +%d more\n", overflow)
		}
	}
	return b.String()
}
