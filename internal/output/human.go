package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/reign-theme/demo-install/internal/render"
)

// tone is how one kind of notice looks on a color terminal.
type tone struct {
	icon  string
	label string
	color lipgloss.Color
	bold  bool
	// tint also colors the message, not just the icon and label.
	tint bool
}

var (
	toneSuccess = tone{icon: "✔", color: "2"}
	toneInfo    = tone{icon: "ℹ", color: "8", tint: true}
	toneWarn    = tone{icon: "⚠", label: "Warning:", color: "3", bold: true}
	toneError   = tone{icon: "✘", label: "Error:", color: "1", bold: true}
)

// hints suggest the next thing to try after an error of a given code.
var hints = map[ErrorCode]string{
	ErrUnavailable: "check db.dsn in your config and that MySQL is reachable",
	ErrPartial:     "run 'reign-demo history show <run-id>' for the per-table results",
	ErrForbidden:   "pass --admin with the login of an administrator",
}

// notice writes one line to w. Without colors only the label is kept.
func notice(w io.Writer, t tone, msg string) {
	if !render.ColorsEnabled() {
		if t.label != "" {
			msg = t.label + " " + msg
		}
		fmt.Fprintln(w, msg)
		return
	}
	style := lipgloss.NewStyle().Foreground(t.color).Bold(t.bold)
	parts := []string{style.Render(t.icon)}
	if t.label != "" {
		parts = append(parts, style.Render(t.label))
	}
	if t.tint {
		msg = style.Render(msg)
	}
	fmt.Fprintln(w, strings.Join(append(parts, msg), " "))
}

// writeHumanSuccess prints message. Rendered tables and reports span several
// lines and are printed as they are; a one-line message gets a checkmark.
func writeHumanSuccess(w io.Writer, message string) {
	switch {
	case message == "":
	case strings.Contains(message, "\n"):
		fmt.Fprintln(w, message)
	default:
		notice(w, toneSuccess, message)
	}
}

// writeHumanError prints err and, when one is known for code, a hint.
func writeHumanError(w io.Writer, err error, code ErrorCode) {
	notice(w, toneError, err.Error())
	if hint, ok := hints[code]; ok {
		fmt.Fprintf(w, "  hint: %s\n", hint)
	}
}
