// Package output writes command results either as JSON envelopes or as
// human-readable text.
package output

import (
	"fmt"
	"io"
	"os"
)

// Writer dispatches command output between the JSON envelope and
// human-readable text. Results go to Stdout, diagnostics to Stderr.
type Writer struct {
	JSONMode  bool
	QuietMode bool
	Stdout    io.Writer
	Stderr    io.Writer
}

// New creates a Writer on os.Stdout and os.Stderr.
func New(jsonMode, quietMode bool) *Writer {
	return &Writer{
		JSONMode:  jsonMode,
		QuietMode: quietMode,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Success writes data as a success envelope in JSON mode, and message
// otherwise.
func (w *Writer) Success(data any, message string) {
	if w.JSONMode {
		_ = Succeeded(data, message).Encode(w.Stdout)
		return
	}
	writeHumanSuccess(w.Stdout, message)
}

// Error writes err and returns the exit code for code.
func (w *Writer) Error(err error, code ErrorCode) int {
	return w.ErrorWithData(err, code, nil)
}

// ErrorWithData writes err together with what was produced before it. JSON
// mode puts data in the envelope; human mode prints the rendered messages
// (usually a result table) before the error.
func (w *Writer) ErrorWithData(err error, code ErrorCode, data any, message ...string) int {
	if w.JSONMode {
		_ = Failed(err, code, data).Encode(w.Stdout)
		return ExitCodeForError(code)
	}
	for _, m := range message {
		if m != "" {
			fmt.Fprintln(w.Stdout, m)
		}
	}
	writeHumanError(w.Stderr, err, code)
	return ExitCodeForError(code)
}

// Info writes a progress note to Stderr, unless quiet or in JSON mode.
func (w *Writer) Info(format string, args ...any) {
	if w.QuietMode || w.JSONMode {
		return
	}
	notice(w.Stderr, toneInfo, fmt.Sprintf(format, args...))
}

// Warn writes a warning to Stderr. Quiet mode keeps warnings; JSON mode
// drops them since the envelope is the only output.
func (w *Writer) Warn(format string, args ...any) {
	if w.JSONMode {
		return
	}
	notice(w.Stderr, toneWarn, fmt.Sprintf(format, args...))
}
