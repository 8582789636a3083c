package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/render"
)

// exportData is the JSON export document.
type exportData struct {
	Version    int          `json:"version"`
	ExportedAt string       `json:"exported_at"`
	Runs       []*model.Run `json:"runs"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export import history to JSON, CSV, or Markdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn := getJournal(cmd)

		format, _ := cmd.Flags().GetString("format")
		filePath, _ := cmd.Flags().GetString("file")
		statuses, _ := cmd.Flags().GetStringSlice("status")
		demoID, _ := cmd.Flags().GetString("demo")

		switch format {
		case "json", "csv", "markdown":
		default:
			return cmdErr(
				fmt.Errorf("invalid format %q: must be one of json, csv, markdown", format),
				output.ErrValidation,
			)
		}

		opts := journal.ListOptions{DemoID: demoID}
		for _, s := range statuses {
			if err := model.ValidateRunStatus(model.RunStatus(s)); err != nil {
				return cmdErr(err, output.ErrValidation)
			}
			opts.Status = append(opts.Status, model.RunStatus(s))
		}

		runs, err := journal.ListRuns(conn, opts)
		if err != nil {
			return cmdErr(fmt.Errorf("fetching runs: %w", err), output.ErrGeneral)
		}
		// Table results are only loaded per run.
		for i, r := range runs {
			full, err := journal.GetRun(conn, r.ID)
			if err != nil {
				return cmdErr(fmt.Errorf("fetching run %s: %w", r.ID, err), output.ErrGeneral)
			}
			runs[i] = full
		}
		if runs == nil {
			runs = []*model.Run{}
		}

		var raw string
		switch format {
		case "json":
			raw, err = renderExportJSON(exportData{
				Version:    1,
				ExportedAt: time.Now().UTC().Format(time.RFC3339),
				Runs:       runs,
			})
		case "csv":
			raw, err = renderExportCSV(runs)
		case "markdown":
			raw = renderExportMarkdown(runs)
		}
		if err != nil {
			return cmdErr(fmt.Errorf("rendering export: %w", err), output.ErrGeneral)
		}

		if filePath != "" {
			if err := os.WriteFile(filePath, []byte(raw), 0o644); err != nil {
				return cmdErr(fmt.Errorf("writing file: %w", err), output.ErrGeneral)
			}
			getWriter(cmd).Info("Exported %d run(s) to %s", len(runs), filePath)
			return nil
		}

		fmt.Fprint(os.Stdout, raw)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("format", "o", "json", "Export format: json, csv, markdown")
	exportCmd.Flags().StringP("file", "f", "", "Output file path (default: stdout)")
	exportCmd.Flags().StringSliceP("status", "s", nil, "Filter by status (repeatable)")
	exportCmd.Flags().StringP("demo", "d", "", "Filter by demo")
	rootCmd.AddCommand(exportCmd)
}

// renderExportJSON produces a pretty-printed JSON string of the export data.
func renderExportJSON(data exportData) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// renderExportCSV produces a CSV string with a header row and one row per run.
func renderExportCSV(runs []*model.Run) (string, error) {
	var buf strings.Builder
	cw := csv.NewWriter(&buf)

	header := []string{"id", "demo", "status", "admin", "source_prefix", "target_prefix", "imported", "skipped", "errors", "started_at", "duration_ms"}
	if err := cw.Write(header); err != nil {
		return "", err
	}

	for _, r := range runs {
		row := []string{
			r.ID,
			r.DemoID,
			string(r.Status),
			r.Admin,
			r.SourcePrefix,
			r.TargetPrefix,
			strconv.Itoa(r.Imported),
			strconv.Itoa(r.Skipped),
			// Use ";" since messages often contain commas.
			strings.Join(r.Errors, ";"),
			r.StartedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(r.Duration().Milliseconds(), 10),
		}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// escapeMarkdown replaces characters that have special meaning in Markdown so
// that table names and error text can be embedded safely.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`#`, `\#`,
		`*`, `\*`,
		`_`, `\_`,
		`[`, `\[`,
		`]`, `\]`,
		`<`, `\<`,
		`>`, `\>`,
		"`", "\\`",
		`|`, `\|`,
	)
	return r.Replace(s)
}

// renderExportMarkdown produces a Markdown string grouping runs by status.
func renderExportMarkdown(runs []*model.Run) string {
	grouped := make(map[model.RunStatus][]*model.Run)
	for _, r := range runs {
		grouped[r.Status] = append(grouped[r.Status], r)
	}

	var buf strings.Builder
	buf.WriteString("# Demo Import History\n\n")

	for _, status := range render.StatusOrder {
		group := grouped[status]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "## %s\n\n", string(status))

		for _, r := range group {
			fmt.Fprintf(&buf, "### %s: %s\n\n", shortRunID(r.ID), escapeMarkdown(r.DemoID))
			fmt.Fprintf(&buf, "- **Started:** %s\n", r.StartedAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(&buf, "- **Admin:** %s\n", escapeMarkdown(r.Admin))
			fmt.Fprintf(&buf, "- **Prefix:** %s -> %s\n", escapeMarkdown(r.SourcePrefix), escapeMarkdown(r.TargetPrefix))
			fmt.Fprintf(&buf, "- **Tables:** %d imported, %d skipped\n", r.Imported, r.Skipped)
			buf.WriteString("\n")

			if len(r.Errors) > 0 {
				buf.WriteString("**Errors:**\n\n")
				for _, e := range r.Errors {
					fmt.Fprintf(&buf, "> %s\n\n", escapeMarkdown(e))
				}
			}
		}
	}
	return buf.String()
}

func shortRunID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
