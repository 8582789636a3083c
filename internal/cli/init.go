package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/reign-theme/demo-install/internal/config"
	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/render"
)

type initResult struct {
	ConfigFile    string `json:"config_file"`
	ConfigCreated bool   `json:"config_created"`
	JournalPath   string `json:"journal_path"`
	SchemaVersion int    `json:"schema_version"`
}

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a starter config file and create the import journal",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"skipJournal": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		res := initResult{ConfigFile: config.DefaultFile, JournalPath: cfg.Journal.Path}
		if cfg.File != "" {
			res.ConfigFile = cfg.File
			w.Warn("Config already exists at %s", cfg.File)
		} else {
			if err := config.WriteDefault(config.DefaultFile); err != nil {
				return cmdErr(err, output.ErrConflict)
			}
			res.ConfigCreated = true
		}

		conn, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return cmdErr(fmt.Errorf("opening journal: %w", err), output.ErrGeneral)
		}
		defer conn.Close()

		res.SchemaVersion, err = journal.SchemaVersion(conn)
		if err != nil {
			return cmdErr(fmt.Errorf("reading schema version: %w", err), output.ErrGeneral)
		}

		successMsg := render.StyledText("Initialized reign-demo", lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")))
		w.Success(res, successMsg)

		if res.ConfigCreated {
			w.Info("Config written to %s; set db.dsn before importing", res.ConfigFile)
		}
		w.Info("Import history kept in %s", cfg.Journal.Path)
		w.Info("Consider adding %s/ to your .gitignore", cfg.JournalDir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
