package cli

import (
	"fmt"
	"os"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/render"
)

type configInfo struct {
	ConfigFile       string `json:"config_file"`
	DSN              string `json:"dsn"`
	TablePrefix      string `json:"table_prefix"`
	HomeURL          string `json:"home_url"`
	DemosDir         string `json:"demos_dir"`
	ThemeDir         string `json:"theme_dir"`
	ThemeHint        string `json:"theme_hint"`
	AdminLogin       string `json:"admin_login"`
	JournalPath      string `json:"journal_path"`
	JournalSizeBytes int64  `json:"journal_size_bytes"`
	SchemaVersion    int    `json:"schema_version"`
	ServerAddr       string `json:"server_addr"`
	RateLimit        int    `json:"rate_limit"`
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Display resolved configuration",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"skipJournal": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		info := configInfo{
			ConfigFile:  cfg.File,
			DSN:         cfg.Redacted(),
			TablePrefix: cfg.DB.Prefix,
			HomeURL:     cfg.Site.HomeURL,
			DemosDir:    cfg.Demos.Dir,
			ThemeDir:    cfg.Theme.Dir,
			ThemeHint:   cfg.Theme.Hint,
			AdminLogin:  cfg.Admin.Login,
			JournalPath: cfg.Journal.Path,
			ServerAddr:  cfg.Server.Addr,
			RateLimit:   cfg.Server.RateLimit,
		}

		exists, err := cfg.JournalExists()
		if err != nil {
			return cmdErr(fmt.Errorf("checking journal: %w", err), output.ErrGeneral)
		}
		if !exists {
			w.Warn("No import history yet at %s.", cfg.Journal.Path)
			w.Success(info, formatConfigHuman(info, true))
			return nil
		}

		conn, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return cmdErr(fmt.Errorf("opening journal: %w", err), output.ErrGeneral)
		}
		defer conn.Close()

		info.SchemaVersion, err = journal.SchemaVersion(conn)
		if err != nil {
			return cmdErr(fmt.Errorf("reading schema version: %w", err), output.ErrGeneral)
		}
		stat, err := os.Stat(cfg.Journal.Path)
		if err != nil {
			return cmdErr(fmt.Errorf("reading journal file: %w", err), output.ErrGeneral)
		}
		info.JournalSizeBytes = stat.Size()

		w.Success(info, formatConfigHuman(info, false))
		return nil
	},
}

func orNotSet(val string) string {
	if val == "" {
		return "(not set)"
	}
	return val
}

func configRows(info configInfo, notFound bool) [][2]string {
	journalPath := info.JournalPath
	if notFound {
		journalPath += " (not found)"
	}
	rows := [][2]string{
		{"Config file:", orNotSet(info.ConfigFile)},
		{"Database DSN:", orNotSet(info.DSN)},
		{"Table prefix:", info.TablePrefix},
		{"Home URL:", orNotSet(info.HomeURL)},
		{"Demos dir:", info.DemosDir},
		{"Themes dir:", info.ThemeDir},
		{"Theme hint:", info.ThemeHint},
		{"Admin login:", orNotSet(info.AdminLogin)},
		{"Journal:", journalPath},
	}
	if !notFound {
		rows = append(rows,
			[2]string{"Journal size:", humanize.Bytes(uint64(info.JournalSizeBytes))},
			[2]string{"Schema version:", fmt.Sprintf("%d", info.SchemaVersion)},
		)
	}
	return append(rows,
		[2]string{"Server address:", info.ServerAddr},
		[2]string{"Rate limit:", fmt.Sprintf("%d/min", info.RateLimit)},
	)
}

func formatConfigHuman(info configInfo, notFound bool) string {
	if !render.ColorsEnabled() {
		return formatConfigPlain(info, notFound)
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(16)
	valStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	lines := headerStyle.Render("reign-demo configuration") + "\n\n"
	for i, kv := range configRows(info, notFound) {
		val := valStyle.Render(kv[1])
		if kv[0] == "Journal:" {
			color := "10"
			if notFound {
				color = "9"
			}
			val = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●") + " " + val
		}
		if i > 0 {
			lines += "\n"
		}
		lines += fmt.Sprintf("  %s %s", keyStyle.Render(kv[0]), val)
	}
	return lines
}

func formatConfigPlain(info configInfo, notFound bool) string {
	var lines string
	for i, kv := range configRows(info, notFound) {
		if i > 0 {
			lines += "\n"
		}
		lines += fmt.Sprintf("%-16s %s", kv[0], kv[1])
	}
	return lines
}

func init() {
	rootCmd.AddCommand(configCmd)
}
