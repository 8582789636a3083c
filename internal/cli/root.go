// Package cli implements the reign-demo command tree.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reign-theme/demo-install/internal/config"
	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/logging"
	"github.com/reign-theme/demo-install/internal/output"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const (
	cfgKey     contextKey = "cfg"
	logKey     contextKey = "log"
	journalKey contextKey = "journal"
)

// CmdError wraps an error with a machine-readable error code for structured
// output. Data and Message carry whatever the command produced before failing.
type CmdError struct {
	Err     error
	Code    output.ErrorCode
	Data    any
	Message string
}

func (e *CmdError) Error() string { return e.Err.Error() }

func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

var rootCmd = &cobra.Command{
	Use:     "reign-demo",
	Short:   "Import Reign theme demo content into a WordPress database",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		level := cfg.Log.Level
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		log, err := logging.New(level, cfg.Log.Format)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		ctx := context.WithValue(cmd.Context(), cfgKey, cfg)
		ctx = context.WithValue(ctx, logKey, log)

		if _, ok := cmd.Annotations["skipJournal"]; ok {
			cmd.SetContext(ctx)
			return nil
		}

		conn, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}

		cmd.SetContext(context.WithValue(ctx, journalKey, conn))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if log, ok := cmd.Context().Value(logKey).(*zap.Logger); ok {
			_ = log.Sync()
		}
		conn, ok := cmd.Context().Value(journalKey).(*sql.DB)
		if ok && conn != nil {
			return conn.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultFile+")")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func getWriter(cmd *cobra.Command) *output.Writer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return output.New(jsonMode, quietMode)
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getLogger(cmd *cobra.Command) *zap.Logger {
	if log, ok := cmd.Context().Value(logKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

func getJournal(cmd *cobra.Command) *sql.DB {
	conn, _ := cmd.Context().Value(journalKey).(*sql.DB)
	return conn
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		jsonMode, _ := rootCmd.PersistentFlags().GetBool("json")
		quietMode, _ := rootCmd.PersistentFlags().GetBool("quiet")
		w := output.New(jsonMode, quietMode)

		var ce *CmdError
		if errors.As(err, &ce) {
			return w.ErrorWithData(ce.Err, ce.Code, ce.Data, ce.Message)
		}
		return w.Error(err, output.ErrGeneral)
	}
	return 0
}
