package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/render"
)

type historyResult struct {
	Runs  []*model.Run `json:"runs"`
	Total int          `json:"total"`
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "List recorded imports",
	Aliases: []string{"runs"},
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		conn := getJournal(cmd)

		statuses, _ := cmd.Flags().GetStringSlice("status")
		demoID, _ := cmd.Flags().GetString("demo")
		limit, _ := cmd.Flags().GetInt("limit")
		board, _ := cmd.Flags().GetBool("board")

		opts := journal.ListOptions{DemoID: demoID, Limit: limit}
		for _, s := range statuses {
			if err := model.ValidateRunStatus(model.RunStatus(s)); err != nil {
				return cmdErr(err, output.ErrValidation)
			}
			opts.Status = append(opts.Status, model.RunStatus(s))
		}
		if limit < 0 {
			return cmdErr(errors.New("--limit must not be negative"), output.ErrValidation)
		}

		runs, err := journal.ListRuns(conn, opts)
		if err != nil {
			return cmdErr(fmt.Errorf("listing runs: %w", err), output.ErrGeneral)
		}
		if runs == nil {
			runs = []*model.Run{}
		}

		human := render.RenderHistory(runs)
		if board {
			human = render.RenderBoard(runs)
		}
		w.Success(historyResult{Runs: runs, Total: len(runs)}, human)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)

		run, err := journal.GetRun(getJournal(cmd), args[0])
		if errors.Is(err, journal.ErrNotFound) {
			return cmdErr(fmt.Errorf("run %s not found", args[0]), output.ErrNotFound)
		}
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		w.Success(run, render.RenderRun(run))
		return nil
	},
}

func init() {
	historyCmd.Flags().StringSliceP("status", "s", nil, "Filter by status (succeeded, partial, failed)")
	historyCmd.Flags().StringP("demo", "d", "", "Filter by demo")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs, 0 for all")
	historyCmd.Flags().BoolP("board", "b", false, "Group runs by status")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
