package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/render"
	"github.com/reign-theme/demo-install/internal/verify"
)

// ErrVerificationFailed is returned when a critical check does not pass.
var ErrVerificationFailed = errors.New("verification failed: critical checks did not pass")

var verifyCmd = &cobra.Command{
	Use:         "verify",
	Short:       "Check that the site is usable after an import",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"skipJournal": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		ctx := cmd.Context()
		asReport, _ := cmd.Flags().GetBool("report")

		site, err := openSite(cmd)
		if err != nil {
			return err
		}
		defer site.Close()

		admin, err := resolveAdmin(ctx, site, adminLogin(cmd))
		if err != nil {
			return err
		}

		report, err := verify.New(site, cfg.Theme.Hint).Run(ctx, admin)
		if err != nil {
			return cmdErr(fmt.Errorf("verifying site: %w", err), errorCode(err))
		}

		human := render.RenderReport(report)
		if asReport {
			md, err := render.RenderMarkdown(render.ReportMarkdown(report))
			if err != nil {
				return cmdErr(fmt.Errorf("rendering report: %w", err), output.ErrGeneral)
			}
			human = md
		}

		if !report.Passed {
			return &CmdError{Err: ErrVerificationFailed, Code: output.ErrValidation, Data: report, Message: human}
		}
		w.Success(report, human)
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("admin", "", "Login of the administrator to check (default: admin.login, then the first administrator)")
	verifyCmd.Flags().Bool("report", false, "Render the result as a markdown report")
	rootCmd.AddCommand(verifyCmd)
}
