package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reign-theme/demo-install/internal/importer"
	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/render"
	"github.com/reign-theme/demo-install/internal/verify"
)

type importOutput struct {
	RunID        string              `json:"run_id,omitempty"`
	Demo         string              `json:"demo"`
	Admin        model.AdminIdentity `json:"admin"`
	Result       *model.ImportResult `json:"result"`
	Verification *verify.Report      `json:"verification,omitempty"`
}

var importCmd = &cobra.Command{
	Use:   "import <demo>",
	Short: "Import a demo package's database content",
	Long: `Import the SQL dumps of an extracted demo package into the WordPress
database. The administrator running the import keeps their account, password
and role; everything else in the dumps is merged into the site.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		log := getLogger(cmd)
		ctx := cmd.Context()

		yes, _ := cmd.Flags().GetBool("yes")
		verifyAfter, _ := cmd.Flags().GetBool("verify")

		pkg, err := openDemo(cmd, args[0])
		if err != nil {
			return err
		}

		site, err := openSite(cmd)
		if err != nil {
			return err
		}
		defer site.Close()

		admin, err := resolveAdmin(ctx, site, adminLogin(cmd))
		if err != nil {
			return err
		}

		if !yes {
			if w.JSONMode {
				return cmdErr(errors.New("importing a demo overwrites site content: use --yes in JSON mode"), output.ErrValidation)
			}
			var confirmed bool
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Import %d table(s) of %s into %s?", len(pkg.Files), pkg.ID, site.Prefix()+"*")).
						Description(fmt.Sprintf("Site content will be replaced. %s is kept as administrator.", admin.String())).
						Affirmative("Import").
						Negative("Cancel").
						Value(&confirmed),
				),
			)
			if err := form.Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					w.Info("Cancelled.")
					return nil
				}
				return cmdErr(fmt.Errorf("interactive form failed: %w", err), output.ErrGeneral)
			}
			if !confirmed {
				w.Info("Cancelled.")
				return nil
			}
		}

		orch := importer.New(site, log,
			importer.WithThemes(&importer.Themes{
				Dir:      cfg.Theme.Dir,
				Hint:     cfg.Theme.Hint,
				Fallback: cfg.Theme.Fallback,
			}),
			importer.WithTableEnsurer(importer.RequireTables(site, importer.CoreTables...)),
		)

		w.Info("Importing %d table(s) from %s as %s", len(pkg.Files), pkg.ID, admin.String())
		started := time.Now().UTC()
		res, importErr := orch.Import(ctx, &importer.ImportContext{
			DemoID:  pkg.ID,
			Admin:   admin,
			Files:   pkg.Files,
			Ordered: pkg.Order != nil,
			HomeURL: cfg.Site.HomeURL,
			Options: model.DefaultStepOptions(),
		})

		run := model.NewRun(pkg.ID, admin.String(), res, importErr, started, time.Now().UTC())
		if _, err := journal.RecordRun(getJournal(cmd), run); err != nil {
			log.Warn("recording run", zap.Error(err))
			run.ID = ""
		}

		if res == nil {
			return cmdErr(importErr, errorCode(importErr))
		}

		out := importOutput{RunID: run.ID, Demo: pkg.ID, Admin: admin, Result: res}
		human := render.RenderResult(res)

		if verifyAfter {
			report, err := verify.New(site, cfg.Theme.Hint).Run(ctx, admin)
			if err != nil {
				w.Warn("verification failed to run: %v", err)
			} else {
				out.Verification = report
				human += "\n\n" + render.RenderReport(report)
			}
		}

		if importErr != nil {
			return &CmdError{Err: importErr, Code: output.ErrPartial, Data: out, Message: human}
		}
		w.Success(out, human)
		return nil
	},
}

func init() {
	importCmd.Flags().String("admin", "", "Login of the administrator to protect (default: admin.login, then the first administrator)")
	importCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	importCmd.Flags().Bool("verify", false, "Verify the site after importing")
	rootCmd.AddCommand(importCmd)
}
