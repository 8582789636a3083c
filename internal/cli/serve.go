package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reign-theme/demo-install/internal/importer"
	"github.com/reign-theme/demo-install/internal/metrics"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/server"
)

// AdminHeader carries the login of the administrator driving the wizard.
const AdminHeader = "X-Reign-Admin"

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the import wizard's step endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		log := getLogger(cmd)

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		site, err := openSite(cmd)
		if err != nil {
			return err
		}
		defer site.Close()

		rec := metrics.New()
		orch := importer.New(site, log,
			importer.WithMetrics(rec),
			importer.WithThemes(&importer.Themes{
				Dir:      cfg.Theme.Dir,
				Hint:     cfg.Theme.Hint,
				Fallback: cfg.Theme.Fallback,
			}),
			importer.WithTableEnsurer(importer.RequireTables(site, importer.CoreTables...)),
		)
		srv := server.New(server.Config{
			Importer:  orch,
			DemosDir:  cfg.Demos.Dir,
			HomeURL:   cfg.Site.HomeURL,
			Admin:     headerAdmin(site, cfg.Admin.Login),
			Journal:   getJournal(cmd),
			Metrics:   rec,
			Log:       log,
			RateLimit: cfg.Server.RateLimit,
		})

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info("serving step endpoint", zap.String("addr", addr))
			errCh <- httpServer.ListenAndServe()
		}()
		w.Info("Listening on http://%s (Ctrl-C to stop)", addr)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return cmdErr(fmt.Errorf("serving %s: %w", addr, err), output.ErrGeneral)
			}
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return cmdErr(fmt.Errorf("shutting down: %w", err), output.ErrGeneral)
			}
		}
		return nil
	},
}

// headerAdmin resolves the administrator named by AdminHeader, falling back
// to the configured login. The account must hold the administrator role.
func headerAdmin(site adminLookup, fallback string) server.AdminResolver {
	return func(r *http.Request) (model.AdminIdentity, error) {
		login := r.Header.Get(AdminHeader)
		if login == "" {
			login = fallback
		}
		if login == "" {
			return model.AdminIdentity{}, server.ErrNotAdmin
		}
		admin, err := resolveAdmin(r.Context(), site, login)
		if err != nil {
			var ce *CmdError
			if errors.As(err, &ce) && ce.Code != output.ErrUnavailable && ce.Code != output.ErrGeneral {
				return model.AdminIdentity{}, server.ErrNotAdmin
			}
			return model.AdminIdentity{}, err
		}
		return admin, nil
	}
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default server.addr)")
	rootCmd.AddCommand(serveCmd)
}
