package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reign-theme/demo-install/internal/demo"
	"github.com/reign-theme/demo-install/internal/importer"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/output"
	"github.com/reign-theme/demo-install/internal/phpser"
	"github.com/reign-theme/demo-install/internal/planner"
	"github.com/reign-theme/demo-install/internal/wpdb"
)

// adminLookup is the part of *wpdb.DB used to find the protected account.
type adminLookup interface {
	Prefix() string
	AdminByLogin(ctx context.Context, login string) (model.AdminIdentity, error)
	FirstAdministrator(ctx context.Context) (model.AdminIdentity, error)
	UserMeta(ctx context.Context, userID int64, key string) (string, bool, error)
}

// openSite connects to the WordPress database named by the config.
func openSite(cmd *cobra.Command) (*wpdb.DB, error) {
	cfg := getCfg(cmd)
	if err := cfg.RequireDB(); err != nil {
		return nil, cmdErr(err, output.ErrValidation)
	}
	site, err := wpdb.Open(cmd.Context(), wpdb.Config{
		DSN:            cfg.DB.DSN,
		Prefix:         cfg.DB.Prefix,
		ConnectTimeout: cfg.DB.ConnectTimeout,
	}, getLogger(cmd))
	if err != nil {
		return nil, cmdErr(fmt.Errorf("connecting to database: %w", err), output.ErrUnavailable)
	}
	return site, nil
}

// adminLogin picks the --admin flag over the configured login.
func adminLogin(cmd *cobra.Command) string {
	if login, _ := cmd.Flags().GetString("admin"); login != "" {
		return login
	}
	return getCfg(cmd).Admin.Login
}

// resolveAdmin finds the administrator to protect: the account with the given
// login, or the first administrator when login is empty.
func resolveAdmin(ctx context.Context, site adminLookup, login string) (model.AdminIdentity, error) {
	if login == "" {
		admin, err := site.FirstAdministrator(ctx)
		if errors.Is(err, wpdb.ErrNotFound) {
			return model.AdminIdentity{}, cmdErr(errors.New("no administrator found, pass --admin"), output.ErrNotFound)
		}
		if err != nil {
			return model.AdminIdentity{}, cmdErr(err, errorCode(err))
		}
		return admin, nil
	}

	admin, err := site.AdminByLogin(ctx, login)
	if errors.Is(err, wpdb.ErrNotFound) {
		return model.AdminIdentity{}, cmdErr(fmt.Errorf("user %q not found", login), output.ErrNotFound)
	}
	if err != nil {
		return model.AdminIdentity{}, cmdErr(err, errorCode(err))
	}
	ok, err := isAdministrator(ctx, site, admin.ID)
	if err != nil {
		return model.AdminIdentity{}, cmdErr(err, errorCode(err))
	}
	if !ok {
		return model.AdminIdentity{}, cmdErr(fmt.Errorf("user %q is not an administrator", login), output.ErrForbidden)
	}
	return admin, nil
}

// isAdministrator reports whether the user's capabilities grant the
// administrator role.
func isAdministrator(ctx context.Context, site adminLookup, userID int64) (bool, error) {
	raw, found, err := site.UserMeta(ctx, userID, site.Prefix()+"capabilities")
	if err != nil || !found {
		return false, err
	}
	caps, ok := phpser.MaybeUnserialize(raw)
	if !ok {
		return false, nil
	}
	role, ok := caps.Lookup("administrator")
	return ok && role.Truthy(), nil
}

// errorCode maps domain errors to output error codes.
func errorCode(err error) output.ErrorCode {
	var cycle *planner.CycleError
	switch {
	case errors.Is(err, demo.ErrNoDatabaseDir),
		errors.Is(err, demo.ErrNoDumpFiles),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, wpdb.ErrNotFound):
		return output.ErrNotFound
	case errors.Is(err, demo.ErrNotSQLExport),
		errors.Is(err, demo.ErrInvalidID),
		errors.Is(err, importer.ErrNoAdmin),
		errors.As(err, &cycle):
		return output.ErrValidation
	case errors.Is(err, importer.ErrPartial):
		return output.ErrPartial
	case wpdb.IsConnectionError(err):
		return output.ErrUnavailable
	default:
		return output.ErrGeneral
	}
}

func openDemo(cmd *cobra.Command, id string) (*demo.Package, error) {
	pkg, err := demo.Open(getCfg(cmd).Demos.Dir, id)
	if err != nil {
		return nil, cmdErr(fmt.Errorf("opening demo %s: %w", id, err), errorCode(err))
	}
	if len(pkg.Missing) > 0 {
		getWriter(cmd).Warn("Import order names %d table(s) with no dump file: %s",
			len(pkg.Missing), strings.Join(pkg.Missing, ", "))
	}
	return pkg, nil
}
