// Package importer applies a demo package's SQL dumps to a live WordPress
// database without touching the administrator running the import.
package importer

import (
	"context"

	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/phpser"
)

// Store is the live database as the importer sees it. *wpdb.DB implements
// it against MySQL.
type Store interface {
	Prefix() string

	Exec(ctx context.Context, stmt string) error
	TableExists(ctx context.Context, table string) (bool, error)
	Truncate(ctx context.Context, table string) error
	SetForeignKeyChecks(ctx context.Context, enabled bool) error

	RawOption(ctx context.Context, name string) (string, bool, error)
	Option(ctx context.Context, name string) (phpser.Value, bool, error)
	UpdateOption(ctx context.Context, name string, v phpser.Value, autoload string) error
	SetRawOption(ctx context.Context, name, raw, autoload string) error
	DeleteOption(ctx context.Context, name string) error
	OptionsLike(ctx context.Context, namePattern, contains string) ([]model.OptionRow, error)

	UserMeta(ctx context.Context, userID int64, key string) (string, bool, error)
	SetUserMeta(ctx context.Context, userID int64, key, value string) error
	DeleteUserMeta(ctx context.Context, userID int64, key string) error
	DropShadowedUserMeta(ctx context.Context, from, to string) (int64, error)
	RenameUserMetaKey(ctx context.Context, from, to string) (int64, error)
	RenameUserMetaKeyPrefix(ctx context.Context, from, to string) (int64, error)

	NavMenus(ctx context.Context) ([]model.NavMenu, error)
	OrphanMenuItems(ctx context.Context) ([]int64, error)
	AssignToMenu(ctx context.Context, objectID, termTaxonomyID int64) error

	FlushCache()
}

// ImportContext carries everything one content import needs. It is built
// once per run by the caller and passed to Import.
type ImportContext struct {
	DemoID string
	// Admin is the protected administrator. Its users row and user-meta
	// rows are never written by the import.
	Admin model.AdminIdentity
	// Files are the dump files to import.
	Files []model.DumpFile
	// Ordered is set when Files come from an import-order manifest. When
	// unset the files are put in dependency order first.
	Ordered bool
	// HomeURL replaces the {{*home_url}} token in option values. Empty
	// means the live "home" option.
	HomeURL string
	Options model.StepOptions
}
