package importer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/phpser"
	"github.com/reign-theme/demo-install/internal/wpdb"
)

// userMetaKeys are user-meta key suffixes stored under the table prefix.
var userMetaKeys = []string{
	"capabilities",
	"user_level",
	"user-settings",
	"user-settings-time",
	"dashboard_quick_press_last_post_id",
	"media_library_mode",
	"managenav-menuscolumnshidden",
	// BuddyPress / BuddyBoss
	"total_friend_count",
	"total_group_count",
	"last_activity",
	"notification_groups_group_updated",
	"notification_groups_membership_request",
	"notification_membership_request_completed",
}

// userMetaKeyPrefixes are suffixes followed by a screen or box name, such
// as <prefix>metaboxhidden_dashboard.
var userMetaKeyPrefixes = []string{
	"metaboxhidden_",
	"meta-box-order_",
	"screen_layout_",
	"closedpostboxes_",
}

// reconciler fixes data that embeds the table prefix after a dump was
// imported under a different prefix.
type reconciler struct {
	store Store
	log   *zap.Logger
	// admin keeps its live rows when both prefixes carry the same key.
	admin int64
}

// reconcile moves prefix-keyed user meta and the roles option from old to
// new and rewrites prefix references inside option values. It is a no-op
// when the prefixes are equal.
func (r *reconciler) reconcile(ctx context.Context, old, new string) error {
	if old == "" || old == new {
		return nil
	}
	defer r.store.FlushCache()

	var errs error
	for _, key := range userMetaKeys {
		n, err := r.renameUserMeta(ctx, old+key, new+key)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if n > 0 {
			r.log.Debug("renamed user meta", zap.String("from", old+key), zap.String("to", new+key), zap.Int64("rows", n))
		}
	}
	for _, key := range userMetaKeyPrefixes {
		if _, err := r.store.RenameUserMetaKeyPrefix(ctx, old+key, new+key); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	errs = multierr.Append(errs, r.moveRoles(ctx, old, new))
	errs = multierr.Append(errs, r.rewriteOptionValues(ctx, old, new))
	return errs
}

// renameUserMeta renames from to to for every user, keeping one row per
// user. A user holding both keys keeps the imported from value, except the
// protected administrator, who keeps its live to value.
func (r *reconciler) renameUserMeta(ctx context.Context, from, to string) (int64, error) {
	if r.admin > 0 {
		_, hasTo, err := r.store.UserMeta(ctx, r.admin, to)
		if err != nil {
			return 0, err
		}
		if hasTo {
			if err := r.store.DeleteUserMeta(ctx, r.admin, from); err != nil {
				return 0, err
			}
		}
	}
	if _, err := r.store.DropShadowedUserMeta(ctx, from, to); err != nil {
		return 0, err
	}
	return r.store.RenameUserMetaKey(ctx, from, to)
}

func (r *reconciler) moveRoles(ctx context.Context, old, new string) error {
	raw, found, err := r.store.RawOption(ctx, old+"user_roles")
	if err != nil || !found || raw == "" {
		return err
	}
	if err := r.store.DeleteOption(ctx, old+"user_roles"); err != nil {
		return err
	}
	if err := r.store.SetRawOption(ctx, new+"user_roles", raw, model.AutoloadYes); err != nil {
		return err
	}
	r.log.Info("moved user roles option", zap.String("from", old+"user_roles"), zap.String("to", new+"user_roles"))
	return nil
}

// prefixBearingOptions are LIKE patterns for options whose values may name
// prefixed tables or prefixed keys.
func prefixBearingOptions(new string) []string {
	return []string{
		wpdb.EscapeLike("cron"),
		wpdb.EscapeLike("rewrite_rules"),
		wpdb.EscapeLike(new + "user_roles"),
		wpdb.EscapeLike("widget_") + "%",
		wpdb.EscapeLike(themeModsPrefix) + "%",
		wpdb.EscapeLike("_transient_") + "%",
		wpdb.EscapeLike("_site_transient_") + "%",
	}
}

func (r *reconciler) rewriteOptionValues(ctx context.Context, old, new string) error {
	var errs error
	for _, pattern := range prefixBearingOptions(new) {
		rows, err := r.store.OptionsLike(ctx, pattern, old)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, row := range rows {
			fixed := replacePrefix(row.Value, old, new)
			if fixed == row.Value {
				continue
			}
			if err := r.store.SetRawOption(ctx, row.Name, fixed, row.Autoload); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("rewriting option %s: %w", row.Name, err))
			}
		}
	}
	return errs
}

// replacePrefix rewrites old to new in every string and string key of a
// serialized value, reserializing it with correct lengths. Text that is not
// serialized gets a plain replace.
func replacePrefix(raw, old, new string) string {
	v, err := phpser.Unserialize(raw)
	if err != nil {
		return strings.ReplaceAll(raw, old, new)
	}
	return phpser.Serialize(phpser.ReplaceAll(v, old, new, true))
}
