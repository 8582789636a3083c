package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/phpser"
)

// snapshotOptions are read before the import and restored afterwards when
// the import left them empty.
var snapshotOptions = []string{
	"stylesheet",
	"template",
	"active_plugins",
	"siteurl",
	"home",
	"page_on_front",
	"show_on_front",
}

type snapshot map[string]string

func (o *Orchestrator) takeSnapshot(ctx context.Context) (snapshot, error) {
	snap := make(snapshot, len(snapshotOptions))
	for _, name := range snapshotOptions {
		raw, _, err := o.store.RawOption(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("snapshot of %s: %w", name, err)
		}
		snap[name] = raw
	}
	return snap, nil
}

// blank reports whether an option value is missing for healing purposes.
func blank(raw string) bool {
	if raw == "" {
		return true
	}
	v, ok := phpser.MaybeUnserialize(raw)
	return ok && v.IsContainer() && len(v.Entries) == 0
}

// heal restores snapshot options the import emptied, resolves a theme when
// none is active, and repairs menu linkage. It returns a description of
// every change. Failures are logged; healing never fails a run.
func (o *Orchestrator) heal(ctx context.Context, snap snapshot) []string {
	o.store.FlushCache()
	var healed []string

	for _, name := range snapshotOptions {
		raw, _, err := o.store.RawOption(ctx, name)
		if err != nil {
			o.log.Warn("reading option after import", zap.String("option", name), zap.Error(err))
			continue
		}
		if !blank(raw) {
			continue
		}
		value := snap[name]
		if blank(value) && (name == "stylesheet" || name == "template") {
			value = o.themes.Resolve()
		}
		if blank(value) {
			o.log.Warn("option empty after import and nothing to restore", zap.String("option", name))
			continue
		}
		if err := o.store.SetRawOption(ctx, name, value, model.AutoloadYes); err != nil {
			o.log.Warn("restoring option", zap.String("option", name), zap.Error(err))
			continue
		}
		o.log.Info("restored option", zap.String("option", name), zap.String("value", value))
		healed = append(healed, fmt.Sprintf("%s = %s", name, value))
	}

	return append(healed, o.healMenus(ctx)...)
}

// healMenus publishes the active theme's menu locations as a global option
// and attaches nav menu items that lost their menu to the first menu.
func (o *Orchestrator) healMenus(ctx context.Context) []string {
	var healed []string

	stylesheet, _, err := o.store.RawOption(ctx, "stylesheet")
	if err != nil {
		o.log.Warn("reading stylesheet", zap.Error(err))
		return nil
	}
	if stylesheet != "" {
		mods, found, err := o.store.Option(ctx, themeModsPrefix+stylesheet)
		if err != nil {
			o.log.Warn("reading theme mods", zap.String("theme", stylesheet), zap.Error(err))
		} else if found {
			if locs, ok := mods.Lookup("nav_menu_locations"); ok && locs.IsContainer() && !locs.Empty() {
				if err := o.store.UpdateOption(ctx, "nav_menu_locations", locs, model.AutoloadYes); err != nil {
					o.log.Warn("setting nav_menu_locations", zap.Error(err))
				} else {
					healed = append(healed, "nav_menu_locations from "+themeModsPrefix+stylesheet)
				}
			}
		}
	}

	orphans, err := o.store.OrphanMenuItems(ctx)
	if err != nil {
		o.log.Warn("finding orphan menu items", zap.Error(err))
		return healed
	}
	if len(orphans) == 0 {
		return healed
	}
	menus, err := o.store.NavMenus(ctx)
	if err != nil {
		o.log.Warn("listing nav menus", zap.Error(err))
		return healed
	}
	if len(menus) == 0 {
		o.log.Warn("menu items without a menu and no menu to attach them to", zap.Int("items", len(orphans)))
		return healed
	}
	menu := menus[0]
	for _, id := range orphans {
		if err := o.store.AssignToMenu(ctx, id, menu.TermTaxonomyID); err != nil {
			o.log.Warn("assigning menu item", zap.Int64("item", id), zap.Error(err))
			continue
		}
		healed = append(healed, fmt.Sprintf("menu item %d -> %s", id, menu.Name))
	}
	return healed
}

// reassertAdmin makes sure the protected administrator still holds the
// administrator role under the live prefix. Capability meta written under
// the source prefix is moved first.
func (o *Orchestrator) reassertAdmin(ctx context.Context, admin model.AdminIdentity, source, target string) error {
	capKey, levelKey := target+"capabilities", target+"user_level"

	if source != "" && source != target {
		old, found, err := o.store.UserMeta(ctx, admin.ID, source+"capabilities")
		if err != nil {
			return err
		}
		if found && !blank(old) {
			if err := o.store.DeleteUserMeta(ctx, admin.ID, source+"capabilities"); err != nil {
				return err
			}
			if err := o.store.DeleteUserMeta(ctx, admin.ID, source+"user_level"); err != nil {
				return err
			}
			if err := o.store.SetUserMeta(ctx, admin.ID, capKey, old); err != nil {
				return err
			}
			if err := o.store.SetUserMeta(ctx, admin.ID, levelKey, "10"); err != nil {
				return err
			}
		}
	}

	raw, _, err := o.store.UserMeta(ctx, admin.ID, capKey)
	if err != nil {
		return err
	}
	caps, _ := phpser.MaybeUnserialize(raw)
	if role, ok := caps.Lookup("administrator"); ok && role.Truthy() {
		return nil
	}

	o.log.Warn("administrator role missing, restoring", zap.Stringer("admin", &admin))
	roles := phpser.Array(phpser.Pair("administrator", phpser.Bool(true)))
	if err := o.store.SetUserMeta(ctx, admin.ID, capKey, phpser.Serialize(roles)); err != nil {
		return err
	}
	return o.store.SetUserMeta(ctx, admin.ID, levelKey, "10")
}
