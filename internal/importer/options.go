package importer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/reign-theme/demo-install/internal/metrics"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/phpser"
	"github.com/reign-theme/demo-install/internal/sqldump"
)

const (
	homeURLToken    = "{{*home_url}}"
	themeModsPrefix = "theme_mods_"
)

// skippedOptions are site-specific options an import must never replace.
var skippedOptions = []string{
	"siteurl", "home",
	"admin_email", "new_admin_email",
	"upload_path", "upload_url_path", "uploads_use_yearmonth_folders",
	"db_version", "initial_db_version",
	"auth_key", "auth_salt", "logged_in_key", "logged_in_salt",
	"nonce_key", "nonce_salt", "secure_auth_key", "secure_auth_salt",
	"cron", "rewrite_rules",
	"mailserver_url", "mailserver_login", "mailserver_pass", "mailserver_port",
}

// skippedOptionParts are substrings of transient, session and bookkeeping
// option names.
var skippedOptionParts = []string{
	"_transient_",
	"_site_transient_",
	"wordpress_logged_in_",
	"wordpress_auth_",
	"wp_user_settings",
	"reign_demo_current_admin_",
}

// optionsInterpreter applies INSERTs into the options table through the
// options API instead of executing them.
type optionsInterpreter struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Recorder
	themes  *Themes
	homeURL string
	skip    map[string]struct{}
}

func newOptionsInterpreter(store Store, log *zap.Logger, rec *metrics.Recorder, themes *Themes, homeURL string, prefixes ...string) *optionsInterpreter {
	skip := make(map[string]struct{}, len(skippedOptions)+len(prefixes)+1)
	for _, name := range skippedOptions {
		skip[name] = struct{}{}
	}
	skip["wp_user_roles"] = struct{}{}
	for _, p := range prefixes {
		if p != "" {
			skip[p+"user_roles"] = struct{}{}
		}
	}
	return &optionsInterpreter{
		store:   store,
		log:     log,
		metrics: rec,
		themes:  themes,
		homeURL: homeURL,
		skip:    skip,
	}
}

// skipped reports whether an option name is on the skip list.
func (oi *optionsInterpreter) skipped(name string) bool {
	if _, ok := oi.skip[name]; ok {
		return true
	}
	for _, part := range skippedOptionParts {
		if strings.Contains(name, part) {
			return true
		}
	}
	return false
}

// applyStatement interprets every row of an options INSERT. It returns the
// number of options written and skipped.
func (oi *optionsInterpreter) applyStatement(ctx context.Context, stmt string) (applied, skipped int, err error) {
	ins, err := sqldump.ParseInsert(stmt)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing options insert: %w", err)
	}

	nameCol, valueCol, autoloadCol := 1, 2, 3
	if len(ins.Columns) > 0 {
		nameCol = ins.ColumnIndex("option_name")
		valueCol = ins.ColumnIndex("option_value")
		autoloadCol = ins.ColumnIndex("autoload")
		if nameCol < 0 || valueCol < 0 {
			return 0, 0, fmt.Errorf("options insert has no option_name/option_value columns")
		}
	}

	var errs error
	for i, row := range ins.Rows {
		name, ok1 := row.Column(nameCol)
		value, ok2 := row.Column(valueCol)
		if !ok1 || !ok2 {
			errs = multierr.Append(errs, fmt.Errorf("options row %d has %d columns", i+1, len(row.Values)))
			continue
		}
		autoload := model.AutoloadYes
		if lit, ok := row.Column(autoloadCol); ok && lit.Kind != sqldump.LitNull {
			autoload = lit.Text
		}

		done, err := oi.applyRow(ctx, name.Text, value.Text, autoload)
		switch {
		case err != nil:
			errs = multierr.Append(errs, err)
		case done:
			applied++
		default:
			skipped++
		}
	}
	return applied, skipped, errs
}

// applyRow writes one option. It reports false when the option was skipped.
func (oi *optionsInterpreter) applyRow(ctx context.Context, name, raw, autoload string) (bool, error) {
	if name == "" || oi.skipped(name) {
		oi.log.Debug("skipping option", zap.String("option", name))
		oi.metrics.RowsSkipped(metrics.SkipList, 1)
		return false, nil
	}

	isThemeMods := strings.HasPrefix(name, themeModsPrefix)
	if isThemeMods {
		target, err := oi.themeModsTarget(ctx, name)
		if err != nil {
			return false, err
		}
		if target != name {
			oi.log.Info("retargeting theme mods", zap.String("from", name), zap.String("to", target))
		}
		name = target
	}

	v, ok := phpser.MaybeUnserialize(raw)
	if !ok {
		v = phpser.String(raw)
	}
	v = oi.replaceHomeURL(v)

	if isThemeMods {
		existing, found, err := oi.store.Option(ctx, name)
		if err != nil {
			return false, err
		}
		if found && existing.Kind == phpser.KindArray && v.Kind == phpser.KindArray {
			v = phpser.Merge(existing, v)
		}
	}

	if err := oi.store.UpdateOption(ctx, name, v, model.NormalizeAutoload(autoload)); err != nil {
		return false, fmt.Errorf("option %s: %w", name, err)
	}
	oi.metrics.OptionApplied()
	return true, nil
}

// themeModsTarget maps theme_mods_<imported> to the active theme's mods.
// When the active theme is unset, or is the imported slug itself, an
// installed theme is resolved instead.
func (oi *optionsInterpreter) themeModsTarget(ctx context.Context, name string) (string, error) {
	imported := strings.TrimPrefix(name, themeModsPrefix)
	current, _, err := oi.store.RawOption(ctx, "stylesheet")
	if err != nil {
		return "", err
	}
	if current == "" || current == imported {
		if slug, ok := oi.themes.Find(); ok {
			current = slug
		} else if current == "" && oi.themes != nil {
			current = oi.themes.Fallback
		}
	}
	if current == "" {
		return name, nil
	}
	return themeModsPrefix + current, nil
}

func (oi *optionsInterpreter) replaceHomeURL(v phpser.Value) phpser.Value {
	if oi.homeURL == "" {
		return v
	}
	return phpser.ReplaceAll(v, homeURLToken, oi.homeURL, false)
}
