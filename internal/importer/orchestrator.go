package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/reign-theme/demo-install/internal/demo"
	"github.com/reign-theme/demo-install/internal/metrics"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/planner"
	"github.com/reign-theme/demo-install/internal/prefix"
)

// Orchestrator runs the content step: every dump file of a package, in
// order, followed by prefix reconciliation and healing.
type Orchestrator struct {
	store        Store
	log          *zap.Logger
	metrics      *metrics.Recorder
	themes       *Themes
	load         func(model.DumpFile) (string, error)
	ensureTables func(context.Context) error
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records statement and run counters.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// WithThemes sets how a missing active theme is resolved.
func WithThemes(t *Themes) Option {
	return func(o *Orchestrator) { o.themes = t }
}

// WithLoader replaces how dump files are read.
func WithLoader(load func(model.DumpFile) (string, error)) Option {
	return func(o *Orchestrator) { o.load = load }
}

// WithTableEnsurer registers a hook run before any file is imported. Callers
// embedding the importer use it to let installed plugins create their own
// tables; the CLI passes RequireTables. Its error is logged only.
func WithTableEnsurer(fn func(context.Context) error) Option {
	return func(o *Orchestrator) { o.ensureTables = fn }
}

// CoreTables are the unprefixed tables every demo import writes to.
var CoreTables = []string{"options", "users", "usermeta", "posts", "postmeta", "terms", "term_taxonomy", "term_relationships"}

// RequireTables returns a table ensurer that reports which of the bare
// tables are missing under the store's prefix.
func RequireTables(store Store, bare ...string) func(context.Context) error {
	return func(ctx context.Context) error {
		var errs error
		for _, name := range bare {
			table := store.Prefix() + name
			ok, err := store.TableExists(ctx, table)
			switch {
			case err != nil:
				errs = multierr.Append(errs, err)
			case !ok:
				errs = multierr.Append(errs, fmt.Errorf("table %s does not exist", table))
			}
		}
		return errs
	}
}

// New returns an Orchestrator importing into store.
func New(store Store, log *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		log:    log,
		themes: &Themes{Hint: "reign", Fallback: "reign-theme"},
		load:   demo.Load,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runState is the prefix bookkeeping of one run.
type runState struct {
	target string
	source string // established by the first confident detection
	errs   error
}

// adopt checks a file's detected prefix against the run. Confident
// detections establish the run prefix or must agree with it; default-tier
// detections follow it.
func (s *runState) adopt(p string, det prefix.Detection) (string, error) {
	if !det.Confident() {
		if s.source != "" {
			return s.source, nil
		}
		return p, nil
	}
	if s.source == "" {
		s.source = p
		return p, nil
	}
	if p != s.source {
		return "", fmt.Errorf("%w: dump uses %q, run uses %q", ErrInconsistentPrefix, p, s.source)
	}
	return p, nil
}

// Import applies ic.Files to the live database. Statement errors do not
// stop the run; when any were recorded the result is returned together with
// an *ImportError wrapping ErrPartial. Cancellation of ctx is ignored once
// the run has started.
func (o *Orchestrator) Import(ctx context.Context, ic *ImportContext) (*model.ImportResult, error) {
	ctx = context.WithoutCancel(ctx)
	start := o.now()

	if !ic.Admin.Valid() {
		return nil, ErrNoAdmin
	}
	if len(ic.Files) == 0 {
		return nil, demo.ErrNoDumpFiles
	}

	files := ic.Files
	if !ic.Ordered {
		plan, err := planner.GeneratePlan(files)
		if err != nil {
			return nil, err
		}
		files = plan.Files()
		o.log.Warn("no import-order manifest, using dependency order of core tables",
			zap.Int("phases", len(plan.Phases)), zap.Int("tables", plan.TotalTables))
	}

	snap, err := o.takeSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	homeURL := ic.HomeURL
	if homeURL == "" {
		homeURL = snap["home"]
	}

	run := &runState{target: o.store.Prefix()}
	res := &model.ImportResult{Errors: []string{}, Prefix: model.PrefixMapping{Target: run.target}}

	if err := o.store.SetForeignKeyChecks(ctx, false); err != nil {
		return nil, fmt.Errorf("disabling foreign key checks: %w", err)
	}
	if o.ensureTables != nil {
		if err := o.ensureTables(ctx); err != nil {
			o.log.Warn("ensuring plugin tables", zap.Error(err))
		}
	}

	mat := &materializer{
		store:   o.store,
		log:     o.log,
		metrics: o.metrics,
		guard:   newIdentityGuard(ic.Admin, run.target),
	}

	o.log.Info("importing demo content",
		zap.String("demo", ic.DemoID), zap.Int("files", len(files)),
		zap.Stringer("admin", &ic.Admin), zap.String("prefix", run.target))

	// Options rows may carry the source prefix in user_roles names, so the
	// interpreter is built per file once its prefix is known.
	mat.newOptions = func(source string) *optionsInterpreter {
		return newOptionsInterpreter(o.store, o.log, o.metrics, o.themes, homeURL, source, run.target)
	}

	for _, f := range files {
		tr := o.importFile(ctx, run, mat, f)
		res.Tables = append(res.Tables, tr)
		switch tr.Outcome {
		case model.OutcomeImported:
			res.Imported++
		case model.OutcomeSkipped:
			res.Skipped++
		}
	}

	if err := o.store.SetForeignKeyChecks(ctx, true); err != nil {
		run.errs = multierr.Append(run.errs, fmt.Errorf("enabling foreign key checks: %w", err))
	}

	source := run.source
	if source == "" {
		source = prefix.Default
	}
	res.Prefix.Source = source

	if err := o.reassertAdmin(ctx, ic.Admin, source, run.target); err != nil {
		run.errs = multierr.Append(run.errs, fmt.Errorf("restoring administrator %s: %w", ic.Admin.String(), err))
	}
	if res.Prefix.Changed() {
		o.log.Info("reconciling prefix", zap.String("from", source), zap.String("to", run.target))
		rec := &reconciler{store: o.store, log: o.log, admin: ic.Admin.ID}
		if err := rec.reconcile(ctx, source, run.target); err != nil {
			run.errs = multierr.Append(run.errs, fmt.Errorf("reconciling prefix: %w", err))
		}
	}

	res.Healed = o.heal(ctx, snap)
	o.store.FlushCache()

	for _, err := range multierr.Errors(run.errs) {
		res.Errors = append(res.Errors, err.Error())
	}
	res.Duration = o.now().Sub(start)

	status := model.StatusFor(res, nil)
	o.metrics.RunFinished(string(status), res.Duration)
	o.log.Info("demo content import finished",
		zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)), zap.Duration("took", res.Duration))

	if run.errs != nil {
		return res, &ImportError{Result: res, Err: run.errs}
	}
	return res, nil
}

// importFile runs one dump file. Structural problems (empty dump, missing
// table without CREATE TABLE) skip the file; anything else that goes wrong
// fails it and is added to the run's errors.
func (o *Orchestrator) importFile(ctx context.Context, run *runState, mat *materializer, f model.DumpFile) model.TableResult {
	tr := model.TableResult{Table: f.Stem, Class: model.ClassOrdinary}
	log := o.log.With(zap.String("file", f.Stem))

	fail := func(err error) model.TableResult {
		for _, e := range multierr.Errors(err) {
			tr.Errors = append(tr.Errors, e.Error())
		}
		err = &tableError{Table: tr.Table, Err: err}
		run.errs = multierr.Append(run.errs, err)
		tr.Outcome = model.OutcomeFailed
		tr.Reason = err.Error()
		log.Warn("table import failed", zap.Error(err))
		return tr
	}
	skip := func(reason string) model.TableResult {
		tr.Outcome = model.OutcomeSkipped
		tr.Reason = reason
		log.Info("skipping table", zap.String("reason", reason))
		return tr
	}

	sql, err := o.load(f)
	if err != nil {
		return fail(err)
	}
	if strings.TrimSpace(sql) == "" {
		return skip("empty dump")
	}

	source, bare, det := resolveTable(f.Stem, sql, run.source)
	source, err = run.adopt(source, det)
	if err != nil {
		return fail(err)
	}
	mat.options = mat.newOptions(source)
	table := run.target + bare
	tr.Table = table
	tr.Class = model.ClassifyTable(table, run.target)
	log.Debug("resolved table",
		zap.String("table", table), zap.String("source_prefix", source), zap.Stringer("detection", det.Source))

	if source != run.target {
		sql = prefix.NewRewriter(source, run.target).Rewrite(sql)
	}

	existed, skipped, err := mat.materialize(ctx, table, sql)
	switch {
	case err != nil:
		res := fail(err)
		res.Outcome = model.OutcomeSkipped
		return res
	case skipped:
		return skip("table missing and dump has no CREATE TABLE")
	}
	tr.Created = !existed

	stats, err := mat.apply(ctx, table, tr.Class, existed, sql)
	tr.Statements = stats.Statements
	tr.SkippedRows = stats.Skipped
	tr.Options = stats.Options
	if err != nil {
		return fail(err)
	}
	tr.Outcome = model.OutcomeImported
	return tr
}

// resolveTable works out the source prefix and bare table name of a dump
// file. Export tools name files either by bare table ("posts") or by full
// source table ("wp_posts"); both are recognised from the dump's own
// statements.
func resolveTable(stem, sql, runSource string) (string, string, prefix.Detection) {
	det := prefix.Detect(sql, stem)
	if det.Source == prefix.SourceExact {
		return det.Prefix, stem, det
	}
	for _, p := range []string{runSource, det.Prefix} {
		if p == "" || len(stem) <= len(p) || !strings.HasPrefix(stem, p) {
			continue
		}
		bare := stem[len(p):]
		if d := prefix.Detect(sql, bare); d.Source == prefix.SourceExact {
			return d.Prefix, bare, d
		}
		return p, bare, det
	}
	return det.Prefix, stem, det
}
