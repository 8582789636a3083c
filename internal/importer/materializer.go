package importer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/reign-theme/demo-install/internal/metrics"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/sqldump"
	"github.com/reign-theme/demo-install/internal/wpdb"
)

// applyStats counts what apply did to one table.
type applyStats struct {
	Statements int
	Skipped    int
	Options    int
}

// materializer makes sure a dump's table exists and drives its statements.
type materializer struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Recorder
	options *optionsInterpreter
	guard   *identityGuard

	newOptions func(source string) *optionsInterpreter
}

// materialize creates table from the dump's own DROP/CREATE statements when
// it does not exist. It reports skipped when the table is missing and the
// dump has no CREATE TABLE for it, or when creating it failed.
func (m *materializer) materialize(ctx context.Context, table, sql string) (existed, skipped bool, err error) {
	existed, err = m.store.TableExists(ctx, table)
	if err != nil {
		return false, false, err
	}
	if existed {
		return true, false, nil
	}

	stmts := sqldump.SchemaStatements(sql, table)
	if !sqldump.HasCreateTable(stmts) {
		m.log.Warn("table missing and dump has no CREATE TABLE", zap.String("table", table))
		return false, true, nil
	}
	for _, stmt := range stmts {
		if err := m.store.Exec(ctx, stmt); err != nil {
			m.metrics.StatementFailed(string(model.ClassifyTable(table, m.store.Prefix())))
			return false, true, fmt.Errorf("creating table: %w", err)
		}
	}
	m.log.Info("created table from dump", zap.String("table", table))
	return false, false, nil
}

// apply runs the dump's statements against table. Ordinary tables that
// already existed are truncated first; critical tables are merged. Errors
// are collected per statement and never stop the file.
func (m *materializer) apply(ctx context.Context, table string, class model.TableClass, existed bool, sql string) (applyStats, error) {
	var (
		stats applyStats
		errs  error
	)

	if existed && !class.Critical() {
		if err := m.store.Truncate(ctx, table); err != nil {
			return stats, fmt.Errorf("truncating: %w", err)
		}
	}

	sc := sqldump.NewScanner(sql)
	for sc.Next() {
		stmt := sc.Statement()
		if stmt == "" {
			continue
		}
		st := sqldump.Classify(stmt)
		own := strings.EqualFold(st.Table, table)

		switch st.Verb {
		case sqldump.VerbLock, sqldump.VerbUnlock:
			continue
		case sqldump.VerbDropTable, sqldump.VerbCreateTable, sqldump.VerbTruncate:
			if own {
				continue
			}
		}

		if own && class.Critical() && !st.IsInsert() && st.Verb != sqldump.VerbAlterTable {
			m.log.Warn("skipping statement on critical table",
				zap.String("table", table), zap.String("verb", string(st.Verb)))
			m.metrics.RowsSkipped(metrics.SkipSchema, 1)
			stats.Skipped++
			continue
		}

		switch {
		case own && class == model.ClassCriticalOptions && st.IsInsert():
			applied, skipped, err := m.options.applyStatement(ctx, stmt)
			stats.Options += applied
			stats.Skipped += skipped
			if err != nil {
				errs = multierr.Append(errs, err)
			}
			continue

		case own && class == model.ClassCriticalUser && st.IsInsert():
			filtered, removed, err := m.guard.filter(stmt, table)
			if removed > 0 {
				m.log.Info("skipping administrator rows",
					zap.String("table", table), zap.Int("rows", removed), zap.Stringer("admin", &m.guard.admin))
				m.metrics.RowsSkipped(metrics.SkipAdmin, removed)
				stats.Skipped += removed
			}
			if err != nil {
				m.metrics.StatementFailed(string(class))
				errs = multierr.Append(errs, err)
				continue
			}
			if filtered == "" {
				continue
			}
			stmt = filtered
		}

		if err := m.store.Exec(ctx, stmt); err != nil {
			if class == model.ClassCriticalUser && wpdb.IsDuplicateEntry(err) {
				m.metrics.RowsSkipped(metrics.SkipDuplicate, 1)
				continue
			}
			m.metrics.StatementFailed(string(class))
			errs = multierr.Append(errs, err)
			continue
		}
		m.metrics.StatementExecuted(string(class))
		stats.Statements++
	}
	return stats, errs
}
