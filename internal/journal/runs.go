package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reign-theme/demo-install/internal/model"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// scanner abstracts *sql.Row and *sql.Rows for scanning a single row.
type scanner interface {
	Scan(dest ...any) error
}

// ListOptions filters ListRuns.
type ListOptions struct {
	DemoID string            // only runs of this demo
	Status []model.RunStatus // multiple = OR
	Limit  int               // max results, 0 = no limit
}

const runColumns = `id, demo_id, admin, source_prefix, target_prefix, imported, skipped, status, started_at, finished_at`

// RecordRun stores a finished run together with its errors and per-table
// results. A run without an ID gets a new UUID, which is returned.
func RecordRun(db *sql.DB, run *model.Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.DemoID,
		run.Admin,
		run.SourcePrefix,
		run.TargetPrefix,
		run.Imported,
		run.Skipped,
		string(run.Status),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for i, msg := range run.Errors {
		if _, err := tx.Exec(
			`INSERT INTO run_errors (run_id, seq, message) VALUES (?, ?, ?)`,
			run.ID, i, msg,
		); err != nil {
			return "", fmt.Errorf("inserting run error %d: %w", i, err)
		}
	}

	for i, t := range run.Tables {
		if _, err := tx.Exec(
			`INSERT INTO run_tables (run_id, seq, table_name, class, outcome, created, statements, skipped_rows, options, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, t.Table, string(t.Class), string(t.Outcome), boolToInt(t.Created),
			t.Statements, t.SkippedRows, t.Options, t.Reason,
		); err != nil {
			return "", fmt.Errorf("inserting run table %q: %w", t.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return run.ID, nil
}

// GetRun retrieves a run by ID, or by a unique ID prefix of at least four
// characters, with its errors and table results.
func GetRun(db *sql.DB, id string) (*model.Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, ErrNotFound) && len(id) >= 4 {
		run, err = getRunByPrefix(db, id)
	}
	if err != nil {
		return nil, err
	}
	if err := hydrateRun(db, run); err != nil {
		return nil, err
	}
	return run, nil
}

func getRunByPrefix(db *sql.DB, prefix string) (*model.Run, error) {
	rows, err := db.Query(
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("querying run by prefix: %w", err)
	}
	defer rows.Close()

	var found []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("run %q: %w", prefix, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run prefix %q is ambiguous", prefix)
	}
}

// ListRuns returns runs newest first. Errors are hydrated; table results are
// only loaded by GetRun.
func ListRuns(db *sql.DB, opts ListOptions) ([]*model.Run, error) {
	var (
		where []string
		args  []any
	)
	if opts.DemoID != "" {
		where = append(where, "demo_id = ?")
		args = append(args, opts.DemoID)
	}
	if len(opts.Status) > 0 {
		where = append(where, "status IN ("+makePlaceholders(len(opts.Status))+")")
		for _, s := range opts.Status {
			args = append(args, string(s))
		}
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}

	for _, run := range runs {
		errs, err := runErrors(db, run.ID)
		if err != nil {
			return nil, err
		}
		run.Errors = errs
	}
	return runs, nil
}

func hydrateRun(db *sql.DB, run *model.Run) error {
	errs, err := runErrors(db, run.ID)
	if err != nil {
		return err
	}
	run.Errors = errs

	rows, err := db.Query(
		`SELECT table_name, class, outcome, created, statements, skipped_rows, options, COALESCE(reason, '')
		 FROM run_tables WHERE run_id = ? ORDER BY seq`, run.ID,
	)
	if err != nil {
		return fmt.Errorf("querying run tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t       model.TableResult
			class   string
			outcome string
			created int
		)
		if err := rows.Scan(&t.Table, &class, &outcome, &created, &t.Statements, &t.SkippedRows, &t.Options, &t.Reason); err != nil {
			return fmt.Errorf("scanning run table: %w", err)
		}
		t.Class = model.TableClass(class)
		t.Outcome = model.TableOutcome(outcome)
		t.Created = created != 0
		run.Tables = append(run.Tables, t)
	}
	return rows.Err()
}

func runErrors(db *sql.DB, runID string) ([]string, error) {
	rows, err := db.Query(`SELECT message FROM run_errors WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run errors: %w", err)
	}
	defer rows.Close()

	var msgs []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("scanning run error: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func scanRun(s scanner) (*model.Run, error) {
	var (
		run                 model.Run
		admin, source       sql.NullString
		status              string
		startedAt, finished string
	)
	err := s.Scan(
		&run.ID, &run.DemoID, &admin, &source, &run.TargetPrefix,
		&run.Imported, &run.Skipped, &status, &startedAt, &finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	run.Admin = admin.String
	run.SourcePrefix = source.String
	run.Status = model.RunStatus(status)

	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("parsing finished_at %q: %w", finished, err)
	}
	return &run, nil
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
