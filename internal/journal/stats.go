package journal

import (
	"database/sql"
	"fmt"
)

// TableFailures is how often one table failed across recorded runs.
type TableFailures struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// CountRuns returns the number of recorded runs.
func CountRuns(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting runs: %w", err)
	}
	return n, nil
}

func countByColumn(db *sql.DB, column string) (map[string]int, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s, COUNT(*) FROM runs GROUP BY %s`, column, column))
	if err != nil {
		return nil, fmt.Errorf("counting by %s: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scanning %s count: %w", column, err)
		}
		result[key] = count
	}
	return result, rows.Err()
}

// CountByStatus returns a map of status -> count for all runs.
func CountByStatus(db *sql.DB) (map[string]int, error) {
	return countByColumn(db, "status")
}

// CountByDemo returns a map of demo -> count for all runs.
func CountByDemo(db *sql.DB) (map[string]int, error) {
	return countByColumn(db, "demo_id")
}

// FailedTables returns the tables that failed most often, most failures
// first. A limit of zero returns all of them.
func FailedTables(db *sql.DB, limit int) ([]TableFailures, error) {
	query := `SELECT table_name, COUNT(*) AS n FROM run_tables
		WHERE outcome = 'failed'
		GROUP BY table_name
		ORDER BY n DESC, table_name`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting failed tables: %w", err)
	}
	defer rows.Close()

	var out []TableFailures
	for rows.Next() {
		var f TableFailures
		if err := rows.Scan(&f.Table, &f.Count); err != nil {
			return nil, fmt.Errorf("scanning failed table: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
