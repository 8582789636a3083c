// Package wpdb is the live WordPress database the importer writes into.
package wpdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// safePrefix matches table prefixes that can be interpolated into SQL.
var safePrefix = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Config holds what Open needs to reach the database.
type Config struct {
	DSN            string
	Prefix         string
	ConnectTimeout time.Duration
}

// DB is a WordPress installation's database: its tables under one prefix and
// the options and user-meta APIs WordPress layers on top of them.
type DB struct {
	db     *sqlx.DB
	prefix string
	log    *zap.Logger

	mu      sync.Mutex
	options map[string]cachedOption
}

type cachedOption struct {
	value string
	found bool
}

// Open connects to MySQL and waits, with exponential backoff, until the
// server answers a ping or ConnectTimeout elapses.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*DB, error) {
	if !safePrefix.MatchString(cfg.Prefix) {
		return nil, fmt.Errorf("invalid table prefix %q", cfg.Prefix)
	}
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	if mc.DBName == "" {
		return nil, errors.New("dsn does not name a database")
	}
	mc.MultiStatements = false
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	if _, ok := mc.Params["charset"]; !ok {
		mc.Params["charset"] = "utf8mb4"
	}

	db, err := sqlx.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Session settings such as foreign_key_checks must apply to every
	// statement of a run, so the pool holds exactly one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.Warn("database not reachable yet",
				zap.Int("attempt", attempt), zap.String("addr", mc.Addr), zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", mc.Addr, err)
	}

	log.Debug("connected to database", zap.String("addr", mc.Addr), zap.String("db", mc.DBName))
	return New(db, cfg.Prefix, log), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, prefix string, log *zap.Logger) *DB {
	if log == nil {
		log = zap.NewNop()
	}
	return &DB{db: db, prefix: prefix, log: log, options: map[string]cachedOption{}}
}

// Close closes the underlying pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Prefix returns the live table prefix.
func (d *DB) Prefix() string { return d.prefix }

// Table returns the live name of a bare table name.
func (d *DB) Table(bare string) string { return d.prefix + bare }

func (d *DB) quoted(bare string) string {
	return quoteIdent(d.Table(bare))
}

// Exec runs one raw statement. Statements are sent without placeholders, so
// question marks inside dump text are not interpreted.
func (d *DB) Exec(ctx context.Context, stmt string) error {
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return err
	}
	return nil
}

// TableExists reports whether table exists in the connected schema.
func (d *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := d.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`,
		table)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return n > 0, nil
}

// Truncate empties table.
func (d *DB) Truncate(ctx context.Context, table string) error {
	if _, err := d.db.ExecContext(ctx, "TRUNCATE TABLE "+quoteIdent(table)); err != nil {
		return fmt.Errorf("truncating %s: %w", table, err)
	}
	return nil
}

// SetForeignKeyChecks toggles foreign key enforcement for the session.
func (d *DB) SetForeignKeyChecks(ctx context.Context, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	if _, err := d.db.ExecContext(ctx, fmt.Sprintf("SET foreign_key_checks = %d", v)); err != nil {
		return fmt.Errorf("setting foreign_key_checks=%d: %w", v, err)
	}
	return nil
}

// FlushCache drops cached option values so the next read goes to the
// database.
func (d *DB) FlushCache() {
	d.mu.Lock()
	d.options = map[string]cachedOption{}
	d.mu.Unlock()
}

func quoteIdent(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '`')
	for i := 0; i < len(name); i++ {
		if name[i] == '`' {
			out = append(out, '`')
		}
		out = append(out, name[i])
	}
	return string(append(out, '`'))
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
