package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"frontdesk/internal/domain"
	"frontdesk/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver
	"github.com/rs/zerolog"
)

// Dialect selects the SQL flavour of a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DB is a store.Store over a single `records` table.
type DB struct {
	*sql.DB
	dialect Dialect
	path    string
	logger  *zerolog.Logger
	now     func() time.Time
}

var _ store.Store = (*DB)(nil)

// NewDB opens (creating if needed) the SQLite database at path and migrates it.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL keeps readers off the writer's lock; busy_timeout absorbs short write contention.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := Wrap(sqlDB, SQLite, logger)
	db.path = path
	if err := db.Migrate(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// NewPostgres connects through the pgx stdlib driver and migrates.
func NewPostgres(ctx context.Context, dsn string, logger *zerolog.Logger) (*DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(15 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := Wrap(sqlDB, Postgres, logger)
	if err := db.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Msg("Postgres store initialized")
	return db, nil
}

// Wrap adopts an open connection without migrating it.
func Wrap(sqlDB *sql.DB, dialect Dialect, logger *zerolog.Logger) *DB {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DB{DB: sqlDB, dialect: dialect, logger: logger, now: time.Now}
}

// Dialect reports the SQL flavour in use.
func (db *DB) Dialect() Dialect { return db.dialect }

// Path is the SQLite file path, empty for Postgres.
func (db *DB) Path() string { return db.path }

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	valueType, versionType, timeType := "BLOB", "INTEGER", "TIMESTAMP"
	if db.dialect == Postgres {
		valueType, versionType, timeType = "BYTEA", "BIGINT", "TIMESTAMPTZ"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
			clinic_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			value ` + valueType + ` NOT NULL,
			version ` + versionType + ` NOT NULL,
			updated_at ` + timeType + ` NOT NULL,
			PRIMARY KEY (clinic_id, kind, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_updated_at ON records(updated_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (db *DB) Get(ctx context.Context, key store.Key) (store.Record, error) {
	rec := store.Record{Key: key}
	err := db.QueryRowContext(ctx,
		db.rebind(`SELECT value, version, updated_at FROM records WHERE clinic_id = ? AND kind = ? AND id = ?`),
		key.ClinicID, string(key.Kind), key.ID,
	).Scan(&rec.Value, &rec.Version, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return store.Record{}, unavailable("get "+key.String(), err)
	}
	return rec, nil
}

func (db *DB) CompareAndSwap(ctx context.Context, key store.Key, expectedVersion int64, value []byte) (store.Record, error) {
	if err := key.Validate(); err != nil {
		return store.Record{}, err
	}
	now := db.now().UTC()

	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = db.ExecContext(ctx, db.rebind(
			`INSERT INTO records (clinic_id, kind, id, value, version, updated_at)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT (clinic_id, kind, id) DO NOTHING`),
			key.ClinicID, string(key.Kind), key.ID, value, now,
		)
	} else {
		res, err = db.ExecContext(ctx, db.rebind(
			`UPDATE records SET value = ?, version = version + 1, updated_at = ?
			WHERE clinic_id = ? AND kind = ? AND id = ? AND version = ?`),
			value, now, key.ClinicID, string(key.Kind), key.ID, expectedVersion,
		)
	}
	if err != nil {
		db.logger.Error().Err(err).Str("key", key.String()).Msg("compare-and-swap failed")
		return store.Record{}, unavailable("cas "+key.String(), err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return store.Record{}, unavailable("cas "+key.String(), err)
	}
	if rows == 0 {
		return store.Record{}, fmt.Errorf("%s at version %d: %w", key, expectedVersion, domain.ErrConcurrentUpdateConflict)
	}

	return store.Record{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   expectedVersion + 1,
		UpdatedAt: now,
	}, nil
}

func (db *DB) List(ctx context.Context, clinicID string, kind store.Kind) ([]store.Record, error) {
	rows, err := db.QueryContext(ctx,
		db.rebind(`SELECT id, value, version, updated_at FROM records WHERE clinic_id = ? AND kind = ? ORDER BY id`),
		clinicID, string(kind),
	)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		rec := store.Record{Key: store.Key{ClinicID: clinicID, Kind: kind}}
		if err := rows.Scan(&rec.Key.ID, &rec.Value, &rec.Version, &rec.UpdatedAt); err != nil {
			return nil, unavailable("list", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return out, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
