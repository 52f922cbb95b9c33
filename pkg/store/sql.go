package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLStore keeps documents in a plain documents table on postgres or mysql.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

var sqlDrivers = map[string]string{
	"postgres": "postgres",
	"mysql":    "mysql",
}

func NewSQLStore(ctx context.Context, dialect, dsn string) (*SQLStore, error) {
	driver, ok := sqlDrivers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
	sdb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	sdb.SetMaxOpenConns(4)
	sdb.SetConnMaxIdleTime(5 * time.Minute)
	if err := sdb.PingContext(ctx); err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	s := &SQLStore{db: sdb, dialect: dialect}
	if _, err := sdb.ExecContext(ctx, s.createTableSQL()); err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createTableSQL() string {
	if s.dialect == "mysql" {
		return "CREATE TABLE IF NOT EXISTS documents (`key` VARCHAR(200) PRIMARY KEY, value LONGBLOB NOT NULL, updated_at DATETIME(3) NOT NULL)"
	}
	return "CREATE TABLE IF NOT EXISTS documents (key VARCHAR(200) PRIMARY KEY, value BYTEA NOT NULL, updated_at TIMESTAMPTZ NOT NULL)"
}

func (s *SQLStore) selectSQL() string {
	if s.dialect == "mysql" {
		return "SELECT value FROM documents WHERE `key` = ?"
	}
	return "SELECT value FROM documents WHERE key = $1"
}

func (s *SQLStore) upsertSQL() string {
	if s.dialect == "mysql" {
		return "INSERT INTO documents (`key`, value, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)"
	}
	return "INSERT INTO documents (key, value, updated_at) VALUES ($1, $2, $3) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at"
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.selectSQL(), key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.upsertSQL(), key, value, time.Now().UTC())
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
