// Package mysql implements the store interfaces on the platform's MySQL database.
//
// UUID columns are BINARY(16); every query converts with UUID_TO_BIN on the
// way in and BIN_TO_UUID on the way out so the Go side only sees text UUIDs.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"supportconsole/internal/store"

	driver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ConnectTimeout bounds the TCP + handshake phase of a new connection.
const ConnectTimeout = 10 * time.Second

// Store provides MySQL-backed implementations of all repositories.
type Store struct {
	db *sqlx.DB
}

var _ store.Repository = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "mysql")}
}

// DriverConfig builds the driver configuration for a database reached on
// 127.0.0.1:port (the local end of the tunnel). TLS is attempted when the
// server offers it, without certificate verification.
func DriverConfig(port int, user, password, database string) *driver.Config {
	cfg := driver.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = database
	cfg.Timeout = ConnectTimeout
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.TLSConfig = "preferred"
	// RowsAffected counts matched rows, so idempotent updates are not reported as misses
	cfg.ClientFoundRows = true
	return cfg
}

// Open connects to the database described by cfg. It does not verify the
// connection; callers ping with Ping. The pool holds a single connection, so
// every statement of a session, transactions included, goes over the same
// tunnelled connection.
func Open(cfg *driver.Config) (*sql.DB, error) {
	connector, err := driver.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// Ping runs the trivial round-trip query used to validate a new session.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to run connectivity check: %w", err)
	}
	return nil
}

// TableCount returns the number of tables in the connected schema.
func (s *Store) TableCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE()").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tables: %w", err)
	}
	return n, nil
}

// BeginTx starts a local transaction.
func (s *Store) BeginTx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) getExecutor(tx store.DBTransaction) store.DBTransaction {
	if tx != nil {
		return tx
	}
	return s.db
}

// get runs a single-row query into dest, mapping no rows to store.ErrNotFound.
func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	err := s.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// execOne runs a write and reports store.ErrNotFound when no row matched.
func (s *Store) execOne(ctx context.Context, tx store.DBTransaction, query string, args ...any) error {
	res, err := s.getExecutor(tx).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// nullUUIDArg binds id for UUID_TO_BIN(?), passing NULL when id is not set.
func nullUUIDArg(id uuid.NullUUID) any {
	if !id.Valid {
		return nil
	}
	return id.UUID.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
