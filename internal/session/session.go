// Package session owns one operator login: the tunnel to the environment's
// database, the connection behind it and the operator identity recorded in
// audit rows.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"supportconsole/internal/config"
	"supportconsole/internal/logger"
	"supportconsole/internal/store"
	"supportconsole/internal/store/mysql"
	"supportconsole/internal/tunnel"

	driver "github.com/go-sql-driver/mysql"
)

// ErrOperatorRequired is returned by Open when no operator name is given.
var ErrOperatorRequired = errors.New("operator name is required")

// Tunnel is the forwarding channel a session owns.
type Tunnel interface {
	Port() int
	Close()
}

// TunnelOpener establishes the forwarding channel to an environment's database pod.
type TunnelOpener func(ctx context.Context, access config.ClusterAccess, env config.EnvironmentConfig, opts tunnel.Options) (Tunnel, error)

// DBOpener connects to the database at the local end of the tunnel.
type DBOpener func(cfg *driver.Config) (*sql.DB, error)

// Migrator ensures the console-owned tables exist.
type Migrator func(db *sql.DB) error

type options struct {
	openTunnel TunnelOpener
	openDB     DBOpener
	migrate    Migrator
	logger     *slog.Logger
}

// Option customizes Open.
type Option func(*options)

// WithTunnelOpener replaces the kubectl tunnel.
func WithTunnelOpener(fn TunnelOpener) Option {
	return func(o *options) { o.openTunnel = fn }
}

// WithDBOpener replaces the MySQL connector.
func WithDBOpener(fn DBOpener) Option {
	return func(o *options) { o.openDB = fn }
}

// WithMigrator replaces the audit table migration.
func WithMigrator(fn Migrator) Option {
	return func(o *options) { o.migrate = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func openKubectlTunnel(ctx context.Context, access config.ClusterAccess, env config.EnvironmentConfig, opts tunnel.Options) (Tunnel, error) {
	t, err := tunnel.Open(ctx, access, env, opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Session is a live, authenticated database connection for one environment.
// The environment and operator never change after Open.
type Session struct {
	env      config.Environment
	operator string
	dbName   string

	db     *sql.DB
	store  *mysql.Store
	tunnel Tunnel
	logger *slog.Logger

	closeOnce sync.Once
}

// Open establishes the tunnel, connects, validates the connection and
// ensures the audit table. On any failure every resource acquired so far is
// released and a *Error describing the cause is returned.
func Open(ctx context.Context, cfg *config.Config, env config.Environment, operator string, opts ...Option) (*Session, error) {
	o := options{
		openTunnel: openKubectlTunnel,
		openDB:     mysql.Open,
		migrate:    mysql.Migrate,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	operator = strings.TrimSpace(operator)
	if operator == "" {
		return nil, ErrOperatorRequired
	}

	ec, err := cfg.Environment(env)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, o.logger).With("environment", string(env))
	log.Info("opening tunnel", "pod", ec.PodName, "namespace", ec.Namespace)

	tun, err := o.openTunnel(ctx, cfg.Cluster, ec, tunnel.Options{
		KubectlPath: cfg.KubectlPath,
		Timeout:     cfg.TunnelTimeout,
		Logger:      o.logger,
	})
	if err != nil {
		return nil, classify(err, env, ec)
	}

	db, err := o.openDB(mysql.DriverConfig(tun.Port(), ec.DBUser, ec.DBPassword, ec.DBName))
	if err != nil {
		tun.Close()
		return nil, classify(err, env, ec)
	}

	s := &Session{
		env:      env,
		operator: operator,
		dbName:   ec.DBName,
		db:       db,
		store:    mysql.New(db),
		tunnel:   tun,
		logger:   o.logger,
	}

	if err := s.store.Ping(ctx); err != nil {
		s.Close()
		return nil, classify(err, env, ec)
	}

	if err := o.migrate(db); err != nil {
		s.Close()
		return nil, classify(fmt.Errorf("failed to ensure audit table: %w", err), env, ec)
	}

	log.Info("session opened", "database", ec.DBName, "operator", operator)
	return s, nil
}

// Environment returns the environment the session is bound to.
func (s *Session) Environment() config.Environment { return s.env }

// Operator returns the operator name recorded in audit rows.
func (s *Session) Operator() string { return s.operator }

// DatabaseName returns the schema the session is connected to.
func (s *Session) DatabaseName() string { return s.dbName }

// Store returns the repositories backed by this session's connection.
func (s *Session) Store() *mysql.Store { return s.store }

// Ping re-validates the connection.
func (s *Session) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// TableCount returns the number of tables in the connected schema.
func (s *Session) TableCount(ctx context.Context) (int, error) {
	return s.store.TableCount(ctx)
}

// Begin starts a local transaction. The caller must Commit or Rollback it.
func (s *Session) Begin(ctx context.Context) (store.Tx, error) {
	return s.store.BeginTx(ctx)
}

// WithTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func (s *Session) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return store.RunInTx(ctx, s.store, fn)
}

// Close releases the connection and then the tunnel. Errors are logged and
// swallowed; calling Close more than once is safe.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				s.logger.Debug("failed to close database connection", "error", err)
			}
		}
		if s.tunnel != nil {
			s.tunnel.Close()
		}
		s.logger.Info("session closed", "environment", string(s.env))
	})
}
