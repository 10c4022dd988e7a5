// Package postgres implements the PostgreSQL query façade for recordkit on
// a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/internal/sqlbuild"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Connection errors.
var (
	ErrParseConfig = errors.New("failed to parse postgres config")
	ErrConnect     = errors.New("failed to open postgres connection")
)

// Config holds pool and retry settings. Zero values select the defaults.
type Config struct {
	DSN           string
	MaxConns      int32
	RetryAttempts int
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
	return c
}

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements types.Store on PostgreSQL.
type Store struct {
	db     querier
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens a pool and pings it, retrying with a linearly growing wait.
// It gives up early when ctx is done.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Join(ErrParseConfig, err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	var lastErr error
	for i := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				logger.Debug("postgres connected", zap.String("host", poolCfg.ConnConfig.Host))
				return &Store{db: pool, pool: pool, logger: logger}, nil
			}
			pool.Close()
		}
		lastErr = err
		logger.Warn("postgres connect failed", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnect, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrConnect, lastErr)
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	s.logger.Debug("exec", zap.String("sql", query))
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

// SelectWhere implements types.Store.
func (s *Store) SelectWhere(ctx context.Context, table string, q types.Query) ([]types.Row, error) {
	st, err := sqlbuild.Select(sqlbuild.Postgres, table, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, st)
	if err != nil {
		return nil, err
	}
	return sqlbuild.ApplyMatch(rows, q), nil
}

// Count implements types.Store.
func (s *Store) Count(ctx context.Context, table string, where types.Where) (int, error) {
	st, err := sqlbuild.Count(sqlbuild.Postgres, table, where)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("count", zap.String("sql", st.SQL), zap.Any("args", st.Args))
	var n int64
	if err := s.db.QueryRow(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return int(n), nil
}

// InsertOrUpdate implements types.Store.
func (s *Store) InsertOrUpdate(ctx context.Context, table string, w types.Write) (types.Row, error) {
	var (
		st  sqlbuild.Statement
		err error
	)
	if w.Exists {
		st, err = sqlbuild.Update(sqlbuild.Postgres, table, w.Keys, w.Values)
	} else {
		st, err = sqlbuild.Insert(sqlbuild.Postgres, table, w.PrimaryKeys, w.Values)
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, st)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %v", types.ErrNotFound, table, w.Keys)
	}
	return rows[0], nil
}

// Delete implements types.Store.
func (s *Store) Delete(ctx context.Context, table string, keys types.Where) error {
	st, err := sqlbuild.Delete(sqlbuild.Postgres, table, keys)
	if err != nil {
		return err
	}
	s.logger.Debug("delete", zap.String("sql", st.SQL), zap.Any("args", st.Args))
	tag, err := s.db.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %v", types.ErrNotFound, table, keys)
	}
	return nil
}

func (s *Store) query(ctx context.Context, st sqlbuild.Statement) ([]types.Row, error) {
	s.logger.Debug("query", zap.String("sql", st.SQL), zap.Any("args", st.Args))
	rows, err := s.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	out := make([]types.Row, len(maps))
	for i, m := range maps {
		out[i] = types.Row(m)
	}
	return out, nil
}

var _ types.Store = (*Store)(nil)
