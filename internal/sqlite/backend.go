// Package sqlite implements the SQLite query façade for recordkit.
// It satisfies types.Store on top of modernc.org/sqlite and can dump and
// load a table as JSONL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/recordkit/internal/sqlbuild"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "records.db"

// ErrAlreadyAttached is returned by Attach on an attached backend.
var ErrAlreadyAttached = errors.New("sqlite backend already attached")

// Backend implements types.Store on a SQLite database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	logger   *zap.Logger
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to open the
// database. A nil logger discards output.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger}
}

// NewWithDB returns a backend attached to an already open database.
// Detach closes db.
func NewWithDB(db *sql.DB, logger *zap.Logger) *Backend {
	b := NewBackend(logger)
	b.db = db
	b.attached = true
	return b
}

// Attach opens DataDir/records.db, creating the directory if needed. The
// database file is kept across attaches.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendSQLite {
		return fmt.Errorf("%w: %s is not sqlite", types.ErrBackendUnknown, config.Backend)
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}

	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("sqlite attached", zap.String("path", dbPath))
	return nil
}

// Detach closes the database. After Detach, all operations return
// types.ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// DB returns the underlying database, or nil when detached.
func (b *Backend) DB() *sql.DB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db
}

// Exec runs a statement that returns no rows, such as DDL.
func (b *Backend) Exec(ctx context.Context, query string, args ...any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrDetached
	}
	b.logger.Debug("exec", zap.String("sql", query))
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}

// SelectWhere implements types.Store. When q.Match is set the window is
// applied after matching, in memory.
func (b *Backend) SelectWhere(ctx context.Context, table string, q types.Query) ([]types.Row, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	st, err := sqlbuild.Select(sqlbuild.SQLite, table, q)
	if err != nil {
		return nil, err
	}
	rows, err := b.query(ctx, st)
	if err != nil {
		return nil, err
	}
	return sqlbuild.ApplyMatch(rows, q), nil
}

// Count implements types.Store.
func (b *Backend) Count(ctx context.Context, table string, where types.Where) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return 0, types.ErrDetached
	}

	st, err := sqlbuild.Count(sqlbuild.SQLite, table, where)
	if err != nil {
		return 0, err
	}
	b.logger.Debug("count", zap.String("sql", st.SQL), zap.Any("args", st.Args))
	var n int
	if err := b.db.QueryRowContext(ctx, st.SQL, st.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// InsertOrUpdate implements types.Store.
func (b *Backend) InsertOrUpdate(ctx context.Context, table string, w types.Write) (types.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	var (
		st  sqlbuild.Statement
		err error
	)
	if w.Exists {
		st, err = sqlbuild.Update(sqlbuild.SQLite, table, w.Keys, w.Values)
	} else {
		st, err = sqlbuild.Insert(sqlbuild.SQLite, table, w.PrimaryKeys, w.Values)
	}
	if err != nil {
		return nil, err
	}
	rows, err := b.query(ctx, st)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %v", types.ErrNotFound, table, w.Keys)
	}
	return rows[0], nil
}

// Delete implements types.Store.
func (b *Backend) Delete(ctx context.Context, table string, keys types.Where) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	st, err := sqlbuild.Delete(sqlbuild.SQLite, table, keys)
	if err != nil {
		return err
	}
	b.logger.Debug("delete", zap.String("sql", st.SQL), zap.Any("args", st.Args))
	res, err := b.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %v", types.ErrNotFound, table, keys)
	}
	return nil
}

// query runs st and scans every row. The caller must hold b.mu.
func (b *Backend) query(ctx context.Context, st sqlbuild.Statement) ([]types.Row, error) {
	b.logger.Debug("query", zap.String("sql", st.SQL), zap.Any("args", st.Args))
	rows, err := b.db.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}
