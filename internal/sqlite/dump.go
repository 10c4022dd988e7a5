package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/internal/sqlbuild"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Dump writes every row of table to path as JSONL, ordered by sort, and
// returns the number of rows written.
func (b *Backend) Dump(ctx context.Context, table, path string, sort ...types.Sort) (int, error) {
	rows, err := b.SelectWhere(ctx, table, types.Query{Sort: sort})
	if err != nil {
		return 0, err
	}
	lines := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("encoding %s row: %w", table, err)
		}
		lines = append(lines, line)
	}
	if err := writeJSONL(path, lines); err != nil {
		return 0, err
	}
	b.logger.Info("table dumped", zap.String("table", table), zap.String("path", path), zap.Int("rows", len(rows)))
	return len(rows), nil
}

// Load inserts the JSONL records in path into table inside one transaction
// and returns the number of rows inserted. Only the given columns are
// taken from each record; other fields are ignored. Malformed lines and
// records the database rejects are skipped.
func (b *Backend) Load(ctx context.Context, table string, columns []string, path string) (int, error) {
	lines, err := readJSONL(path)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return 0, types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	loaded := 0
	for _, line := range lines {
		row, err := decodeRow(line, columns)
		if err != nil || len(row) == 0 {
			continue
		}
		st, err := sqlbuild.Insert(sqlbuild.SQLite, table, nil, row)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, st.SQL, st.Args...); err != nil {
			b.logger.Debug("skipping rejected record", zap.String("table", table), zap.Error(err))
			continue
		}
		loaded++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	b.logger.Info("table loaded", zap.String("table", table), zap.String("path", path), zap.Int("rows", loaded))
	return loaded, nil
}

// decodeRow extracts columns from one JSON object. Whole numbers become
// int64; nested objects and arrays are stored as their JSON text.
func decodeRow(line json.RawMessage, columns []string) (types.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	row := make(types.Row, len(columns))
	for col, val := range obj {
		if !slices.Contains(columns, col) {
			continue
		}
		switch v := val.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				row[col] = n
			} else if f, err := v.Float64(); err == nil {
				row[col] = f
			} else {
				row[col] = v.String()
			}
		case map[string]any, []any:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			row[col] = string(raw)
		default:
			row[col] = v
		}
	}
	return row, nil
}
