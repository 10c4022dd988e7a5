package types

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Row is one raw row as exchanged with a Store: column name to value.
type Row map[string]any

// Where is a set of column equality conditions joined with AND.
// A nil value matches SQL NULL.
type Where map[string]any

// Columns returns the condition columns in sorted order so that generated
// statements are deterministic.
func (w Where) Columns() []string {
	cols := make([]string, 0, len(w))
	for c := range w {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Sort orders query results by one column.
type Sort struct {
	Column string
	Desc   bool
}

// ParseSort parses "name", "name desc", "name:desc" or "-name".
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Sort{}, fmt.Errorf("%w: empty sort", ErrInvalidQuery)
	}
	if strings.HasPrefix(s, "-") {
		return Sort{Column: s[1:], Desc: true}, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ':' })
	switch len(fields) {
	case 1:
		return Sort{Column: fields[0]}, nil
	case 2:
		switch strings.ToLower(fields[1]) {
		case "asc":
			return Sort{Column: fields[0]}, nil
		case "desc":
			return Sort{Column: fields[0], Desc: true}, nil
		}
	}
	return Sort{}, fmt.Errorf("%w: bad sort %q", ErrInvalidQuery, s)
}

// Query describes a filtered fetch. Limit and Offset are ignored when zero.
// Match, when set, is applied by the store to every row that satisfies Where,
// before Offset and Limit are applied.
type Query struct {
	Where  Where
	Match  func(Row) bool
	Limit  int
	Offset int
	Sort   []Sort
}

// Write is a single persist request. Keys holds the primary key values the
// row was loaded with and is used to address the row when Exists is true.
type Write struct {
	PrimaryKeys []string
	Keys        Where
	Values      Row
	Exists      bool
}

// Store is the query façade the record core persists through. Conditions are
// attribute equality maps; the store translates them into its own query
// language. Implementations are synchronous and honour ctx cancellation.
type Store interface {
	// SelectWhere returns the rows of table matching q, in q.Sort order.
	SelectWhere(ctx context.Context, table string, q Query) ([]Row, error)

	// Count returns the number of rows of table matching where.
	Count(ctx context.Context, table string, where Where) (int, error)

	// InsertOrUpdate inserts w.Values when w.Exists is false and updates the
	// row addressed by w.Keys otherwise. It returns the row as stored,
	// including generated keys. Updating a missing row returns ErrNotFound.
	InsertOrUpdate(ctx context.Context, table string, w Write) (Row, error)

	// Delete removes the rows of table matching keys. Returns ErrNotFound if
	// nothing was deleted.
	Delete(ctx context.Context, table string, keys Where) error
}

// Configuration errors. ErrAdapterNotSet wraps ErrConfiguration.
var (
	ErrConfiguration = errors.New("invalid record configuration")
	ErrAdapterNotSet = fmt.Errorf("%w: no backing store adapter", ErrConfiguration)
)

// Record and relation errors.
var (
	ErrUndefinedAttribute = errors.New("undefined attribute")
	ErrMissingRules       = errors.New("missing rule/s to validate attribute")
	ErrRelationIntegrity  = errors.New("relation integrity violated")
	ErrUnknownRelation    = errors.New("unknown relation")
)

// Store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidQuery = errors.New("invalid query")
	ErrDetached     = errors.New("store is detached")
)
