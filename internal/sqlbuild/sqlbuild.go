// Package sqlbuild renders the statements the SQL stores run. Identifiers
// are validated and quoted; values are always bound as arguments.
package sqlbuild

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Dialect selects placeholder and paging syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// Placeholder returns the bind marker for the n-th argument, starting at 1.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Quote validates name and returns it as a quoted identifier.
func Quote(name string) (string, error) {
	if !identRE.MatchString(name) {
		return "", fmt.Errorf("%w: bad identifier %q", types.ErrInvalidQuery, name)
	}
	return `"` + name + `"`, nil
}

// Statement is a rendered statement and its arguments.
type Statement struct {
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
	err  error
}

func (b *builder) write(s string) { b.sb.WriteString(s) }

func (b *builder) ident(name string) {
	q, err := Quote(name)
	if err != nil && b.err == nil {
		b.err = err
	}
	b.sb.WriteString(q)
}

func (b *builder) bind(v any) {
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.Placeholder(len(b.args)))
}

// where renders equality conditions in column order. A nil value renders as
// IS NULL.
func (b *builder) where(w types.Where) {
	for i, col := range w.Columns() {
		if i == 0 {
			b.write(" WHERE ")
		} else {
			b.write(" AND ")
		}
		b.ident(col)
		if v := w[col]; v == nil {
			b.write(" IS NULL")
		} else {
			b.write(" = ")
			b.bind(v)
		}
	}
}

func (b *builder) done() (Statement, error) {
	if b.err != nil {
		return Statement{}, b.err
	}
	return Statement{SQL: b.sb.String(), Args: b.args}, nil
}

// Select renders a SELECT for q. q.Match cannot be rendered, so when it is
// set the window is left out too and ApplyMatch finishes the query on the
// fetched rows.
func Select(d Dialect, table string, q types.Query) (Statement, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return Statement{}, fmt.Errorf("%w: negative limit or offset", types.ErrInvalidQuery)
	}
	if q.Match != nil {
		q.Limit, q.Offset = 0, 0
	}
	b := &builder{d: d}
	b.write("SELECT * FROM ")
	b.ident(table)
	b.where(q.Where)
	for i, s := range q.Sort {
		if i == 0 {
			b.write(" ORDER BY ")
		} else {
			b.write(", ")
		}
		b.ident(s.Column)
		if s.Desc {
			b.write(" DESC")
		} else {
			b.write(" ASC")
		}
	}
	switch {
	case q.Limit > 0:
		b.write(" LIMIT " + strconv.Itoa(q.Limit))
	case q.Offset > 0 && d == SQLite:
		// SQLite only accepts OFFSET after a LIMIT.
		b.write(" LIMIT -1")
	}
	if q.Offset > 0 {
		b.write(" OFFSET " + strconv.Itoa(q.Offset))
	}
	return b.done()
}

// Count renders a row count for where.
func Count(d Dialect, table string, where types.Where) (Statement, error) {
	b := &builder{d: d}
	b.write("SELECT COUNT(*) FROM ")
	b.ident(table)
	b.where(where)
	return b.done()
}

// Insert renders an INSERT of values returning the stored row. Primary key
// columns without a value are left out so the database can generate them.
func Insert(d Dialect, table string, primaryKeys []string, values types.Row) (Statement, error) {
	cols := make([]string, 0, len(values))
	for col, v := range values {
		if v == nil && slices.Contains(primaryKeys, col) {
			continue
		}
		cols = append(cols, col)
	}
	slices.Sort(cols)

	b := &builder{d: d}
	b.write("INSERT INTO ")
	b.ident(table)
	if len(cols) == 0 {
		b.write(" DEFAULT VALUES RETURNING *")
		return b.done()
	}
	b.write(" (")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.ident(col)
	}
	b.write(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.bind(values[col])
	}
	b.write(") RETURNING *")
	return b.done()
}

// Update renders an UPDATE of the row addressed by keys returning the stored
// row.
func Update(d Dialect, table string, keys types.Where, values types.Row) (Statement, error) {
	if len(keys) == 0 {
		return Statement{}, fmt.Errorf("%w: update of %s without keys", types.ErrInvalidQuery, table)
	}
	if len(values) == 0 {
		return Statement{}, fmt.Errorf("%w: update of %s without values", types.ErrInvalidQuery, table)
	}
	cols := types.Where(values).Columns()

	b := &builder{d: d}
	b.write("UPDATE ")
	b.ident(table)
	b.write(" SET ")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.ident(col)
		b.write(" = ")
		b.bind(values[col])
	}
	b.where(keys)
	b.write(" RETURNING *")
	return b.done()
}

// Delete renders a DELETE of the rows matching keys. An empty key set is
// rejected rather than deleting the whole table.
func Delete(d Dialect, table string, keys types.Where) (Statement, error) {
	if len(keys) == 0 {
		return Statement{}, fmt.Errorf("%w: delete from %s without keys", types.ErrInvalidQuery, table)
	}
	b := &builder{d: d}
	b.write("DELETE FROM ")
	b.ident(table)
	b.where(keys)
	return b.done()
}
