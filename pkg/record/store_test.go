package record

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// memStore is an in-memory types.Store that records every call.
type memStore struct {
	tables      map[string][]types.Row
	nextID      int
	writes      int
	deletes     int
	selects     []types.Query
	ignoreLimit bool
	failTable   string
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string][]types.Row), nextID: 1}
}

func (m *memStore) matchRow(row types.Row, where types.Where) bool {
	for col, want := range where {
		if !looseEqual(row[col], want) {
			return false
		}
		if want == nil && row[col] != nil {
			return false
		}
	}
	return true
}

func (m *memStore) SelectWhere(_ context.Context, table string, q types.Query) ([]types.Row, error) {
	m.selects = append(m.selects, q)
	var out []types.Row
	for _, row := range m.tables[table] {
		if !m.matchRow(row, q.Where) {
			continue
		}
		if q.Match != nil && !q.Match(row) {
			continue
		}
		out = append(out, maps.Clone(row))
	}
	for i := len(q.Sort) - 1; i >= 0; i-- {
		s := q.Sort[i]
		sort.SliceStable(out, func(a, b int) bool {
			x, y := fmt.Sprint(out[a][s.Column]), fmt.Sprint(out[b][s.Column])
			if s.Desc {
				return x > y
			}
			return x < y
		})
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) && !m.ignoreLimit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, table string, where types.Where) (int, error) {
	n := 0
	for _, row := range m.tables[table] {
		if m.matchRow(row, where) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) InsertOrUpdate(_ context.Context, table string, w types.Write) (types.Row, error) {
	if table == m.failTable {
		return nil, fmt.Errorf("write to %s refused", table)
	}
	m.writes++
	row := types.Row(maps.Clone(w.Values))
	if !w.Exists {
		if len(w.PrimaryKeys) == 1 && row[w.PrimaryKeys[0]] == nil {
			row[w.PrimaryKeys[0]] = m.nextID
			m.nextID++
		}
		m.tables[table] = append(m.tables[table], row)
		return maps.Clone(row), nil
	}
	for i, existing := range m.tables[table] {
		if m.matchRow(existing, w.Keys) {
			m.tables[table][i] = row
			return maps.Clone(row), nil
		}
	}
	return nil, types.ErrNotFound
}

func (m *memStore) Delete(_ context.Context, table string, keys types.Where) error {
	rows := m.tables[table]
	for i, row := range rows {
		if m.matchRow(row, keys) {
			m.tables[table] = append(rows[:i:i], rows[i+1:]...)
			m.deletes++
			return nil
		}
	}
	return types.ErrNotFound
}

const customerYAML = `
table: customers
attributes: [id, name, email]
primary_keys: [id]
rules:
  - {attribute: email, type: required}
  - {attribute: email, type: email}
relations:
  - {name: orders, model: order, link: id, related_link: customer_id}
  - {name: profile, model: profile, link: id, related_link: customer_id, cardinality: one}
`

const orderYAML = `
table: orders
attributes: [id, customer_id, status, total]
primary_keys: [id]
rules:
  - {attribute: total, type: integer, options: {min: 0}}
`

const profileYAML = `
table: profiles
attributes: [id, customer_id, bio]
primary_keys: [id]
`

const noteYAML = `
table: notes
attributes: [id, body]
primary_keys: [id]
id_strategy: uuid
timestamps: true
soft_delete: true
`

func setupRegistry(t *testing.T) (*schema.Registry, *memStore) {
	t.Helper()
	fsys := fstest.MapFS{
		"customer.yaml": {Data: []byte(customerYAML)},
		"order.yaml":    {Data: []byte(orderYAML)},
		"profile.yaml":  {Data: []byte(profileYAML)},
		"note.yaml":     {Data: []byte(noteYAML)},
	}
	store := newMemStore()
	reg := schema.NewRegistry(schema.WithSource(fsys), schema.WithAdapter(store))
	return reg, store
}

func newCustomer(t *testing.T, reg *schema.Registry, values map[string]any) *Record {
	t.Helper()
	rec, err := New(reg, "customer")
	require.NoError(t, err)
	for k, v := range values {
		require.NoError(t, rec.Set(k, v))
	}
	return rec
}
