package paginate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recordkit/pkg/record"
	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// sliceStore serves a fixed number of rows and remembers the last query.
type sliceStore struct {
	rows      []types.Row
	lastQuery types.Query
	lastCount types.Where
}

func newSliceStore(n int) *sliceStore {
	s := &sliceStore{}
	for i := 1; i <= n; i++ {
		s.rows = append(s.rows, types.Row{"id": i, "name": "item"})
	}
	return s
}

func (s *sliceStore) SelectWhere(_ context.Context, _ string, q types.Query) ([]types.Row, error) {
	s.lastQuery = q
	start := min(q.Offset, len(s.rows))
	end := len(s.rows)
	if q.Limit > 0 {
		end = min(start+q.Limit, end)
	}
	return s.rows[start:end], nil
}

func (s *sliceStore) Count(_ context.Context, _ string, where types.Where) (int, error) {
	s.lastCount = where
	return len(s.rows), nil
}

func (s *sliceStore) InsertOrUpdate(context.Context, string, types.Write) (types.Row, error) {
	return nil, nil
}

func (s *sliceStore) Delete(context.Context, string, types.Where) error { return nil }

func setupRepository(t *testing.T, n int) (*record.Repository, *sliceStore) {
	t.Helper()
	fsys := fstest.MapFS{"item.yaml": {Data: []byte("table: items\nattributes: [id, name]\nprimary_keys: [id]\n")}}
	store := newSliceStore(n)
	reg := schema.NewRegistry(schema.WithSource(fsys), schema.WithAdapter(store))
	repo, err := record.NewRepository(reg, "item")
	require.NoError(t, err)
	return repo, store
}

func itemIDs(t *testing.T, recs []*record.Record) []any {
	t.Helper()
	var out []any
	for _, r := range recs {
		v, err := r.Get("id")
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestRecordAdapterFiltersConditions(t *testing.T) {
	repo, store := setupRepository(t, 3)
	a := NewRecordAdapter(repo, map[string]any{"name": "item", "page": 2, "colour": "red"})
	assert.Equal(t, types.Where{"name": "item"}, a.Conditions())

	n, err := a.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, types.Where{"name": "item"}, store.lastCount)

	assert.Nil(t, NewRecordAdapter(repo, nil).Conditions())
}

func TestPaginator(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		items     int
		perPage   int
		page      int
		wantPages int
		wantIDs   []any
	}{
		{name: "first page default size", items: 25, page: 1, wantPages: 3, wantIDs: []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{name: "last partial page", items: 25, page: 3, wantPages: 3, wantIDs: []any{21, 22, 23, 24, 25}},
		{name: "page past the end is clamped", items: 25, page: 9, wantPages: 3, wantIDs: []any{21, 22, 23, 24, 25}},
		{name: "custom size", items: 7, perPage: 3, page: 2, wantPages: 3, wantIDs: []any{4, 5, 6}},
		{name: "zero size ignored", items: 12, perPage: 0, page: 2, wantPages: 2, wantIDs: []any{11, 12}},
		{name: "negative page is first", items: 4, perPage: 2, page: -1, wantPages: 2, wantIDs: []any{1, 2}},
		{name: "no items", items: 0, page: 1, wantPages: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := setupRepository(t, tt.items)
			p := ForRepository(repo, nil)
			p.SetDefaultItemCountPerPage(tt.perPage)
			p.SetCurrentPage(tt.page)

			pages, err := p.PageCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPages, pages)

			items, err := p.CurrentItems(ctx)
			require.NoError(t, err)
			if tt.wantIDs == nil {
				assert.Empty(t, items)
				return
			}
			assert.Equal(t, tt.wantIDs, itemIDs(t, items))
		})
	}
}

func TestPaginatorSort(t *testing.T) {
	repo, store := setupRepository(t, 3)
	p := New(NewRecordAdapter(repo, nil))
	ctx := context.Background()

	p.SetItemSort(types.Sort{Column: "name", Desc: true})
	_, err := p.CurrentItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Sort{{Column: "name", Desc: true}}, store.lastQuery.Sort)

	p.SetItemSort()
	_, err = p.CurrentItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Sort{{Column: "name", Desc: true}}, store.lastQuery.Sort, "empty sort is ignored")
}

func TestPages(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		items int
		page  int
		want  Pages
	}{
		{name: "middle", items: 30, page: 2, want: Pages{Current: 2, First: 1, Last: 3, Prev: 1, Next: 3, TotalItems: 30}},
		{name: "first", items: 30, page: 1, want: Pages{Current: 1, First: 1, Last: 3, Next: 2, TotalItems: 30}},
		{name: "last", items: 30, page: 3, want: Pages{Current: 3, First: 1, Last: 3, Prev: 2, TotalItems: 30}},
		{name: "empty", items: 0, page: 4, want: Pages{Current: 1, First: 1, Last: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := setupRepository(t, tt.items)
			p := ForRepository(repo, nil)
			p.SetCurrentPage(tt.page)
			got, err := p.Pages(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
