package record

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

func seedOrders(store *memStore) {
	store.tables["customers"] = []types.Row{
		{"id": 1, "name": "Ann", "email": "ann@example.com"},
		{"id": 2, "name": "Bob", "email": "bob@example.com"},
	}
	store.tables["orders"] = []types.Row{
		{"id": 10, "customer_id": 1, "status": "open", "total": 5},
		{"id": 11, "customer_id": 2, "status": "open", "total": 7},
		{"id": 12, "customer_id": 1, "status": "paid", "total": 9},
	}
	store.tables["profiles"] = []types.Row{
		{"id": 20, "customer_id": 1, "bio": "first"},
		{"id": 21, "customer_id": 1, "bio": "second"},
	}
}

func storedCustomer(t *testing.T, reg *schema.Registry, store *memStore, id int) *Record {
	t.Helper()
	rec := newCustomer(t, reg, nil)
	for _, row := range store.tables["customers"] {
		if row["id"] == id {
			rec.Populate(row, true)
			return rec
		}
	}
	t.Fatalf("customer %d not seeded", id)
	return nil
}

func ids(t *testing.T, recs []*Record) []any {
	t.Helper()
	out := make([]any, 0, len(recs))
	for _, r := range recs {
		v, err := r.Get("id")
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestResolveFetchesByLinkValue(t *testing.T) {
	reg, store := setupRegistry(t)
	seedOrders(store)
	ann := storedCustomer(t, reg, store, 1)

	orders, err := ann.Related(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, []any{10, 12}, ids(t, orders))
	for _, o := range orders {
		assert.True(t, o.ExistsInStore())
		assert.False(t, o.IsDirty())
	}

	require.Len(t, store.selects, 1)
	assert.Equal(t, types.Where{"customer_id": 1}, store.selects[0].Where)
	assert.Zero(t, store.selects[0].Limit)

	// Resolved relations are cached until resolved again.
	_, err = ann.Related(context.Background(), "orders")
	require.NoError(t, err)
	assert.Len(t, store.selects, 1)
}

func TestResolveSingleKeepsOneRecord(t *testing.T) {
	reg, store := setupRegistry(t)
	seedOrders(store)
	store.ignoreLimit = true
	ann := storedCustomer(t, reg, store, 1)

	rel, err := ann.Relation("profile")
	require.NoError(t, err)
	require.NoError(t, rel.Resolve(context.Background()))

	assert.True(t, rel.IsResolved())
	assert.Equal(t, 1, rel.Len())
	assert.Equal(t, 1, store.selects[0].Limit)
}

func TestResolveReplacesHeldRecords(t *testing.T) {
	reg, store := setupRegistry(t)
	seedOrders(store)
	ann := storedCustomer(t, reg, store, 1)
	rel, err := ann.Relation("orders")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, rel.Resolve(ctx))
	require.NoError(t, ann.Set("id", 2))
	assert.Equal(t, 2, rel.Len(), "not refreshed until resolved again")

	require.NoError(t, rel.Resolve(ctx))
	assert.Equal(t, []any{11}, ids(t, rel.Records()))
}

func TestResolveWithoutLinkValue(t *testing.T) {
	reg, store := setupRegistry(t)
	seedOrders(store)
	rec := newCustomer(t, reg, nil)

	orders, err := rec.Related(context.Background(), "orders")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, store.selects)
}

func TestResolveSyncsAdapter(t *testing.T) {
	fsys := fstest.MapFS{
		"customer.yaml": {Data: []byte(customerYAML)},
		"order.yaml":    {Data: []byte(orderYAML)},
	}
	store := newMemStore()
	seedOrders(store)
	reg := schema.NewRegistry(schema.WithSource(fsys))
	reg.SetAdapter("customer", store)

	_, err := reg.Adapter("order")
	require.ErrorIs(t, err, types.ErrAdapterNotSet)

	ann := storedCustomer(t, reg, store, 1)
	_, err = ann.Related(context.Background(), "orders")
	require.NoError(t, err)

	got, err := reg.Adapter("order")
	require.NoError(t, err)
	assert.Same(t, store, got)
}

func TestAddRelated(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name         string
		relation     string
		model        string
		wantErr      error
		wantLen      int
		wantResolved bool
	}{
		{name: "many grows by one", relation: "orders", model: "order", wantLen: 3, wantResolved: true},
		{name: "single already full", relation: "profile", model: "profile", wantErr: types.ErrRelationIntegrity, wantLen: 1, wantResolved: true},
		{name: "wrong type", relation: "orders", model: "profile", wantErr: types.ErrRelationIntegrity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, store := setupRegistry(t)
			seedOrders(store)
			ann := storedCustomer(t, reg, store, 1)
			rel, err := ann.Relation(tt.relation)
			require.NoError(t, err)

			added, err := New(reg, tt.model)
			require.NoError(t, err)
			require.NoError(t, added.Set("id", 99))

			err = rel.AddRelated(ctx, added)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Same(t, added, rel.Get("99"))
			}
			assert.Equal(t, tt.wantResolved, rel.IsResolved())
			assert.Equal(t, tt.wantLen, rel.Len())
		})
	}
}

func TestAddRelatedSameKeyOverwrites(t *testing.T) {
	reg, _ := setupRegistry(t)
	rec := newCustomer(t, reg, nil)
	rel, err := rec.Relation("orders")
	require.NoError(t, err)
	ctx := context.Background()

	first, _ := New(reg, "order")
	require.NoError(t, first.Set("id", 1))
	second, _ := New(reg, "order")
	require.NoError(t, second.Set("id", 1))
	third, _ := New(reg, "order")
	require.NoError(t, third.Set("id", 2))

	require.NoError(t, rel.AddRelated(ctx, first))
	require.NoError(t, rel.AddRelated(ctx, second))
	require.NoError(t, rel.AddRelated(ctx, third))

	assert.Equal(t, 2, rel.Len())
	assert.Same(t, second, rel.Get("1"))
	assert.Equal(t, []*Record{second, third}, rel.Records())
}

func TestRemoveRelated(t *testing.T) {
	reg, store := setupRegistry(t)
	seedOrders(store)
	ann := storedCustomer(t, reg, store, 1)
	rel, err := ann.Relation("orders")
	require.NoError(t, err)
	orders, err := rel.Related(context.Background())
	require.NoError(t, err)

	removed := rel.RemoveRelated(orders[0])
	assert.Same(t, orders[0], removed)
	assert.Equal(t, 1, rel.Len())
	assert.Nil(t, rel.RemoveRelated(orders[0]))

	stranger, _ := New(reg, "order")
	require.NoError(t, stranger.Set("id", 404))
	assert.Nil(t, rel.RemoveRelated(stranger))
	assert.Nil(t, rel.RemoveRelated(nil))
}

func TestFindRelated(t *testing.T) {
	reg, store := setupRegistry(t)
	seedOrders(store)
	store.tables["orders"] = append(store.tables["orders"],
		types.Row{"id": 13, "customer_id": 1, "status": "open", "total": 1})
	ann := storedCustomer(t, reg, store, 1)
	rel, err := ann.Relation("orders")
	require.NoError(t, err)
	ctx := context.Background()

	first, err := rel.FindRelated(ctx, Where{"status": "open"})
	require.NoError(t, err)
	require.NotNil(t, first)
	id, _ := first.Get("id")
	assert.Equal(t, 10, id)

	all, err := rel.FindAllRelated(ctx, Where{"status": "open"})
	require.NoError(t, err)
	assert.Equal(t, []any{10, 13}, ids(t, all))

	big, err := ann.FindRelated(ctx, "orders", Predicate(func(r *Record) bool {
		total, _ := r.Get("total")
		return total.(int) > 4
	}))
	require.NoError(t, err)
	assert.Equal(t, []any{10, 12}, ids(t, big))

	none, err := rel.FindRelated(ctx, Where{"status": "void"})
	require.NoError(t, err)
	assert.Nil(t, none)

	unknown, err := rel.FindAllRelated(ctx, Where{"colour": "red"})
	require.NoError(t, err)
	assert.Empty(t, unknown)

	everything, err := rel.FindAllRelated(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestNewRelationWithLinkFunc(t *testing.T) {
	reg, store := setupRegistry(t)
	seedOrders(store)
	bob := storedCustomer(t, reg, store, 2)

	link := LinkFunc(func(r *Record) any {
		if r.Type().Name == "customer" {
			v, _ := r.Get("id")
			return v
		}
		v, _ := r.Get("customer_id")
		return v
	})
	rel, err := NewRelation(bob, "purchases", "order", link, "customer_id", types.CardinalityMany)
	require.NoError(t, err)
	require.NoError(t, bob.AddRelation(rel))

	purchases, err := bob.Related(context.Background(), "purchases")
	require.NoError(t, err)
	assert.Equal(t, []any{11}, ids(t, purchases))
	assert.NotNil(t, rel.Get("2"), "held under the computed link value")
}

func TestNewRelationErrors(t *testing.T) {
	reg, _ := setupRegistry(t)
	owner := newCustomer(t, reg, nil)
	other := newCustomer(t, reg, nil)

	tests := []struct {
		name    string
		link    Link
		related string
		card    types.Cardinality
		wantErr error
	}{
		{name: "zero link", related: "customer_id", wantErr: types.ErrConfiguration},
		{name: "unknown link attribute", link: LinkAttribute("code"), related: "customer_id", wantErr: types.ErrUndefinedAttribute},
		{name: "no related link", link: LinkAttribute("id"), wantErr: types.ErrConfiguration},
		{name: "bad cardinality", link: LinkAttribute("id"), related: "customer_id", card: "some", wantErr: types.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRelation(owner, "orders", "order", tt.link, tt.related, tt.card)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	rel, err := NewRelation(owner, "orders", "order", LinkAttribute("id"), "customer_id", types.CardinalityMany)
	require.NoError(t, err)
	assert.ErrorIs(t, other.AddRelation(rel), types.ErrRelationIntegrity)
	assert.ErrorIs(t, rel.LinkBy(Link{}), types.ErrConfiguration)
}

func TestRelationSaveCascades(t *testing.T) {
	reg, store := setupRegistry(t)
	ann := newCustomer(t, reg, map[string]any{"name": "Ann", "email": "ann@example.com"})
	rel, err := ann.Relation("orders")
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []int{100, 101} {
		o, err := New(reg, "order")
		require.NoError(t, err)
		require.NoError(t, o.Set("id", id))
		require.NoError(t, o.Set("customer_id", 1))
		require.NoError(t, rel.AddRelated(ctx, o))
	}

	ok, err := rel.Save(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, store.tables["customers"], 1)
	assert.Len(t, store.tables["orders"], 2)
}

func TestRelationSaveIsNotAtomic(t *testing.T) {
	reg, store := setupRegistry(t)
	store.failTable = "orders"
	ann := newCustomer(t, reg, map[string]any{"name": "Ann", "email": "ann@example.com"})
	rel, err := ann.Relation("orders")
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []int{100, 101} {
		o, _ := New(reg, "order")
		require.NoError(t, o.Set("id", id))
		require.NoError(t, rel.AddRelated(ctx, o))
	}

	ok, err := rel.Save(ctx)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2, "every related save is attempted")
	assert.Len(t, store.tables["customers"], 1, "owner write is kept")
	assert.True(t, ann.ExistsInStore())
}

func TestRelationSaveInvalidRelated(t *testing.T) {
	reg, store := setupRegistry(t)
	ann := newCustomer(t, reg, map[string]any{"name": "Ann", "email": "ann@example.com"})
	rel, err := ann.Relation("orders")
	require.NoError(t, err)

	o, _ := New(reg, "order")
	require.NoError(t, o.Set("id", 5))
	require.NoError(t, o.Set("total", -1))
	require.NoError(t, rel.AddRelated(context.Background(), o))

	ok, err := rel.Save(context.Background())
	require.NoError(t, err, "validation failures are not errors")
	assert.False(t, ok)
	assert.Empty(t, store.tables["orders"])
}
