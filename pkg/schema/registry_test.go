package schema

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

const customerYAML = `
table: customers
attributes: [id, name, email]
primary_keys: [id]
rules:
  - attribute: email
    type: required
  - attribute: email
    type: email
  - attribute: name
    type: string
    options: {min: 1, max: 64}
relations:
  - name: orders
    model: order
    link: id
    related_link: customer_id
`

func TestLoadCachesDescriptor(t *testing.T) {
	fsys := fstest.MapFS{"customer.yaml": {Data: []byte(customerYAML)}}
	reg := NewRegistry(WithSource(fsys))

	assert.False(t, reg.IsLoaded("customer"))
	rt, err := reg.Load("customer")
	require.NoError(t, err)
	assert.True(t, reg.IsLoaded("customer"))

	assert.Equal(t, "customers", rt.Table)
	assert.Equal(t, []string{"id", "name", "email"}, rt.Attributes)
	assert.Equal(t, []string{"id"}, rt.PrimaryKeys)
	assert.Len(t, rt.Rules, 3)
	assert.Equal(t, types.RuleEmail, rt.Rules[1].Kind)
	assert.Equal(t, 64, rt.Rules[2].Options["max"])

	// The source is not read again once the type is cached.
	delete(fsys, "customer.yaml")
	again, err := reg.Load("customer")
	require.NoError(t, err)
	assert.Same(t, rt, again)
}

func TestLoadYMLExtension(t *testing.T) {
	fsys := fstest.MapFS{"customer.yml": {Data: []byte(customerYAML)}}
	rt, err := NewRegistry(WithSource(fsys)).Load("customer")
	require.NoError(t, err)
	assert.Equal(t, "customer", rt.Name)
}

func TestLoadConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"rule on primary key", `
table: customers
attributes: [id, name]
primary_keys: [id]
rules:
  - {attribute: id, type: string}
`},
		{"rule on unknown attribute", `
table: customers
attributes: [id, name]
primary_keys: [id]
rules:
  - {attribute: phone, type: required}
`},
		{"rule without type", `
table: customers
attributes: [id, name]
rules:
  - {attribute: name}
`},
		{"malformed yaml", "table: [customers\n"},
		{"unknown key", "table: customers\nattributes: [id]\ncolour: blue\n"},
		{"empty descriptor", ""},
		{"missing table", "attributes: [id]\n"},
		{"missing attributes", "table: customers\n"},
		{"duplicate attribute", "table: customers\nattributes: [id, id]\n"},
		{"primary key not an attribute", "table: customers\nattributes: [name]\nprimary_keys: [id]\n"},
		{"relation without model", `
table: customers
attributes: [id]
relations:
  - {name: orders, link: id, related_link: customer_id}
`},
		{"relation with unknown link", `
table: customers
attributes: [id]
relations:
  - {name: orders, model: order, link: code, related_link: customer_id}
`},
		{"relation with bad cardinality", `
table: customers
attributes: [id]
relations:
  - {name: orders, model: order, link: id, related_link: customer_id, cardinality: few}
`},
		{"duplicate relation", `
table: customers
attributes: [id]
relations:
  - {name: orders, model: order, link: id, related_link: customer_id}
  - {name: orders, model: order, link: id, related_link: customer_id}
`},
		{"unknown id strategy", "table: customers\nattributes: [id]\nprimary_keys: [id]\nid_strategy: serial\n"},
		{"uuid without single key", "table: customers\nattributes: [a, b]\nprimary_keys: [a, b]\nid_strategy: uuid\n"},
		{"timestamps not bool or map", "table: customers\nattributes: [id]\ntimestamps: [1]\n"},
		{"bad time zone", "table: customers\nattributes: [id]\ntimestamps: {time_zone: Mars/Olympus}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(WithSource(fstest.MapFS{"customer.yaml": {Data: []byte(tt.yaml)}}))
			_, err := reg.Load("customer")
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfiguration)
			assert.False(t, reg.IsLoaded("customer"))
		})
	}
}

func TestLoadMissingDescriptor(t *testing.T) {
	reg := NewRegistry(WithSource(fstest.MapFS{}))
	_, err := reg.Load("customer")
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = NewRegistry().Load("customer")
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = reg.Load("../customer")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestPolicyColumnsAppended(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantAttrs []string
		check     func(t *testing.T, rt *RecordType)
	}{
		{
			name:      "timestamps true uses defaults",
			yaml:      "table: t\nattributes: [id]\ntimestamps: true\n",
			wantAttrs: []string{"id", "updated", "created"},
			check: func(t *testing.T, rt *RecordType) {
				require.NotNil(t, rt.Timestamps)
				assert.Equal(t, DefaultTimestampFormat, rt.Timestamps.Format)
				assert.Equal(t, "UTC", rt.Timestamps.TimeZone)
				assert.Nil(t, rt.SoftDelete)
			},
		},
		{
			name:      "timestamps false",
			yaml:      "table: t\nattributes: [id]\ntimestamps: false\n",
			wantAttrs: []string{"id"},
			check: func(t *testing.T, rt *RecordType) {
				assert.Nil(t, rt.Timestamps)
			},
		},
		{
			name:      "custom columns not duplicated",
			yaml:      "table: t\nattributes: [id, changed_on]\ntimestamps: {created: made_on, updated: changed_on}\n",
			wantAttrs: []string{"id", "changed_on", "made_on"},
		},
		{
			name:      "soft delete default column",
			yaml:      "table: t\nattributes: [id]\nsoft_delete: true\n",
			wantAttrs: []string{"id", "deleted_at"},
			check: func(t *testing.T, rt *RecordType) {
				require.NotNil(t, rt.SoftDelete)
				assert.Equal(t, "deleted_at", rt.SoftDelete.Column)
			},
		},
		{
			name:      "soft delete custom column",
			yaml:      "table: t\nattributes: [id]\nsoft_delete: {column: removed}\n",
			wantAttrs: []string{"id", "removed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := Parse("t", []byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.wantAttrs, rt.Attributes)
			for _, a := range tt.wantAttrs {
				assert.True(t, rt.HasAttribute(a))
			}
			if tt.check != nil {
				tt.check(t, rt)
			}
		})
	}
}

func TestRecordTypeLookups(t *testing.T) {
	rt, err := Parse("customer", []byte(customerYAML))
	require.NoError(t, err)

	assert.True(t, rt.HasAttribute("email"))
	assert.False(t, rt.HasAttribute("phone"))
	assert.True(t, rt.IsPrimaryKey("id"))
	assert.False(t, rt.IsPrimaryKey("name"))

	emailRules := rt.RulesFor("email")
	require.Len(t, emailRules, 2)
	assert.Equal(t, types.RuleRequired, emailRules[0].Kind)
	assert.Equal(t, types.RuleEmail, emailRules[1].Kind)
	assert.Empty(t, rt.RulesFor("id"))
	assert.Nil(t, rt.RulesFor("phone"))

	rel, ok := rt.Relation("orders")
	require.True(t, ok)
	assert.Equal(t, "order", rel.Model)
	assert.False(t, rel.Cardinality.Single())
	_, ok = rt.Relation("invoices")
	assert.False(t, ok)
}

func TestSetCopiesAndValidates(t *testing.T) {
	reg := NewRegistry()
	attrs := []string{"id", "name"}
	rt, err := reg.Set(RecordType{Name: "tag", Table: "tags", Attributes: attrs, PrimaryKeys: []string{"id"}})
	require.NoError(t, err)
	assert.True(t, reg.IsLoaded("tag"))

	attrs[1] = "label"
	assert.True(t, rt.HasAttribute("name"), "registered type must not share the caller's slice")

	loaded, err := reg.Load("tag")
	require.NoError(t, err)
	assert.Same(t, rt, loaded)

	_, err = reg.Set(RecordType{
		Name: "bad", Table: "bad", Attributes: []string{"id"}, PrimaryKeys: []string{"id"},
		Rules: []types.Rule{{Attribute: "id", Kind: types.RuleString}},
	})
	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.False(t, reg.IsLoaded("bad"))
}

func TestLoadAll(t *testing.T) {
	fsys := fstest.MapFS{
		"customer.yaml": {Data: []byte(customerYAML)},
		"order.yml":     {Data: []byte("table: orders\nattributes: [id, customer_id]\nprimary_keys: [id]\n")},
		"README.md":     {Data: []byte("not a descriptor")},
	}
	all, err := NewRegistry(WithSource(fsys)).LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "customer", all[0].Name)
	assert.Equal(t, "order", all[1].Name)
}

type stubStore struct{ types.Store }

func (stubStore) Count(context.Context, string, types.Where) (int, error) { return 0, nil }

func TestAdapterBinding(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Adapter("customer")
	assert.ErrorIs(t, err, types.ErrAdapterNotSet)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	a, b := &stubStore{}, &stubStore{}
	reg.SetDefaultAdapter(a)
	got, err := reg.Adapter("customer")
	require.NoError(t, err)
	assert.Same(t, a, got)

	reg.SetAdapter("customer", b)
	got, err = reg.Adapter("customer")
	require.NoError(t, err)
	assert.Same(t, b, got)

	reg.SetAdapter("customer", nil)
	got, err = reg.Adapter("customer")
	require.NoError(t, err)
	assert.Same(t, a, got)
}
