package record

import (
	"encoding/json"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Record is an in-memory representation of one row of a record type.
type Record struct {
	typ *schema.RecordType
	reg *schema.Registry

	values map[string]any
	keys   types.Where // primary key values the stored row is addressed by

	exists  bool
	dirty   bool
	invalid map[string]types.Failure

	relations map[string]*Relation
}

// New creates an empty record of the named type, loading the type on first
// use. The record does not exist in the store until it is saved.
func New(reg *schema.Registry, typeName string) (*Record, error) {
	rt, err := reg.Load(typeName)
	if err != nil {
		return nil, err
	}
	return newRecord(reg, rt), nil
}

func newRecord(reg *schema.Registry, rt *schema.RecordType) *Record {
	return &Record{
		typ:       rt,
		reg:       reg,
		values:    make(map[string]any),
		invalid:   make(map[string]types.Failure),
		relations: make(map[string]*Relation),
	}
}

// Type returns the record's type.
func (r *Record) Type() *schema.RecordType { return r.typ }

// HasAttribute reports whether name is an attribute of the record's type.
func (r *Record) HasAttribute(name string) bool {
	return r.typ.HasAttribute(name)
}

// Get returns the value of attr, or nil when it is unset.
func (r *Record) Get(attr string) (any, error) {
	if !r.HasAttribute(attr) {
		return nil, r.undefined("get", attr)
	}
	return r.values[attr], nil
}

// Set stores value under attr. The record becomes dirty when value differs
// from the current value under loose comparison; the value is stored either
// way.
func (r *Record) Set(attr string, value any) error {
	if !r.HasAttribute(attr) {
		return r.undefined("set", attr)
	}
	if !looseEqual(r.values[attr], value) {
		r.dirty = true
	}
	r.values[attr] = value
	return nil
}

func (r *Record) undefined(op, attr string) error {
	return fmt.Errorf("%w: %s %s.%s", types.ErrUndefinedAttribute, op, r.typ.Name, attr)
}

// Populate replaces the record's values with the known columns of row.
// Unknown columns are dropped. exists records whether row came from the
// store: a stored row leaves the record clean, a new row marks it dirty.
// Relations declared by the type that have no live instance yet are created
// unresolved.
func (r *Record) Populate(row types.Row, exists bool) {
	data := make(map[string]any, len(row))
	for col, val := range row {
		if !r.HasAttribute(col) {
			r.reg.Logger().Debug("dropping unknown column",
				zap.String("type", r.typ.Name), zap.String("column", col))
			continue
		}
		data[col] = val
	}
	r.values = data
	r.exists = exists
	r.dirty = !exists && len(data) > 0
	r.keys = nil
	if exists {
		r.keys = r.primaryKeyValues()
	}
	for _, decl := range r.typ.Relations {
		if _, ok := r.relations[decl.Name]; !ok {
			r.relations[decl.Name] = declaredRelation(r, decl)
		}
	}
}

// ExistsInStore reports whether the record has been persisted or was loaded
// from the store.
func (r *Record) ExistsInStore() bool { return r.exists }

// IsDirty reports whether an attribute changed since the record was loaded
// or last saved.
func (r *Record) IsDirty() bool { return r.dirty }

// SetDirty overrides the changed flag.
func (r *Record) SetDirty(dirty bool) { r.dirty = dirty }

// InvalidAttributes returns the attributes that failed validation on the
// last Save, keyed by attribute name.
func (r *Record) InvalidAttributes() map[string]types.Failure {
	return maps.Clone(r.invalid)
}

// ToMap returns a copy of the attribute values. It is the representation
// handed to serialization layers.
func (r *Record) ToMap() map[string]any {
	return maps.Clone(r.values)
}

// MarshalJSON encodes the attribute values.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.values)
}

// PrimaryKey returns the current primary key values.
func (r *Record) PrimaryKey() types.Where {
	return r.primaryKeyValues()
}

func (r *Record) primaryKeyValues() types.Where {
	keys := make(types.Where, len(r.typ.PrimaryKeys))
	for _, k := range r.typ.PrimaryKeys {
		keys[k] = r.values[k]
	}
	return keys
}

// Relation returns the named relation, creating an unresolved instance for a
// declared relation on first access.
func (r *Record) Relation(name string) (*Relation, error) {
	if rel, ok := r.relations[name]; ok {
		return rel, nil
	}
	decl, ok := r.typ.Relation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrUnknownRelation, r.typ.Name, name)
	}
	rel := declaredRelation(r, decl)
	r.relations[name] = rel
	return rel, nil
}

// AddRelation attaches a relation built with NewRelation, replacing any
// relation of the same name.
func (r *Record) AddRelation(rel *Relation) error {
	if rel == nil || rel.owner != r {
		return fmt.Errorf("%w: relation is not owned by this %s", types.ErrRelationIntegrity, r.typ.Name)
	}
	r.relations[rel.name] = rel
	return nil
}
