package schema

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// IDStrategy selects how an empty primary key is filled on insert.
type IDStrategy string

// Supported id strategies. IDStore leaves key generation to the store.
const (
	IDStore IDStrategy = ""
	IDUUID  IDStrategy = "uuid"
)

// Default policy column names and timestamp layout.
const (
	DefaultCreatedColumn   = "created"
	DefaultUpdatedColumn   = "updated"
	DefaultDeletedColumn   = "deleted_at"
	DefaultTimestampFormat = "2006-01-02 15:04:05"
	DefaultTimeZone        = "UTC"
)

// TimestampSpec configures created/updated tracking for a type.
type TimestampSpec struct {
	Created  string `yaml:"created"`
	Updated  string `yaml:"updated"`
	Format   string `yaml:"format"`
	TimeZone string `yaml:"time_zone"`
}

// SoftDeleteSpec configures soft deletion for a type.
type SoftDeleteSpec struct {
	Column string `yaml:"column"`
}

// RecordType is the schema of one kind of record. Obtain it from a Registry;
// a registered RecordType must not be modified.
type RecordType struct {
	Name        string
	Table       string
	Attributes  []string
	PrimaryKeys []string
	Rules       []types.Rule
	Relations   []types.RelationDecl
	Timestamps  *TimestampSpec
	SoftDelete  *SoftDeleteSpec
	IDStrategy  IDStrategy

	attrs     map[string]struct{}
	keys      map[string]struct{}
	relations map[string]int
}

// HasAttribute reports whether name is one of the type's attributes.
func (rt *RecordType) HasAttribute(name string) bool {
	_, ok := rt.attrs[name]
	return ok
}

// IsPrimaryKey reports whether name is one of the type's primary keys.
func (rt *RecordType) IsPrimaryKey(name string) bool {
	_, ok := rt.keys[name]
	return ok
}

// RulesFor returns the rules declared for attr, in declaration order. It
// returns nil when attr is not an attribute of the type.
func (rt *RecordType) RulesFor(attr string) []types.Rule {
	if !rt.HasAttribute(attr) {
		return nil
	}
	var out []types.Rule
	for _, r := range rt.Rules {
		if r.Attribute == attr {
			out = append(out, r)
		}
	}
	return out
}

// Relation returns the declaration of the named relation.
func (rt *RecordType) Relation(name string) (types.RelationDecl, bool) {
	i, ok := rt.relations[name]
	if !ok {
		return types.RelationDecl{}, false
	}
	return rt.Relations[i], true
}

// clone copies rt deeply enough that the registered copy shares no slices
// with the caller's value.
func (rt RecordType) clone() *RecordType {
	c := rt
	c.Attributes = slices.Clone(rt.Attributes)
	c.PrimaryKeys = slices.Clone(rt.PrimaryKeys)
	c.Rules = make([]types.Rule, len(rt.Rules))
	for i, r := range rt.Rules {
		c.Rules[i] = types.Rule{Attribute: r.Attribute, Kind: r.Kind, Options: maps.Clone(r.Options)}
	}
	c.Relations = slices.Clone(rt.Relations)
	if rt.Timestamps != nil {
		ts := *rt.Timestamps
		c.Timestamps = &ts
	}
	if rt.SoftDelete != nil {
		sd := *rt.SoftDelete
		c.SoftDelete = &sd
	}
	return &c
}

// prepare fills policy defaults, appends policy columns to the attribute
// list, validates the type and builds the lookup indexes.
func (rt *RecordType) prepare() error {
	if rt.Timestamps != nil {
		ts := rt.Timestamps
		if ts.Created == "" {
			ts.Created = DefaultCreatedColumn
		}
		if ts.Updated == "" {
			ts.Updated = DefaultUpdatedColumn
		}
		if ts.Format == "" {
			ts.Format = DefaultTimestampFormat
		}
		if ts.TimeZone == "" {
			ts.TimeZone = DefaultTimeZone
		}
		if _, err := time.LoadLocation(ts.TimeZone); err != nil {
			return configErr(rt.Name, "timestamps: %v", err)
		}
		rt.appendAttribute(ts.Updated)
		rt.appendAttribute(ts.Created)
	}
	if rt.SoftDelete != nil {
		if rt.SoftDelete.Column == "" {
			rt.SoftDelete.Column = DefaultDeletedColumn
		}
		rt.appendAttribute(rt.SoftDelete.Column)
	}
	return rt.validate()
}

func (rt *RecordType) appendAttribute(name string) {
	if !slices.Contains(rt.Attributes, name) {
		rt.Attributes = append(rt.Attributes, name)
	}
}

func (rt *RecordType) validate() error {
	if rt.Name == "" {
		return configErr(rt.Name, "missing type name")
	}
	if rt.Table == "" {
		return configErr(rt.Name, "missing table name")
	}
	if len(rt.Attributes) == 0 {
		return configErr(rt.Name, "no attributes declared")
	}

	rt.attrs = make(map[string]struct{}, len(rt.Attributes))
	for _, a := range rt.Attributes {
		if a == "" {
			return configErr(rt.Name, "empty attribute name")
		}
		if _, dup := rt.attrs[a]; dup {
			return configErr(rt.Name, "duplicate attribute %q", a)
		}
		rt.attrs[a] = struct{}{}
	}

	rt.keys = make(map[string]struct{}, len(rt.PrimaryKeys))
	for _, k := range rt.PrimaryKeys {
		if !rt.HasAttribute(k) {
			return configErr(rt.Name, "primary key %q is not an attribute", k)
		}
		rt.keys[k] = struct{}{}
	}

	for i, r := range rt.Rules {
		if !rt.HasAttribute(r.Attribute) {
			return configErr(rt.Name, "rule %d references unknown attribute %q", i, r.Attribute)
		}
		if rt.IsPrimaryKey(r.Attribute) {
			return configErr(rt.Name, "rule %d targets primary key %q", i, r.Attribute)
		}
		if r.Kind == "" {
			return configErr(rt.Name, "rule %d on %q has no type", i, r.Attribute)
		}
	}

	rt.relations = make(map[string]int, len(rt.Relations))
	for i, rel := range rt.Relations {
		switch {
		case rel.Name == "":
			return configErr(rt.Name, "relation %d has no name", i)
		case rel.Model == "":
			return configErr(rt.Name, "relation %q has no model", rel.Name)
		case rel.RelatedLink == "":
			return configErr(rt.Name, "relation %q has no related link", rel.Name)
		case !rt.HasAttribute(rel.Link):
			return configErr(rt.Name, "relation %q links by unknown attribute %q", rel.Name, rel.Link)
		case !rel.Cardinality.Valid():
			return configErr(rt.Name, "relation %q has unknown cardinality %q", rel.Name, rel.Cardinality)
		}
		if _, dup := rt.relations[rel.Name]; dup {
			return configErr(rt.Name, "duplicate relation %q", rel.Name)
		}
		rt.relations[rel.Name] = i
	}

	switch rt.IDStrategy {
	case IDStore:
	case IDUUID:
		if len(rt.PrimaryKeys) != 1 {
			return configErr(rt.Name, "id strategy %q needs exactly one primary key", rt.IDStrategy)
		}
	default:
		return configErr(rt.Name, "unknown id strategy %q", rt.IDStrategy)
	}
	return nil
}

func configErr(name, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", types.ErrConfiguration, name, fmt.Sprintf(format, args...))
}
