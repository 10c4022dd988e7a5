package record

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Relation binds a record to the records of another type whose related
// link attribute equals the record's link value. It is owned by that record
// and holds only a back-reference to it.
type Relation struct {
	name        string
	owner       *Record
	model       string
	link        Link
	relatedLink string
	cardinality types.Cardinality

	resolved bool
	order    []string
	held     map[string]*Record
}

// NewRelation creates an unresolved relation from owner to records of model.
// Attach it to the owner with Record.AddRelation.
func NewRelation(owner *Record, name, model string, link Link, relatedLink string, c types.Cardinality) (*Relation, error) {
	switch {
	case owner == nil:
		return nil, errors.New("relation needs an owning record")
	case name == "" || model == "":
		return nil, fmt.Errorf("%w: relation needs a name and a model", types.ErrConfiguration)
	case link.IsZero():
		return nil, fmt.Errorf("%w: relation %s has no link", types.ErrConfiguration, name)
	case relatedLink == "":
		return nil, fmt.Errorf("%w: relation %s has no related link", types.ErrConfiguration, name)
	case !c.Valid():
		return nil, fmt.Errorf("%w: relation %s has unknown cardinality %q", types.ErrConfiguration, name, c)
	}
	if a := link.Attribute(); a != "" && !owner.HasAttribute(a) {
		return nil, owner.undefined("link", a)
	}
	return &Relation{
		name:        name,
		owner:       owner,
		model:       model,
		link:        link,
		relatedLink: relatedLink,
		cardinality: c,
		held:        make(map[string]*Record),
	}, nil
}

func declaredRelation(owner *Record, d types.RelationDecl) *Relation {
	return &Relation{
		name:        d.Name,
		owner:       owner,
		model:       d.Model,
		link:        LinkAttribute(d.Link),
		relatedLink: d.RelatedLink,
		cardinality: d.Cardinality,
		held:        make(map[string]*Record),
	}
}

// Name returns the relation name.
func (rel *Relation) Name() string { return rel.name }

// Model returns the related type name.
func (rel *Relation) Model() string { return rel.model }

// Owner returns the owning record.
func (rel *Relation) Owner() *Record { return rel.owner }

// Single reports whether the relation holds at most one record.
func (rel *Relation) Single() bool { return rel.cardinality.Single() }

// IsResolved reports whether related records have been fetched.
func (rel *Relation) IsResolved() bool { return rel.resolved }

// LinkBy replaces the link specification. Held records are not re-keyed;
// call Resolve afterwards.
func (rel *Relation) LinkBy(l Link) error {
	if l.IsZero() {
		return fmt.Errorf("%w: relation %s has no link", types.ErrConfiguration, rel.name)
	}
	rel.link = l
	return nil
}

func (rel *Relation) relatedType() (*schema.RecordType, error) {
	return rel.owner.reg.Load(rel.model)
}

// Resolve fetches the related records from the owner's store, replacing any
// records held before. A single relation keeps at most one record. The
// relation is not refreshed automatically when the owner's link value
// changes; call Resolve again.
func (rel *Relation) Resolve(ctx context.Context) error {
	rt, err := rel.relatedType()
	if err != nil {
		return err
	}
	if !rt.HasAttribute(rel.relatedLink) {
		return fmt.Errorf("%w: related link %s.%s", types.ErrUndefinedAttribute, rt.Name, rel.relatedLink)
	}
	value, err := rel.link.value(rel.owner)
	if err != nil {
		return err
	}

	reg := rel.owner.reg
	store, err := reg.Adapter(rel.owner.typ.Name)
	if err != nil {
		return err
	}
	// Related records must query the same store as their owner.
	reg.SetAdapter(rel.model, store)

	rel.clear()
	if value != nil {
		q := types.Query{Where: types.Where{rel.relatedLink: value}}
		if rel.Single() {
			q.Limit = 1
		}
		rows, err := store.SelectWhere(ctx, rt.Table, q)
		if err != nil {
			return fmt.Errorf("resolving %s.%s: %w", rel.owner.typ.Name, rel.name, err)
		}
		for _, row := range rows {
			rec := newRecord(reg, rt)
			rec.Populate(row, true)
			if err := rel.put(rec); err != nil {
				return err
			}
			if rel.Single() {
				break
			}
		}
	}
	rel.resolved = true
	return nil
}

func (rel *Relation) ensureResolved(ctx context.Context) error {
	if rel.resolved {
		return nil
	}
	return rel.Resolve(ctx)
}

func (rel *Relation) clear() {
	rel.order = rel.order[:0]
	clear(rel.held)
}

func (rel *Relation) put(rec *Record) error {
	key, err := rel.link.key(rec)
	if err != nil {
		return err
	}
	if _, ok := rel.held[key]; !ok {
		rel.order = append(rel.order, key)
	}
	rel.held[key] = rec
	return nil
}

// Related returns the related records in insertion order, resolving the
// relation first if needed.
func (rel *Relation) Related(ctx context.Context) ([]*Record, error) {
	if err := rel.ensureResolved(ctx); err != nil {
		return nil, err
	}
	return rel.Records(), nil
}

// Records returns the records currently held, without resolving.
func (rel *Relation) Records() []*Record {
	out := make([]*Record, 0, len(rel.order))
	for _, k := range rel.order {
		out = append(out, rel.held[k])
	}
	return out
}

// Len returns the number of records currently held.
func (rel *Relation) Len() int { return len(rel.order) }

// Get returns the held record stored under key, or nil.
func (rel *Relation) Get(key string) *Record { return rel.held[key] }

// FindRelated returns the first related record matching cond, or nil.
func (rel *Relation) FindRelated(ctx context.Context, cond Condition) (*Record, error) {
	found, err := rel.find(ctx, cond, true)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// FindAllRelated returns every related record matching cond.
func (rel *Relation) FindAllRelated(ctx context.Context, cond Condition) ([]*Record, error) {
	return rel.find(ctx, cond, false)
}

func (rel *Relation) find(ctx context.Context, cond Condition, first bool) ([]*Record, error) {
	if err := rel.ensureResolved(ctx); err != nil {
		return nil, err
	}
	var out []*Record
	for _, rec := range rel.Records() {
		if cond != nil && !cond.matches(rec) {
			continue
		}
		out = append(out, rec)
		if first {
			break
		}
	}
	return out, nil
}

// AddRelated adds rec to the relation under its link key, replacing a held
// record with the same key. When the owner exists in the store an
// unresolved relation is resolved first. Adding a record of another type, or
// a second record to a single relation, fails with
// types.ErrRelationIntegrity.
func (rel *Relation) AddRelated(ctx context.Context, rec *Record) error {
	if rec == nil || rec.typ.Name != rel.model {
		return fmt.Errorf("%w: %s.%s only holds %s records", types.ErrRelationIntegrity, rel.owner.typ.Name, rel.name, rel.model)
	}
	if rel.owner.exists {
		if err := rel.ensureResolved(ctx); err != nil {
			return err
		}
	} else {
		rel.resolved = true
	}
	if rel.Single() && rel.Len() >= 1 {
		return fmt.Errorf("%w: %s.%s already holds a record", types.ErrRelationIntegrity, rel.owner.typ.Name, rel.name)
	}
	return rel.put(rec)
}

// RemoveRelated removes the record held under rec's link key and returns
// it, or nil when no such record is held.
func (rel *Relation) RemoveRelated(rec *Record) *Record {
	if rec == nil {
		return nil
	}
	key, err := rel.link.key(rec)
	if err != nil {
		return nil
	}
	removed, ok := rel.held[key]
	if !ok {
		return nil
	}
	delete(rel.held, key)
	rel.order = slices.DeleteFunc(rel.order, func(k string) bool { return k == key })
	return removed
}

// Save saves the owner and then every held record. The saves are not
// atomic: a failure part way leaves earlier writes in place. Every save is
// attempted; the result is true only if all of them succeeded, and store
// errors are combined.
func (rel *Relation) Save(ctx context.Context) (bool, error) {
	ok, errs := rel.owner.Save(ctx)
	allOK := ok && errs == nil
	for _, rec := range rel.Records() {
		saved, err := rec.Save(ctx)
		if err != nil {
			rel.owner.reg.Logger().Warn("related save failed",
				zap.String("type", rel.owner.typ.Name),
				zap.String("relation", rel.name),
				zap.Error(err))
			errs = multierr.Append(errs, err)
		}
		if !saved {
			allOK = false
		}
	}
	return allOK, errs
}

// Related returns the records of the named relation, resolving it first if
// needed.
func (r *Record) Related(ctx context.Context, name string) ([]*Record, error) {
	rel, err := r.Relation(name)
	if err != nil {
		return nil, err
	}
	return rel.Related(ctx)
}

// FindRelated returns every record of the named relation matching cond.
func (r *Record) FindRelated(ctx context.Context, name string, cond Condition) ([]*Record, error) {
	rel, err := r.Relation(name)
	if err != nil {
		return nil, err
	}
	return rel.FindAllRelated(ctx, cond)
}
