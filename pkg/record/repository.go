package record

import (
	"context"
	"fmt"
	"maps"

	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Repository finds and counts stored records of one type. Soft-deleted rows
// are excluded unless WithTrashed is used.
type Repository struct {
	reg         *schema.Registry
	typ         *schema.RecordType
	withTrashed bool
}

// NewRepository returns a repository for the named type, loading the type on
// first use.
func NewRepository(reg *schema.Registry, typeName string) (*Repository, error) {
	rt, err := reg.Load(typeName)
	if err != nil {
		return nil, err
	}
	return &Repository{reg: reg, typ: rt}, nil
}

// Type returns the repository's record type.
func (repo *Repository) Type() *schema.RecordType { return repo.typ }

// New returns an empty record of the repository's type.
func (repo *Repository) New() *Record { return newRecord(repo.reg, repo.typ) }

// WithTrashed returns a repository that includes soft-deleted rows.
func (repo *Repository) WithTrashed() *Repository {
	cp := *repo
	cp.withTrashed = true
	return &cp
}

// Find returns the record with the given primary key. id is either the value
// of a single-column primary key or a types.Where naming every key column.
// A missing row yields types.ErrNotFound.
func (repo *Repository) Find(ctx context.Context, id any) (*Record, error) {
	where, ok := id.(types.Where)
	if !ok {
		if len(repo.typ.PrimaryKeys) != 1 {
			return nil, fmt.Errorf("%w: %s has a composite primary key, find by types.Where",
				types.ErrInvalidQuery, repo.typ.Name)
		}
		where = types.Where{repo.typ.PrimaryKeys[0]: id}
	}
	recs, err := repo.Select(ctx, types.Query{Where: where, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %v", types.ErrNotFound, repo.typ.Name, where)
	}
	return recs[0], nil
}

// FindAll returns every record matching where, ordered by sort.
func (repo *Repository) FindAll(ctx context.Context, where types.Where, sort ...types.Sort) ([]*Record, error) {
	return repo.Select(ctx, types.Query{Where: where, Sort: sort})
}

// Records returns one window of the records matching where.
func (repo *Repository) Records(ctx context.Context, offset, limit int, where types.Where, sort ...types.Sort) ([]*Record, error) {
	return repo.Select(ctx, types.Query{Where: where, Offset: offset, Limit: limit, Sort: sort})
}

// Select runs q against the type's store and populates a record per row.
func (repo *Repository) Select(ctx context.Context, q types.Query) ([]*Record, error) {
	store, err := repo.reg.Adapter(repo.typ.Name)
	if err != nil {
		return nil, err
	}
	if q.Where, err = repo.scope(q.Where); err != nil {
		return nil, err
	}
	for _, s := range q.Sort {
		if !repo.typ.HasAttribute(s.Column) {
			return nil, fmt.Errorf("%w: sort %s.%s", types.ErrUndefinedAttribute, repo.typ.Name, s.Column)
		}
	}
	rows, err := store.SelectWhere(ctx, repo.typ.Table, q)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", repo.typ.Name, err)
	}
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec := newRecord(repo.reg, repo.typ)
		rec.Populate(row, true)
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of records matching where.
func (repo *Repository) Count(ctx context.Context, where types.Where) (int, error) {
	store, err := repo.reg.Adapter(repo.typ.Name)
	if err != nil {
		return 0, err
	}
	if where, err = repo.scope(where); err != nil {
		return 0, err
	}
	n, err := store.Count(ctx, repo.typ.Table, where)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", repo.typ.Name, err)
	}
	return n, nil
}

// scope checks the condition columns and adds the soft-delete filter.
func (repo *Repository) scope(where types.Where) (types.Where, error) {
	for col := range where {
		if !repo.typ.HasAttribute(col) {
			return nil, fmt.Errorf("%w: where %s.%s", types.ErrUndefinedAttribute, repo.typ.Name, col)
		}
	}
	sd := repo.typ.SoftDelete
	if sd == nil || repo.withTrashed {
		return where, nil
	}
	if _, set := where[sd.Column]; set {
		return where, nil
	}
	scoped := make(types.Where, len(where)+1)
	maps.Copy(scoped, where)
	scoped[sd.Column] = nil
	return scoped, nil
}
