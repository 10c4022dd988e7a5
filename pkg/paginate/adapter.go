package paginate

import (
	"context"

	"github.com/mesh-intelligence/recordkit/pkg/record"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Adapter gives a Paginator access to a sequence of records.
type Adapter interface {
	// Count returns the total number of items.
	Count(ctx context.Context) (int, error)

	// Items returns at most limit items starting at offset.
	Items(ctx context.Context, offset, limit int) ([]*record.Record, error)

	// SetSort replaces the item order.
	SetSort(sort []types.Sort)
}

// RecordAdapter pages through the records a repository finds.
type RecordAdapter struct {
	repo  *record.Repository
	where types.Where
	sort  []types.Sort
}

// NewRecordAdapter returns an adapter over the records of repo matching
// conditions. Conditions on columns the type does not declare are dropped.
func NewRecordAdapter(repo *record.Repository, conditions map[string]any, sort ...types.Sort) *RecordAdapter {
	var where types.Where
	if conditions != nil {
		where = make(types.Where, len(conditions))
		rt := repo.Type()
		for col, v := range conditions {
			if rt.HasAttribute(col) {
				where[col] = v
			}
		}
	}
	return &RecordAdapter{repo: repo, where: where, sort: sort}
}

// Conditions returns the conditions the adapter applies.
func (a *RecordAdapter) Conditions() types.Where { return a.where }

// Count implements Adapter.
func (a *RecordAdapter) Count(ctx context.Context) (int, error) {
	return a.repo.Count(ctx, a.where)
}

// Items implements Adapter.
func (a *RecordAdapter) Items(ctx context.Context, offset, limit int) ([]*record.Record, error) {
	return a.repo.Records(ctx, offset, limit, a.where, a.sort...)
}

// SetSort implements Adapter.
func (a *RecordAdapter) SetSort(sort []types.Sort) { a.sort = sort }
