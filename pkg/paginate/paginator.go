package paginate

import (
	"context"

	"github.com/mesh-intelligence/recordkit/pkg/record"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// DefaultItemCountPerPage is the page size of a new Paginator.
const DefaultItemCountPerPage = 10

// Paginator computes pages over an Adapter. Page numbers start at 1.
type Paginator struct {
	adapter Adapter
	perPage int
	page    int
}

// Pages describes the position of the current page. Prev and Next are zero
// when there is no such page.
type Pages struct {
	Current    int `json:"current"`
	First      int `json:"first"`
	Last       int `json:"last"`
	Prev       int `json:"prev,omitempty"`
	Next       int `json:"next,omitempty"`
	TotalItems int `json:"total_items"`
}

// New returns a paginator on page 1 with the default page size.
func New(adapter Adapter) *Paginator {
	return &Paginator{adapter: adapter, perPage: DefaultItemCountPerPage, page: 1}
}

// ForRepository is shorthand for New(NewRecordAdapter(repo, conditions, sort...)).
func ForRepository(repo *record.Repository, conditions map[string]any, sort ...types.Sort) *Paginator {
	return New(NewRecordAdapter(repo, conditions, sort...))
}

// Adapter returns the paginator's adapter.
func (p *Paginator) Adapter() Adapter { return p.adapter }

// SetDefaultItemCountPerPage sets the page size. Values below 1 are ignored.
func (p *Paginator) SetDefaultItemCountPerPage(n int) {
	if n > 0 {
		p.perPage = n
	}
}

// ItemCountPerPage returns the page size.
func (p *Paginator) ItemCountPerPage() int { return p.perPage }

// SetItemSort replaces the item order. An empty sort is ignored.
func (p *Paginator) SetItemSort(sort ...types.Sort) {
	if len(sort) > 0 {
		p.adapter.SetSort(sort)
	}
}

// SetCurrentPage selects the page CurrentItems returns. Values below 1
// select the first page.
func (p *Paginator) SetCurrentPage(n int) {
	p.page = max(n, 1)
}

// TotalItemCount returns the number of items across all pages.
func (p *Paginator) TotalItemCount(ctx context.Context) (int, error) {
	return p.adapter.Count(ctx)
}

// PageCount returns the number of pages. It is zero when there are no
// items.
func (p *Paginator) PageCount(ctx context.Context) (int, error) {
	total, err := p.adapter.Count(ctx)
	if err != nil {
		return 0, err
	}
	return pageCount(total, p.perPage), nil
}

func pageCount(total, perPage int) int {
	return (total + perPage - 1) / perPage
}

// CurrentPage returns the selected page clamped to the last page.
func (p *Paginator) CurrentPage(ctx context.Context) (int, error) {
	n, err := p.PageCount(ctx)
	if err != nil {
		return 0, err
	}
	return clampPage(p.page, n), nil
}

func clampPage(page, count int) int {
	if count > 0 && page > count {
		return count
	}
	return page
}

// CurrentItems returns the items of the current page.
func (p *Paginator) CurrentItems(ctx context.Context) ([]*record.Record, error) {
	page, err := p.CurrentPage(ctx)
	if err != nil {
		return nil, err
	}
	return p.adapter.Items(ctx, (page-1)*p.perPage, p.perPage)
}

// Pages returns the navigation numbers for the current page. An empty
// result still has one page.
func (p *Paginator) Pages(ctx context.Context) (Pages, error) {
	total, err := p.adapter.Count(ctx)
	if err != nil {
		return Pages{}, err
	}
	last := max(pageCount(total, p.perPage), 1)
	cur := clampPage(p.page, last)
	pg := Pages{Current: cur, First: 1, Last: last, TotalItems: total}
	if cur > 1 {
		pg.Prev = cur - 1
	}
	if cur < last {
		pg.Next = cur + 1
	}
	return pg, nil
}
