package sqlbuild

import "github.com/mesh-intelligence/recordkit/pkg/types"

// ApplyMatch filters rows fetched for q by q.Match and then applies q's
// offset and limit. Rows are returned unchanged when q has no Match.
func ApplyMatch(rows []types.Row, q types.Query) []types.Row {
	if q.Match == nil {
		return rows
	}
	var out []types.Row
	for _, r := range rows {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}
