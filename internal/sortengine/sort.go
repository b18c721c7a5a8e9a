// Package sortengine produces permutations over the filtered row-id
// sequence keyed by one column, lexicographic or natural, ascending
// or descending, with original-RowId tie-breaking so the sort is
// stable.
package sortengine

import (
	"sort"

	"github.com/csvquery/csvlens/internal/model"
)

// RowSource is the slice of the Row Store the Sort Engine needs: cell
// lookup by RowId.
type RowSource interface {
	Fetch(model.RowId) ([]string, error)
}

// Spec is the current sort configuration. Column == -1 means
// unsorted (identity permutation, original filtered order).
type Spec struct {
	Column    int
	Direction model.SortDirection
	Mode      model.SortMode
}

// Result is a computed permutation over a filtered sequence.
type Result struct {
	Order   []model.RowId
	Partial bool // true if seq was still being extended when computed
}

// Apply sorts seq (the Filter Engine's materialized prefix) by spec,
// fetching each row's sort-key cell from rows. If seqComplete is
// false (the filter is still extending), the result is marked Partial
// so the View Model can disable "go to bottom" / report "sorting…"
// until a later call with the complete sequence.
func Apply(seq []model.RowId, seqComplete bool, rows RowSource, spec Spec) Result {
	if spec.Column < 0 {
		order := make([]model.RowId, len(seq))
		copy(order, seq)
		return Result{Order: order, Partial: !seqComplete}
	}

	type keyed struct {
		id  model.RowId
		key string
	}
	items := make([]keyed, 0, len(seq))
	for _, id := range seq {
		cells, err := rows.Fetch(id)
		key := ""
		if err == nil && spec.Column < len(cells) {
			key = cells[spec.Column]
		}
		items = append(items, keyed{id: id, key: key})
	}

	less := func(i, j int) bool {
		var c int
		if spec.Mode == model.SortNatural {
			c = compareNatural(items[i].key, items[j].key)
		} else {
			c = compareLex(items[i].key, items[j].key)
		}
		if c == 0 {
			// Stable tie-break: original RowId ascending, independent
			// of direction.
			return items[i].id < items[j].id
		}
		if spec.Direction == model.Desc {
			return c > 0
		}
		return c < 0
	}
	sort.SliceStable(items, less)

	order := make([]model.RowId, len(items))
	for i, it := range items {
		order[i] = it.id
	}
	return Result{Order: order, Partial: !seqComplete}
}

func compareLex(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
