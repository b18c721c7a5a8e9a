package sortengine

import (
	"testing"

	"github.com/csvquery/csvlens/internal/model"
)

type fakeRows map[model.RowId][]string

func (f fakeRows) Fetch(id model.RowId) ([]string, error) { return f[id], nil }

func TestNaturalSortOrdersDigitRunsNumerically(t *testing.T) {
	rows := fakeRows{0: {"file10"}, 1: {"file2"}, 2: {"file1"}}
	seq := []model.RowId{0, 1, 2}
	res := Apply(seq, true, rows, Spec{Column: 0, Direction: model.Asc, Mode: model.SortNatural})
	want := []model.RowId{2, 1, 0} // file1, file2, file10
	assertOrder(t, res.Order, want)
}

func TestLexSortDoesNotReorderDigitRuns(t *testing.T) {
	rows := fakeRows{0: {"file10"}, 1: {"file2"}, 2: {"file1"}}
	seq := []model.RowId{0, 1, 2}
	res := Apply(seq, true, rows, Spec{Column: 0, Direction: model.Asc, Mode: model.SortLex})
	want := []model.RowId{2, 0, 1} // "file1" < "file10" < "file2" byte-wise
	assertOrder(t, res.Order, want)
}

func TestStableTieBreakOnOriginalRowId(t *testing.T) {
	rows := fakeRows{0: {"a"}, 1: {"a"}, 2: {"a"}}
	seq := []model.RowId{2, 0, 1}
	asc := Apply(seq, true, rows, Spec{Column: 0, Direction: model.Asc, Mode: model.SortLex})
	assertOrder(t, asc.Order, []model.RowId{0, 1, 2})
	desc := Apply(seq, true, rows, Spec{Column: 0, Direction: model.Desc, Mode: model.SortLex})
	// Reversing direction reverses only the (here, tied) primary key,
	// not the tie-break order.
	assertOrder(t, desc.Order, []model.RowId{0, 1, 2})
}

func TestPartialWhileSequenceStillExtending(t *testing.T) {
	rows := fakeRows{0: {"b"}, 1: {"a"}}
	res := Apply([]model.RowId{0, 1}, false, rows, Spec{Column: 0, Mode: model.SortLex})
	if !res.Partial {
		t.Fatal("expected Partial=true when seqComplete=false")
	}
}

func TestUnsortedIsIdentity(t *testing.T) {
	rows := fakeRows{}
	seq := []model.RowId{5, 3, 1}
	res := Apply(seq, true, rows, Spec{Column: -1})
	assertOrder(t, res.Order, seq)
}

func TestCompareNaturalTotalOrder(t *testing.T) {
	cases := []string{"a1", "a2", "a10", "a100", "b1", ""}
	for i := 0; i < len(cases); i++ {
		for j := 0; j < len(cases); j++ {
			c1 := compareNatural(cases[i], cases[j])
			c2 := compareNatural(cases[j], cases[i])
			if c1 == 0 && cases[i] != cases[j] {
				t.Fatalf("%q and %q compared equal but differ", cases[i], cases[j])
			}
			if c1 != 0 && (c1 < 0) == (c2 < 0) {
				t.Fatalf("not antisymmetric for %q,%q: %d vs %d", cases[i], cases[j], c1, c2)
			}
		}
	}
}

func assertOrder(t *testing.T, got, want []model.RowId) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
