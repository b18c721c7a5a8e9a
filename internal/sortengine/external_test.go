package sortengine

import (
	"fmt"
	"testing"

	"github.com/csvquery/csvlens/internal/model"
)

func TestApplyExternalMatchesInMemoryResult(t *testing.T) {
	rows := fakeRows{}
	seq := make([]model.RowId, 0, 5000)
	for i := 0; i < 5000; i++ {
		id := model.RowId(i)
		rows[id] = []string{fmt.Sprintf("k%05d", (i*7919)%5000)}
		seq = append(seq, id)
	}

	spec := Spec{Column: 0, Direction: model.Asc, Mode: model.SortLex}
	inMem := Apply(seq, true, rows, spec)

	// Force small runs so the merge path is actually exercised.
	origChunk := chunkRows
	chunkRows = 500
	defer func() { chunkRows = origChunk }()

	ext, err := ApplyExternal(seq, true, rows, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(ext.Order) != len(inMem.Order) {
		t.Fatalf("length mismatch: %d vs %d", len(ext.Order), len(inMem.Order))
	}
	for i := range inMem.Order {
		if ext.Order[i] != inMem.Order[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, ext.Order[i], inMem.Order[i])
		}
	}
}
