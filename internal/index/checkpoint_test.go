package index

import (
	"path/filepath"
	"testing"

	"github.com/csvquery/csvlens/internal/model"
)

func TestCheckpointRoundTrip(t *testing.T) {
	idx := runWorker(t, "a,b\n1,x\n2,y\n3,x\n")
	fp := Fingerprint{Size: 16, Mtime: 1700000000, Hash: "deadbeef"}
	path := filepath.Join(t.TempDir(), "test.cidx")

	if err := SaveCheckpoint(path, idx, fp); err != nil {
		t.Fatal(err)
	}

	loaded, ok, err := LoadCheckpoint(path, 2, fp)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected checkpoint to be accepted with a matching fingerprint")
	}
	if !loaded.IndexedComplete() {
		t.Fatal("completeness flag must survive the round trip")
	}
	if loaded.Len() != idx.Len() {
		t.Fatalf("Len() = %d, want %d", loaded.Len(), idx.Len())
	}
	for i := model.RowId(0); i < idx.Len(); i++ {
		if loaded.Offset(i) != idx.Offset(i) {
			t.Fatalf("offset mismatch at row %d", i)
		}
	}
	if loaded.Epoch() != 2 {
		t.Fatalf("loaded index must carry the caller's epoch, got %d", loaded.Epoch())
	}
}

func TestCheckpointRejectedOnFingerprintMismatch(t *testing.T) {
	idx := runWorker(t, "a,b\n1,x\n")
	fp := Fingerprint{Size: 8, Mtime: 1700000000, Hash: "deadbeef"}
	path := filepath.Join(t.TempDir(), "test.cidx")
	if err := SaveCheckpoint(path, idx, fp); err != nil {
		t.Fatal(err)
	}

	stale := Fingerprint{Size: 9, Mtime: 1700000000, Hash: "deadbeef"}
	_, ok, err := LoadCheckpoint(path, 1, stale)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("a checkpoint for different file bytes must be rejected")
	}
}

func TestCheckpointMissingFileIsNotAnError(t *testing.T) {
	_, ok, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent.cidx"), 1, Fingerprint{})
	if err != nil || ok {
		t.Fatalf("missing checkpoint should be (nil, false, nil), got ok=%v err=%v", ok, err)
	}
}
