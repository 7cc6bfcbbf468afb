package hash

import (
	"path/filepath"
	"testing"

	"github.com/bobboyms/minidb/pkg/types"
)

func mustNew(t *testing.T) *Hash {
	t.Helper()
	idx, err := New(filepath.Join(t.TempDir(), "idx"), 8, types.Int, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx
}

func TestInsertSearch(t *testing.T) {
	idx := mustNew(t)
	n := 50
	for i := 0; i < n; i++ {
		if err := idx.Insert(i, types.IntKey(int32(i))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		slots, err := idx.Search(types.IntKey(int32(i)))
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if len(slots) != 1 || slots[0] != i {
			t.Fatalf("Search(%d) = %v, want [%d]", i, slots, i)
		}
	}
	if slots, _ := idx.Search(types.IntKey(999)); len(slots) != 0 {
		t.Fatalf("Search(999) = %v, want empty", slots)
	}
}

func TestInsertDuplicateKeysShareABucketChain(t *testing.T) {
	idx := mustNew(t)
	for i := 0; i < 10; i++ {
		if err := idx.Insert(i, types.IntKey(7)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	slots, err := idx.Search(types.IntKey(7))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(slots) != 10 {
		t.Fatalf("Search(7) = %v, want 10 slots", slots)
	}
}

func TestDeleteThenSearchIsAbsent(t *testing.T) {
	idx := mustNew(t)
	for i := 0; i < 30; i++ {
		idx.Insert(i, types.IntKey(int32(i)))
	}
	if err := idx.Delete(types.IntKey(15)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if slots, _ := idx.Search(types.IntKey(15)); len(slots) != 0 {
		t.Fatalf("Search(15) after delete = %v, want empty", slots)
	}
	for i := 0; i < 30; i++ {
		if i == 15 {
			continue
		}
		if slots, err := idx.Search(types.IntKey(int32(i))); err != nil || len(slots) != 1 {
			t.Fatalf("Search(%d) after unrelated delete = %v, err=%v", i, slots, err)
		}
	}
}

func TestRangeSearchFullScan(t *testing.T) {
	idx := mustNew(t)
	for i := 0; i < 20; i++ {
		idx.Insert(i, types.IntKey(int32(i)))
	}
	got, err := idx.RangeSearch(types.IntKey(5), types.IntKey(10))
	if err != nil {
		t.Fatalf("RangeSearch: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("RangeSearch(5,10) = %v, want 6 entries", got)
	}
}

func TestVarcharKeysHashViaSHA256(t *testing.T) {
	idx, err := New(filepath.Join(t.TempDir(), "idx"), 8, types.Varchar, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	words := []string{"abc", "abd", "xyz", "hash", "index", "minidb", "split", "bucket"}
	for i, w := range words {
		if err := idx.Insert(i, types.VarcharKey(w)); err != nil {
			t.Fatalf("Insert(%s): %v", w, err)
		}
	}
	for i, w := range words {
		slots, err := idx.Search(types.VarcharKey(w))
		if err != nil {
			t.Fatalf("Search(%s): %v", w, err)
		}
		if len(slots) != 1 || slots[0] != i {
			t.Fatalf("Search(%s) = %v, want [%d]", w, slots, i)
		}
	}
}

func TestManyInsertsForceRepeatedSplits(t *testing.T) {
	idx := mustNew(t)
	n := 200
	for i := 0; i < n; i++ {
		if err := idx.Insert(i, types.IntKey(int32(i*997))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		key := types.IntKey(int32(i * 997))
		slots, err := idx.Search(key)
		if err != nil {
			t.Fatalf("Search(%v): %v", key, err)
		}
		if len(slots) != 1 || slots[0] != i {
			t.Fatalf("Search(%v) = %v, want [%d]", key, slots, i)
		}
	}
}

func TestClearRemovesBothFiles(t *testing.T) {
	idx := mustNew(t)
	idx.Insert(0, types.IntKey(1))
	if err := idx.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
}
