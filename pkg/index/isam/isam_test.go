package isam

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bobboyms/minidb/pkg/types"
)

func buildInts(t *testing.T, n int) (*ISAM, []Entry) {
	t.Helper()
	var entries []Entry
	for i := 0; i < n; i++ {
		entries = append(entries, Entry{Key: types.IntKey(int32(i)), Slot: i})
	}
	idx, err := Build(filepath.Join(t.TempDir(), "idx.dat"), types.Int, 0, entries)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx, entries
}

func TestBuildStructuralRegularLeafCount(t *testing.T) {
	idx, _ := buildInts(t, 500)
	want := (idx.indexFactor + 1) * (idx.indexFactor + 1)
	if want < 1 {
		t.Fatalf("bad indexFactor %d", idx.indexFactor)
	}
	f, err := os.Open(idx.path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	pages, err := idx.pageCount(f)
	if err != nil {
		t.Fatalf("pageCount: %v", err)
	}
	// root + (I+1) level-1 pages + (I+1)^2 regular leaves
	if int(pages) != 1+(idx.indexFactor+1)+want {
		t.Fatalf("page count = %d, want %d regular leaves plus %d index pages", pages, want, 1+idx.indexFactor+1)
	}
}

func TestSearchFindsEveryBuiltEntry(t *testing.T) {
	idx, entries := buildInts(t, 300)
	for _, e := range entries {
		slots, err := idx.Search(e.Key)
		if err != nil {
			t.Fatalf("Search(%v): %v", e.Key, err)
		}
		found := false
		for _, s := range slots {
			if s == e.Slot {
				found = true
			}
		}
		if !found {
			t.Fatalf("Search(%v) = %v, want to include %d", e.Key, slots, e.Slot)
		}
	}
	if slots, _ := idx.Search(types.IntKey(99999)); len(slots) != 0 {
		t.Fatalf("Search(99999) = %v, want empty", slots)
	}
}

func TestRangeSearchOrderedAndComplete(t *testing.T) {
	idx, _ := buildInts(t, 200)
	got, err := idx.RangeSearch(types.IntKey(50), types.IntKey(100))
	if err != nil {
		t.Fatalf("RangeSearch: %v", err)
	}
	if len(got) != 51 {
		t.Fatalf("RangeSearch(50,100) returned %d slots, want 51", len(got))
	}
}

func TestDynamicInsertThenSearch(t *testing.T) {
	idx, _ := buildInts(t, 100)
	for i := 1000; i < 1050; i++ {
		if err := idx.Insert(i, types.IntKey(int32(i))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 1000; i < 1050; i++ {
		slots, err := idx.Search(types.IntKey(int32(i)))
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		found := false
		for _, s := range slots {
			if s == i {
				found = true
			}
		}
		if !found {
			t.Fatalf("Search(%d) = %v, want to include %d", i, slots, i)
		}
	}
}

func TestDynamicInsertOverflowsBucket(t *testing.T) {
	idx, _ := buildInts(t, 10)
	// Hammer a single duplicate-ish key range into one bucket to force
	// an overflow page chain: INT leaves hold 255 entries, 10 are built.
	for i := 0; i < 300; i++ {
		if err := idx.Insert(i+10000, types.IntKey(5)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	slots, err := idx.Search(types.IntKey(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(slots) < 300 {
		t.Fatalf("Search(5) returned %d slots, want at least 300", len(slots))
	}
}

func TestDeleteThenSearchIsAbsent(t *testing.T) {
	idx, entries := buildInts(t, 100)
	target := entries[42]
	if err := idx.Delete(target.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	slots, err := idx.Search(target.Key)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, s := range slots {
		if s == target.Slot {
			t.Fatalf("Search(%v) still contains deleted slot %d", target.Key, target.Slot)
		}
	}
}

func TestOpenReopensExistingFactors(t *testing.T) {
	idx, _ := buildInts(t, 50)
	reopened, err := Open(idx.path, types.Int, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.leafFactor != idx.leafFactor || reopened.indexFactor != idx.indexFactor {
		t.Fatalf("Open factors = (%d,%d), want (%d,%d)", reopened.leafFactor, reopened.indexFactor, idx.leafFactor, idx.indexFactor)
	}
	slots, err := reopened.Search(types.IntKey(10))
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("Search(10) after reopen = %v", slots)
	}
}

func TestClearRemovesFile(t *testing.T) {
	idx, _ := buildInts(t, 10)
	if err := idx.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
}
