package rtree

import (
	"path/filepath"
	"testing"

	"github.com/bobboyms/minidb/pkg/index"
	"github.com/bobboyms/minidb/pkg/types"
)

func mustNew(t *testing.T) *RTree {
	t.Helper()
	idx, err := New(filepath.Join(t.TempDir(), "idx.dat"), 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx
}

func TestInsertSearchExact(t *testing.T) {
	idx := mustNew(t)
	points := [][2]float32{{0, 0}, {3, 4}, {10, 10}, {-5, -5}, {1, 1}}
	for i, p := range points {
		if err := idx.Insert(i, types.PointKey{X: p[0], Y: p[1]}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	slots, err := idx.Search(types.PointKey{X: 3, Y: 4})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(slots) != 1 || slots[0] != 1 {
		t.Fatalf("Search((3,4)) = %v, want [1]", slots)
	}

	if slots, _ := idx.Search(types.PointKey{X: 99, Y: 99}); len(slots) != 0 {
		t.Fatalf("Search((99,99)) = %v, want empty", slots)
	}
}

func TestRangeSearchRectContainment(t *testing.T) {
	idx := mustNew(t)
	points := [][2]float32{{0, 0}, {3, 4}, {10, 10}, {-5, -5}, {1, 1}, {5, 5}}
	for i, p := range points {
		idx.Insert(i, types.PointKey{X: p[0], Y: p[1]})
	}

	got, err := idx.RangeSearchRect(index.Rect{Xmin: 0, Ymin: 0, Xmax: 5, Ymax: 5})
	if err != nil {
		t.Fatalf("RangeSearchRect: %v", err)
	}
	want := map[int]bool{0: true, 1: true, 4: true, 5: true}
	if len(got) != len(want) {
		t.Fatalf("RangeSearchRect = %v, want %d slots", got, len(want))
	}
	for _, s := range got {
		if !want[s] {
			t.Fatalf("unexpected slot %d in RangeSearchRect result", s)
		}
	}
}

func TestRangeSearchCircleClosedDisk(t *testing.T) {
	idx := mustNew(t)
	idx.Insert(0, types.PointKey{X: 0, Y: 0})
	idx.Insert(1, types.PointKey{X: 3, Y: 4}) // distance 5 from origin
	idx.Insert(2, types.PointKey{X: 10, Y: 10})

	got, err := idx.RangeSearchCircle(index.Circle{X: 0, Y: 0, R: 5})
	if err != nil {
		t.Fatalf("RangeSearchCircle: %v", err)
	}
	want := map[int]bool{0: true, 1: true}
	if len(got) != len(want) {
		t.Fatalf("RangeSearchCircle = %v, want 2 slots (closed disk includes the boundary)", got)
	}
	for _, s := range got {
		if !want[s] {
			t.Fatalf("unexpected slot %d in RangeSearchCircle result", s)
		}
	}

	if _, err := idx.RangeSearchCircle(index.Circle{X: 0, Y: 0, R: -1}); err == nil {
		t.Fatalf("RangeSearchCircle with negative radius: want error")
	}
}

func TestKNNSearch(t *testing.T) {
	idx := mustNew(t)
	idx.Insert(0, types.PointKey{X: 0, Y: 0})
	idx.Insert(1, types.PointKey{X: 3, Y: 4})
	idx.Insert(2, types.PointKey{X: 10, Y: 10})
	idx.Insert(3, types.PointKey{X: -1, Y: -1})

	got, err := idx.KNNSearch(0, 0, 2)
	if err != nil {
		t.Fatalf("KNNSearch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("KNNSearch(k=2) returned %d slots, want 2", len(got))
	}
	want := map[int]bool{0: true, 3: true}
	for _, s := range got {
		if !want[s] {
			t.Fatalf("KNNSearch(k=2) = %v, want the 2 nearest of {0,3}", got)
		}
	}

	if _, err := idx.KNNSearch(0, 0, 0); err == nil {
		t.Fatalf("KNNSearch with k=0: want error")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	idx := mustNew(t)
	idx.Insert(0, types.PointKey{X: 0, Y: 0})
	idx.Insert(1, types.PointKey{X: 3, Y: 4})

	if err := idx.Delete(types.PointKey{X: 3, Y: 4}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if slots, _ := idx.Search(types.PointKey{X: 3, Y: 4}); len(slots) != 0 {
		t.Fatalf("Search after delete = %v, want empty", slots)
	}
	if slots, _ := idx.Search(types.PointKey{X: 0, Y: 0}); len(slots) != 1 {
		t.Fatalf("Search(0,0) after unrelated delete = %v, want [0]", slots)
	}

	// Deleting an absent key is a silent no-op, matching pkg/index/hash.
	if err := idx.Delete(types.PointKey{X: 42, Y: 42}); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
}

func TestClearRemovesBackingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.dat")
	idx, err := New(path, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := idx.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := New(path, 4); err != nil {
		t.Fatalf("New after Clear: %v", err)
	}
}

func TestSplitKeepsTreeSearchable(t *testing.T) {
	idx := mustNew(t) // fan-out 4, forces splits well before 50 points
	for i := 0; i < 50; i++ {
		x := float32(i % 7)
		y := float32(i / 7)
		if err := idx.Insert(i, types.PointKey{X: x, Y: y}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < 50; i++ {
		x := float32(i % 7)
		y := float32(i / 7)
		slots, err := idx.Search(types.PointKey{X: x, Y: y})
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if len(slots) != 1 || slots[0] != i {
			t.Fatalf("Search((%g,%g)) = %v, want [%d]", x, y, slots, i)
		}
	}
}
