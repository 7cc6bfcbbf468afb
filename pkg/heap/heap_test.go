package heap

import (
	"path/filepath"
	"testing"
)

func mustNew(t *testing.T, width int) *RecordFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.dat")
	rf, err := New(path, width)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rf
}

func TestAppendReadRoundTrip(t *testing.T) {
	rf := mustNew(t, 4)
	rec := []byte{1, 2, 3, 4}

	slot, err := rf.Append(rec)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, ok, err := rf.Read(slot)
	if err != nil || !ok {
		t.Fatalf("Read(%d) = %v, %v, %v", slot, got, ok, err)
	}
	if string(got) != string(rec) {
		t.Fatalf("got %v, want %v", got, rec)
	}
}

func TestDeleteMakesSlotAbsent(t *testing.T) {
	rf := mustNew(t, 4)
	slot, _ := rf.Append([]byte{9, 9, 9, 9})

	if err := rf.Delete(slot); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, ok, err := rf.Read(slot)
	if err != nil {
		t.Fatalf("Read after delete: %v", err)
	}
	if ok {
		t.Fatalf("slot %d should be absent after delete", slot)
	}
}

func TestFreeListReuseIsLIFO(t *testing.T) {
	rf := mustNew(t, 1)

	s0, _ := rf.Append([]byte{'a'})
	s1, _ := rf.Append([]byte{'b'})
	s2, _ := rf.Append([]byte{'c'})

	if err := rf.Delete(s1); err != nil {
		t.Fatalf("Delete s1: %v", err)
	}
	if err := rf.Delete(s2); err != nil {
		t.Fatalf("Delete s2: %v", err)
	}

	// LIFO: most recently deleted (s2) is reused first.
	reused, _ := rf.Append([]byte{'d'})
	if reused != s2 {
		t.Fatalf("expected reuse of slot %d, got %d", s2, reused)
	}
	reused2, _ := rf.Append([]byte{'e'})
	if reused2 != s1 {
		t.Fatalf("expected reuse of slot %d, got %d", s1, reused2)
	}

	if _, ok, _ := rf.Read(s0); !ok {
		t.Fatalf("slot s0 should remain live and untouched")
	}
}

func TestMaxIDCountsDeletedSlots(t *testing.T) {
	rf := mustNew(t, 2)
	rf.Append([]byte{1, 1})
	s1, _ := rf.Append([]byte{2, 2})
	rf.Append([]byte{3, 3})

	if err := rf.Delete(s1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	max, err := rf.MaxID()
	if err != nil {
		t.Fatalf("MaxID: %v", err)
	}
	if max != 3 {
		t.Fatalf("MaxID = %d, want 3 (deleted slots still count)", max)
	}
}

func TestScanSkipsDeletedSlots(t *testing.T) {
	rf := mustNew(t, 1)
	rf.Append([]byte{'a'})
	s1, _ := rf.Append([]byte{'b'})
	rf.Append([]byte{'c'})
	rf.Delete(s1)

	var seen []int
	if err := rf.Scan(func(slot int, record []byte) bool {
		seen = append(seen, slot)
		return true
	}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("Scan visited %d slots, want 2 (deleted skipped): %v", len(seen), seen)
	}
}
