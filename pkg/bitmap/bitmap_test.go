package bitmap

import "testing"

func TestNotNotIsIdentity(t *testing.T) {
	a := FromSlots([]int{1, 3, 5})
	got := Not(Not(a))
	for s := 0; s < 10; s++ {
		if got.Has(s) != a.Has(s) {
			t.Fatalf("slot %d: NOT NOT a differs from a", s)
		}
	}
}

func TestAndSelfIsSelf(t *testing.T) {
	a := FromSlots([]int{2, 4, 9})
	got := And(a, a)
	for s := 0; s < 12; s++ {
		if got.Has(s) != a.Has(s) {
			t.Fatalf("slot %d: a AND a differs from a", s)
		}
	}
}

func TestOrNotIsAll(t *testing.T) {
	a := FromSlots([]int{0, 2})
	got := Or(a, Not(a))
	for s := 0; s < 20; s++ {
		if !got.Has(s) {
			t.Fatalf("slot %d: a OR NOT a should be present", s)
		}
	}
}

func TestDiffSelfIsEmpty(t *testing.T) {
	a := FromSlots([]int{1, 2, 3})
	got := Diff(a, a)
	for s := 0; s < 10; s++ {
		if got.Has(s) {
			t.Fatalf("slot %d: DIFF(a,a) should be empty", s)
		}
	}
}

func TestAllTailCoversUnseenSlots(t *testing.T) {
	a := All()
	if !a.Has(1_000_000) {
		t.Fatalf("All() must cover ids beyond explicit range via tail flag")
	}
}

func TestOrExtendsByTail(t *testing.T) {
	allSet := All()
	empty := Empty()
	got := Or(empty, allSet)
	if !got.Tail() {
		t.Fatalf("OR with an all-tail operand must produce a tail-set result")
	}
}
