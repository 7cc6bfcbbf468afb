// Package bitmap implements the record-id set representation condition
// evaluation produces and combines.
//
// A Bitmap wraps a []bool whose element 0 is a tail flag: when set, every
// record id >= Len()-1 is considered present, which lets an "everything
// past what we've enumerated" set be represented compactly instead of
// growing one bit per record. Real record ids start at bit offset 1.
package bitmap

// Bitmap is a record-id set with a tail flag at bit 0.
type Bitmap struct {
	bits []bool // bits[0] is the tail flag; bits[i] for i>=1 is record id i-1
}

// Empty returns the bitmap containing no record ids and no tail.
func Empty() *Bitmap {
	return &Bitmap{bits: []bool{false}}
}

// All returns the bitmap containing every record id (tail flag set, no
// explicit bits needed).
func All() *Bitmap {
	return &Bitmap{bits: []bool{true}}
}

// FromSlots builds a bitmap containing exactly the given record ids and
// no tail.
func FromSlots(slots []int) *Bitmap {
	b := Empty()
	for _, s := range slots {
		b.Set(s)
	}
	return b
}

// Len returns 1 + the highest explicit bit index tracked (i.e. len(bits)).
func (b *Bitmap) Len() int { return len(b.bits) }

// Tail reports whether the tail flag is set.
func (b *Bitmap) Tail() bool { return b.bits[0] }

// growTo ensures bits has at least n elements, padding new entries with
// the current tail flag (so growth never changes what the bitmap means).
func (b *Bitmap) growTo(n int) {
	if n <= len(b.bits) {
		return
	}
	tail := b.bits[0]
	grown := make([]bool, n)
	copy(grown, b.bits)
	for i := len(b.bits); i < n; i++ {
		grown[i] = tail
	}
	b.bits = grown
}

// Set marks record id slot as present.
func (b *Bitmap) Set(slot int) {
	b.growTo(slot + 2)
	b.bits[slot+1] = true
}

// Has reports whether slot is present, consulting the tail flag for ids
// beyond the explicit range.
func (b *Bitmap) Has(slot int) bool {
	idx := slot + 1
	if idx < len(b.bits) {
		return b.bits[idx]
	}
	return b.bits[0]
}

// Slots enumerates the present record ids up to (but not including)
// maxSlotExclusive, which callers supply as the heap's current max_id()
// since the tail flag alone can't enumerate an unbounded set.
func (b *Bitmap) Slots(maxSlotExclusive int) []int {
	out := make([]int, 0)
	for s := 0; s < maxSlotExclusive; s++ {
		if b.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// extendLeft grows the shorter of a, b to match the longer's length,
// using its own tail flag to fill the gap.
func extendLeft(a, b *Bitmap) (*Bitmap, *Bitmap) {
	n := a.Len()
	if b.Len() > n {
		n = b.Len()
	}
	ac := a.clone()
	bc := b.clone()
	ac.growTo(n)
	bc.growTo(n)
	return ac, bc
}

func (b *Bitmap) clone() *Bitmap {
	cp := make([]bool, len(b.bits))
	copy(cp, b.bits)
	return &Bitmap{bits: cp}
}

// Or returns a OR b.
func Or(a, b *Bitmap) *Bitmap {
	ac, bc := extendLeft(a, b)
	out := make([]bool, len(ac.bits))
	for i := range out {
		out[i] = ac.bits[i] || bc.bits[i]
	}
	return &Bitmap{bits: out}
}

// And returns a AND b.
func And(a, b *Bitmap) *Bitmap {
	ac, bc := extendLeft(a, b)
	out := make([]bool, len(ac.bits))
	for i := range out {
		out[i] = ac.bits[i] && bc.bits[i]
	}
	return &Bitmap{bits: out}
}

// Not returns the bitwise complement of a, tail flag included.
func Not(a *Bitmap) *Bitmap {
	out := make([]bool, len(a.bits))
	for i, v := range a.bits {
		out[i] = !v
	}
	return &Bitmap{bits: out}
}

// Diff returns a AND NOT b.
func Diff(a, b *Bitmap) *Bitmap {
	return And(a, Not(b))
}
