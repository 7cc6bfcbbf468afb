package bptree

import "github.com/bobboyms/minidb/pkg/types"

// node is the in-memory decoded form of one fixed-size on-disk B+ tree
// node: B packed keys + (B+1) i32 pointers + i32 is_leaf + i32 size +
// i32 next_leaf. For a leaf, ptrs[0:size] holds
// slot pointers and next holds the leaf-chain link; for an internal
// node, ptrs[0:size+1] holds child positions and next is unused (-1).
type node struct {
	isLeaf bool
	size   int
	keys   []types.Comparable
	ptrs   []int32
	next   int32
}

// newLeaf and newInternal size keys/ptrs one slot larger than the
// on-disk fixed capacity (order keys, order+1 pointers) so insert can
// write the transient overflow entry before the caller checks for a
// split, without growing past what the slice already allocated.
func newLeaf(order int) *node {
	return &node{
		isLeaf: true,
		keys:   make([]types.Comparable, order+1),
		ptrs:   make([]int32, order+2),
		next:   -1,
	}
}

func newInternal(order int) *node {
	return &node{
		isLeaf: false,
		keys:   make([]types.Comparable, order+1),
		ptrs:   make([]int32, order+2),
		next:   -1,
	}
}

func (t *BPlus) encode(n *node) []byte {
	buf := make([]byte, t.nodeSize)
	isLeaf := int32(0)
	if n.isLeaf {
		isLeaf = 1
	}
	types.EncodeI32(buf[0:4], isLeaf)
	types.EncodeI32(buf[4:8], int32(n.size))

	off := 8
	for i := 0; i < t.order; i++ {
		if i < n.size {
			types.EncodeKey(buf[off:off+t.keyWidth], t.dataType, n.keys[i])
		}
		off += t.keyWidth
	}

	ptrsOff := off
	for i := 0; i <= t.order; i++ {
		v := int32(-1)
		if i < len(n.ptrs) {
			v = n.ptrs[i]
		}
		types.EncodeI32(buf[ptrsOff+i*4:ptrsOff+i*4+4], v)
	}

	nextOff := ptrsOff + (t.order+1)*4
	types.EncodeI32(buf[nextOff:nextOff+4], n.next)

	return buf
}

func (t *BPlus) decode(buf []byte) *node {
	n := &node{}
	n.isLeaf = types.DecodeI32(buf[0:4]) == 1
	n.size = int(types.DecodeI32(buf[4:8]))

	n.keys = make([]types.Comparable, t.order+1)
	off := 8
	for i := 0; i < t.order; i++ {
		if i < n.size {
			n.keys[i] = types.DecodeKey(buf[off:off+t.keyWidth], t.dataType)
		}
		off += t.keyWidth
	}

	ptrsOff := off
	n.ptrs = make([]int32, t.order+2)
	for i := 0; i <= t.order; i++ {
		n.ptrs[i] = types.DecodeI32(buf[ptrsOff+i*4 : ptrsOff+i*4+4])
	}

	nextOff := ptrsOff + (t.order+1)*4
	n.next = types.DecodeI32(buf[nextOff : nextOff+4])

	return n
}
