// Package bptree implements the on-disk B+ tree index: a fixed
// block-factor tree with a leaf chain, split policies promoting the
// smallest right-half key (leaves) or the middle key (internal nodes),
// and borrow/merge delete.
//
// The constructor takes the branching factor; search descent breaks
// ties by going right of equal keys so non-unique indexes behave
// consistently; leaves are chained for ordered scans. Generalized from
// an in-memory pointer tree to int32 file positions.
package bptree

import (
	"os"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/types"
)

const headerSize = 4

// BPlus is a disk-backed B+ tree index over a single column.
type BPlus struct {
	path     string
	order    int // block factor B
	dataType types.DataType
	keyWidth int
	nodeSize int
}

// New opens (creating if necessary) the B+ tree index file at path with
// the given block factor.
func New(path string, order int, dataType types.DataType, varcharLength int) (*BPlus, error) {
	if order < 3 {
		order = 3
	}
	keyWidth := types.Width(dataType, varcharLength)
	t := &BPlus{
		path:     path,
		order:    order,
		dataType: dataType,
		keyWidth: keyWidth,
		nodeSize: 8 + order*keyWidth + (order+1)*4 + 4,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			return nil, &dberrors.IOError{Path: path, Err: err}
		}
		defer f.Close()

		root := newLeaf(order)
		root.size = 0
		if err := t.appendNodeAt(f, 0, root); err != nil {
			return nil, err
		}
		if err := t.writeRoot(f, 0); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *BPlus) writeRoot(f *os.File, pos int32) error {
	var buf [headerSize]byte
	types.EncodeI32(buf[:], pos)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}

func (t *BPlus) readRoot(f *os.File) (int32, error) {
	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, &dberrors.IOError{Path: t.path, Err: err}
	}
	return types.DecodeI32(buf[:]), nil
}

func (t *BPlus) nodeOffset(pos int32) int64 {
	return int64(headerSize) + int64(pos)*int64(t.nodeSize)
}

func (t *BPlus) readNode(f *os.File, pos int32) (*node, error) {
	buf := make([]byte, t.nodeSize)
	if _, err := f.ReadAt(buf, t.nodeOffset(pos)); err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	return t.decode(buf), nil
}

func (t *BPlus) writeNode(f *os.File, pos int32, n *node) error {
	buf := t.encode(n)
	if _, err := f.WriteAt(buf, t.nodeOffset(pos)); err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}

func (t *BPlus) appendNodeAt(f *os.File, pos int32, n *node) error {
	return t.writeNode(f, pos, n)
}

func (t *BPlus) appendNode(f *os.File, n *node) (int32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, &dberrors.IOError{Path: t.path, Err: err}
	}
	pos := int32((info.Size() - headerSize) / int64(t.nodeSize))
	if err := t.writeNode(f, pos, n); err != nil {
		return 0, err
	}
	return pos, nil
}

// childIndex finds the child to descend to for key, breaking ties by
// going right of the first equal index so non-unique keys work.
func childIndex(n *node, key types.Comparable) int {
	i := 0
	for i < n.size && key.Compare(n.keys[i]) >= 0 {
		i++
	}
	return i
}

// --- Insert --------------------------------------------------------------

// Insert adds key -> slot to the tree.
func (t *BPlus) Insert(slot int, key types.Comparable) error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return err
	}

	promotedKey, newRightPos, err := t.insert(f, root, key, int32(slot))
	if err != nil {
		return err
	}
	if promotedKey == nil {
		return nil
	}

	newRoot := newInternal(t.order)
	newRoot.size = 1
	newRoot.keys[0] = promotedKey
	newRoot.ptrs[0] = root
	newRoot.ptrs[1] = newRightPos
	newRootPos, err := t.appendNode(f, newRoot)
	if err != nil {
		return err
	}
	return t.writeRoot(f, newRootPos)
}

// insert inserts key->slot into the subtree rooted at pos (pos itself
// never moves -- splits keep the left half at pos and append a new node
// for the right half). It returns a non-nil promotedKey when the caller
// must insert (promotedKey, newRightPos) into its own node.
func (t *BPlus) insert(f *os.File, pos int32, key types.Comparable, slotVal int32) (types.Comparable, int32, error) {
	n, err := t.readNode(f, pos)
	if err != nil {
		return nil, 0, err
	}

	if n.isLeaf {
		idx := 0
		for idx < n.size && key.Compare(n.keys[idx]) >= 0 {
			idx++
		}
		insertAt(n.keys, &n.size, idx, key)
		insertPtrAt(n.ptrs, n.size-1, idx, slotVal)

		if n.size <= t.order {
			if err := t.writeNode(f, pos, n); err != nil {
				return nil, 0, err
			}
			return nil, 0, nil
		}
		return t.splitLeaf(f, pos, n)
	}

	idx := childIndex(n, key)
	promoted, newRightPos, err := t.insert(f, n.ptrs[idx], key, slotVal)
	if err != nil {
		return nil, 0, err
	}
	if promoted == nil {
		return nil, 0, nil
	}

	insertAt(n.keys, &n.size, idx, promoted)
	insertChildAt(n.ptrs, n.size, idx+1, newRightPos)

	if n.size <= t.order {
		if err := t.writeNode(f, pos, n); err != nil {
			return nil, 0, err
		}
		return nil, 0, nil
	}
	return t.splitInternal(f, pos, n)
}

func insertAt(keys []types.Comparable, size *int, idx int, key types.Comparable) {
	for i := *size; i > idx; i-- {
		keys[i] = keys[i-1]
	}
	keys[idx] = key
	*size++
}

// insertPtrAt inserts v into ptrs at idx, shifting entries [idx, newSize)
// right by one (used for leaf slot pointers, where ptrs[i] pairs with
// keys[i]).
func insertPtrAt(ptrs []int32, newSize, idx int, v int32) {
	for i := newSize; i > idx; i-- {
		ptrs[i] = ptrs[i-1]
	}
	ptrs[idx] = v
}

// insertChildAt inserts v into ptrs (children array, size+1 entries) at
// position idx.
func insertChildAt(ptrs []int32, size, idx int, v int32) {
	for i := size; i > idx; i-- {
		ptrs[i] = ptrs[i-1]
	}
	ptrs[idx] = v
}

func (t *BPlus) splitLeaf(f *os.File, pos int32, n *node) (types.Comparable, int32, error) {
	mid := t.order / 2
	right := newLeaf(t.order)
	right.size = n.size - mid
	copy(right.keys, n.keys[mid:n.size])
	copy(right.ptrs, n.ptrs[mid:n.size])
	right.next = n.next

	n.size = mid
	for i := mid; i < len(n.keys); i++ {
		n.keys[i] = nil
	}

	newRightPos, err := t.appendNode(f, right)
	if err != nil {
		return nil, 0, err
	}
	n.next = newRightPos

	if err := t.writeNode(f, pos, n); err != nil {
		return nil, 0, err
	}
	return right.keys[0], newRightPos, nil
}

func (t *BPlus) splitInternal(f *os.File, pos int32, n *node) (types.Comparable, int32, error) {
	mid := t.order / 2
	promoted := n.keys[mid]

	right := newInternal(t.order)
	right.size = n.size - mid - 1
	copy(right.keys, n.keys[mid+1:n.size])
	copy(right.ptrs, n.ptrs[mid+1:n.size+1])

	n.size = mid
	for i := mid; i < len(n.keys); i++ {
		n.keys[i] = nil
	}
	for i := mid + 1; i < len(n.ptrs); i++ {
		n.ptrs[i] = -1
	}

	newRightPos, err := t.appendNode(f, right)
	if err != nil {
		return nil, 0, err
	}
	if err := t.writeNode(f, pos, n); err != nil {
		return nil, 0, err
	}
	return promoted, newRightPos, nil
}

// --- Search / RangeSearch -------------------------------------------------

// findLeaf descends to the leaf that would hold the smallest key >= key
// (or the leftmost leaf, if key is nil).
func (t *BPlus) findLeaf(f *os.File, pos int32, key types.Comparable) (*node, int32, error) {
	n, err := t.readNode(f, pos)
	if err != nil {
		return nil, 0, err
	}
	if n.isLeaf {
		return n, pos, nil
	}
	idx := 0
	if key != nil {
		idx = 0
		for idx < n.size && key.Compare(n.keys[idx]) > 0 {
			idx++
		}
	}
	return t.findLeaf(f, n.ptrs[idx], key)
}

// Search returns every slot stored under key.
func (t *BPlus) Search(key types.Comparable) ([]int, error) {
	f, err := os.OpenFile(t.path, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return nil, err
	}
	leaf, _, err := t.findLeaf(f, root, key)
	if err != nil {
		return nil, err
	}

	var out []int
	for {
		for i := 0; i < leaf.size; i++ {
			c := leaf.keys[i].Compare(key)
			if c > 0 {
				return out, nil
			}
			if c == 0 {
				out = append(out, int(leaf.ptrs[i]))
			}
		}
		if leaf.next == -1 {
			break
		}
		leaf, err = t.readNode(f, leaf.next)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RangeSearch locates the first leaf whose key >= lo, then walks the
// leaf chain emitting slots until a key exceeds hi.
func (t *BPlus) RangeSearch(lo, hi types.Comparable) ([]int, error) {
	f, err := os.OpenFile(t.path, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return nil, err
	}
	leaf, _, err := t.findLeaf(f, root, lo)
	if err != nil {
		return nil, err
	}

	var out []int
	for leaf != nil {
		stop := false
		for i := 0; i < leaf.size; i++ {
			k := leaf.keys[i]
			if k.Compare(hi) > 0 {
				stop = true
				break
			}
			if k.Compare(lo) >= 0 {
				out = append(out, int(leaf.ptrs[i]))
			}
		}
		if stop || leaf.next == -1 {
			break
		}
		leaf, err = t.readNode(f, leaf.next)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// --- Delete ----------------------------------------------------------

// minKeys is the textbook floor(order/2) minimum occupancy for a
// non-root node.
func (t *BPlus) minKeys() int { return t.order / 2 }

// Delete removes one entry for key using borrow/merge rebalancing.
func (t *BPlus) Delete(key types.Comparable) error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return err
	}

	if _, err := t.deleteFromSubtree(f, root, key); err != nil {
		return err
	}

	// If the root is an internal node with a single child, collapse it.
	rootNode, err := t.readNode(f, root)
	if err != nil {
		return err
	}
	if !rootNode.isLeaf && rootNode.size == 0 {
		return t.writeRoot(f, rootNode.ptrs[0])
	}
	return nil
}

// deleteFromSubtree removes one entry for key from the subtree rooted at
// pos, rebalancing children as needed, and reports whether pos itself is
// now underflowing (size < minKeys; callers at the root ignore this).
func (t *BPlus) deleteFromSubtree(f *os.File, pos int32, key types.Comparable) (bool, error) {
	n, err := t.readNode(f, pos)
	if err != nil {
		return false, err
	}

	if n.isLeaf {
		idx := -1
		for i := 0; i < n.size; i++ {
			if n.keys[i].Compare(key) == 0 {
				idx = i
				break
			}
		}
		if idx == -1 {
			return false, nil // nothing to delete
		}
		removeAt(n.keys, &n.size, idx)
		removeAt32(n.ptrs, n.size+1, idx)
		if err := t.writeNode(f, pos, n); err != nil {
			return false, err
		}
		return n.size < t.minKeys(), nil
	}

	idx := childIndex(n, key)
	childUnderflow, err := t.deleteFromSubtree(f, n.ptrs[idx], key)
	if err != nil {
		return false, err
	}
	if !childUnderflow {
		// A leaf's first key may have changed due to a borrow on a
		// deeper level; refresh the separator lazily by re-reading the
		// child's current first key when it sits right after idx-1.
		if idx > 0 {
			if err := t.refreshSeparator(f, n, idx-1); err != nil {
				return false, err
			}
			if err := t.writeNode(f, pos, n); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	if err := t.fixChild(f, pos, n, idx); err != nil {
		return false, err
	}
	n2, err := t.readNode(f, pos)
	if err != nil {
		return false, err
	}
	return n2.size < t.minKeys(), nil
}

// refreshSeparator updates n.keys[sepIdx] to the current smallest key
// reachable from n.ptrs[sepIdx+1], following leaves leftward.
func (t *BPlus) refreshSeparator(f *os.File, n *node, sepIdx int) error {
	leaf, _, err := t.findLeaf(f, n.ptrs[sepIdx+1], nil)
	if err != nil {
		return err
	}
	if leaf.size == 0 {
		return nil
	}
	n.keys[sepIdx] = leaf.keys[0]
	return nil
}

// fixChild rebalances n.ptrs[idx], which has just underflowed, by
// borrowing from a sibling or merging with one.
func (t *BPlus) fixChild(f *os.File, pos int32, n *node, idx int) error {
	child, err := t.readNode(f, n.ptrs[idx])
	if err != nil {
		return err
	}

	// Try borrowing from the left sibling.
	if idx > 0 {
		left, err := t.readNode(f, n.ptrs[idx-1])
		if err != nil {
			return err
		}
		if left.size > t.minKeys() {
			t.borrowFromLeft(child, left, n, idx)
			if err := t.writeNode(f, n.ptrs[idx], child); err != nil {
				return err
			}
			if err := t.writeNode(f, n.ptrs[idx-1], left); err != nil {
				return err
			}
			return t.writeNode(f, pos, n)
		}
	}

	// Try borrowing from the right sibling.
	if idx < n.size {
		right, err := t.readNode(f, n.ptrs[idx+1])
		if err != nil {
			return err
		}
		if right.size > t.minKeys() {
			t.borrowFromRight(child, right, n, idx)
			if err := t.writeNode(f, n.ptrs[idx], child); err != nil {
				return err
			}
			if err := t.writeNode(f, n.ptrs[idx+1], right); err != nil {
				return err
			}
			return t.writeNode(f, pos, n)
		}
	}

	// Merge with a sibling.
	if idx > 0 {
		left, err := t.readNode(f, n.ptrs[idx-1])
		if err != nil {
			return err
		}
		t.mergeInto(left, child, n.keys[idx-1])
		if err := t.writeNode(f, n.ptrs[idx-1], left); err != nil {
			return err
		}
		removeAt(n.keys, &n.size, idx-1)
		removeChildAt(n.ptrs, n.size+2, idx)
		return t.writeNode(f, pos, n)
	}

	right, err := t.readNode(f, n.ptrs[idx+1])
	if err != nil {
		return err
	}
	t.mergeInto(child, right, n.keys[idx])
	if err := t.writeNode(f, n.ptrs[idx], child); err != nil {
		return err
	}
	removeAt(n.keys, &n.size, idx)
	removeChildAt(n.ptrs, n.size+2, idx+1)
	return t.writeNode(f, pos, n)
}

func (t *BPlus) borrowFromLeft(child, left *node, parent *node, idx int) {
	if child.isLeaf {
		insertAt(child.keys, &child.size, 0, left.keys[left.size-1])
		insertPtrAt(child.ptrs, child.size-1, 0, left.ptrs[left.size-1])
		removeAt(left.keys, &left.size, left.size-1)
		removeAt32(left.ptrs, left.size+1, left.size)
		parent.keys[idx-1] = child.keys[0]
		return
	}
	insertAt(child.keys, &child.size, 0, parent.keys[idx-1])
	insertChildAt(child.ptrs, child.size, 0, left.ptrs[left.size])
	parent.keys[idx-1] = left.keys[left.size-1]
	removeAt(left.keys, &left.size, left.size-1)
	left.ptrs[left.size+1] = -1
}

func (t *BPlus) borrowFromRight(child, right *node, parent *node, idx int) {
	if child.isLeaf {
		insertAt(child.keys, &child.size, child.size, right.keys[0])
		insertPtrAt(child.ptrs, child.size-1, child.size-1, right.ptrs[0])
		removeAt(right.keys, &right.size, 0)
		removeAt32(right.ptrs, right.size+1, 0)
		parent.keys[idx] = right.keys[0]
		return
	}
	insertAt(child.keys, &child.size, child.size, parent.keys[idx])
	insertChildAt(child.ptrs, child.size, child.size, right.ptrs[0])
	parent.keys[idx] = right.keys[0]
	removeAt(right.keys, &right.size, 0)
	removeChildAt(right.ptrs, right.size+2, 0)
}

// mergeInto appends right's contents onto left (left absorbs right). sep
// is the parent separator key between the two subtrees; for an internal
// merge it becomes the key that now sits between left's own keys and
// right's (it is meaningless, and ignored, for a leaf merge, since leaf
// entries carry their own keys).
func (t *BPlus) mergeInto(left, right *node, sep types.Comparable) {
	if left.isLeaf {
		for i := 0; i < right.size; i++ {
			left.keys[left.size+i] = right.keys[i]
			left.ptrs[left.size+i] = right.ptrs[i]
		}
		left.size += right.size
		left.next = right.next
		return
	}
	left.keys[left.size] = sep
	for i := 0; i < right.size; i++ {
		left.keys[left.size+1+i] = right.keys[i]
	}
	for i := 0; i <= right.size; i++ {
		left.ptrs[left.size+1+i] = right.ptrs[i]
	}
	left.size += right.size + 1
}

func removeAt(keys []types.Comparable, size *int, idx int) {
	for i := idx; i < *size-1; i++ {
		keys[i] = keys[i+1]
	}
	keys[*size-1] = nil
	*size--
}

// removeAt32 removes ptrs[idx] from a leaf's (size+1)-capacity slot array
// where only the first oldSize entries (== size+1 before the key removal)
// are meaningful.
func removeAt32(ptrs []int32, oldSize, idx int) {
	for i := idx; i < oldSize-1; i++ {
		ptrs[i] = ptrs[i+1]
	}
}

func removeChildAt(ptrs []int32, oldSize, idx int) {
	for i := idx; i < oldSize-1; i++ {
		ptrs[i] = ptrs[i+1]
	}
}

// Clear removes the index's backing file.
func (t *BPlus) Clear() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}
