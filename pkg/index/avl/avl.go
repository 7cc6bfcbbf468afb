// Package avl implements the on-disk AVL-tree index: a balanced BST
// keyed by column value, storing one slot pointer per key, addressed by
// file position rather than in-memory pointers:
//
//	[ 4-byte header: root position (i32, -1 = empty) ]
//	[ node 0 ][ node 1 ] ...
//
// Each node is keyWidth + 16 bytes: key, slot pointer (i32), left child
// position (i32), right child position (i32), height (i32). A height of
// -2 marks a tombstoned node: its file position is permanently retired
// once unlinked from the tree, and its slot is never reclaimed.
package avl

import (
	"os"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/types"
)

const (
	headerSize = 4
	ptrSize    = 4
	noChild    int32 = -1
	tombstone  int32 = -2
)

// AVL is a disk-backed AVL tree index over a single column.
type AVL struct {
	path     string
	dataType types.DataType
	keyWidth int
	nodeSize int
}

// New opens (creating if necessary) the AVL index file at path.
func New(path string, dataType types.DataType, varcharLength int) (*AVL, error) {
	keyWidth := types.Width(dataType, varcharLength)
	t := &AVL{path: path, dataType: dataType, keyWidth: keyWidth, nodeSize: keyWidth + 3*ptrSize + 4}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			return nil, &dberrors.IOError{Path: path, Err: err}
		}
		defer f.Close()
		if err := t.writeRoot(f, noChild); err != nil {
			return nil, err
		}
	}
	return t, nil
}

type node struct {
	key    types.Comparable
	slot   int32
	left   int32
	right  int32
	height int32
}

func (t *AVL) writeRoot(f *os.File, pos int32) error {
	var buf [headerSize]byte
	types.EncodeI32(buf[:], pos)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}

func (t *AVL) readRoot(f *os.File) (int32, error) {
	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, &dberrors.IOError{Path: t.path, Err: err}
	}
	return types.DecodeI32(buf[:]), nil
}

func (t *AVL) offset(pos int32) int64 {
	return int64(headerSize) + int64(pos)*int64(t.nodeSize)
}

func (t *AVL) readNode(f *os.File, pos int32) (*node, error) {
	buf := make([]byte, t.nodeSize)
	if _, err := f.ReadAt(buf, t.offset(pos)); err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	n := &node{}
	n.key = types.DecodeKey(buf[:t.keyWidth], t.dataType)
	o := t.keyWidth
	n.slot = types.DecodeI32(buf[o : o+4])
	n.left = types.DecodeI32(buf[o+4 : o+8])
	n.right = types.DecodeI32(buf[o+8 : o+12])
	n.height = types.DecodeI32(buf[o+12 : o+16])
	return n, nil
}

func (t *AVL) writeNode(f *os.File, pos int32, n *node) error {
	buf := make([]byte, t.nodeSize)
	types.EncodeKey(buf[:t.keyWidth], t.dataType, n.key)
	o := t.keyWidth
	types.EncodeI32(buf[o:o+4], n.slot)
	types.EncodeI32(buf[o+4:o+8], n.left)
	types.EncodeI32(buf[o+8:o+12], n.right)
	types.EncodeI32(buf[o+12:o+16], n.height)
	if _, err := f.WriteAt(buf, t.offset(pos)); err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}

func (t *AVL) appendNode(f *os.File, n *node) (int32, error) {
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

// --- small readers used by balance math -----------------------------

func (t *AVL) nodeHeight(f *os.File, pos int32) (int32, error) {
	if pos == noChild {
		return 0, nil
	}
	n, err := t.readNode(f, pos)
	if err != nil {
		return 0, err
	}
	return n.height, nil
}

func (t *AVL) balanceFactor(f *os.File, n *node) (int32, error) {
	lh, err := t.nodeHeight(f, n.left)
	if err != nil {
		return 0, err
	}
	rh, err := t.nodeHeight(f, n.right)
	if err != nil {
		return 0, err
	}
	return lh - rh, nil
}

func (t *AVL) recomputeHeight(f *os.File, n *node) error {
	lh, err := t.nodeHeight(f, n.left)
	if err != nil {
		return err
	}
	rh, err := t.nodeHeight(f, n.right)
	if err != nil {
		return err
	}
	if lh > rh {
		n.height = lh + 1
	} else {
		n.height = rh + 1
	}
	return nil
}

// rotateRight rotates the subtree rooted at pos (whose node is n) right,
// returning the new subtree root position.
func (t *AVL) rotateRight(f *os.File, pos int32, n *node) (int32, error) {
	left, err := t.readNode(f, n.left)
	if err != nil {
		return 0, err
	}
	leftPos := n.left

	n.left = left.right
	left.right = pos

	if err := t.recomputeHeight(f, n); err != nil {
		return 0, err
	}
	if err := t.writeNode(f, pos, n); err != nil {
		return 0, err
	}
	if err := t.recomputeHeight(f, left); err != nil {
		return 0, err
	}
	if err := t.writeNode(f, leftPos, left); err != nil {
		return 0, err
	}
	return leftPos, nil
}

func (t *AVL) rotateLeft(f *os.File, pos int32, n *node) (int32, error) {
	right, err := t.readNode(f, n.right)
	if err != nil {
		return 0, err
	}
	rightPos := n.right

	n.right = right.left
	right.left = pos

	if err := t.recomputeHeight(f, n); err != nil {
		return 0, err
	}
	if err := t.writeNode(f, pos, n); err != nil {
		return 0, err
	}
	if err := t.recomputeHeight(f, right); err != nil {
		return 0, err
	}
	if err := t.writeNode(f, rightPos, right); err != nil {
		return 0, err
	}
	return rightPos, nil
}

// rebalance rebalances the subtree rooted at pos (node n already has an
// up-to-date height) and returns the (possibly new) subtree root.
func (t *AVL) rebalance(f *os.File, pos int32, n *node) (int32, error) {
	bf, err := t.balanceFactor(f, n)
	if err != nil {
		return 0, err
	}

	if bf > 1 {
		left, err := t.readNode(f, n.left)
		if err != nil {
			return 0, err
		}
		lbf, err := t.balanceFactor(f, left)
		if err != nil {
			return 0, err
		}
		if lbf < 0 {
			// Left-Right case.
			newLeft, err := t.rotateLeft(f, n.left, left)
			if err != nil {
				return 0, err
			}
			n.left = newLeft
			if err := t.writeNode(f, pos, n); err != nil {
				return 0, err
			}
		}
		return t.rotateRight(f, pos, n)
	}

	if bf < -1 {
		right, err := t.readNode(f, n.right)
		if err != nil {
			return 0, err
		}
		rbf, err := t.balanceFactor(f, right)
		if err != nil {
			return 0, err
		}
		if rbf > 0 {
			// Right-Left case.
			newRight, err := t.rotateRight(f, n.right, right)
			if err != nil {
				return 0, err
			}
			n.right = newRight
			if err := t.writeNode(f, pos, n); err != nil {
				return 0, err
			}
		}
		return t.rotateLeft(f, pos, n)
	}

	return pos, nil
}

// --- public API --------------------------------------------------------

// Insert adds key -> slot to the tree.
func (t *AVL) Insert(slot int, key types.Comparable) error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return err
	}
	newRoot, err := t.insert(f, root, key, int32(slot))
	if err != nil {
		return err
	}
	return t.writeRoot(f, newRoot)
}

func (t *AVL) insert(f *os.File, pos int32, key types.Comparable, slot int32) (int32, error) {
	if pos == noChild {
		n := &node{key: key, slot: slot, left: noChild, right: noChild, height: 1}
		return t.appendNode(f, n)
	}

	n, err := t.readNode(f, pos)
	if err != nil {
		return 0, err
	}

	cmp := key.Compare(n.key)
	if cmp < 0 {
		newLeft, err := t.insert(f, n.left, key, slot)
		if err != nil {
			return 0, err
		}
		n.left = newLeft
	} else {
		// Non-unique keys are allowed (uniqueness is left to the schema
		// layer); equal or greater keys both descend right so duplicates
		// land in a stable place.
		newRight, err := t.insert(f, n.right, key, slot)
		if err != nil {
			return 0, err
		}
		n.right = newRight
	}

	if err := t.recomputeHeight(f, n); err != nil {
		return 0, err
	}
	if err := t.writeNode(f, pos, n); err != nil {
		return 0, err
	}
	return t.rebalance(f, pos, n)
}

// Search returns every slot stored under key.
func (t *AVL) Search(key types.Comparable) ([]int, error) {
	f, err := os.OpenFile(t.path, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return nil, err
	}

	var out []int
	pos := root
	for pos != noChild {
		n, err := t.readNode(f, pos)
		if err != nil {
			return nil, err
		}
		cmp := key.Compare(n.key)
		if cmp == 0 {
			out = append(out, int(n.slot))
			// Duplicates may live in either subtree (insert always
			// breaks ties right), so keep walking both sides.
			if left, err := t.collectEqual(f, n.left, key); err != nil {
				return nil, err
			} else {
				out = append(out, left...)
			}
			pos = n.right
			continue
		}
		if cmp < 0 {
			pos = n.left
		} else {
			pos = n.right
		}
	}
	return out, nil
}

func (t *AVL) collectEqual(f *os.File, pos int32, key types.Comparable) ([]int, error) {
	if pos == noChild {
		return nil, nil
	}
	n, err := t.readNode(f, pos)
	if err != nil {
		return nil, err
	}
	cmp := key.Compare(n.key)
	var out []int
	if cmp == 0 {
		out = append(out, int(n.slot))
		more, err := t.collectEqual(f, n.left, key)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
		more, err = t.collectEqual(f, n.right, key)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	} else if cmp < 0 {
		return t.collectEqual(f, n.left, key)
	} else {
		return t.collectEqual(f, n.right, key)
	}
	return out, nil
}

// RangeSearch is an in-order DFS bounded by [lo, hi] with pruning.
func (t *AVL) RangeSearch(lo, hi types.Comparable) ([]int, error) {
	f, err := os.OpenFile(t.path, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return nil, err
	}

	var out []int
	var walk func(pos int32) error
	walk = func(pos int32) error {
		if pos == noChild {
			return nil
		}
		n, err := t.readNode(f, pos)
		if err != nil {
			return err
		}
		if n.key.Compare(lo) > 0 {
			if err := walk(n.left); err != nil {
				return err
			}
		}
		if n.key.Compare(lo) >= 0 && n.key.Compare(hi) <= 0 {
			out = append(out, int(n.slot))
		}
		if n.key.Compare(hi) < 0 {
			if err := walk(n.right); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one entry for key, using in-order predecessor
// splicing; the vacated node position is tombstoned, never reused.
func (t *AVL) Delete(key types.Comparable) error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return err
	}
	newRoot, _, err := t.delete(f, root, key)
	if err != nil {
		return err
	}
	return t.writeRoot(f, newRoot)
}

func (t *AVL) delete(f *os.File, pos int32, key types.Comparable) (int32, bool, error) {
	if pos == noChild {
		return noChild, false, nil
	}

	n, err := t.readNode(f, pos)
	if err != nil {
		return 0, false, err
	}

	cmp := key.Compare(n.key)
	switch {
	case cmp < 0:
		newLeft, deleted, err := t.delete(f, n.left, key)
		if err != nil {
			return 0, false, err
		}
		if !deleted {
			return pos, false, nil
		}
		n.left = newLeft
	case cmp > 0:
		newRight, deleted, err := t.delete(f, n.right, key)
		if err != nil {
			return 0, false, err
		}
		if !deleted {
			return pos, false, nil
		}
		n.right = newRight
	default:
		// Found the node to remove.
		if n.left == noChild || n.right == noChild {
			child := n.left
			if child == noChild {
				child = n.right
			}
			if err := t.tombstone(f, pos, n); err != nil {
				return 0, false, err
			}
			return child, true, nil
		}

		predPos, pred, err := t.maxNode(f, n.left)
		if err != nil {
			return 0, false, err
		}
		n.key = pred.key
		n.slot = pred.slot
		newLeft, _, err := t.deleteAt(f, n.left, predPos)
		if err != nil {
			return 0, false, err
		}
		n.left = newLeft
	}

	if err := t.recomputeHeight(f, n); err != nil {
		return 0, false, err
	}
	if err := t.writeNode(f, pos, n); err != nil {
		return 0, false, err
	}
	newPos, err := t.rebalance(f, pos, n)
	return newPos, true, err
}

// deleteAt removes the specific node at target (used for predecessor
// splicing, where we must remove an exact position, not a key lookup --
// duplicate keys could otherwise delete the wrong occurrence).
func (t *AVL) deleteAt(f *os.File, pos int32, target int32) (int32, bool, error) {
	if pos == noChild {
		return noChild, false, nil
	}
	n, err := t.readNode(f, pos)
	if err != nil {
		return 0, false, err
	}

	if pos == target {
		if n.left == noChild || n.right == noChild {
			child := n.left
			if child == noChild {
				child = n.right
			}
			if err := t.tombstone(f, pos, n); err != nil {
				return 0, false, err
			}
			return child, true, nil
		}
		predPos, pred, err := t.maxNode(f, n.left)
		if err != nil {
			return 0, false, err
		}
		n.key = pred.key
		n.slot = pred.slot
		newLeft, _, err := t.deleteAt(f, n.left, predPos)
		if err != nil {
			return 0, false, err
		}
		n.left = newLeft
	} else {
		// target's position carries no ordering information relative to
		// pos, so try both children and keep whichever reports success.
		newLeft, deleted, err := t.deleteAt(f, n.left, target)
		if err != nil {
			return 0, false, err
		}
		if deleted {
			n.left = newLeft
		} else {
			newRight, deleted, err := t.deleteAt(f, n.right, target)
			if err != nil {
				return 0, false, err
			}
			if !deleted {
				return pos, false, nil
			}
			n.right = newRight
		}
	}

	if err := t.recomputeHeight(f, n); err != nil {
		return 0, false, err
	}
	if err := t.writeNode(f, pos, n); err != nil {
		return 0, false, err
	}
	newPos, err := t.rebalance(f, pos, n)
	return newPos, true, err
}

func (t *AVL) maxNode(f *os.File, pos int32) (int32, *node, error) {
	n, err := t.readNode(f, pos)
	if err != nil {
		return 0, nil, err
	}
	if n.right == noChild {
		return pos, n, nil
	}
	return t.maxNode(f, n.right)
}

func (t *AVL) tombstone(f *os.File, pos int32, n *node) error {
	n.height = tombstone
	return t.writeNode(f, pos, n)
}

// Clear removes the index's backing file.
func (t *AVL) Clear() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}
