// Package rtree implements the 2-D spatial index: points are stored as
// zero-area MBRs in a disk-backed R-tree with a configurable fan-out,
// bottom-up split-on-return insert (the same discipline pkg/index/bptree
// uses for its leaf/internal splits), and a union-rect recompute on
// delete in place of full node re-insertion.
//
// Built on the same file-position/append-only node discipline as the
// other index packages, reusing pkg/index/bptree's split-on-return
// recursion pattern.
package rtree

import (
	"container/heap"
	"math"
	"os"
	"sort"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/index"
	"github.com/bobboyms/minidb/pkg/types"
)

const (
	headerSize  = 4 // i32 root position
	entryWidth  = 20 // 4 float32 + i32
	defaultFan  = 8
)

// RTree is a disk-backed R-tree index over 2-D points.
type RTree struct {
	path     string
	maxEntries int
	nodeSize int
}

type entry struct {
	rect  index.Rect
	child int32 // internal: child node position, -1 for leaf entries
	slot  int32 // leaf: slot pointer, -1 for internal entries
}

type node struct {
	isLeaf  bool
	entries []entry
}

// New opens (creating if necessary) the R-tree index file at path with
// the given fan-out (entries per node before a split).
func New(path string, fanOut int) (*RTree, error) {
	if fanOut < 2 {
		fanOut = defaultFan
	}
	t := &RTree{
		path:       path,
		maxEntries: fanOut,
		nodeSize:   8 + fanOut*entryWidth,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			return nil, &dberrors.IOError{Path: path, Err: err}
		}
		defer f.Close()

		if err := t.appendNodeAt(f, 0, node{isLeaf: true}); err != nil {
			return nil, err
		}
		if err := t.writeRoot(f, 0); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *RTree) writeRoot(f *os.File, pos int32) error {
	var buf [headerSize]byte
	encodeI32(buf[:], pos)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}

func (t *RTree) readRoot(f *os.File) (int32, error) {
	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, &dberrors.IOError{Path: t.path, Err: err}
	}
	return decodeI32(buf[:]), nil
}

func (t *RTree) nodeOffset(pos int32) int64 {
	return int64(headerSize) + int64(pos)*int64(t.nodeSize)
}

func (t *RTree) readNode(f *os.File, pos int32) (node, error) {
	buf := make([]byte, t.nodeSize)
	if _, err := f.ReadAt(buf, t.nodeOffset(pos)); err != nil {
		return node{}, &dberrors.IOError{Path: t.path, Err: err}
	}
	return t.decode(buf), nil
}

func (t *RTree) writeNode(f *os.File, pos int32, n node) error {
	if _, err := f.WriteAt(t.encode(n), t.nodeOffset(pos)); err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}

func (t *RTree) appendNodeAt(f *os.File, pos int32, n node) error {
	return t.writeNode(f, pos, n)
}

func (t *RTree) appendNode(f *os.File, n node) (int32, error) {
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

func (t *RTree) encode(n node) []byte {
	buf := make([]byte, t.nodeSize)
	isLeaf := int32(0)
	if n.isLeaf {
		isLeaf = 1
	}
	encodeI32(buf[0:4], isLeaf)
	encodeI32(buf[4:8], int32(len(n.entries)))

	off := 8
	for i := 0; i < t.maxEntries; i++ {
		if i < len(n.entries) {
			e := n.entries[i]
			encodeFloat(buf[off:off+4], e.rect.Xmin)
			encodeFloat(buf[off+4:off+8], e.rect.Ymin)
			encodeFloat(buf[off+8:off+12], e.rect.Xmax)
			encodeFloat(buf[off+12:off+16], e.rect.Ymax)
			encodeI32(buf[off+16:off+20], pick(n.isLeaf, e.slot, e.child))
		}
		off += entryWidth
	}
	return buf
}

// pick selects the leaf slot or internal child field depending on node
// kind, since both are packed into the same trailing i32.
func pick(isLeaf bool, slot, child int32) int32 {
	if isLeaf {
		return slot
	}
	return child
}

func (t *RTree) decode(buf []byte) node {
	n := node{isLeaf: decodeI32(buf[0:4]) == 1}
	count := int(decodeI32(buf[4:8]))

	off := 8
	for i := 0; i < count; i++ {
		r := index.Rect{
			Xmin: decodeFloat(buf[off : off+4]),
			Ymin: decodeFloat(buf[off+4 : off+8]),
			Xmax: decodeFloat(buf[off+8 : off+12]),
			Ymax: decodeFloat(buf[off+12 : off+16]),
		}
		v := decodeI32(buf[off+16 : off+20])
		e := entry{rect: r}
		if n.isLeaf {
			e.slot, e.child = v, -1
		} else {
			e.child, e.slot = v, -1
		}
		n.entries = append(n.entries, e)
		off += entryWidth
	}
	return n
}

// --- Insert --------------------------------------------------------------

// Insert satisfies index.Index/index.Spatial by unpacking key, which must
// be a types.PointKey (the only key shape POINT columns ever produce).
func (t *RTree) Insert(slot int, key types.Comparable) error {
	p := key.(types.PointKey)
	return t.insertPoint(p.X, p.Y, slot)
}

// insertPoint adds point (x, y) -> slot to the tree.
func (t *RTree) insertPoint(x, y float32, slot int) error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return err
	}
	pt := index.Rect{Xmin: x, Ymin: y, Xmax: x, Ymax: y}

	_, splitPos, splitRect, err := t.insert(f, root, pt, int32(slot))
	if err != nil {
		return err
	}
	if splitPos == -1 {
		return nil
	}

	rootNode, err := t.readNode(f, root)
	if err != nil {
		return err
	}
	newRoot := node{isLeaf: false, entries: []entry{
		{rect: unionAll(rootNode.entries), child: root, slot: -1},
		{rect: splitRect, child: splitPos, slot: -1},
	}}
	newRootPos, err := t.appendNode(f, newRoot)
	if err != nil {
		return err
	}
	return t.writeRoot(f, newRootPos)
}

// insert recurses to a leaf, splitting bottom-up on overflow (mirroring
// pkg/index/bptree's insert). It returns the (possibly grown) MBR of the
// subtree at pos, and a new sibling position/rect when pos split.
func (t *RTree) insert(f *os.File, pos int32, pt index.Rect, slot int32) (index.Rect, int32, index.Rect, error) {
	n, err := t.readNode(f, pos)
	if err != nil {
		return index.Rect{}, -1, index.Rect{}, err
	}

	if n.isLeaf {
		n.entries = append(n.entries, entry{rect: pt, slot: slot, child: -1})
		if len(n.entries) <= t.maxEntries {
			if err := t.writeNode(f, pos, n); err != nil {
				return index.Rect{}, -1, index.Rect{}, err
			}
			return unionAll(n.entries), -1, index.Rect{}, nil
		}
		return t.splitNode(f, pos, n)
	}

	idx := chooseChild(n.entries, pt)
	childRect, childSplitPos, childSplitRect, err := t.insert(f, n.entries[idx].child, pt, slot)
	if err != nil {
		return index.Rect{}, -1, index.Rect{}, err
	}
	n.entries[idx].rect = childRect
	if childSplitPos != -1 {
		n.entries = append(n.entries, entry{rect: childSplitRect, child: childSplitPos, slot: -1})
	}

	if len(n.entries) <= t.maxEntries {
		if err := t.writeNode(f, pos, n); err != nil {
			return index.Rect{}, -1, index.Rect{}, err
		}
		return unionAll(n.entries), -1, index.Rect{}, nil
	}
	return t.splitNode(f, pos, n)
}

// splitNode partitions an overflowing node's entries into two halves by
// sorting along whichever axis has the larger spread, then writes the
// left half back to pos and appends the right half as a new node.
func (t *RTree) splitNode(f *os.File, pos int32, n node) (index.Rect, int32, index.Rect, error) {
	axis := splitAxis(n.entries)
	sort.Slice(n.entries, func(i, j int) bool {
		if axis == 0 {
			return n.entries[i].rect.Xmin < n.entries[j].rect.Xmin
		}
		return n.entries[i].rect.Ymin < n.entries[j].rect.Ymin
	})

	mid := len(n.entries) / 2
	left := node{isLeaf: n.isLeaf, entries: n.entries[:mid]}
	right := node{isLeaf: n.isLeaf, entries: n.entries[mid:]}

	if err := t.writeNode(f, pos, left); err != nil {
		return index.Rect{}, -1, index.Rect{}, err
	}
	rightPos, err := t.appendNode(f, right)
	if err != nil {
		return index.Rect{}, -1, index.Rect{}, err
	}
	return unionAll(left.entries), rightPos, unionAll(right.entries), nil
}

// splitAxis picks the axis (0=x, 1=y) with the larger coordinate spread
// across entries, a simple standin for Guttman's linear-cost split.
func splitAxis(entries []entry) int {
	var xmin, xmax, ymin, ymax float32 = posInf(), negInf(), posInf(), negInf()
	for _, e := range entries {
		xmin, xmax = min32(xmin, e.rect.Xmin), max32(xmax, e.rect.Xmax)
		ymin, ymax = min32(ymin, e.rect.Ymin), max32(ymax, e.rect.Ymax)
	}
	if (xmax - xmin) >= (ymax - ymin) {
		return 0
	}
	return 1
}

// chooseChild picks the child entry requiring the least MBR enlargement
// to cover pt, breaking ties by smaller resulting area.
func chooseChild(entries []entry, pt index.Rect) int {
	best := 0
	bestEnlargement := float32(math.MaxFloat32)
	bestArea := float32(math.MaxFloat32)
	for i, e := range entries {
		u := union(e.rect, pt)
		enlargement := area(u) - area(e.rect)
		if enlargement < bestEnlargement || (enlargement == bestEnlargement && area(u) < bestArea) {
			best, bestEnlargement, bestArea = i, enlargement, area(u)
		}
	}
	return best
}

func area(r index.Rect) float32 {
	return (r.Xmax - r.Xmin) * (r.Ymax - r.Ymin)
}

func union(a, b index.Rect) index.Rect {
	return index.Rect{
		Xmin: min32(a.Xmin, b.Xmin),
		Ymin: min32(a.Ymin, b.Ymin),
		Xmax: max32(a.Xmax, b.Xmax),
		Ymax: max32(a.Ymax, b.Ymax),
	}
}

func unionAll(entries []entry) index.Rect {
	if len(entries) == 0 {
		// An empty node must never match any query.
		return index.Rect{Xmin: posInf(), Ymin: posInf(), Xmax: negInf(), Ymax: negInf()}
	}
	r := entries[0].rect
	for _, e := range entries[1:] {
		r = union(r, e.rect)
	}
	return r
}

func intersects(a, b index.Rect) bool {
	return a.Xmin <= b.Xmax && a.Xmax >= b.Xmin && a.Ymin <= b.Ymax && a.Ymax >= b.Ymin
}

func contains(r index.Rect, x, y float32) bool {
	return x >= r.Xmin && x <= r.Xmax && y >= r.Ymin && y <= r.Ymax
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func posInf() float32 { return float32(math.Inf(1)) }
func negInf() float32 { return float32(math.Inf(-1)) }

// --- Search / RangeSearch / Delete / Clear --------------------------------

// forEachLeaf walks every leaf entry reachable under pos whose rect
// intersects bound (nil means no pruning), calling visit for each. It
// stops early if visit returns false.
func (t *RTree) forEachLeaf(f *os.File, pos int32, bound *index.Rect, visit func(e entry) bool) (bool, error) {
	n, err := t.readNode(f, pos)
	if err != nil {
		return true, err
	}
	for _, e := range n.entries {
		if bound != nil && !intersects(e.rect, *bound) {
			continue
		}
		if n.isLeaf {
			if !visit(e) {
				return false, nil
			}
			continue
		}
		cont, err := t.forEachLeaf(f, e.child, bound, visit)
		if err != nil {
			return true, err
		}
		if !cont {
			return false, nil
		}
	}
	return true, nil
}

// Search returns every slot stored under the exact point key, found by a
// walk over all of the tree's leaves; no side key->slot map is kept,
// since the tree is already the source of truth.
func (t *RTree) Search(key types.Comparable) ([]int, error) {
	p := key.(types.PointKey)
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
	_, err = t.forEachLeaf(f, root, nil, func(e entry) bool {
		if e.rect.Xmin == p.X && e.rect.Ymin == p.Y {
			out = append(out, int(e.slot))
		}
		return true
	})
	return out, err
}

// RangeSearch exists to satisfy index.Index; POINT columns never drive a
// generic ordered range scan, so callers
// are expected to use RangeSearchRect/RangeSearchCircle/KNNSearch instead.
func (t *RTree) RangeSearch(lo, hi types.Comparable) ([]int, error) {
	return nil, &dberrors.InvalidIndexForTypeError{Column: "", DataType: types.Point.String(), IndexType: "RANGE"}
}

// RangeSearchRect returns every slot whose point lies inside r, inclusive
// of the boundary.
func (t *RTree) RangeSearchRect(r index.Rect) ([]int, error) {
	if r.Xmin > r.Xmax || r.Ymin > r.Ymax {
		return nil, &dberrors.InvalidRectError{Xmin: float64(r.Xmin), Ymin: float64(r.Ymin), Xmax: float64(r.Xmax), Ymax: float64(r.Ymax)}
	}
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
	_, err = t.forEachLeaf(f, root, &r, func(e entry) bool {
		if contains(r, e.rect.Xmin, e.rect.Ymin) {
			out = append(out, int(e.slot))
		}
		return true
	})
	return out, err
}

// RangeSearchCircle returns every slot whose point lies within the closed
// disk (center c, radius r): first prunes with the circle's bounding MBR,
// then applies the exact Euclidean test.
func (t *RTree) RangeSearchCircle(c index.Circle) ([]int, error) {
	if c.R < 0 {
		return nil, &dberrors.InvalidCircleError{Radius: float64(c.R)}
	}
	bbox := index.Rect{Xmin: c.X - c.R, Ymin: c.Y - c.R, Xmax: c.X + c.R, Ymax: c.Y + c.R}
	candidates, err := t.RangeSearchRect(bbox)
	if err != nil {
		return nil, err
	}
	// RangeSearchRect already filtered to the bounding box; re-walk the
	// tree once more to recover each candidate's coordinates for the
	// exact distance test.
	f, err := os.OpenFile(t.path, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()
	root, err := t.readRoot(f)
	if err != nil {
		return nil, err
	}
	keep := make(map[int32]bool, len(candidates))
	for _, s := range candidates {
		keep[int32(s)] = true
	}
	r2 := c.R * c.R
	var out []int
	_, err = t.forEachLeaf(f, root, &bbox, func(e entry) bool {
		if !keep[e.slot] {
			return true
		}
		dx, dy := e.rect.Xmin-c.X, e.rect.Ymin-c.Y
		if dx*dx+dy*dy <= r2 {
			out = append(out, int(e.slot))
		}
		return true
	})
	return out, err
}

// heapItem is a best-first search frontier entry: either an internal node
// (dist is the MBR's lower-bound distance to the query point) or a leaf
// point (dist is its exact distance), disambiguated by isPoint.
type heapItem struct {
	dist    float64
	pos     int32
	slot    int32
	isPoint bool
}

type itemHeap []heapItem

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func mbrDist2(r index.Rect, x, y float32) float64 {
	dx := float32(0)
	if x < r.Xmin {
		dx = r.Xmin - x
	} else if x > r.Xmax {
		dx = x - r.Xmax
	}
	dy := float32(0)
	if y < r.Ymin {
		dy = r.Ymin - y
	} else if y > r.Ymax {
		dy = y - r.Ymax
	}
	return float64(dx)*float64(dx) + float64(dy)*float64(dy)
}

// KNNSearch returns up to k slots nearest to (x, y) using best-first
// search: a min-heap ordered by each frontier item's lower-bound distance
// guarantees the first k points popped are the true k nearest.
func (t *RTree) KNNSearch(x, y float32, k int) ([]int, error) {
	if k <= 0 {
		return nil, &dberrors.InvalidKError{K: k}
	}
	f, err := os.OpenFile(t.path, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return nil, err
	}

	h := &itemHeap{{pos: root, dist: 0}}
	heap.Init(h)

	var out []int
	for h.Len() > 0 && len(out) < k {
		it := heap.Pop(h).(heapItem)
		if it.isPoint {
			out = append(out, int(it.slot))
			continue
		}
		n, err := t.readNode(f, it.pos)
		if err != nil {
			return nil, err
		}
		for _, e := range n.entries {
			if n.isLeaf {
				dx, dy := float64(e.rect.Xmin)-float64(x), float64(e.rect.Ymin)-float64(y)
				heap.Push(h, heapItem{dist: dx*dx + dy*dy, slot: e.slot, isPoint: true})
			} else {
				heap.Push(h, heapItem{dist: mbrDist2(e.rect, x, y), pos: e.child})
			}
		}
	}
	return out, nil
}

// Delete removes one entry for the exact point key, recomputing ancestor
// MBRs on the way back up (re-insertion/split policy is
// implementer's choice"; this module shrinks in place rather than
// reinserting orphaned siblings, which keeps the tree valid though
// possibly less tight after many deletes).
func (t *RTree) Delete(key types.Comparable) error {
	p := key.(types.PointKey)
	f, err := os.OpenFile(t.path, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	root, err := t.readRoot(f)
	if err != nil {
		return err
	}
	_, _, err = t.delete(f, root, p)
	return err
}

// delete returns the (possibly shrunk) MBR of the subtree at pos and
// whether an entry was removed from it.
func (t *RTree) delete(f *os.File, pos int32, p types.PointKey) (index.Rect, bool, error) {
	n, err := t.readNode(f, pos)
	if err != nil {
		return index.Rect{}, false, err
	}

	if n.isLeaf {
		idx := -1
		for i, e := range n.entries {
			if e.rect.Xmin == p.X && e.rect.Ymin == p.Y {
				idx = i
				break
			}
		}
		if idx == -1 {
			return unionAll(n.entries), false, nil
		}
		n.entries = append(n.entries[:idx], n.entries[idx+1:]...)
		if err := t.writeNode(f, pos, n); err != nil {
			return index.Rect{}, false, err
		}
		return unionAll(n.entries), true, nil
	}

	for i, e := range n.entries {
		if !contains(e.rect, p.X, p.Y) {
			continue
		}
		childRect, removed, err := t.delete(f, e.child, p)
		if err != nil {
			return index.Rect{}, false, err
		}
		if !removed {
			continue
		}
		n.entries[i].rect = childRect
		if err := t.writeNode(f, pos, n); err != nil {
			return index.Rect{}, false, err
		}
		return unionAll(n.entries), true, nil
	}
	return unionAll(n.entries), false, nil
}

// Clear removes the index's backing file.
func (t *RTree) Clear() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}
