// Package isam implements the static three-level ISAM index: a root
// page and I+1 level-1 pages route to (I+1)² regular leaf pages, each
// chained by next_page into one global ordered chain that also threads
// through dynamically appended overflow pages.
//
// Built on the same file-position discipline as pkg/index/avl and
// pkg/index/bptree's leaf chain, applied to a static multi-level index.
package isam

import (
	"os"
	"sort"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/types"
)

const headerSize = 8 // i32 leafFactor L + i32 indexFactor I

const pageDiskSize = 4096

// ISAM is a disk-backed static ISAM index over a single column.
type ISAM struct {
	path          string
	leafFactor    int // L
	indexFactor   int // I
	dataType      types.DataType
	keyWidth      int
	indexRecWidth int
	leafRecWidth  int
	indexPageSize int
	leafPageSize  int
	pageSize      int
}

// Entry is one (key, slot) pair indexed by Build.
type Entry struct {
	Key  types.Comparable
	Slot int
}

func newISAM(path string, leafFactor, indexFactor int, dataType types.DataType, keyWidth int) *ISAM {
	t := &ISAM{
		path:        path,
		leafFactor:  leafFactor,
		indexFactor: indexFactor,
		dataType:    dataType,
		keyWidth:    keyWidth,
	}
	t.indexRecWidth = keyWidth + 8
	t.leafRecWidth = keyWidth + 4
	t.indexPageSize = 4 + indexFactor*t.indexRecWidth
	t.leafPageSize = 12 + leafFactor*t.leafRecWidth
	t.pageSize = t.indexPageSize
	if t.leafPageSize > t.pageSize {
		t.pageSize = t.leafPageSize
	}
	return t
}

// chooseFactors picks L and I targeting ~50% fill of a 4096-byte page
// given the column's encoded width, clamped to >= 2.
func chooseFactors(keyWidth, total int) (leafFactor, indexFactor int) {
	leafRecWidth := keyWidth + 4
	capacity := (pageDiskSize - 12) / leafRecWidth
	leafFactor = capacity / 2
	if leafFactor < 2 {
		leafFactor = 2
	}

	regularLeafCount := 1
	if total > 0 {
		regularLeafCount = (total + leafFactor - 1) / leafFactor
	}
	// indexFactor is chosen so that (I+1)^2 >= regularLeafCount, giving
	// the structure exactly (I+1)^2 regular leaves once padded.
	indexFactor = 2
	for (indexFactor+1)*(indexFactor+1) < regularLeafCount {
		indexFactor++
	}
	return leafFactor, indexFactor
}

// Open reopens an existing ISAM index file, reading its factors from
// the header.
func Open(path string, dataType types.DataType, varcharLength int) (*ISAM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dberrors.IOError{Path: path, Err: err}
	}
	defer f.Close()

	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return nil, &dberrors.IOError{Path: path, Err: err}
	}
	leafFactor := int(types.DecodeI32(buf[0:4]))
	indexFactor := int(types.DecodeI32(buf[4:8]))
	keyWidth := types.Width(dataType, varcharLength)
	return newISAM(path, leafFactor, indexFactor, dataType, keyWidth), nil
}

// Build creates a fresh ISAM index file from entries (need not be
// sorted; Build sorts them) using the bulk build procedure.
func Build(path string, dataType types.DataType, varcharLength int, entries []Entry) (*ISAM, error) {
	keyWidth := types.Width(dataType, varcharLength)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Key.Compare(entries[j].Key) < 0
	})

	leafFactor, indexFactor := chooseFactors(keyWidth, len(entries))
	t := newISAM(path, leafFactor, indexFactor, dataType, keyWidth)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: path, Err: err}
	}
	defer f.Close()

	if err := t.writeHeader(f); err != nil {
		return nil, err
	}

	target := (indexFactor + 1) * (indexFactor + 1)

	// Chunk sorted entries into regular leaves of up to leafFactor each.
	var chunks [][]Entry
	for i := 0; i < len(entries); i += leafFactor {
		end := i + leafFactor
		if end > len(entries) {
			end = len(entries)
		}
		chunks = append(chunks, entries[i:end])
	}
	if len(chunks) == 0 {
		chunks = append(chunks, nil)
	}

	firstKeys := make([]types.Comparable, target)
	leafPagesStart := int32(1 + (indexFactor + 1)) // root(1) + level-1 pages

	var lastKey types.Comparable
	for i := 0; i < target; i++ {
		var lf leafPage
		lf.pageNum = leafPagesStart + int32(i)
		lf.notOverflow = true
		lf.nextPage = -1
		if i < len(chunks) && len(chunks[i]) > 0 {
			for _, e := range chunks[i] {
				lf.entries = append(lf.entries, leafEntry{key: e.Key, slot: int32(e.Slot)})
			}
			firstKeys[i] = chunks[i][0].Key
			lastKey = chunks[i][len(chunks[i])-1].Key
		} else {
			if lastKey == nil {
				lastKey = zeroKey(dataType)
			}
			lastKey = nextSentinel(dataType, lastKey, keyWidth)
			firstKeys[i] = lastKey
		}
		if i+1 < target {
			lf.nextPage = leafPagesStart + int32(i+1)
		}
		if err := t.appendPageAt(f, lf.pageNum, t.encodeLeaf(lf)); err != nil {
			return nil, err
		}
	}

	// Build level-1 pages: group leaves into (I+1) groups of (I+1) each.
	groupSize := indexFactor + 1
	level1Start := int32(1)
	level1FirstKeys := make([]types.Comparable, indexFactor+1)
	for g := 0; g <= indexFactor; g++ {
		var ip indexPage
		ip.pageNum = level1Start + int32(g)
		base := g * groupSize
		level1FirstKeys[g] = firstKeys[base]
		for k := 0; k < indexFactor; k++ {
			leftLeaf := base + k
			rightLeaf := base + k + 1
			ip.records = append(ip.records, indexRecord{
				key:  firstKeys[rightLeaf],
				left: leafPagesStart + int32(leftLeaf),
				right: leafPagesStart + int32(rightLeaf),
			})
		}
		if err := t.appendPageAt(f, ip.pageNum, t.encodeIndex(ip)); err != nil {
			return nil, err
		}
	}

	// Build root over level-1 pages.
	var root indexPage
	root.pageNum = 0
	for k := 0; k < indexFactor; k++ {
		root.records = append(root.records, indexRecord{
			key:   level1FirstKeys[k+1],
			left:  level1Start + int32(k),
			right: level1Start + int32(k+1),
		})
	}
	if err := t.appendPageAt(f, 0, t.encodeIndex(root)); err != nil {
		return nil, err
	}

	return t, nil
}

func zeroKey(dt types.DataType) types.Comparable {
	switch dt {
	case types.Int:
		return types.IntKey(0)
	case types.Float:
		return types.FloatKey(0)
	case types.Varchar:
		return types.VarcharKey("")
	case types.Date:
		return types.DateKey("")
	case types.Bool:
		return types.BoolKey(false)
	default:
		return types.IntKey(0)
	}
}

func (t *ISAM) writeHeader(f *os.File) error {
	var buf [headerSize]byte
	types.EncodeI32(buf[0:4], int32(t.leafFactor))
	types.EncodeI32(buf[4:8], int32(t.indexFactor))
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}

func (t *ISAM) pageOffset(pageNum int32) int64 {
	return int64(headerSize) + int64(pageNum)*int64(t.pageSize)
}

func (t *ISAM) appendPageAt(f *os.File, pageNum int32, buf []byte) error {
	if _, err := f.WriteAt(buf, t.pageOffset(pageNum)); err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}

func (t *ISAM) readRawPage(f *os.File, pageNum int32) ([]byte, error) {
	buf := make([]byte, t.pageSize)
	if _, err := f.ReadAt(buf, t.pageOffset(pageNum)); err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	return buf, nil
}

func (t *ISAM) pageCount(f *os.File) (int32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, &dberrors.IOError{Path: t.path, Err: err}
	}
	return int32((info.Size() - headerSize) / int64(t.pageSize)), nil
}

// --- index page encode/decode ------------------------------------------

type indexRecord struct {
	key   types.Comparable
	left  int32
	right int32
}

type indexPage struct {
	pageNum int32
	records []indexRecord
}

func (t *ISAM) encodeIndex(p indexPage) []byte {
	buf := make([]byte, t.pageSize)
	types.EncodeI32(buf[0:4], p.pageNum)
	off := 4
	for i := 0; i < t.indexFactor; i++ {
		if i < len(p.records) {
			r := p.records[i]
			types.EncodeKey(buf[off:off+t.keyWidth], t.dataType, r.key)
			types.EncodeI32(buf[off+t.keyWidth:off+t.keyWidth+4], r.left)
			types.EncodeI32(buf[off+t.keyWidth+4:off+t.keyWidth+8], r.right)
		} else {
			types.EncodeI32(buf[off+t.keyWidth:off+t.keyWidth+4], -1)
			types.EncodeI32(buf[off+t.keyWidth+4:off+t.keyWidth+8], -1)
		}
		off += t.indexRecWidth
	}
	return buf
}

func (t *ISAM) decodeIndex(buf []byte) indexPage {
	p := indexPage{pageNum: types.DecodeI32(buf[0:4])}
	off := 4
	for i := 0; i < t.indexFactor; i++ {
		left := types.DecodeI32(buf[off+t.keyWidth : off+t.keyWidth+4])
		right := types.DecodeI32(buf[off+t.keyWidth+4 : off+t.keyWidth+8])
		if left != -1 || right != -1 {
			key := types.DecodeKey(buf[off:off+t.keyWidth], t.dataType)
			p.records = append(p.records, indexRecord{key: key, left: left, right: right})
		}
		off += t.indexRecWidth
	}
	return p
}

// --- leaf page encode/decode --------------------------------------------

type leafEntry struct {
	key  types.Comparable
	slot int32
}

type leafPage struct {
	pageNum     int32
	nextPage    int32
	notOverflow bool
	entries     []leafEntry
}

func (t *ISAM) encodeLeaf(p leafPage) []byte {
	buf := make([]byte, t.pageSize)
	types.EncodeI32(buf[0:4], p.pageNum)
	types.EncodeI32(buf[4:8], p.nextPage)
	notOverflow := int32(0)
	if p.notOverflow {
		notOverflow = 1
	}
	types.EncodeI32(buf[8:12], notOverflow)

	off := 12
	for i := 0; i < t.leafFactor; i++ {
		if i < len(p.entries) {
			e := p.entries[i]
			types.EncodeKey(buf[off:off+t.keyWidth], t.dataType, e.key)
			types.EncodeI32(buf[off+t.keyWidth:off+t.keyWidth+4], e.slot)
		} else {
			types.EncodeI32(buf[off+t.keyWidth:off+t.keyWidth+4], -1)
		}
		off += t.leafRecWidth
	}
	return buf
}

func (t *ISAM) decodeLeaf(buf []byte) leafPage {
	p := leafPage{
		pageNum:     types.DecodeI32(buf[0:4]),
		nextPage:    types.DecodeI32(buf[4:8]),
		notOverflow: types.DecodeI32(buf[8:12]) == 1,
	}
	off := 12
	for i := 0; i < t.leafFactor; i++ {
		slot := types.DecodeI32(buf[off+t.keyWidth : off+t.keyWidth+4])
		if slot != -1 {
			key := types.DecodeKey(buf[off:off+t.keyWidth], t.dataType)
			p.entries = append(p.entries, leafEntry{key: key, slot: slot})
		}
		off += t.leafRecWidth
	}
	return p
}

// --- navigation ----------------------------------------------------------

// navigate applies the ISAM index-record rule: the first record whose
// key > q returns its left child; otherwise the last record's right
// child.
func navigate(p indexPage, q types.Comparable) int32 {
	for _, r := range p.records {
		if r.key.Compare(q) > 0 {
			return r.left
		}
	}
	if len(p.records) == 0 {
		return -1
	}
	return p.records[len(p.records)-1].right
}

// descend walks root -> level-1 -> regular leaf for q, returning the
// regular leaf's page number.
func (t *ISAM) descend(f *os.File, q types.Comparable) (int32, error) {
	rootBuf, err := t.readRawPage(f, 0)
	if err != nil {
		return 0, err
	}
	root := t.decodeIndex(rootBuf)
	level1Pos := navigate(root, q)

	l1Buf, err := t.readRawPage(f, level1Pos)
	if err != nil {
		return 0, err
	}
	level1 := t.decodeIndex(l1Buf)
	leafPos := navigate(level1, q)
	return leafPos, nil
}

// --- Search / RangeSearch ------------------------------------------------

// Search returns every slot stored under key.
func (t *ISAM) Search(key types.Comparable) ([]int, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	pos, err := t.descend(f, key)
	if err != nil {
		return nil, err
	}

	var out []int
	for pos != -1 {
		buf, err := t.readRawPage(f, pos)
		if err != nil {
			return nil, err
		}
		lf := t.decodeLeaf(buf)
		exceeded := false
		for _, e := range lf.entries {
			if e.key.Compare(key) == 0 {
				out = append(out, int(e.slot))
			} else if e.key.Compare(key) > 0 {
				exceeded = true
			}
		}
		if lf.nextPage == -1 {
			break
		}
		if exceeded {
			// Overflow pages after this one still belong to the same
			// bucket; stop only once the next page is a regular leaf.
			nextBuf, err := t.readRawPage(f, lf.nextPage)
			if err != nil {
				return nil, err
			}
			if t.decodeLeaf(nextBuf).notOverflow {
				break
			}
		}
		pos = lf.nextPage
	}
	return out, nil
}

// RangeSearch descends to the leaf for lo, then walks next_page,
// skipping sentinel (empty) records, emitting slots until a key
// exceeds hi.
func (t *ISAM) RangeSearch(lo, hi types.Comparable) ([]int, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	pos, err := t.descend(f, lo)
	if err != nil {
		return nil, err
	}

	var out []int
	for pos != -1 {
		buf, err := t.readRawPage(f, pos)
		if err != nil {
			return nil, err
		}
		lf := t.decodeLeaf(buf)
		stop := false
		for _, e := range lf.entries {
			if e.key.Compare(hi) > 0 {
				stop = true
				break
			}
			if e.key.Compare(lo) >= 0 {
				out = append(out, int(e.slot))
			}
		}
		if stop {
			break
		}
		pos = lf.nextPage
	}
	return out, nil
}

// --- Insert ----------------------------------------------------------

// Insert adds key -> slot: descend to the base regular leaf, walk its
// overflow pages for room, merge into the next overflow page if
// there's space, else append a new overflow page.
func (t *ISAM) Insert(slot int, key types.Comparable) error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	base, err := t.descend(f, key)
	if err != nil {
		return err
	}

	pos := base
	var prevPos int32 = -1
	var prev leafPage
	for {
		buf, err := t.readRawPage(f, pos)
		if err != nil {
			return err
		}
		cur := t.decodeLeaf(buf)
		if len(cur.entries) < t.leafFactor {
			insertLeafEntry(&cur, leafEntry{key: key, slot: int32(slot)})
			return t.appendPageAt(f, pos, t.encodeLeaf(cur))
		}
		prevPos, prev = pos, cur
		if cur.nextPage == -1 {
			break
		}
		nextBuf, err := t.readRawPage(f, cur.nextPage)
		if err != nil {
			return err
		}
		nextPage := t.decodeLeaf(nextBuf)
		if nextPage.notOverflow {
			break // reached the next regular leaf; this bucket is full
		}
		pos = cur.nextPage
	}

	// Append a new overflow page linked after prevPos.
	pages, err := t.pageCount(f)
	if err != nil {
		return err
	}
	newPos := pages
	newLeaf := leafPage{
		pageNum:     newPos,
		nextPage:    prev.nextPage,
		notOverflow: false,
		entries:     []leafEntry{{key: key, slot: int32(slot)}},
	}
	if err := t.appendPageAt(f, newPos, t.encodeLeaf(newLeaf)); err != nil {
		return err
	}
	prev.nextPage = newPos
	return t.appendPageAt(f, prevPos, t.encodeLeaf(prev))
}

func insertLeafEntry(lf *leafPage, e leafEntry) {
	idx := len(lf.entries)
	for i, existing := range lf.entries {
		if e.key.Compare(existing.key) < 0 {
			idx = i
			break
		}
	}
	lf.entries = append(lf.entries, leafEntry{})
	copy(lf.entries[idx+1:], lf.entries[idx:])
	lf.entries[idx] = e
}

// --- Delete ------------------------------------------------------------

// Delete removes one entry for key across the bucket (regular leaf plus
// its overflow chain), unlinking any overflow page that becomes empty.
func (t *ISAM) Delete(key types.Comparable) error {
	f, err := os.OpenFile(t.path, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	defer f.Close()

	base, err := t.descend(f, key)
	if err != nil {
		return err
	}

	pos := base
	var prevPos int32 = -1
	for {
		buf, err := t.readRawPage(f, pos)
		if err != nil {
			return err
		}
		cur := t.decodeLeaf(buf)

		idx := -1
		for i, e := range cur.entries {
			if e.key.Compare(key) == 0 {
				idx = i
				break
			}
		}
		if idx != -1 {
			cur.entries = append(cur.entries[:idx], cur.entries[idx+1:]...)
			if len(cur.entries) == 0 && !cur.notOverflow && prevPos != -1 {
				prevBuf, err := t.readRawPage(f, prevPos)
				if err != nil {
					return err
				}
				prevLeaf := t.decodeLeaf(prevBuf)
				prevLeaf.nextPage = cur.nextPage
				return t.appendPageAt(f, prevPos, t.encodeLeaf(prevLeaf))
			}
			return t.appendPageAt(f, pos, t.encodeLeaf(cur))
		}

		if cur.nextPage == -1 {
			return nil // key not present
		}
		nextBuf, err := t.readRawPage(f, cur.nextPage)
		if err != nil {
			return err
		}
		nextPage := t.decodeLeaf(nextBuf)
		if nextPage.notOverflow {
			return nil // bucket exhausted, key not present
		}
		prevPos = pos
		pos = cur.nextPage
	}
}

// Clear removes the index's backing file.
func (t *ISAM) Clear() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return &dberrors.IOError{Path: t.path, Err: err}
	}
	return nil
}
