// Package hash implements the extendible hash index: a binary trie over
// hash bits directing to fixed-capacity buckets with overflow chains.
// The trie and the buckets live in two separate files.
//
// Built on the same "file position instead of in-memory pointer"
// discipline as pkg/index/avl, generalized here to two cooperating
// files instead of one, with a fixed bucket page size enforced rather
// than left as an unbounded heuristic.
package hash

import (
	"crypto/sha256"
	"hash/fnv"
	"os"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/types"
)

// DefaultBucketCapacity is the fixed number of (key, slot) entries a
// bucket holds before it splits or overflows.
const DefaultBucketCapacity = 4

const (
	trieNodeSize   = 16 // i32 isLeaf + i32 left + i32 right + i32 bucketID
	trieHeaderSize = 4  // i32 root position
	bucketHeader   = 16 // i32 count + i32 nextOverflow + 8 reserved bytes
)

// Hash is a disk-backed extendible hash index over a single column.
type Hash struct {
	triePath   string
	bucketPath string
	maxDepth   int
	capacity   int
	dataType   types.DataType
	keyWidth   int
	bucketSize int
}

// New opens (creating if necessary) the trie/bucket file pair at
// basePath+".trie"/basePath+".bkt".
func New(basePath string, maxDepth int, dataType types.DataType, varcharLength int) (*Hash, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > 63 {
		maxDepth = 63
	}
	keyWidth := types.Width(dataType, varcharLength)
	h := &Hash{
		triePath:   basePath + ".trie",
		bucketPath: basePath + ".bkt",
		maxDepth:   maxDepth,
		capacity:   DefaultBucketCapacity,
		dataType:   dataType,
		keyWidth:   keyWidth,
		bucketSize: bucketHeader + DefaultBucketCapacity*(4+keyWidth),
	}

	if _, err := os.Stat(h.triePath); os.IsNotExist(err) {
		tf, err := os.OpenFile(h.triePath, os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			return nil, &dberrors.IOError{Path: h.triePath, Err: err}
		}
		defer tf.Close()

		bf, err := os.OpenFile(h.bucketPath, os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			return nil, &dberrors.IOError{Path: h.bucketPath, Err: err}
		}
		defer bf.Close()

		rootBucket, err := h.appendBucket(bf, emptyBucket())
		if err != nil {
			return nil, err
		}
		if err := h.writeTrieNode(tf, 0, trieNode{isLeaf: true, left: -1, right: -1, bucketID: rootBucket}); err != nil {
			return nil, err
		}
		if err := h.writeRoot(tf, 0); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// --- trie node -------------------------------------------------------

type trieNode struct {
	isLeaf   bool
	left     int32
	right    int32
	bucketID int32
}

func (h *Hash) writeRoot(f *os.File, pos int32) error {
	var buf [trieHeaderSize]byte
	types.EncodeI32(buf[:], pos)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return &dberrors.IOError{Path: h.triePath, Err: err}
	}
	return nil
}

func (h *Hash) readRoot(f *os.File) (int32, error) {
	var buf [trieHeaderSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, &dberrors.IOError{Path: h.triePath, Err: err}
	}
	return types.DecodeI32(buf[:]), nil
}

func (h *Hash) trieOffset(pos int32) int64 {
	return int64(trieHeaderSize) + int64(pos)*int64(trieNodeSize)
}

func (h *Hash) readTrieNode(f *os.File, pos int32) (trieNode, error) {
	var buf [trieNodeSize]byte
	if _, err := f.ReadAt(buf[:], h.trieOffset(pos)); err != nil {
		return trieNode{}, &dberrors.IOError{Path: h.triePath, Err: err}
	}
	n := trieNode{
		isLeaf:   types.DecodeI32(buf[0:4]) == 1,
		left:     types.DecodeI32(buf[4:8]),
		right:    types.DecodeI32(buf[8:12]),
		bucketID: types.DecodeI32(buf[12:16]),
	}
	return n, nil
}

func (h *Hash) writeTrieNode(f *os.File, pos int32, n trieNode) error {
	var buf [trieNodeSize]byte
	isLeaf := int32(0)
	if n.isLeaf {
		isLeaf = 1
	}
	types.EncodeI32(buf[0:4], isLeaf)
	types.EncodeI32(buf[4:8], n.left)
	types.EncodeI32(buf[8:12], n.right)
	types.EncodeI32(buf[12:16], n.bucketID)
	if _, err := f.WriteAt(buf[:], h.trieOffset(pos)); err != nil {
		return &dberrors.IOError{Path: h.triePath, Err: err}
	}
	return nil
}

func (h *Hash) appendTrieNode(f *os.File, n trieNode) (int32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, &dberrors.IOError{Path: h.triePath, Err: err}
	}
	pos := int32((info.Size() - trieHeaderSize) / int64(trieNodeSize))
	if err := h.writeTrieNode(f, pos, n); err != nil {
		return 0, err
	}
	return pos, nil
}

// --- bucket ------------------------------------------------------------

type bucketEntry struct {
	key  types.Comparable
	slot int32
}

type bucket struct {
	count        int
	nextOverflow int32
	entries      []bucketEntry
}

func emptyBucket() bucket {
	return bucket{nextOverflow: -1}
}

func (h *Hash) bucketOffset(id int32) int64 {
	return int64(id) * int64(h.bucketSize)
}

func (h *Hash) readBucket(f *os.File, id int32) (bucket, error) {
	buf := make([]byte, h.bucketSize)
	if _, err := f.ReadAt(buf, h.bucketOffset(id)); err != nil {
		return bucket{}, &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	b := bucket{
		count:        int(types.DecodeI32(buf[0:4])),
		nextOverflow: types.DecodeI32(buf[4:8]),
	}
	off := bucketHeader
	for i := 0; i < b.count; i++ {
		key := types.DecodeKey(buf[off:off+h.keyWidth], h.dataType)
		slot := types.DecodeI32(buf[off+h.keyWidth : off+h.keyWidth+4])
		b.entries = append(b.entries, bucketEntry{key: key, slot: slot})
		off += h.keyWidth + 4
	}
	return b, nil
}

func (h *Hash) writeBucket(f *os.File, id int32, b bucket) error {
	buf := make([]byte, h.bucketSize)
	types.EncodeI32(buf[0:4], int32(b.count))
	types.EncodeI32(buf[4:8], b.nextOverflow)
	off := bucketHeader
	for _, e := range b.entries {
		types.EncodeKey(buf[off:off+h.keyWidth], h.dataType, e.key)
		types.EncodeI32(buf[off+h.keyWidth:off+h.keyWidth+4], e.slot)
		off += h.keyWidth + 4
	}
	if _, err := f.WriteAt(buf, h.bucketOffset(id)); err != nil {
		return &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	return nil
}

func (h *Hash) appendBucket(f *os.File, b bucket) (int32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	id := int32(info.Size() / int64(h.bucketSize))
	if err := h.writeBucket(f, id, b); err != nil {
		return 0, err
	}
	return id, nil
}

func (h *Hash) bucketCount(f *os.File) (int32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	return int32(info.Size() / int64(h.bucketSize)), nil
}

// --- hashing -------------------------------------------------------------

// hashBits returns the first maxDepth bits (MSB-first) of key's 64-bit
// hash. Strings hash to the first 8 bytes (big-endian) of their SHA-256
// digest; every other type uses a deterministic FNV-1a hash of its
// encoded bytes.
func (h *Hash) hashBits(key types.Comparable) []bool {
	var v uint64
	switch k := key.(type) {
	case types.VarcharKey:
		sum := sha256.Sum256([]byte(string(k)))
		v = beUint64(sum[:8])
	case types.DateKey:
		sum := sha256.Sum256([]byte(string(k)))
		v = beUint64(sum[:8])
	default:
		buf := make([]byte, h.keyWidth)
		types.EncodeKey(buf, h.dataType, key)
		f := fnv.New64a()
		f.Write(buf)
		v = f.Sum64()
	}

	bits := make([]bool, h.maxDepth)
	for i := 0; i < h.maxDepth; i++ {
		shift := 63 - i
		bits[i] = (v>>uint(shift))&1 == 1
	}
	return bits
}

func beUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// descend walks the trie from the root following bits, returning the
// leaf trie node position reached and how many bits were consumed
// (the leaf's depth).
func (h *Hash) descend(tf *os.File, bits []bool) (int32, int, error) {
	pos, err := h.readRoot(tf)
	if err != nil {
		return 0, 0, err
	}
	depth := 0
	for {
		n, err := h.readTrieNode(tf, pos)
		if err != nil {
			return 0, 0, err
		}
		if n.isLeaf {
			return pos, depth, nil
		}
		if bits[depth] {
			pos = n.right
		} else {
			pos = n.left
		}
		depth++
	}
}

// --- Insert ----------------------------------------------------------

// Insert adds key -> slot to the index.
func (h *Hash) Insert(slot int, key types.Comparable) error {
	tf, err := os.OpenFile(h.triePath, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: h.triePath, Err: err}
	}
	defer tf.Close()
	bf, err := os.OpenFile(h.bucketPath, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	defer bf.Close()

	bits := h.hashBits(key)
	return h.insertAt(tf, bf, bits, key, int32(slot))
}

func (h *Hash) insertAt(tf, bf *os.File, bits []bool, key types.Comparable, slot int32) error {
	leafPos, depth, err := h.descend(tf, bits)
	if err != nil {
		return err
	}
	leaf, err := h.readTrieNode(tf, leafPos)
	if err != nil {
		return err
	}

	// Find a bucket in the chain with room.
	id := leaf.bucketID
	var last bucket
	var lastID int32
	for {
		b, err := h.readBucket(bf, id)
		if err != nil {
			return err
		}
		if b.count < h.capacity {
			b.entries = append(b.entries, bucketEntry{key: key, slot: slot})
			b.count++
			return h.writeBucket(bf, id, b)
		}
		last, lastID = b, id
		if b.nextOverflow == -1 {
			break
		}
		id = b.nextOverflow
	}

	if depth < h.maxDepth {
		return h.splitLeaf(tf, bf, leafPos, leaf, depth, bits, key, slot)
	}

	// Max depth reached: chain a new overflow bucket.
	nb := emptyBucket()
	nb.entries = append(nb.entries, bucketEntry{key: key, slot: slot})
	nb.count = 1
	newID, err := h.appendBucket(bf, nb)
	if err != nil {
		return err
	}
	last.nextOverflow = newID
	return h.writeBucket(bf, lastID, last)
}

// splitLeaf splits the trie leaf at leafPos into two children keyed on
// bit[depth], redistributes every entry in its bucket chain between
// them, then retries the insert (which may recurse further if a child
// still overflows).
func (h *Hash) splitLeaf(tf, bf *os.File, leafPos int32, leaf trieNode, depth int, bits []bool, key types.Comparable, slot int32) error {
	// Gather every entry currently in the chain (freeing the old buckets
	// conceptually; they are simply abandoned, matching the heap file's
	// append-only discipline elsewhere in this engine).
	var all []bucketEntry
	id := leaf.bucketID
	for id != -1 {
		b, err := h.readBucket(bf, id)
		if err != nil {
			return err
		}
		if err := h.writeBucket(bf, id, emptyBucket()); err != nil {
			return err
		}
		all = append(all, b.entries...)
		id = b.nextOverflow
	}
	all = append(all, bucketEntry{key: key, slot: slot})

	leftBucket, rightBucket := emptyBucket(), emptyBucket()
	for _, e := range all {
		bit := h.hashBits(e.key)[depth]
		if bit {
			rightBucket.entries = append(rightBucket.entries, e)
		} else {
			leftBucket.entries = append(leftBucket.entries, e)
		}
	}
	leftBucket.count = len(leftBucket.entries)
	rightBucket.count = len(rightBucket.entries)

	leftID, err := h.appendBucket(bf, leftBucket)
	if err != nil {
		return err
	}
	rightID, err := h.appendBucket(bf, rightBucket)
	if err != nil {
		return err
	}

	leftNodePos, err := h.appendTrieNode(tf, trieNode{isLeaf: true, left: -1, right: -1, bucketID: leftID})
	if err != nil {
		return err
	}
	rightNodePos, err := h.appendTrieNode(tf, trieNode{isLeaf: true, left: -1, right: -1, bucketID: rightID})
	if err != nil {
		return err
	}
	if err := h.writeTrieNode(tf, leafPos, trieNode{isLeaf: false, left: leftNodePos, right: rightNodePos, bucketID: -1}); err != nil {
		return err
	}

	// If a child still overflows (capacity smaller than the redistributed
	// count), keep splitting or overflow-chain it by reinserting the
	// overflowing entries through the normal path.
	if err := h.rebalanceChild(tf, bf, leftBucket, leftNodePos); err != nil {
		return err
	}
	return h.rebalanceChild(tf, bf, rightBucket, rightNodePos)
}

// rebalanceChild re-splits a freshly created leaf bucket if redistribution
// left it over capacity.
func (h *Hash) rebalanceChild(tf, bf *os.File, b bucket, nodePos int32) error {
	if b.count <= h.capacity {
		return nil
	}
	node, err := h.readTrieNode(tf, nodePos)
	if err != nil {
		return err
	}
	overflow := b.entries[h.capacity:]
	trimmed := bucket{count: h.capacity, entries: b.entries[:h.capacity], nextOverflow: -1}
	if err := h.writeBucket(bf, node.bucketID, trimmed); err != nil {
		return err
	}
	for _, e := range overflow {
		eb := h.hashBits(e.key)
		if err := h.insertAt(tf, bf, eb, e.key, e.slot); err != nil {
			return err
		}
	}
	return nil
}

// --- Search / RangeSearch ----------------------------------------------

// Search returns every slot stored under key.
func (h *Hash) Search(key types.Comparable) ([]int, error) {
	tf, err := os.OpenFile(h.triePath, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: h.triePath, Err: err}
	}
	defer tf.Close()
	bf, err := os.OpenFile(h.bucketPath, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	defer bf.Close()

	bits := h.hashBits(key)
	leafPos, _, err := h.descend(tf, bits)
	if err != nil {
		return nil, err
	}
	leaf, err := h.readTrieNode(tf, leafPos)
	if err != nil {
		return nil, err
	}

	var out []int
	id := leaf.bucketID
	for id != -1 {
		b, err := h.readBucket(bf, id)
		if err != nil {
			return nil, err
		}
		for _, e := range b.entries {
			if e.key.Compare(key) == 0 {
				out = append(out, int(e.slot))
			}
		}
		id = b.nextOverflow
	}
	return out, nil
}

// RangeSearch performs a full scan of every bucket, since hash indexes
// carry no order.
func (h *Hash) RangeSearch(lo, hi types.Comparable) ([]int, error) {
	bf, err := os.OpenFile(h.bucketPath, os.O_RDONLY, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	defer bf.Close()

	count, err := h.bucketCount(bf)
	if err != nil {
		return nil, err
	}

	var out []int
	for id := int32(0); id < count; id++ {
		b, err := h.readBucket(bf, id)
		if err != nil {
			return nil, err
		}
		for _, e := range b.entries {
			if e.key.Compare(lo) >= 0 && e.key.Compare(hi) <= 0 {
				out = append(out, int(e.slot))
			}
		}
	}
	return out, nil
}

// --- Delete ------------------------------------------------------------

// Delete removes one entry for key. If an overflow bucket becomes empty
// it is unlinked from the chain.
func (h *Hash) Delete(key types.Comparable) error {
	tf, err := os.OpenFile(h.triePath, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: h.triePath, Err: err}
	}
	defer tf.Close()
	bf, err := os.OpenFile(h.bucketPath, os.O_RDWR, 0666)
	if err != nil {
		return &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	defer bf.Close()

	bits := h.hashBits(key)
	leafPos, _, err := h.descend(tf, bits)
	if err != nil {
		return err
	}
	leaf, err := h.readTrieNode(tf, leafPos)
	if err != nil {
		return err
	}

	var prevID int32 = -1
	id := leaf.bucketID
	for id != -1 {
		b, err := h.readBucket(bf, id)
		if err != nil {
			return err
		}
		idx := -1
		for i, e := range b.entries {
			if e.key.Compare(key) == 0 {
				idx = i
				break
			}
		}
		if idx == -1 {
			prevID = id
			id = b.nextOverflow
			continue
		}

		b.entries = append(b.entries[:idx], b.entries[idx+1:]...)
		b.count--

		if b.count == 0 && prevID != -1 {
			// Unlink this now-empty overflow bucket from the chain.
			if err := h.writeBucket(bf, id, b); err != nil {
				return err
			}
			prev, err := h.readBucket(bf, prevID)
			if err != nil {
				return err
			}
			prev.nextOverflow = b.nextOverflow
			return h.writeBucket(bf, prevID, prev)
		}
		return h.writeBucket(bf, id, b)
	}
	return nil // key not present
}

// Clear removes the index's backing files.
func (h *Hash) Clear() error {
	if err := os.Remove(h.triePath); err != nil && !os.IsNotExist(err) {
		return &dberrors.IOError{Path: h.triePath, Err: err}
	}
	if err := os.Remove(h.bucketPath); err != nil && !os.IsNotExist(err) {
		return &dberrors.IOError{Path: h.bucketPath, Err: err}
	}
	return nil
}
