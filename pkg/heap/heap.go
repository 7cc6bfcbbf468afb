// Package heap implements the fixed-schema slot-addressed heap file:
// RecordFile appends, reads and deletes fixed-width records, reusing
// deleted slots through a LIFO free list kept in the file header.
//
// Layout is a single non-MVCC segment, with no segmentation, LSN or
// versioning machinery -- crash recovery is out of scope here:
//
//	[ 4-byte header: head_of_free_list (i32, -1 = empty) ]
//	[ node 0 ][ node 1 ] ... [ node N-1 ]
//
// A node is recordWidth+4 bytes; the trailing 4 bytes hold next_free:
// -2 marks a live record, any other value is the free-list link (-1
// terminates the chain).
package heap

import (
	"fmt"
	"io"
	"os"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/types"
)

const (
	headerSize = 4
	tailSize   = 4

	// sentinel stored in a live node's next_free field.
	liveSentinel int32 = -2
	// sentinel marking an empty free list / chain terminator.
	noFree int32 = -1
)

// RecordFile is a slot-addressed heap file for fixed-width records of
// recordWidth bytes. No file handle is held between calls: every
// operation opens, does its I/O, and closes.
type RecordFile struct {
	path        string
	recordWidth int
	nodeSize    int
}

// New opens (creating if necessary) the heap file at path for records of
// the given fixed width.
func New(path string, recordWidth int) (*RecordFile, error) {
	rf := &RecordFile{path: path, recordWidth: recordWidth, nodeSize: recordWidth + tailSize}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			return nil, &dberrors.IOError{Path: path, Err: err}
		}
		defer f.Close()
		if err := writeHeader(f, noFree); err != nil {
			return nil, &dberrors.IOError{Path: path, Err: err}
		}
	}
	return rf, nil
}

func writeHeader(f *os.File, head int32) error {
	var buf [headerSize]byte
	types.EncodeI32(buf[:], head)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return err
	}
	return nil
}

func readHeader(f *os.File) (int32, error) {
	var buf [headerSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, err
	}
	return types.DecodeI32(buf[:]), nil
}

func (rf *RecordFile) open(flag int) (*os.File, error) {
	f, err := os.OpenFile(rf.path, flag, 0666)
	if err != nil {
		return nil, &dberrors.IOError{Path: rf.path, Err: err}
	}
	return f, nil
}

func (rf *RecordFile) nodeOffset(slot int) int64 {
	return int64(headerSize) + int64(slot)*int64(rf.nodeSize)
}

// Append writes record (which must be recordWidth bytes) into a reused
// free-list slot if one exists, else at the end of the file, and returns
// the slot it landed in.
func (rf *RecordFile) Append(record []byte) (int, error) {
	if len(record) != rf.recordWidth {
		return 0, fmt.Errorf("heap: record is %d bytes, want %d", len(record), rf.recordWidth)
	}

	f, err := rf.open(os.O_RDWR)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	head, err := readHeader(f)
	if err != nil {
		return 0, &dberrors.IOError{Path: rf.path, Err: err}
	}

	node := make([]byte, rf.nodeSize)
	copy(node, record)
	types.EncodeI32(node[rf.recordWidth:], liveSentinel)

	if head != noFree {
		slot := int(head)
		nextFree, err := rf.readNextFree(f, slot)
		if err != nil {
			return 0, err
		}
		if _, err := f.WriteAt(node, rf.nodeOffset(slot)); err != nil {
			return 0, &dberrors.IOError{Path: rf.path, Err: err}
		}
		if err := writeHeader(f, nextFree); err != nil {
			return 0, &dberrors.IOError{Path: rf.path, Err: err}
		}
		return slot, nil
	}

	info, err := f.Stat()
	if err != nil {
		return 0, &dberrors.IOError{Path: rf.path, Err: err}
	}
	slot := int((info.Size() - headerSize) / int64(rf.nodeSize))
	if _, err := f.WriteAt(node, rf.nodeOffset(slot)); err != nil {
		return 0, &dberrors.IOError{Path: rf.path, Err: err}
	}
	return slot, nil
}

func (rf *RecordFile) readNextFree(f *os.File, slot int) (int32, error) {
	var buf [tailSize]byte
	if _, err := f.ReadAt(buf[:], rf.nodeOffset(slot)+int64(rf.recordWidth)); err != nil {
		return 0, &dberrors.IOError{Path: rf.path, Err: err}
	}
	return types.DecodeI32(buf[:]), nil
}

// Read returns the record stored at slot, or ok=false if the slot is
// free (absent).
func (rf *RecordFile) Read(slot int) (record []byte, ok bool, err error) {
	f, err := rf.open(os.O_RDONLY)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	node := make([]byte, rf.nodeSize)
	if _, err := f.ReadAt(node, rf.nodeOffset(slot)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, nil
		}
		return nil, false, &dberrors.IOError{Path: rf.path, Err: err}
	}

	nextFree := types.DecodeI32(node[rf.recordWidth:])
	if nextFree != liveSentinel {
		return nil, false, nil
	}
	out := make([]byte, rf.recordWidth)
	copy(out, node[:rf.recordWidth])
	return out, true, nil
}

// Delete pushes slot onto the head of the free list.
func (rf *RecordFile) Delete(slot int) error {
	f, err := rf.open(os.O_RDWR)
	if err != nil {
		return err
	}
	defer f.Close()

	head, err := readHeader(f)
	if err != nil {
		return &dberrors.IOError{Path: rf.path, Err: err}
	}

	var tail [tailSize]byte
	types.EncodeI32(tail[:], head)
	if _, err := f.WriteAt(tail[:], rf.nodeOffset(slot)+int64(rf.recordWidth)); err != nil {
		return &dberrors.IOError{Path: rf.path, Err: err}
	}
	if err := writeHeader(f, int32(slot)); err != nil {
		return &dberrors.IOError{Path: rf.path, Err: err}
	}
	return nil
}

// MaxID returns the total number of node positions in the file,
// including deleted ones.
func (rf *RecordFile) MaxID() (int, error) {
	f, err := rf.open(os.O_RDONLY)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, &dberrors.IOError{Path: rf.path, Err: err}
	}
	return int((info.Size() - headerSize) / int64(rf.nodeSize)), nil
}

// Scan calls fn for every live slot in ascending slot order, stopping
// early if fn returns false.
func (rf *RecordFile) Scan(fn func(slot int, record []byte) bool) error {
	max, err := rf.MaxID()
	if err != nil {
		return err
	}
	f, err := rf.open(os.O_RDONLY)
	if err != nil {
		return err
	}
	defer f.Close()

	node := make([]byte, rf.nodeSize)
	for slot := 0; slot < max; slot++ {
		if _, err := f.ReadAt(node, rf.nodeOffset(slot)); err != nil {
			return &dberrors.IOError{Path: rf.path, Err: err}
		}
		if types.DecodeI32(node[rf.recordWidth:]) != liveSentinel {
			continue
		}
		record := make([]byte, rf.recordWidth)
		copy(record, node[:rf.recordWidth])
		if !fn(slot, record) {
			break
		}
	}
	return nil
}

// RecordWidth returns the fixed record width this heap was opened with.
func (rf *RecordFile) RecordWidth() int { return rf.recordWidth }

// Path returns the file path backing this heap.
func (rf *RecordFile) Path() string { return rf.path }
