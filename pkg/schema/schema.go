// Package schema holds column and table descriptors and the invariants
// the engine requires of them, plus their persistence as an opaque blob
// (metadata.dat) -- the one structure in the engine that is schemaless
// at the Go-type level (a variable-length column list), so it is
// persisted with BSON rather than the fixed-width binary codec every
// on-disk data structure otherwise uses.
package schema

import (
	"os"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/types"
)

// Column describes one column of a table.
type Column struct {
	Name          string          `bson:"name"`
	DataType      types.DataType  `bson:"data_type"`
	IsPrimary     bool            `bson:"is_primary"`
	IndexType     types.IndexType `bson:"index_type"`
	IndexName     string          `bson:"index_name,omitempty"`
	VarcharLength int             `bson:"varchar_length,omitempty"`
}

// Width returns the column's fixed on-disk byte width.
func (c Column) Width() int {
	return types.Width(c.DataType, c.VarcharLength)
}

// TableSchema is the ordered column list describing a table.
type TableSchema struct {
	TableName string   `bson:"table_name"`
	Columns   []Column `bson:"columns"`
}

// RecordWidth returns the sum of every column's encoded width.
func (s *TableSchema) RecordWidth() int {
	total := 0
	for _, c := range s.Columns {
		total += c.Width()
	}
	return total
}

// ColumnIndex returns the position of name in the schema, or -1.
func (s *TableSchema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the column named name, or false.
func (s *TableSchema) Column(name string) (Column, bool) {
	i := s.ColumnIndex(name)
	if i < 0 {
		return Column{}, false
	}
	return s.Columns[i], true
}

// ColumnOffset returns the byte offset of column name within an encoded
// record, or -1 if no such column exists.
func (s *TableSchema) ColumnOffset(name string) int {
	off := 0
	for _, c := range s.Columns {
		if c.Name == name {
			return off
		}
		off += c.Width()
	}
	return -1
}

// PrimaryKey returns the schema's single primary-key column.
func (s *TableSchema) PrimaryKey() Column {
	for _, c := range s.Columns {
		if c.IsPrimary {
			return c
		}
	}
	panic("schema: table has no primary key (should have been rejected by Validate)")
}

// Normalize applies the promotion rules in place: a NONE-indexed primary
// key is promoted to HASH (or RTREE if the column is POINT), and lower-
// cases the table name.
func (s *TableSchema) Normalize() {
	s.TableName = lower(s.TableName)
	for i := range s.Columns {
		c := &s.Columns[i]
		if c.IsPrimary && c.IndexType == types.NoIndexType {
			if c.DataType == types.Point {
				c.IndexType = types.RTree
			} else {
				c.IndexType = types.Hash
			}
		}
		if c.IndexName == "" && c.IndexType != types.NoIndexType {
			c.IndexName = s.TableName + "_" + c.Name + "_" + lower(c.IndexType.String())
		}
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Validate enforces the schema invariants.
func (s *TableSchema) Validate() error {
	seen := make(map[string]bool, len(s.Columns))
	primaryCount := 0

	for _, c := range s.Columns {
		if seen[c.Name] {
			return &dberrors.DuplicateColumnError{Table: s.TableName, Column: c.Name}
		}
		seen[c.Name] = true

		if c.IsPrimary {
			primaryCount++
		}

		if c.DataType == types.Varchar && c.VarcharLength <= 0 {
			return &dberrors.MissingVarcharLengthError{Column: c.Name}
		}

		if c.DataType == types.Point && c.IndexType != types.RTree && c.IndexType != types.NoIndexType {
			return &dberrors.InvalidIndexForTypeError{Column: c.Name, DataType: c.DataType.String(), IndexType: c.IndexType.String()}
		}
		if c.IndexType == types.RTree && c.DataType != types.Point {
			return &dberrors.InvalidIndexForTypeError{Column: c.Name, DataType: c.DataType.String(), IndexType: c.IndexType.String()}
		}
		if c.IndexType == types.Brin {
			return &dberrors.InvalidIndexForTypeError{Column: c.Name, DataType: c.DataType.String(), IndexType: c.IndexType.String()}
		}
	}

	if primaryCount != 1 {
		return &dberrors.PrimaryKeyCountError{Table: s.TableName, Count: primaryCount}
	}
	return nil
}

// Save persists the schema as an opaque BSON blob at path (metadata.dat).
func Save(path string, s *TableSchema) error {
	doc, err := bson.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, doc, 0666); err != nil {
		return &dberrors.IOError{Path: path, Err: err}
	}
	return nil
}

// Load reads a TableSchema previously written by Save.
func Load(path string) (*TableSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &dberrors.IOError{Path: path, Err: err}
	}
	var s TableSchema
	if err := bson.Unmarshal(raw, &s); err != nil {
		return nil, &dberrors.IOError{Path: path, Err: err}
	}
	return &s, nil
}
