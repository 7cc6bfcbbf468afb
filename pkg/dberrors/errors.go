// Package dberrors holds the engine's error taxonomy.
//
// Every error the engine raises is one of a small number of typed structs,
// each carrying the context needed to render a human-readable message. All
// of them implement RuntimeError() so the SQL wrapper layer can flatten any
// of them to the single "(nil, message)" runtime-error shape callers see,
// without needing a type switch over every concrete kind.
package dberrors

import "fmt"

// RuntimeError is implemented by every error kind in this package.
type RuntimeError interface {
	error
	RuntimeError() string
}

// --- ParseError -------------------------------------------------------

type ParseError struct {
	Message string
	Pos     int
}

func (e *ParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}
func (e *ParseError) RuntimeError() string { return e.Error() }

// --- SchemaError --------------------------------------------------------

type DuplicateColumnError struct {
	Table, Column string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("table %q has a duplicate column %q", e.Table, e.Column)
}
func (e *DuplicateColumnError) RuntimeError() string { return e.Error() }

type PrimaryKeyCountError struct {
	Table string
	Count int
}

func (e *PrimaryKeyCountError) Error() string {
	return fmt.Sprintf("table %q must declare exactly one primary key, found %d", e.Table, e.Count)
}
func (e *PrimaryKeyCountError) RuntimeError() string { return e.Error() }

type InvalidIndexForTypeError struct {
	Column, DataType, IndexType string
}

func (e *InvalidIndexForTypeError) Error() string {
	return fmt.Sprintf("column %q of type %s cannot use index type %s", e.Column, e.DataType, e.IndexType)
}
func (e *InvalidIndexForTypeError) RuntimeError() string { return e.Error() }

type MissingVarcharLengthError struct {
	Column string
}

func (e *MissingVarcharLengthError) Error() string {
	return fmt.Sprintf("column %q is VARCHAR but declares no length", e.Column)
}
func (e *MissingVarcharLengthError) RuntimeError() string { return e.Error() }

type IndexAlreadyExistsError struct {
	Table, Column string
}

func (e *IndexAlreadyExistsError) Error() string {
	return fmt.Sprintf("column %q of table %q already has an index", e.Column, e.Table)
}
func (e *IndexAlreadyExistsError) RuntimeError() string { return e.Error() }

type CannotDropIndexError struct {
	Table, Column, Reason string
}

func (e *CannotDropIndexError) Error() string {
	return fmt.Sprintf("cannot drop index on %q.%q: %s", e.Table, e.Column, e.Reason)
}
func (e *CannotDropIndexError) RuntimeError() string { return e.Error() }

type ProjectionError struct {
	Table, Reason string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("invalid projection on table %q: %s", e.Table, e.Reason)
}
func (e *ProjectionError) RuntimeError() string { return e.Error() }

type TableAlreadyExistsError struct {
	Name string
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}
func (e *TableAlreadyExistsError) RuntimeError() string { return e.Error() }

type MultiColumnIndexError struct {
	IndexName string
	Count     int
}

func (e *MultiColumnIndexError) Error() string {
	return fmt.Sprintf("index %q names %d columns; this engine only supports single-column indexes", e.IndexName, e.Count)
}
func (e *MultiColumnIndexError) RuntimeError() string { return e.Error() }

type PointRangeUnsupportedError struct {
	Column string
}

func (e *PointRangeUnsupportedError) Error() string {
	return fmt.Sprintf("column %q is POINT and does not support ordering comparisons (use WITHIN/KNN)", e.Column)
}
func (e *PointRangeUnsupportedError) RuntimeError() string { return e.Error() }

// --- TypeError ------------------------------------------------------------

type TypeMismatchError struct {
	Column, Expected, Got string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("column %q expects type %s, got %s", e.Column, e.Expected, e.Got)
}
func (e *TypeMismatchError) RuntimeError() string { return e.Error() }

type VarcharOverflowError struct {
	Column string
	Max, N int
}

func (e *VarcharOverflowError) Error() string {
	return fmt.Sprintf("column %q allows at most %d bytes, got %d", e.Column, e.Max, e.N)
}
func (e *VarcharOverflowError) RuntimeError() string { return e.Error() }

type ColumnCountMismatchError struct {
	Table         string
	Expected, Got int
}

func (e *ColumnCountMismatchError) Error() string {
	return fmt.Sprintf("table %q expects %d values, got %d", e.Table, e.Expected, e.Got)
}
func (e *ColumnCountMismatchError) RuntimeError() string { return e.Error() }

// --- NotFound ---------------------------------------------------------

type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Name)
}
func (e *TableNotFoundError) RuntimeError() string { return e.Error() }

type ColumnNotFoundError struct {
	Table, Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("table %q has no column %q", e.Table, e.Column)
}
func (e *ColumnNotFoundError) RuntimeError() string { return e.Error() }

type IndexNotFoundError struct {
	Table, Column string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("no index on %q.%q", e.Table, e.Column)
}
func (e *IndexNotFoundError) RuntimeError() string { return e.Error() }

// --- DomainError -----------------------------------------------------

type InvalidRectError struct {
	Xmin, Ymin, Xmax, Ymax float64
}

func (e *InvalidRectError) Error() string {
	return fmt.Sprintf("invalid rectangle (%.3f,%.3f,%.3f,%.3f): min must not exceed max", e.Xmin, e.Ymin, e.Xmax, e.Ymax)
}
func (e *InvalidRectError) RuntimeError() string { return e.Error() }

type InvalidCircleError struct {
	Radius float64
}

func (e *InvalidCircleError) Error() string {
	return fmt.Sprintf("circle radius %.3f must not be negative", e.Radius)
}
func (e *InvalidCircleError) RuntimeError() string { return e.Error() }

type InvalidKError struct {
	K int
}

func (e *InvalidKError) Error() string {
	return fmt.Sprintf("KNN k must be positive, got %d", e.K)
}
func (e *InvalidKError) RuntimeError() string { return e.Error() }

type InvalidLimitError struct {
	Limit int
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("LIMIT must be positive, got %d", e.Limit)
}
func (e *InvalidLimitError) RuntimeError() string { return e.Error() }

// --- IOError ------------------------------------------------------------

type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error on %q: %v", e.Path, e.Err)
}
func (e *IOError) Unwrap() error        { return e.Err }
func (e *IOError) RuntimeError() string { return e.Error() }
