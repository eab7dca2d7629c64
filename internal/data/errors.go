package data

import "fmt"

// ColumnNotFoundError is returned when an operation names a column the table
// does not have.
type ColumnNotFoundError struct {
	Column string
	Op     string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("%s: column %q not found", e.Op, e.Column)
}

// MissingColumnError is returned when a column with a required role (target,
// date) is absent.
type MissingColumnError struct {
	Column string
	Role   string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing %s column %q", e.Role, e.Column)
}

type ColumnTypeError struct {
	Column string
	Want   Kind
	Got    Kind
}

func (e *ColumnTypeError) Error() string {
	return fmt.Sprintf("column %q is %s, expected %s", e.Column, e.Got, e.Want)
}

type EmptyTableError struct {
	Op string
}

func (e *EmptyTableError) Error() string {
	return fmt.Sprintf("%s: table has no rows", e.Op)
}
