// Copyright (C) 2020 PurpleSec Team
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
//

package tablemap

import "errors"

var (
	// ErrBind is matched by errors returned when named parameters cannot be bound to a query, such as when a
	// placeholder has no value in the Params.
	ErrBind = &errval{s: "cannot bind parameters"}
	// ErrDriver is matched by every error returned from the underlying database driver. Use 'errors.As' with a
	// *DriverError (or the driver's own error type) to get the details.
	ErrDriver = &errval{s: "driver error"}
	// ErrNoFields is returned when a statement builder receives an empty Field Set where at least one field is
	// required.
	ErrNoFields = &errval{s: "no fields specified"}
	// ErrInvalidDB is an error returned when the Connection has no database handle.
	ErrInvalidDB = &errval{s: "database cannot be nil"}
	// ErrUnsupported is returned when the selected engine cannot perform the requested operation.
	ErrUnsupported = &errval{s: "operation not supported by engine"}
	// ErrConnection is matched by errors returned when a connection cannot be opened or verified.
	ErrConnection = &errval{s: "cannot connect to database"}
	// ErrInTransaction is returned by StartTransaction when a transaction is already open.
	ErrInTransaction = &errval{s: "transaction already started"}
	// ErrNoTransaction is returned by Commit and Rollback when no transaction is open.
	ErrNoTransaction = &errval{s: "no transaction started"}
	// ErrColumnMismatch is returned by BuildInsertMulti when a row does not carry the same columns as the first row.
	ErrColumnMismatch = &errval{s: "row columns do not match the first row"}
	// ErrDuplicateColumn is returned when a Field Set names the same column more than once.
	ErrDuplicateColumn = &errval{s: "duplicate column in field set"}
	// ErrInvalidIdentifier is matched by errors returned when a table, column or database name contains characters
	// outside of [A-Za-z0-9_$-].
	ErrInvalidIdentifier = &errval{s: "invalid identifier"}
	// ErrStatementExists is returned by the statement registry when a name is already mapped.
	ErrStatementExists = &errval{s: "statement already exists"}
	// ErrStatementMissing is returned by the statement registry when a name has no mapped statement.
	ErrStatementMissing = &errval{s: "statement does not exist"}
	// ErrPlaceholderCollision is returned when two generated placeholders end up with the same name.
	ErrPlaceholderCollision = &errval{s: "placeholder name collision"}
)

type errval struct {
	e    error
	s    string
	kind *errval
}

// DriverError wraps an error that the database driver returned for a statement. The driver error is kept as-is
// and is returned by Unwrap, so checks like 'errors.As(err, &mysqlErr)' still work.
type DriverError struct {
	Err   error
	Op    string
	Query string
}

// IdentifierError is returned when an identifier fails validation. It matches ErrInvalidIdentifier.
type IdentifierError struct {
	Name   string
	Reason string
}

func (e errval) Error() string {
	if e.e == nil {
		return e.s
	}
	return e.s + ": " + e.e.Error()
}
func (e errval) Unwrap() error {
	return e.e
}
func (e errval) Is(t error) bool {
	return e.kind != nil && t == e.kind
}
func (e *DriverError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}
func (e *DriverError) Unwrap() error {
	return e.Err
}

// Is returns True when the target is ErrDriver.
func (e *DriverError) Is(t error) bool {
	return t == ErrDriver
}
func (e *IdentifierError) Error() string {
	return `invalid identifier "` + e.Name + `": ` + e.Reason
}

// Is returns True when the target is ErrInvalidIdentifier.
func (e *IdentifierError) Is(t error) bool {
	return t == ErrInvalidIdentifier
}
func wrap(kind *errval, s string, err error) error {
	return &errval{e: err, s: s, kind: kind}
}
func driverErr(op, query string, err error) error {
	if err == nil {
		return nil
	}
	var d *DriverError
	if errors.As(err, &d) {
		return err
	}
	return &DriverError{Op: op, Query: query, Err: err}
}
