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

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Execute will bind the named parameters (":name") in the query from the Params, run it and return the Result.
func (c *Connection) Execute(query string, p Params) (*Result, error) {
	return c.ExecuteContext(context.Background(), query, p)
}

// ExecuteContext will bind the named parameters (":name") in the query from the Params, run it and return the
// Result. This function specifies a Context that can be used to interrupt and cancel the statement.
func (c *Connection) ExecuteContext(x context.Context, query string, p Params) (*Result, error) {
	q, a, err := c.bind(query, p)
	if err != nil {
		return nil, err
	}
	return c.run(x, "execute", q, a)
}

// Exec will run the query with positional arguments, which are passed to the driver as-is.
func (c *Connection) Exec(query string, args ...interface{}) (*Result, error) {
	return c.ExecContext(context.Background(), query, args...)
}

// ExecContext will run the query with positional arguments, which are passed to the driver as-is. This function
// specifies a Context that can be used to interrupt and cancel the statement.
func (c *Connection) ExecContext(x context.Context, query string, args ...interface{}) (*Result, error) {
	return c.run(x, "exec", query, args)
}

// Select will run the query and return every row as a Record. If no rows match, an empty (non-nil) slice is
// returned.
func (c *Connection) Select(query string, p Params) ([]Record, error) {
	return c.SelectContext(context.Background(), query, p)
}

// SelectContext will run the query and return every row as a Record. See Select. This function specifies a
// Context that can be used to interrupt and cancel the query.
func (c *Connection) SelectContext(x context.Context, query string, p Params) ([]Record, error) {
	r, q, err := c.query(x, query, p)
	if err != nil {
		return nil, err
	}
	o, err := records(r)
	return o, c.fail(driverErr("select", q, err))
}

// SelectRow will run the query and return the first row as a Record. If no rows match, the Record and the error
// are both nil.
func (c *Connection) SelectRow(query string, p Params) (Record, error) {
	return c.SelectRowContext(context.Background(), query, p)
}

// SelectRowContext will run the query and return the first row as a Record. See SelectRow. This function specifies
// a Context that can be used to interrupt and cancel the query.
func (c *Connection) SelectRowContext(x context.Context, query string, p Params) (Record, error) {
	r, q, err := c.query(x, query, p)
	if err != nil {
		return nil, err
	}
	o, err := first(r)
	return o, c.fail(driverErr("select", q, err))
}

// SelectField will run the query and return the value of the first column of the first row. If no rows match,
// the value and the error are both nil.
func (c *Connection) SelectField(query string, p Params) (interface{}, error) {
	return c.SelectFieldContext(context.Background(), query, p)
}

// SelectFieldContext will run the query and return the value of the first column of the first row. See
// SelectField. This function specifies a Context that can be used to interrupt and cancel the query.
func (c *Connection) SelectFieldContext(x context.Context, query string, p Params) (interface{}, error) {
	r, q, err := c.query(x, query, p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, c.fail(driverErr("select", q, r.Err()))
	}
	v, err := r.SliceScan()
	if err != nil {
		return nil, c.fail(driverErr("select", q, err))
	}
	if c.fail(nil); len(v) == 0 {
		return nil, nil
	}
	return value(v[0]), nil
}

// SelectInto will run the query and scan every row into dest, which must be a pointer to a slice of structs or
// scalars. Columns are matched to struct fields with the "db" tag.
func (c *Connection) SelectInto(dest interface{}, query string, p Params) error {
	return c.SelectIntoContext(context.Background(), dest, query, p)
}

// SelectIntoContext will run the query and scan every row into dest. See SelectInto. This function specifies a
// Context that can be used to interrupt and cancel the query.
func (c *Connection) SelectIntoContext(x context.Context, dest interface{}, query string, p Params) error {
	q, a, err := c.bind(query, p)
	if err != nil {
		return err
	}
	s := time.Now()
	err = c.exec().SelectContext(x, dest, q, a...)
	c.logQuery(q, len(a), s, err)
	return c.fail(driverErr("select", q, err))
}

// SelectRowInto will run the query and scan the first row into dest, which must be a pointer to a struct or a
// scalar. The returned boolean is False (with a nil error) if no rows match.
func (c *Connection) SelectRowInto(dest interface{}, query string, p Params) (bool, error) {
	return c.SelectRowIntoContext(context.Background(), dest, query, p)
}

// SelectRowIntoContext will run the query and scan the first row into dest. See SelectRowInto. This function
// specifies a Context that can be used to interrupt and cancel the query.
func (c *Connection) SelectRowIntoContext(x context.Context, dest interface{}, query string, p Params) (bool, error) {
	q, a, err := c.bind(query, p)
	if err != nil {
		return false, err
	}
	s := time.Now()
	err = c.exec().GetContext(x, dest, q, a...)
	if c.logQuery(q, len(a), s, err); errors.Is(err, sql.ErrNoRows) {
		c.fail(nil)
		return false, nil
	}
	return err == nil, c.fail(driverErr("select", q, err))
}

// InsertRow will insert the fields into the table and return the generated identifier. If onDuplicate is not
// empty, an existing row is updated with those fields instead. See Dialect.BuildInsert.
func (c *Connection) InsertRow(table string, fields, onDuplicate Fields) (int64, error) {
	return c.InsertRowContext(context.Background(), table, fields, onDuplicate)
}

// InsertRowContext will insert the fields into the table and return the generated identifier. See InsertRow. This
// function specifies a Context that can be used to interrupt and cancel the statement.
func (c *Connection) InsertRowContext(x context.Context, table string, fields, onDuplicate Fields) (int64, error) {
	q, err := c.dialect.BuildInsert(table, fields, onDuplicate)
	if err != nil {
		return 0, err
	}
	r, err := c.ExecuteContext(x, q.SQL, q.Params)
	if err != nil {
		return 0, err
	}
	return r.id, nil
}

// InsertMulti will insert all the rows into the table with a single statement and return the number of affected
// rows. See Dialect.BuildInsertMulti.
func (c *Connection) InsertMulti(table string, rows []Fields) (int64, error) {
	return c.InsertMultiContext(context.Background(), table, rows)
}

// InsertMultiContext will insert all the rows into the table with a single statement. See InsertMulti. This
// function specifies a Context that can be used to interrupt and cancel the statement.
func (c *Connection) InsertMultiContext(x context.Context, table string, rows []Fields) (int64, error) {
	q, err := c.dialect.BuildInsertMulti(table, rows)
	if err != nil {
		return 0, err
	}
	return c.affected(x, q)
}

// Update will set the fields on the rows of the table that match every where field and return the number of
// affected rows. A limit above zero caps the number of updated rows. See Dialect.BuildUpdate.
func (c *Connection) Update(table string, fields, where Fields, limit int) (int64, error) {
	return c.UpdateContext(context.Background(), table, fields, where, limit)
}

// UpdateContext will set the fields on the matching rows of the table. See Update. This function specifies a
// Context that can be used to interrupt and cancel the statement.
func (c *Connection) UpdateContext(x context.Context, table string, fields, where Fields, limit int) (int64, error) {
	q, err := c.dialect.BuildUpdate(table, fields, where, limit)
	if err != nil {
		return 0, err
	}
	return c.affected(x, q)
}

// Delete will remove the rows of the table that match every where field and return the number of affected rows.
// A limit above zero caps the number of deleted rows. See Dialect.BuildDelete.
func (c *Connection) Delete(table string, where Fields, limit int) (int64, error) {
	return c.DeleteContext(context.Background(), table, where, limit)
}

// DeleteContext will remove the matching rows of the table. See Delete. This function specifies a Context that can
// be used to interrupt and cancel the statement.
func (c *Connection) DeleteContext(x context.Context, table string, where Fields, limit int) (int64, error) {
	q, err := c.dialect.BuildDelete(table, where, limit)
	if err != nil {
		return 0, err
	}
	return c.affected(x, q)
}
func (c *Connection) affected(x context.Context, q Query) (int64, error) {
	r, err := c.ExecuteContext(x, q.SQL, q.Params)
	if err != nil {
		return 0, err
	}
	return r.affected, nil
}
func (c *Connection) bind(query string, p Params) (string, []interface{}, error) {
	// sqlx drops a trailing '_' from a name that ends the query, so the query never ends on a name.
	q, a, err := sqlx.Named(query+" ", p.named())
	if err != nil {
		return "", nil, c.fail(wrap(ErrBind, "cannot bind parameters", err))
	}
	return c.db.Rebind(strings.TrimSuffix(q, " ")), a, nil
}
func (c *Connection) run(x context.Context, op, q string, a []interface{}) (*Result, error) {
	s := time.Now()
	r, err := c.exec().ExecContext(x, q, a...)
	if c.logQuery(q, len(a), s, err); err != nil {
		return nil, c.fail(driverErr(op, q, err))
	}
	return c.done(newResult(r)), nil
}
func (c *Connection) query(x context.Context, query string, p Params) (*sqlx.Rows, string, error) {
	q, a, err := c.bind(query, p)
	if err != nil {
		return nil, "", err
	}
	s := time.Now()
	r, err := c.exec().QueryxContext(x, q, a...)
	if c.logQuery(q, len(a), s, err); err != nil {
		return nil, q, c.fail(driverErr("select", q, err))
	}
	return r, q, nil
}
func newResult(r sql.Result) *Result {
	var o Result
	// Drivers that cannot report either value return an error, which leaves it at zero.
	o.affected, _ = r.RowsAffected()
	o.id, _ = r.LastInsertId()
	return &o
}
func records(r *sqlx.Rows) ([]Record, error) {
	defer r.Close()
	o := make([]Record, 0)
	for r.Next() {
		v, err := record(r)
		if err != nil {
			return nil, err
		}
		o = append(o, v)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return o, nil
}
func first(r *sqlx.Rows) (Record, error) {
	defer r.Close()
	if !r.Next() {
		return nil, r.Err()
	}
	return record(r)
}
func record(r *sqlx.Rows) (Record, error) {
	m := make(map[string]interface{})
	if err := r.MapScan(m); err != nil {
		return nil, err
	}
	for k, v := range m {
		m[k] = value(v)
	}
	return Record(m), nil
}

// value converts driver byte slices into strings, as text columns are commonly returned as []byte.
func value(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
