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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `CREATE TABLE t (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	a    INTEGER,
	name TEXT UNIQUE
)`

type testRow struct {
	ID   int64          `db:"id"`
	A    int64          `db:"a"`
	Name sql.NullString `db:"name"`
}

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func openTest(t *testing.T, opts ...Option) *Connection {
	t.Helper()
	c, err := Open(":memory:", "", "", append([]Option{WithEngine("sqlite3")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Statements().Batch([]string{testSchema}))
	return c
}

func count(t *testing.T, c *Connection) int64 {
	t.Helper()
	v, err := c.SelectField("SELECT COUNT(*) FROM t", nil)
	require.NoError(t, err)
	return v.(int64)
}

func TestRoundTrip(t *testing.T) {
	assert := assert.New(t)
	c := openTest(t)

	assert.Equal(SQLite, c.Dialect())
	assert.Equal("sqlite3:dbname=:memory:;host=127.0.0.1;charset=utf8", c.String())

	id, err := c.InsertRow("t", Fields{}.Add("a", 1).Add("name", "x"), nil)
	require.NoError(t, err)
	assert.Equal(int64(1), id)
	assert.Equal(id, c.LastInsertID())

	r, err := c.SelectRow("SELECT id, a, name FROM t WHERE id = :id", Params{"id": id})
	require.NoError(t, err)
	assert.Equal(Record{"id": int64(1), "a": int64(1), "name": "x"}, r)
	v, ok := r.Get("a")
	assert.True(ok)
	assert.Equal(int64(1), v)

	// A leading ':' on a Params key is ignored.
	r, err = c.SelectRow("SELECT name FROM t WHERE id = :id", Params{":id": id})
	require.NoError(t, err)
	assert.Equal("x", r["name"])

	n, err := c.SelectField("SELECT a FROM t WHERE name = :name", Params{"name": "x"})
	require.NoError(t, err)
	assert.Equal(int64(1), n)

	s, err := c.SelectField("SELECT '10::30'", nil)
	require.NoError(t, err)
	assert.Equal("10:30", s)
}

func TestSelectEmpty(t *testing.T) {
	assert := assert.New(t)
	c := openTest(t)

	o, err := c.Select("SELECT * FROM t", nil)
	require.NoError(t, err)
	assert.NotNil(o)
	assert.Len(o, 0)

	r, err := c.SelectRow("SELECT * FROM t WHERE id = :id", Params{"id": 10})
	assert.NoError(err)
	assert.Nil(r)

	v, err := c.SelectField("SELECT name FROM t WHERE id = :id", Params{"id": 10})
	assert.NoError(err)
	assert.Nil(v)
	assert.NoError(c.LastError())
}

func TestInsertMultiUpdateDelete(t *testing.T) {
	assert := assert.New(t)
	c := openTest(t)

	n, err := c.InsertMulti("t", []Fields{
		{{"a", 1}, {"name", "a"}},
		{{"name", "b"}, {"a", 1}},
		{{"a", 1}, {"name", "c"}},
	})
	require.NoError(t, err)
	assert.Equal(int64(3), n)
	assert.Equal(int64(3), count(t, c))

	o, err := c.Select("SELECT id, name FROM t ORDER BY id", nil)
	require.NoError(t, err)
	require.Len(t, o, 3)
	assert.Equal("b", o[1]["name"])

	n, err = c.Update("t", Fields{{"a", 2}}, Fields{{"a", 1}}, 2)
	require.NoError(t, err)
	assert.Equal(int64(2), n)

	v, err := c.SelectField("SELECT COUNT(*) FROM t WHERE a = :a", Params{"a": 2})
	require.NoError(t, err)
	assert.Equal(int64(2), v)

	// The same column in the SET and WHERE lists.
	n, err = c.Update("t", Fields{{"name", "z"}}, Fields{{"name", "c"}}, 0)
	require.NoError(t, err)
	assert.Equal(int64(1), n)

	n, err = c.Update("t", Fields{{"a", 9}}, nil, 0)
	require.NoError(t, err)
	assert.Equal(int64(3), n)

	n, err = c.Delete("t", Fields{{"name", "z"}}, 0)
	require.NoError(t, err)
	assert.Equal(int64(1), n)

	n, err = c.Delete("t", Fields{{"a", 9}}, 1)
	require.NoError(t, err)
	assert.Equal(int64(1), n)

	_, err = c.Delete("t", nil, 0)
	assert.ErrorIs(err, ErrNoFields)
	assert.Equal(int64(1), count(t, c))

	_, err = c.InsertMulti("t", []Fields{{{"a", 1}}, {{"name", "q"}}})
	assert.ErrorIs(err, ErrColumnMismatch)
}

func TestUpsert(t *testing.T) {
	assert := assert.New(t)
	c := openTest(t)

	id, err := c.InsertRow("t", Fields{{"a", 5}, {"name", "x"}}, Fields{{"a", 6}})
	require.NoError(t, err)
	assert.Equal(int64(1), id)

	_, err = c.InsertRow("t", Fields{{"a", 5}, {"name", "x"}}, Fields{{"a", 6}})
	require.NoError(t, err)
	assert.Equal(int64(1), count(t, c))

	v, err := c.SelectField("SELECT a FROM t WHERE name = :name", Params{"name": "x"})
	require.NoError(t, err)
	assert.Equal(int64(6), v)
}

func TestExecute(t *testing.T) {
	assert := assert.New(t)
	c := openTest(t)

	r, err := c.Execute("INSERT INTO t (a, name) VALUES (:a, :name)", Params{"a": 3, "name": "n"})
	require.NoError(t, err)
	assert.Equal(int64(1), c.AffectedRows(r))
	assert.Equal(int64(1), r.LastInsertID())
	assert.Equal(int64(0), c.AffectedRows(nil))

	r, err = c.Exec("UPDATE t SET a = ? WHERE name = ?", 4, "n")
	require.NoError(t, err)
	assert.Equal(int64(1), r.RowsAffected())
	assert.Equal(int64(1), c.LastInsertID())

	_, err = c.Execute("UPDATE t SET a = :a", Params{})
	assert.ErrorIs(err, ErrBind)
	assert.ErrorIs(c.LastError(), ErrBind)
}

func TestTransactions(t *testing.T) {
	assert := assert.New(t)
	c := openTest(t)

	assert.ErrorIs(c.Commit(), ErrNoTransaction)
	assert.ErrorIs(c.Rollback(), ErrNoTransaction)

	require.NoError(t, c.StartTransaction())
	assert.True(c.InTransaction())
	assert.ErrorIs(c.StartTransaction(), ErrInTransaction)
	_, err := c.InsertRow("t", Fields{{"name", "a"}}, nil)
	require.NoError(t, err)
	assert.Equal(int64(1), count(t, c))
	require.NoError(t, c.Rollback())
	assert.False(c.InTransaction())
	assert.Equal(int64(0), count(t, c))

	require.NoError(t, c.StartTransactionContext(context.Background()))
	_, err = c.InsertRow("t", Fields{{"name", "b"}}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Commit())
	assert.Equal(int64(1), count(t, c))
}

func TestSelectInto(t *testing.T) {
	assert := assert.New(t)
	c := openTest(t)

	_, err := c.InsertMulti("t", []Fields{
		{{"a", 1}, {"name", "x"}},
		{{"a", 2}, {"name", nil}},
	})
	require.NoError(t, err)

	var o []testRow
	require.NoError(t, c.SelectInto(&o, "SELECT id, a, name FROM t ORDER BY id", nil))
	require.Len(t, o, 2)
	assert.Equal(testRow{ID: 1, A: 1, Name: sql.NullString{String: "x", Valid: true}}, o[0])
	assert.False(o[1].Name.Valid)

	var r testRow
	ok, err := c.SelectRowInto(&r, "SELECT id, a, name FROM t WHERE a = :a", Params{"a": 2})
	require.NoError(t, err)
	assert.True(ok)
	assert.Equal(int64(2), r.ID)

	ok, err = c.SelectRowInto(&r, "SELECT id, a, name FROM t WHERE a = :a", Params{"a": 99})
	assert.NoError(err)
	assert.False(ok)
	assert.NoError(c.LastError())

	var ids []int64
	require.NoError(t, c.SelectIntoContext(context.Background(), &ids, "SELECT id FROM t ORDER BY id", nil))
	assert.Equal([]int64{1, 2}, ids)
}

func TestDriverErrors(t *testing.T) {
	assert := assert.New(t)
	c := openTest(t)

	assert.Equal(ErrorInfo{SQLState: "00000"}, c.ErrorInfo())

	_, err := c.InsertRow("t", Fields{{"name", "x"}}, nil)
	require.NoError(t, err)
	_, err = c.InsertRow("t", Fields{{"name", "x"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(err, ErrDriver)
	assert.Equal(err, c.LastError())

	var d *DriverError
	require.True(t, errors.As(err, &d))
	assert.Equal("execute", d.Op)
	assert.True(strings.HasPrefix(d.Query, `INSERT INTO "t"`))

	var s sqlite3.Error
	require.True(t, errors.As(err, &s))
	assert.Equal(sqlite3.ErrConstraintUnique, s.ExtendedCode)

	i := c.ErrorInfo()
	assert.Equal("HY000", i.SQLState)
	assert.Equal(int(sqlite3.ErrConstraintUnique), i.Code)
	assert.NotEmpty(i.Message)

	_, err = c.Select("SELECT * FROM missing", nil)
	assert.ErrorIs(err, ErrDriver)

	_, err = c.Select("SELECT * FROM t", nil)
	require.NoError(t, err)
	assert.NoError(c.LastError())
	assert.Equal("00000", c.ErrorInfo().SQLState)

	_, err = c.InsertRow("t; DROP TABLE t", Fields{{"name", "y"}}, nil)
	assert.ErrorIs(err, ErrInvalidIdentifier)
	assert.Equal(int64(1), count(t, c))

	assert.ErrorIs(c.SwitchDatabase("other"), ErrUnsupported)
}

func TestLogger(t *testing.T) {
	var l captureLogger
	c := openTest(t, WithLogger(&l))

	_, err := c.InsertRow("t", Fields{{"a", 1}, {"name", "secret-value"}}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, l.lines)

	s := l.lines[len(l.lines)-1]
	assert.Contains(t, s, `sql=INSERT INTO "t"`)
	assert.Contains(t, s, "argc=2")
	assert.Contains(t, s, "err=<nil>")
	assert.NotContains(t, s, "secret-value")
}

func TestOpenConnectionError(t *testing.T) {
	x, f := context.WithTimeout(context.Background(), 5*time.Second)
	defer f()
	_, err := OpenConfigContext(x, Config{Database: "shop", User: "root", Port: 1})
	assert.ErrorIs(t, err, ErrConnection)
}

func TestNew(t *testing.T) {
	_, err := New(nil, "sqlite3")
	assert.ErrorIs(t, err, ErrInvalidDB)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, "oracle")
	assert.ErrorIs(t, err, ErrUnsupported)

	c, err := New(db, "sqlite")
	require.NoError(t, err)
	v, err := c.SelectField("SELECT 1 + :n", Params{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}
