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
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Statements is a registry of named prepared statements that belongs to a Connection. Each statement may use named
// parameters (":name") which are bound from Params when it is executed. The statements are closed when the
// Connection is closed.
//
// While a transaction is open on the Connection, registered statements run inside it. New statements cannot be
// added during a transaction.
//
// This struct is safe for multiple co-current goroutine usage.
type Statements struct {
	c       *Connection
	lock    sync.RWMutex
	entries map[string]*sqlx.NamedStmt
}

// Len returns the number of registered statements.
func (s *Statements) Len() int {
	s.lock.RLock()
	n := len(s.entries)
	s.lock.RUnlock()
	return n
}

// Close will attempt to close all the registered statements. This will bail on any errors that occur. Multiple
// calls to close can be used to make sure that all statements are closed successfully.
func (s *Statements) Close() error {
	var err error
	s.lock.Lock()
	for k, v := range s.entries {
		if v == nil {
			continue
		}
		if err = v.Close(); err != nil {
			err = &errval{e: err, s: `error closing statement "` + k + `"`}
			break
		}
		delete(s.entries, k)
	}
	s.lock.Unlock()
	return err
}

// Remove will attempt to close and remove the statement with the provided name. This function will return True if
// the statement was found and removed. Otherwise the function will return false.
func (s *Statements) Remove(name string) bool {
	s.lock.Lock()
	v, ok := s.entries[name]
	if ok {
		if v != nil {
			v.Close()
		}
		delete(s.entries, name)
	}
	s.lock.Unlock()
	return ok
}

// Contains returns True if the name provided has an associated statement.
func (s *Statements) Contains(name string) bool {
	s.lock.RLock()
	v, ok := s.entries[name]
	s.lock.RUnlock()
	return ok && v != nil
}

// Add will prepare and register the specified query with the provided name. This will only add the statement if
// the prepare is successful. Otherwise the prepare error will be returned. Adding a name that is already
// registered returns ErrStatementExists before attempting to prepare the query.
func (s *Statements) Add(name, query string) error {
	return s.AddContext(context.Background(), name, query)
}

// Batch will execute the provided statements in order on the Connection, inside the open transaction if there is
// one. This function will stop and return the first error that occurs. The results of the statements are not
// returned.
func (s *Statements) Batch(queries []string) error {
	return s.BatchContext(context.Background(), queries)
}

// Get will return the prepared statement registered with the provided name and True. If the name is not
// registered, the statement will be nil and the boolean will be False.
//
// The returned statement is not bound to an open transaction.
func (s *Statements) Get(name string) (*sqlx.NamedStmt, bool) {
	s.lock.RLock()
	n, ok := s.entries[name]
	s.lock.RUnlock()
	return n, ok && n != nil
}

// Extend will prepare and register all the queries in the provided map, keyed by name. This stops on the first
// error. See Add.
func (s *Statements) Extend(data map[string]string) error {
	return s.ExtendContext(context.Background(), data)
}

// AddContext will prepare and register the specified query with the provided name. See Add. This function
// specifies a Context that can be used to interrupt and cancel the prepare call.
func (s *Statements) AddContext(x context.Context, name, query string) error {
	return s.ExtendContext(x, map[string]string{name: query})
}

// BatchContext will execute the provided statements in order on the Connection. See Batch. This function specifies
// a Context that can be used to interrupt and cancel the execute calls.
func (s *Statements) BatchContext(x context.Context, queries []string) error {
	if len(queries) == 0 {
		return nil
	}
	if s.c == nil || s.c.db == nil {
		return ErrInvalidDB
	}
	var err error
	s.lock.Lock()
	for i := range queries {
		select {
		case <-x.Done():
			err = x.Err()
		default:
		}
		if err != nil {
			break
		}
		if _, err = s.c.run(x, "batch", queries[i], nil); err != nil {
			err = &errval{e: err, s: "error executing batch statement " + strconv.Itoa(i)}
			break
		}
	}
	s.lock.Unlock()
	return err
}

// ExtendContext will prepare and register all the queries in the provided map, keyed by name. See Extend. This
// function specifies a Context that can be used to interrupt and cancel the prepare calls.
func (s *Statements) ExtendContext(x context.Context, data map[string]string) error {
	if len(data) == 0 {
		return nil
	}
	if s.c == nil || s.c.db == nil {
		return ErrInvalidDB
	}
	if s.c.txn() != nil {
		return ErrInTransaction
	}
	var err error
	s.lock.Lock()
	if s.entries == nil {
		s.entries = make(map[string]*sqlx.NamedStmt, len(data))
	}
	for k, v := range data {
		select {
		case <-x.Done():
			err = x.Err()
		default:
		}
		if err != nil {
			break
		}
		if n, ok := s.entries[k]; ok && n != nil {
			err = wrap(ErrStatementExists, `statement with name "`+k+`" already exists`, nil)
			break
		}
		n, e := s.c.db.PrepareNamedContext(x, v+" ")
		if e != nil {
			err = &errval{e: driverErr("prepare", v, e), s: `error adding statement "` + k + `"`}
			break
		}
		s.entries[k] = n
	}
	s.lock.Unlock()
	return err
}

// Exec will run the statement with the provided name, binding its named parameters from the Params.
func (s *Statements) Exec(name string, p Params) (*Result, error) {
	return s.ExecContext(context.Background(), name, p)
}

// ExecContext will run the statement with the provided name. See Exec. This function specifies a Context that can
// be used to interrupt and cancel the statement.
func (s *Statements) ExecContext(x context.Context, name string, p Params) (*Result, error) {
	n, err := s.get(x, name)
	if err != nil {
		return nil, err
	}
	t := time.Now()
	r, err := n.ExecContext(x, p.named())
	if s.c.logQuery(n.QueryString, len(n.Params), t, err); err != nil {
		return nil, s.c.fail(driverErr(name, n.QueryString, err))
	}
	return s.c.done(newResult(r)), nil
}

// Select will run the statement with the provided name and return every row as a Record. If no rows match, an
// empty (non-nil) slice is returned.
func (s *Statements) Select(name string, p Params) ([]Record, error) {
	return s.SelectContext(context.Background(), name, p)
}

// SelectContext will run the statement with the provided name and return every row as a Record. See Select. This
// function specifies a Context that can be used to interrupt and cancel the query.
func (s *Statements) SelectContext(x context.Context, name string, p Params) ([]Record, error) {
	r, q, err := s.query(x, name, p)
	if err != nil {
		return nil, err
	}
	o, err := records(r)
	return o, s.c.fail(driverErr(name, q, err))
}

// SelectRow will run the statement with the provided name and return the first row as a Record. If no rows match,
// the Record and the error are both nil.
func (s *Statements) SelectRow(name string, p Params) (Record, error) {
	return s.SelectRowContext(context.Background(), name, p)
}

// SelectRowContext will run the statement with the provided name and return the first row. See SelectRow. This
// function specifies a Context that can be used to interrupt and cancel the query.
func (s *Statements) SelectRowContext(x context.Context, name string, p Params) (Record, error) {
	r, q, err := s.query(x, name, p)
	if err != nil {
		return nil, err
	}
	o, err := first(r)
	return o, s.c.fail(driverErr(name, q, err))
}
func (s *Statements) get(x context.Context, name string) (*sqlx.NamedStmt, error) {
	if s.c == nil || s.c.db == nil {
		return nil, ErrInvalidDB
	}
	s.lock.RLock()
	n, ok := s.entries[name]
	if s.lock.RUnlock(); !ok || n == nil {
		return nil, wrap(ErrStatementMissing, `statement with name "`+name+`" does not exist`, nil)
	}
	if t := s.c.txn(); t != nil {
		return t.NamedStmtContext(x, n), nil
	}
	return n, nil
}
func (s *Statements) query(x context.Context, name string, p Params) (*sqlx.Rows, string, error) {
	n, err := s.get(x, name)
	if err != nil {
		return nil, "", err
	}
	t := time.Now()
	r, err := n.QueryxContext(x, p.named())
	if s.c.logQuery(n.QueryString, len(n.Params), t, err); err != nil {
		return nil, n.QueryString, s.c.fail(driverErr(name, n.QueryString, err))
	}
	return r, n.QueryString, nil
}
