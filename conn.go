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
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// Connection is a wrapper around a single database session. It builds and runs parameterized statements and maps
// the selected rows into Records.
//
// The underlying pool is limited to one connection, so "USE", transactions and LastInsertID always refer to the
// same session. Statement calls may be made from multiple goroutines, but StartTransaction, Commit, Rollback and
// SwitchDatabase change the session for every caller.
type Connection struct {
	log     Logger
	db      *sqlx.DB
	tx      *sqlx.Tx
	err     error
	stmts   *Statements
	cfg     Config
	dialect Dialect
	lastID  int64
	// lock guards tx, err, lastID and cfg.
	lock sync.RWMutex
}

// Result is the handle returned for an executed statement.
type Result struct {
	affected int64
	id       int64
}

// ErrorInfo describes the last error reported by the driver. SQLState is "00000" when there was no error.
type ErrorInfo struct {
	SQLState string
	Message  string
	Code     int
}
type executor interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryxContext(context.Context, string, ...interface{}) (*sqlx.Rows, error)
	GetContext(context.Context, interface{}, string, ...interface{}) error
	SelectContext(context.Context, interface{}, string, ...interface{}) error
}

// Open will connect to the named database with the provided credentials. Without any Options this connects to
// the MySQL server at 127.0.0.1:3306 using the "utf8" charset. The connection is verified before returning; any
// failure is returned as an error matching ErrConnection.
func Open(database, user, password string, opts ...Option) (*Connection, error) {
	c := Config{Database: database, User: user, Password: password}
	for i := range opts {
		if opts[i] != nil {
			opts[i](&c)
		}
	}
	return OpenConfig(c)
}

// OpenConfig will connect using the provided Config. See Open.
func OpenConfig(c Config) (*Connection, error) {
	return OpenConfigContext(context.Background(), c)
}

// OpenConfigContext will connect using the provided Config. See Open. This function specifies a Context that can
// be used to interrupt and cancel the connection check.
func OpenConfigContext(x context.Context, c Config) (*Connection, error) {
	c = c.withDefaults()
	d, ok := DialectOf(c.Engine)
	if !ok {
		return nil, wrap(ErrConnection, `unknown engine "`+c.Engine+`"`, ErrUnsupported)
	}
	s, err := c.DSN()
	if err != nil {
		return nil, wrap(ErrConnection, "cannot connect to "+c.String(), err)
	}
	db, err := sqlx.Open(d.driver, s)
	if err != nil {
		return nil, wrap(ErrConnection, "cannot connect to "+c.String(), err)
	}
	if err = db.PingContext(x); err != nil {
		db.Close()
		return nil, wrap(ErrConnection, "cannot connect to "+c.String(), err)
	}
	return newConnection(db, c, d), nil
}

// New will create a Connection around an already opened database handle. The engine selects the Dialect and
// must be a name accepted by DialectOf. No connection check is done.
func New(db *sql.DB, engine string, opts ...Option) (*Connection, error) {
	if db == nil {
		return nil, ErrInvalidDB
	}
	c := Config{Engine: engine}
	for i := range opts {
		if opts[i] != nil {
			opts[i](&c)
		}
	}
	c = c.withDefaults()
	d, ok := DialectOf(c.Engine)
	if !ok {
		return nil, wrap(ErrUnsupported, `unknown engine "`+c.Engine+`"`, nil)
	}
	return newConnection(sqlx.NewDb(db, d.driver), c, d), nil
}
func newConnection(db *sqlx.DB, c Config, d Dialect) *Connection {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	n := &Connection{db: db, log: c.Logger, cfg: c, dialect: d}
	n.stmts = &Statements{c: n}
	return n
}

// DB returns the underlying database handle.
func (c *Connection) DB() *sqlx.DB {
	return c.db
}

// Dialect returns the Dialect used to build statements.
func (c *Connection) Dialect() Dialect {
	return c.dialect
}

// String returns the connection descriptor. See Config.String.
func (c *Connection) String() string {
	c.lock.RLock()
	s := c.cfg.String()
	c.lock.RUnlock()
	return s
}

// Statements returns the named statement registry bound to this Connection.
func (c *Connection) Statements() *Statements {
	return c.stmts
}

// Close will roll back any open transaction, close all registered statements and then close the database handle.
func (c *Connection) Close() error {
	if t := c.take(); t != nil {
		t.Rollback()
	}
	if err := c.stmts.Close(); err != nil {
		return err
	}
	return c.db.Close()
}

// SwitchDatabase changes the default database of the session with "USE". The name is validated first. This
// returns ErrUnsupported for engines without "USE".
func (c *Connection) SwitchDatabase(name string) error {
	return c.SwitchDatabaseContext(context.Background(), name)
}

// SwitchDatabaseContext changes the default database of the session with "USE". See SwitchDatabase. This function
// specifies a Context that can be used to interrupt and cancel the statement.
func (c *Connection) SwitchDatabaseContext(x context.Context, name string) error {
	if !c.dialect.use {
		return ErrUnsupported
	}
	q, err := c.dialect.Quote(name)
	if err != nil {
		return err
	}
	if _, err = c.run(x, "use", "USE "+q, nil); err != nil {
		return err
	}
	c.lock.Lock()
	c.cfg.Database = name
	c.lock.Unlock()
	return nil
}

// LastError returns the error of the last operation on this Connection, or nil if it succeeded.
func (c *Connection) LastError() error {
	c.lock.RLock()
	err := c.err
	c.lock.RUnlock()
	return err
}

// ErrorInfo returns the SQLSTATE, driver code and message of the last operation on this Connection.
func (c *Connection) ErrorInfo() ErrorInfo {
	err := c.LastError()
	if err == nil {
		return ErrorInfo{SQLState: "00000"}
	}
	var m *mysql.MySQLError
	if errors.As(err, &m) {
		return ErrorInfo{SQLState: string(m.SQLState[:]), Code: int(m.Number), Message: m.Message}
	}
	var s sqlite3.Error
	if errors.As(err, &s) {
		return ErrorInfo{SQLState: "HY000", Code: int(s.ExtendedCode), Message: s.Error()}
	}
	return ErrorInfo{SQLState: "HY000", Message: err.Error()}
}

// AffectedRows returns the number of rows changed by the statement that produced the Result.
func (c *Connection) AffectedRows(r *Result) int64 {
	if r == nil {
		return 0
	}
	return r.affected
}

// LastInsertID returns the identifier generated by the most recent insert on this Connection.
func (c *Connection) LastInsertID() int64 {
	c.lock.RLock()
	n := c.lastID
	c.lock.RUnlock()
	return n
}

// StartTransaction will begin a transaction. Until Commit or Rollback, every statement on this Connection runs
// inside it. Returns ErrInTransaction if one is already open.
func (c *Connection) StartTransaction() error {
	return c.StartTransactionContext(context.Background())
}

// StartTransactionContext will begin a transaction. See StartTransaction. The Context is used by the driver until
// the transaction is committed or rolled back.
func (c *Connection) StartTransactionContext(x context.Context) error {
	if c.txn() != nil {
		return ErrInTransaction
	}
	// BeginTxx waits for the pinned connection, so the lock is not held here.
	t, err := c.db.BeginTxx(x, nil)
	if err != nil {
		return c.fail(driverErr("begin", "", err))
	}
	if c.lock.Lock(); c.tx != nil {
		c.lock.Unlock()
		t.Rollback()
		return ErrInTransaction
	}
	c.tx, c.err = t, nil
	c.lock.Unlock()
	return nil
}

// Commit will commit the open transaction. Returns ErrNoTransaction if none is open.
func (c *Connection) Commit() error {
	t := c.take()
	if t == nil {
		return ErrNoTransaction
	}
	return c.fail(driverErr("commit", "", t.Commit()))
}

// Rollback will roll back the open transaction. Returns ErrNoTransaction if none is open.
func (c *Connection) Rollback() error {
	t := c.take()
	if t == nil {
		return ErrNoTransaction
	}
	return c.fail(driverErr("rollback", "", t.Rollback()))
}

// InTransaction returns True while a transaction started with StartTransaction is open.
func (c *Connection) InTransaction() bool {
	return c.txn() != nil
}

// RowsAffected returns the number of rows changed by the statement.
func (r *Result) RowsAffected() int64 {
	return r.affected
}

// LastInsertID returns the identifier generated by the statement, or zero if it did not generate one.
func (r *Result) LastInsertID() int64 {
	return r.id
}
func (c *Connection) txn() *sqlx.Tx {
	c.lock.RLock()
	t := c.tx
	c.lock.RUnlock()
	return t
}

// take detaches the open transaction, if any, so only one caller can end it.
func (c *Connection) take() *sqlx.Tx {
	c.lock.Lock()
	t := c.tx
	c.tx = nil
	c.lock.Unlock()
	return t
}
func (c *Connection) exec() executor {
	if t := c.txn(); t != nil {
		return t
	}
	return c.db
}
func (c *Connection) fail(err error) error {
	c.lock.Lock()
	c.err = err
	c.lock.Unlock()
	return err
}

// done records a successful statement and its generated identifier.
func (c *Connection) done(r *Result) *Result {
	c.lock.Lock()
	if c.err = nil; r.id > 0 {
		c.lastID = r.id
	}
	c.lock.Unlock()
	return r
}
