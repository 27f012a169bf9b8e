/*
Tablemap

Golang helpers for building and running parameterized SQL statements and mapping rows into simple records.

Tablemap is a Go package that wraps a single database session. It builds INSERT, UPDATE and DELETE statements
from ordered Field Sets, binds named parameters (":name") and returns selected rows as Records (maps keyed by
column name). All execution is done by the database/sql driver; MySQL (the default) and SQLite are supported.

Table and column names are validated against [A-Za-z0-9_$-] and quoted before they are written into SQL. Values
are always bound as parameters. Placeholders used in a WHERE clause are prefixed with "where_" so the same column
can be set and filtered in one UPDATE.

Named parameters are parsed by sqlx, so a literal ':' in a query must be written as '::'.

Using Tablemap is easy.


package main

import (
    "fmt"

    "github.com/PurpleSec/tablemap"
)

func main() {
    c, err := tablemap.Open(":memory:", "", "", tablemap.WithEngine("sqlite3"))
    if err != nil {
        panic(err)
    }
    defer c.Close()

    _, err = c.Exec(
        `CREATE TABLE IF NOT EXISTS Testing1 (
            TestID INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
            TestName VARCHAR(64) NOT NULL UNIQUE
        )`,
    )
    if err != nil {
        panic(err)
    }

    id, err := c.InsertRow("Testing1", tablemap.Fields{}.Add("TestName", "Hello World :D!"), nil)
    if err != nil {
        panic(err)
    }

    r, err := c.SelectRow("SELECT TestName FROM Testing1 WHERE TestID = :id", tablemap.Params{"id": id})
    if err != nil {
        panic(err)
    }

    fmt.Printf("got %q\n", r["TestName"])
}


*/

package tablemap
