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

// Command tmquery runs a single SELECT statement and prints each row as a JSON object on its own line.
//
//	tmquery -d shop -u reader -p secret 'SELECT * FROM orders WHERE status = :status' status=open
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/PurpleSec/tablemap"
	"github.com/spf13/pflag"
)

type command struct {
	database string
	user     string
	password string
	engine   string
	charset  string
	host     string
	port     int
	row      bool
	verbose  bool
}

func main() {
	var c command
	pflag.StringVarP(&c.database, "database", "d", "", "database name (file path for sqlite3)")
	pflag.StringVarP(&c.user, "user", "u", "", "user name")
	pflag.StringVarP(&c.password, "password", "p", "", "password")
	pflag.StringVarP(&c.engine, "engine", "e", tablemap.DefaultEngine, "engine (mysql, sqlite3)")
	pflag.StringVarP(&c.charset, "charset", "c", tablemap.DefaultCharset, "connection charset")
	pflag.StringVarP(&c.host, "host", "H", tablemap.DefaultHost, "server host")
	pflag.IntVarP(&c.port, "port", "P", tablemap.DefaultPort, "server port")
	pflag.BoolVar(&c.row, "row", false, "print only the first row")
	pflag.BoolVarP(&c.verbose, "verbose", "v", false, "log executed statements to stderr")
	pflag.Parse()

	if pflag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: tmquery [flags] <query> [name=value ...]")
		pflag.PrintDefaults()
		os.Exit(2)
	}
	if err := c.run(pflag.Arg(0), pflag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "tmquery:", err)
		os.Exit(1)
	}
}
func (c command) run(query string, args []string) error {
	p, err := params(args)
	if err != nil {
		return err
	}
	o := []tablemap.Option{
		tablemap.WithEngine(c.engine),
		tablemap.WithCharset(c.charset),
		tablemap.WithHost(c.host),
		tablemap.WithPort(c.port),
	}
	if c.verbose {
		o = append(o, tablemap.WithLogger(tablemap.StdLogger()))
	}
	db, err := tablemap.Open(c.database, c.user, c.password, o...)
	if err != nil {
		return err
	}
	defer db.Close()

	var r []tablemap.Record
	if c.row {
		v, err := db.SelectRow(query, p)
		if err != nil {
			return err
		}
		if v != nil {
			r = append(r, v)
		}
	} else if r, err = db.Select(query, p); err != nil {
		return err
	}
	e := json.NewEncoder(os.Stdout)
	for i := range r {
		if err = e.Encode(r[i]); err != nil {
			return err
		}
	}
	return nil
}
func params(args []string) (tablemap.Params, error) {
	p := make(tablemap.Params, len(args))
	for _, a := range args {
		i := strings.IndexByte(a, '=')
		if i <= 0 {
			return nil, fmt.Errorf("parameter %q is not in name=value form", a)
		}
		p[a[:i]] = a[i+1:]
	}
	return p, nil
}
