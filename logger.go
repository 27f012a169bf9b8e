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
	"log"
	"os"
	"time"
)

// Logger receives a line for every statement the Connection executes.
type Logger interface {
	Printf(format string, args ...interface{})
}

// NopLogger is a Logger that discards everything.
type NopLogger struct{}

// Printf does nothing.
func (NopLogger) Printf(string, ...interface{}) {}

// StdLogger returns a Logger that writes to standard error with a "[tablemap] " prefix.
func StdLogger() Logger {
	return log.New(os.Stderr, "[tablemap] ", log.LstdFlags)
}

// logQuery never logs argument values, only how many there are.
func (c *Connection) logQuery(query string, argc int, start time.Time, err error) {
	if _, ok := c.log.(NopLogger); ok {
		return
	}
	if len(query) > 2048 {
		query = query[:2048] + "…"
	}
	c.log.Printf("sql=%s argc=%d dur=%s err=%v", query, argc, time.Since(start), err)
}
