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

import "strings"

// Dialect describes how statements are shaped for one database engine. The zero value is not usable; use MySQL,
// SQLite or DialectOf.
type Dialect struct {
	name   string
	driver string
	upsert string
	quote  byte
	// insertSet selects the "INSERT INTO t SET a = :a" form over "INSERT INTO t (a) VALUES (:a)".
	insertSet bool
	// limitDML is True when UPDATE and DELETE accept a trailing LIMIT.
	limitDML bool
	// use is True when the engine can switch the default database with USE.
	use bool
}

var (
	// MySQL is the Dialect for MySQL and MariaDB. It is the default engine.
	MySQL = Dialect{
		name:      "mysql",
		driver:    "mysql",
		quote:     '`',
		upsert:    "ON DUPLICATE KEY UPDATE",
		insertSet: true,
		limitDML:  true,
		use:       true,
	}
	// SQLite is the Dialect for SQLite 3.35 or newer (for the target-less upsert clause).
	SQLite = Dialect{
		name:   "sqlite",
		driver: "sqlite3",
		quote:  '"',
		upsert: "ON CONFLICT DO UPDATE SET",
	}
)

// DialectOf returns the Dialect for the engine name. Engine names are not case sensitive. The boolean is False
// if the engine is not known.
func DialectOf(engine string) (Dialect, bool) {
	switch strings.ToLower(engine) {
	case "", "mysql", "mariadb":
		return MySQL, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return Dialect{}, false
}

// Name returns the engine name of the Dialect.
func (d Dialect) Name() string {
	return d.name
}

// Driver returns the database/sql driver name used by the Dialect.
func (d Dialect) Driver() string {
	return d.driver
}

// Quote will validate the identifier with ValidateIdentifier and return it quoted for the Dialect.
func (d Dialect) Quote(ident string) (string, error) {
	if _, err := ValidateIdentifier(ident); err != nil {
		return "", err
	}
	return string(d.quote) + ident + string(d.quote), nil
}
