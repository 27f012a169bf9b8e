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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		ident   string
		wantErr bool
	}{
		{"simple", "users", false},
		{"underscore", "user_name", false},
		{"digits", "users2", false},
		{"leading digit", "2users", false},
		{"double dash", "t--", false},
		{"dollar", "cost$", false},
		{"dash", "user-name", false},
		{"mixed case", "UserName", false},

		{"empty", "", true},
		{"space", "user name", true},
		{"dot", "db.users", true},
		{"semicolon", "users;", true},
		{"quote", "users'", true},
		{"backtick", "users`", true},
		{"double quote", `users"`, true},
		{"colon", "users:id", true},
		{"parenthesis", "count(*)", true},
		{"injection", "users; DROP TABLE users;--", true},
		{"non ascii", "usérs", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateIdentifier(tc.ident)
			if tc.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidIdentifier), "error %v should match ErrInvalidIdentifier", err)
				var e *IdentifierError
				if assert.True(t, errors.As(err, &e)) {
					assert.Equal(t, tc.ident, e.Name)
				}
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.ident, got)
		})
	}
}

func TestPlaceholder(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("name", placeholder("", "name"))
	assert.Equal("where_name", placeholder(prefixWhere, "name"))
	assert.Equal("cost_", placeholder("", "cost$"))
	assert.Equal("0_user_name", placeholder("0_", "user-name"))
}

func TestQuote(t *testing.T) {
	assert := assert.New(t)

	q, err := MySQL.Quote("users")
	assert.NoError(err)
	assert.Equal("`users`", q)

	q, err = SQLite.Quote("users")
	assert.NoError(err)
	assert.Equal(`"users"`, q)

	q, err = MySQL.Quote("t--")
	assert.NoError(err)
	assert.Equal("`t--`", q)

	_, err = MySQL.Quote("users`; --")
	assert.ErrorIs(err, ErrInvalidIdentifier)
}

func TestDialectOf(t *testing.T) {
	assert := assert.New(t)
	for _, n := range []string{"", "mysql", "MySQL", "mariadb"} {
		d, ok := DialectOf(n)
		assert.True(ok, n)
		assert.Equal("mysql", d.Name())
		assert.Equal("mysql", d.Driver())
	}
	for _, n := range []string{"sqlite", "sqlite3", "SQLITE3"} {
		d, ok := DialectOf(n)
		assert.True(ok, n)
		assert.Equal("sqlite", d.Name())
		assert.Equal("sqlite3", d.Driver())
	}
	_, ok := DialectOf("pgsql")
	assert.False(ok)
}
