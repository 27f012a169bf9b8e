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
	"regexp"
	"strings"
	"unicode"
)

var validIdent = regexp.MustCompile(`^[A-Za-z0-9_$-]+$`)

// ValidateIdentifier will return the provided name unchanged if it only contains letters, digits and the '_',
// '$' and '-' characters. Otherwise an *IdentifierError (matching ErrInvalidIdentifier) is returned.
//
// Every table and column name is passed through this function before it is written into SQL text.
func ValidateIdentifier(name string) (string, error) {
	if len(name) == 0 {
		return "", &IdentifierError{Name: name, Reason: "identifier cannot be empty"}
	}
	if !validIdent.MatchString(name) {
		return "", &IdentifierError{Name: name, Reason: "identifier contains characters outside [A-Za-z0-9_$-]"}
	}
	return name, nil
}

// placeholder derives a bind name for the column. sqlx only reads letters, digits, '_' and '.' as part of a
// named parameter, so everything else becomes '_'.
func placeholder(prefix, column string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(column))
	b.WriteString(prefix)
	for _, r := range column {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
