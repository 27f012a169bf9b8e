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

import "sort"

// Field is a single column and value pair of a Field Set.
type Field struct {
	Column string
	Value  interface{}
}

// Fields is an ordered Field Set. The order of the entries is the order the columns appear in the generated SQL.
type Fields []Field

// Params is a Parameter Mapping of placeholder names to bound values. A leading ':' on a name is ignored when the
// mapping is bound to a query.
type Params map[string]interface{}

// Record is a generic representation of one selected row, keyed by column name.
type Record map[string]interface{}

// Query is the result of a statement builder. The keys of Params are exactly the placeholders in SQL.
type Query struct {
	Params Params
	SQL    string
}

// FieldsOf will create a Field Set from the provided map. The columns are sorted by name so that the generated SQL
// is the same for every call with the same map.
func FieldsOf(m map[string]interface{}) Fields {
	if len(m) == 0 {
		return nil
	}
	f := make(Fields, 0, len(m))
	for k, v := range m {
		f = append(f, Field{Column: k, Value: v})
	}
	sort.Slice(f, func(i, j int) bool { return f[i].Column < f[j].Column })
	return f
}

// Add returns the Field Set with the column and value appended.
func (f Fields) Add(column string, value interface{}) Fields {
	return append(f, Field{Column: column, Value: value})
}

// Columns returns the column names of the Field Set in order.
func (f Fields) Columns() []string {
	c := make([]string, len(f))
	for i := range f {
		c[i] = f[i].Column
	}
	return c
}

// Get returns the value of the column and True if the Field Set contains it.
func (f Fields) Get(column string) (interface{}, bool) {
	for i := range f {
		if f[i].Column == column {
			return f[i].Value, true
		}
	}
	return nil, false
}

// Get returns the value of the column and True if the Record contains it.
func (r Record) Get(column string) (interface{}, bool) {
	v, ok := r[column]
	return v, ok
}

func (p Params) named() map[string]interface{} {
	if len(p) == 0 {
		return map[string]interface{}{}
	}
	m := make(map[string]interface{}, len(p))
	for k, v := range p {
		if len(k) > 1 && k[0] == ':' {
			k = k[1:]
		}
		m[k] = v
	}
	return m
}
func (p Params) merge(o Params) error {
	for k, v := range o {
		if _, ok := p[k]; ok {
			return wrap(ErrPlaceholderCollision, `placeholder ":`+k+`" is used twice`, nil)
		}
		p[k] = v
	}
	return nil
}
