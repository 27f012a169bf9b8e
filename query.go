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
	"strconv"
	"strings"
)

const (
	prefixWhere     = "where_"
	prefixDuplicate = "duplicate_"
	paramLimit      = "limit"
)

// BuildInsert will create a MySQL INSERT statement for the table. See Dialect.BuildInsert.
func BuildInsert(table string, fields, onDuplicate Fields) (Query, error) {
	return MySQL.BuildInsert(table, fields, onDuplicate)
}

// BuildInsertMulti will create a MySQL multi-row INSERT statement for the table. See Dialect.BuildInsertMulti.
func BuildInsertMulti(table string, rows []Fields) (Query, error) {
	return MySQL.BuildInsertMulti(table, rows)
}

// BuildUpdate will create a MySQL UPDATE statement for the table. See Dialect.BuildUpdate.
func BuildUpdate(table string, fields, where Fields, limit int) (Query, error) {
	return MySQL.BuildUpdate(table, fields, where, limit)
}

// BuildDelete will create a MySQL DELETE statement for the table. See Dialect.BuildDelete.
func BuildDelete(table string, where Fields, limit int) (Query, error) {
	return MySQL.BuildDelete(table, where, limit)
}

// BuildInsert will create an INSERT statement that sets the provided fields. Each field is bound to a placeholder
// with the same name as the column. If onDuplicate is not empty, the statement will update those fields when the
// row already exists, using placeholders prefixed with "duplicate_".
//
// For MySQL the result looks like:
//
//	INSERT INTO `t` SET `a` = :a, `b` = :b ON DUPLICATE KEY UPDATE `b` = :duplicate_b
func (d Dialect) BuildInsert(table string, fields, onDuplicate Fields) (Query, error) {
	if len(d.name) == 0 {
		return Query{}, ErrUnsupported
	}
	if len(fields) == 0 {
		return Query{}, ErrNoFields
	}
	t, err := d.Quote(table)
	if err != nil {
		return Query{}, err
	}
	var (
		b strings.Builder
		p = make(Params, len(fields)+len(onDuplicate))
	)
	b.WriteString("INSERT INTO ")
	b.WriteString(t)
	if d.insertSet {
		b.WriteString(" SET ")
		if err = d.assign(&b, fields, "", ", ", p); err != nil {
			return Query{}, err
		}
	} else {
		c, v, err := d.columns(fields, "", p)
		if err != nil {
			return Query{}, err
		}
		b.WriteString(" (" + c + ") VALUES (" + v + ")")
	}
	if len(onDuplicate) > 0 {
		b.WriteString(" " + d.upsert + " ")
		if err = d.assign(&b, onDuplicate, prefixDuplicate, ", ", p); err != nil {
			return Query{}, err
		}
	}
	return Query{SQL: b.String(), Params: p}, nil
}

// BuildInsertMulti will create a single INSERT statement that inserts all the provided rows. The column list is
// taken from the first row and every other row must contain exactly the same columns (in any order), otherwise
// ErrColumnMismatch is returned. Placeholders are prefixed with the row index.
//
//	INSERT INTO `t` (`a`, `b`) VALUES (:0_a, :0_b), (:1_a, :1_b)
func (d Dialect) BuildInsertMulti(table string, rows []Fields) (Query, error) {
	if len(d.name) == 0 {
		return Query{}, ErrUnsupported
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Query{}, ErrNoFields
	}
	t, err := d.Quote(table)
	if err != nil {
		return Query{}, err
	}
	var (
		p    = make(Params, len(rows)*len(rows[0]))
		cols = rows[0].Columns()
		v    = make([]string, len(rows))
		c    string
	)
	for i := range rows {
		if i > 0 && !sameColumns(rows[0], rows[i]) {
			return Query{}, wrap(ErrColumnMismatch, "row "+strconv.Itoa(i)+" columns do not match the first row", nil)
		}
		r := rows[i]
		if i > 0 {
			r = make(Fields, len(cols))
			for x := range cols {
				r[x].Column = cols[x]
				r[x].Value, _ = rows[i].Get(cols[x])
			}
		}
		var s string
		if c, s, err = d.columns(r, strconv.Itoa(i)+"_", p); err != nil {
			return Query{}, err
		}
		v[i] = "(" + s + ")"
	}
	return Query{SQL: "INSERT INTO " + t + " (" + c + ") VALUES " + strings.Join(v, ", "), Params: p}, nil
}

// BuildUpdate will create an UPDATE statement that sets the provided fields. If where is not empty, the rows are
// filtered by equality on every where field, joined with AND. WHERE placeholders are prefixed with "where_" so the
// same column can appear in both fields and where. A limit above zero adds a LIMIT bound to ":limit".
//
//	UPDATE `t` SET `name` = :name WHERE `name` = :where_name LIMIT :limit
//
// Engines without UPDATE ... LIMIT (SQLite) get the limit applied through a rowid sub-select.
func (d Dialect) BuildUpdate(table string, fields, where Fields, limit int) (Query, error) {
	if len(d.name) == 0 {
		return Query{}, ErrUnsupported
	}
	if len(fields) == 0 {
		return Query{}, ErrNoFields
	}
	t, err := d.Quote(table)
	if err != nil {
		return Query{}, err
	}
	var (
		b strings.Builder
		p = make(Params, len(fields)+len(where)+1)
	)
	b.WriteString("UPDATE " + t + " SET ")
	if err = d.assign(&b, fields, "", ", ", p); err != nil {
		return Query{}, err
	}
	if err = d.filter(&b, t, where, limit, p); err != nil {
		return Query{}, err
	}
	return Query{SQL: b.String(), Params: p}, nil
}

// BuildDelete will create a DELETE statement filtered by equality on every where field, joined with AND. WHERE
// placeholders are prefixed with "where_", the same as BuildUpdate. An empty where returns ErrNoFields, as an
// unfiltered DELETE is never generated. A limit above zero adds a LIMIT bound to ":limit".
//
//	DELETE FROM `t` WHERE `id` = :where_id LIMIT :limit
func (d Dialect) BuildDelete(table string, where Fields, limit int) (Query, error) {
	if len(d.name) == 0 {
		return Query{}, ErrUnsupported
	}
	if len(where) == 0 {
		return Query{}, ErrNoFields
	}
	t, err := d.Quote(table)
	if err != nil {
		return Query{}, err
	}
	var (
		b strings.Builder
		p = make(Params, len(where)+1)
	)
	b.WriteString("DELETE FROM " + t)
	if err = d.filter(&b, t, where, limit, p); err != nil {
		return Query{}, err
	}
	return Query{SQL: b.String(), Params: p}, nil
}
func (d Dialect) filter(b *strings.Builder, table string, where Fields, limit int, p Params) error {
	if limit > 0 && !d.limitDML {
		// rowid sub-select, as the engine has no DML LIMIT.
		b.WriteString(" WHERE rowid IN (SELECT rowid FROM " + table)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		if err := d.assign(b, where, prefixWhere, " AND ", p); err != nil {
			return err
		}
	}
	if limit <= 0 {
		return nil
	}
	if err := p.merge(Params{paramLimit: limit}); err != nil {
		return err
	}
	if b.WriteString(" LIMIT :" + paramLimit); !d.limitDML {
		b.WriteByte(')')
	}
	return nil
}
func (d Dialect) assign(b *strings.Builder, f Fields, prefix, sep string, p Params) error {
	c, k, err := d.bind(f, prefix, p)
	if err != nil {
		return err
	}
	for i := range c {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(c[i] + " = :" + k[i])
	}
	return nil
}
func (d Dialect) columns(f Fields, prefix string, p Params) (string, string, error) {
	c, k, err := d.bind(f, prefix, p)
	if err != nil {
		return "", "", err
	}
	for i := range k {
		k[i] = ":" + k[i]
	}
	return strings.Join(c, ", "), strings.Join(k, ", "), nil
}

// bind quotes every column of the Field Set, derives its placeholder name and merges the values into p. It
// returns the quoted columns and placeholder names in Field Set order.
func (d Dialect) bind(f Fields, prefix string, p Params) ([]string, []string, error) {
	var (
		c, k = make([]string, len(f)), make([]string, len(f))
		n    = make(Params, len(f))
		seen = make(map[string]struct{}, len(f))
		err  error
	)
	for i := range f {
		if c[i], err = d.Quote(f[i].Column); err != nil {
			return nil, nil, err
		}
		if _, ok := seen[f[i].Column]; ok {
			return nil, nil, wrap(ErrDuplicateColumn, `column "`+f[i].Column+`" is used twice`, nil)
		}
		seen[f[i].Column], k[i] = struct{}{}, placeholder(prefix, f[i].Column)
		if _, ok := n[k[i]]; ok {
			return nil, nil, wrap(ErrPlaceholderCollision, `placeholder ":`+k[i]+`" is used twice`, nil)
		}
		n[k[i]] = f[i].Value
	}
	return c, k, p.merge(n)
}
func sameColumns(a, b Fields) bool {
	if len(a) != len(b) {
		return false
	}
	s := make(map[string]struct{}, len(b))
	for i := range b {
		s[b[i].Column] = struct{}{}
	}
	if len(s) != len(b) {
		return false
	}
	for i := range a {
		if _, ok := s[a[i].Column]; !ok {
			return false
		}
	}
	return true
}
