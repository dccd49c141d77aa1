// Package search builds relevance-ranked post queries.
package search

import (
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind identifies where a clause is rendered.
type Kind int

const (
	KindSelect Kind = iota
	KindJoin
	KindWhere
	KindOrder
)

// Clause is one SQL fragment with its positional arguments.
// Fragments use ? placeholders; arguments are never interpolated.
type Clause struct {
	Kind Kind
	SQL  string
	Args []any
}

// Query accumulates typed clauses in insertion order.
type Query struct {
	Intent  Intent
	Limit   int
	Offset  int
	table   string
	clauses []Clause
}

func newQuery(table string) *Query {
	return &Query{table: table}
}

func (q *Query) add(kind Kind, sql string, args ...any) *Query {
	q.clauses = append(q.clauses, Clause{Kind: kind, SQL: sql, Args: args})
	return q
}

// Select prepends columns to the projection.
func (q *Query) Select(sql string, args ...any) *Query {
	c := Clause{Kind: KindSelect, SQL: sql, Args: args}
	q.clauses = append([]Clause{c}, q.clauses...)
	return q
}

// Join adds a join fragment.
func (q *Query) Join(sql string, args ...any) *Query { return q.add(KindJoin, sql, args...) }

// Where adds an AND-ed predicate.
func (q *Query) Where(sql string, args ...any) *Query { return q.add(KindWhere, sql, args...) }

// OrderBy adds an ordering term.
func (q *Query) OrderBy(sql string, args ...any) *Query { return q.add(KindOrder, sql, args...) }

// Clauses returns clauses of one kind in insertion order.
func (q *Query) Clauses(kind Kind) []Clause {
	var out []Clause
	for _, c := range q.clauses {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Args returns every argument in the order SQL renders them.
func (q *Query) Args() []any {
	var args []any
	for _, kind := range []Kind{KindSelect, KindJoin, KindWhere, KindOrder} {
		for _, c := range q.Clauses(kind) {
			args = append(args, c.Args...)
		}
	}
	return args
}

// SQL renders the statement with numbered PostgreSQL placeholders.
func (q *Query) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if sel := q.Clauses(KindSelect); len(sel) > 0 {
		b.WriteString(joinSQL(sel, ", "))
	} else {
		b.WriteString(q.table + ".*")
	}
	b.WriteString(" FROM " + q.table)
	for _, j := range q.Clauses(KindJoin) {
		b.WriteString(" " + j.SQL)
	}
	if where := q.Clauses(KindWhere); len(where) > 0 {
		b.WriteString(" WHERE " + joinSQL(where, " AND "))
	}
	if order := q.Clauses(KindOrder); len(order) > 0 {
		b.WriteString(" ORDER BY " + joinSQL(order, ", "))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(q.Offset))
	}
	return numberPlaceholders(b.String())
}

// Apply copies the clauses onto a gorm statement.
func (q *Query) Apply(db *gorm.DB) *gorm.DB {
	if sel := q.Clauses(KindSelect); len(sel) > 0 {
		db = db.Select(joinSQL(sel, ", "), collectArgs(sel)...)
	}
	for _, j := range q.Clauses(KindJoin) {
		db = db.Joins(j.SQL, j.Args...)
	}
	for _, w := range q.Clauses(KindWhere) {
		db = db.Where(w.SQL, w.Args...)
	}
	for _, o := range q.Clauses(KindOrder) {
		if len(o.Args) == 0 {
			db = db.Order(o.SQL)
			continue
		}
		db = db.Order(clause.Expr{SQL: o.SQL, Vars: o.Args})
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	return db
}

func joinSQL(cs []Clause, sep string) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.SQL
	}
	if sep == " AND " && len(parts) > 1 {
		for i, p := range parts {
			parts[i] = "(" + p + ")"
		}
	}
	return strings.Join(parts, sep)
}

func collectArgs(cs []Clause) []any {
	var args []any
	for _, c := range cs {
		args = append(args, c.Args...)
	}
	return args
}

func numberPlaceholders(sql string) string {
	var b strings.Builder
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
