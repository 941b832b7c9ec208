package db

import (
	"fmt"
	"strconv"
	"strings"
)

// Bind styles per driver. Engine SQL is written in the $N style; Rebind
// translates for drivers that want something else.
const (
	BindDollar   = iota // postgres ($N passes through)
	BindQuestion        // mysql, sqlite (modernc treats $N as named params)
	BindAtP             // sqlserver (@pN)
)

// BindStyle returns the bind style for a database/sql driver name.
func BindStyle(driver string) int {
	switch strings.ToLower(driver) {
	case "mysql", "sqlite":
		return BindQuestion
	case "sqlserver", "mssql":
		return BindAtP
	default:
		return BindDollar
	}
}

// Rebind rewrites $1..$N placeholders in query to the given bind style.
// Placeholders inside single-quoted string literals are left untouched.
func Rebind(style int, query string) string {
	if style == BindDollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if c != '$' || inString {
			b.WriteByte(c)
			continue
		}
		// Collect the ordinal after '$'.
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 { // bare '$', not a placeholder
			b.WriteByte(c)
			continue
		}
		switch style {
		case BindQuestion:
			b.WriteByte('?')
		case BindAtP:
			b.WriteString("@p")
			b.WriteString(query[i+1 : j])
		}
		i = j - 1
	}
	return b.String()
}

// PageClause returns the driver's pagination suffix for a query that already
// carries an ORDER BY. SQL Server has no LIMIT; it pages with OFFSET/FETCH
// (which requires the ORDER BY the batch queries carry anyway). limit <= 0
// means no pagination.
func PageClause(driver string, limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	switch strings.ToLower(driver) {
	case "sqlserver", "mssql":
		return fmt.Sprintf(" OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
	default:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
}

// Placeholders returns "$start, $start+1, ..." for n values, used to build
// WHERE ... IN (...) clauses with a previously loaded key batch.
func Placeholders(start, n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(start + i))
	}
	return b.String()
}
