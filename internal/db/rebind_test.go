package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name  string
		style int
		in    string
		want  string
	}{
		{"dollar passthrough", BindDollar, "SELECT * FROM t WHERE a = $1 AND b = $2", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"question marks", BindQuestion, "SELECT * FROM t WHERE a = $1 AND b = $2", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"double digit ordinals", BindQuestion, "VALUES ($9, $10, $11)", "VALUES (?, ?, ?)"},
		{"sqlserver named", BindAtP, "WHERE sku = $1 OR code = $2", "WHERE sku = @p1 OR code = @p2"},
		{"literal dollar untouched", BindQuestion, "SELECT '$1' , $1", "SELECT '$1' , ?"},
		{"bare dollar untouched", BindQuestion, "SELECT a$ FROM t WHERE b = $1", "SELECT a$ FROM t WHERE b = ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rebind(tt.style, tt.in))
		})
	}
}

func TestBindStyle(t *testing.T) {
	assert.Equal(t, BindQuestion, BindStyle("mysql"))
	assert.Equal(t, BindAtP, BindStyle("sqlserver"))
	assert.Equal(t, BindAtP, BindStyle("MSSQL"))
	assert.Equal(t, BindQuestion, BindStyle("sqlite"))
	assert.Equal(t, BindDollar, BindStyle("postgres"))
}

func TestPageClause(t *testing.T) {
	assert.Equal(t, " LIMIT 100 OFFSET 200", PageClause("mysql", 100, 200))
	assert.Equal(t, " LIMIT 2 OFFSET 0", PageClause("sqlite", 2, 0))
	assert.Equal(t, " OFFSET 200 ROWS FETCH NEXT 100 ROWS ONLY", PageClause("sqlserver", 100, 200))
	assert.Equal(t, " OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY", PageClause("MSSQL", 5, 0))
	assert.Equal(t, "", PageClause("sqlserver", 0, 10))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", Placeholders(1, 3))
	assert.Equal(t, "$4", Placeholders(4, 1))
	assert.Equal(t, "", Placeholders(1, 0))
}
