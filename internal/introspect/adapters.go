package introspect

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/electwix/sqlvet/internal/catalog"
)

// adapter holds the catalog queries of one database.
type adapter interface {
	// readOnly returns the statement that makes the session read-only.
	readOnly() string
	// tablesQuery lists table and view names in declaration or name order.
	tablesQuery(schema string) (string, []any)
	// columnsQuery lists the columns of one table in ordinal order.
	columnsQuery(schema, table string) (string, []any)
	scanColumn(rows *sql.Rows) (catalog.Column, error)
}

func adapterFor(d Dialect) adapter {
	switch d {
	case Postgres:
		return postgresAdapter{}
	case MySQL:
		return mysqlAdapter{}
	case SQLite:
		return sqliteAdapter{}
	default:
		return nil
	}
}

type postgresAdapter struct{}

func (postgresAdapter) readOnly() string {
	return "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"
}

func (postgresAdapter) tablesQuery(schema string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`, []any{schema}
}

func (postgresAdapter) columnsQuery(schema, table string) (string, []any) {
	return `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, []any{schema, table}
}

func (postgresAdapter) scanColumn(rows *sql.Rows) (catalog.Column, error) {
	return scanInformationSchema(rows)
}

type mysqlAdapter struct{}

func (mysqlAdapter) readOnly() string {
	return "SET SESSION TRANSACTION READ ONLY"
}

func (mysqlAdapter) tablesQuery(schema string) (string, []any) {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`, []any{schema}
}

func (mysqlAdapter) columnsQuery(schema, table string) (string, []any) {
	return `SELECT column_name, column_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{schema, table}
}

func (mysqlAdapter) scanColumn(rows *sql.Rows) (catalog.Column, error) {
	return scanInformationSchema(rows)
}

func scanInformationSchema(rows *sql.Rows) (catalog.Column, error) {
	var col catalog.Column
	var nullable string
	if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
		return col, err
	}
	col.Nullable = strings.EqualFold(nullable, "YES")
	return col, nil
}

type sqliteAdapter struct{}

func (sqliteAdapter) readOnly() string {
	return "PRAGMA query_only = ON"
}

// SQLite has no information_schema.
func (sqliteAdapter) tablesQuery(string) (string, []any) {
	return `SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`, nil
}

// PRAGMA table_info takes no placeholders, so the name is quoted inline.
func (sqliteAdapter) columnsQuery(_, table string) (string, []any) {
	return fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(table, "'", "''")), nil
}

// scanColumn reads a table_info row: cid, name, type, notnull, dflt_value, pk.
func (sqliteAdapter) scanColumn(rows *sql.Rows) (catalog.Column, error) {
	var (
		cid     int
		col     catalog.Column
		notNull int
		dflt    sql.NullString
		pk      int
	)
	if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
		return col, err
	}
	col.Nullable = notNull == 0 && pk == 0
	return col, nil
}
