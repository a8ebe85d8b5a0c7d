// Package introspect reads the tables and columns of a live database into a
// catalog, so that a static schema manifest can be generated from it.
// Validation itself never connects to a database.
package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/electwix/sqlvet/internal/catalog"
	"github.com/electwix/sqlvet/internal/logging"
)

// Dialect names a supported database.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ErrUnsupportedDSN is returned for connection strings of unknown databases.
var ErrUnsupportedDSN = errors.New("unsupported connection string (want postgres://, mysql://, sqlite:// or file:)")

// Source is a parsed connection string.
type Source struct {
	Dialect Dialect
	// DSN is the connection string in the form the driver expects.
	DSN string
	// Schema is the namespace whose tables are read: the PostgreSQL schema
	// or the MySQL database.
	Schema string
}

// ParseDSN recognizes the database of dsn and converts it for its driver.
func ParseDSN(dsn string) (Source, error) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return Source{}, fmt.Errorf("parse postgres dsn: %w", err)
		}
		schema := "public"
		if path := cfg.RuntimeParams["search_path"]; path != "" {
			schema, _, _ = strings.Cut(path, ",")
			schema = strings.TrimSpace(schema)
		}
		return Source{Dialect: Postgres, DSN: dsn, Schema: schema}, nil

	case strings.HasPrefix(lower, "mysql://"):
		u, err := url.Parse(dsn)
		if err != nil {
			return Source{}, fmt.Errorf("parse mysql dsn: %w", err)
		}
		var auth string
		if u.User != nil {
			auth = u.User.Username()
			if pass, ok := u.User.Password(); ok {
				auth += ":" + pass
			}
			auth += "@"
		}
		raw := fmt.Sprintf("%stcp(%s)/%s", auth, u.Host, strings.TrimPrefix(u.Path, "/"))
		if u.RawQuery != "" {
			raw += "?" + u.RawQuery
		}
		cfg, err := mysql.ParseDSN(raw)
		if err != nil {
			return Source{}, fmt.Errorf("parse mysql dsn: %w", err)
		}
		if cfg.DBName == "" {
			return Source{}, errors.New("parse mysql dsn: missing database name")
		}
		return Source{Dialect: MySQL, DSN: raw, Schema: cfg.DBName}, nil

	case strings.HasPrefix(lower, "sqlite://"):
		path := dsn[len("sqlite://"):]
		if path == "" {
			return Source{}, errors.New("parse sqlite dsn: missing file path")
		}
		return Source{Dialect: SQLite, DSN: path, Schema: "main"}, nil

	case strings.HasPrefix(lower, "file:"):
		return Source{Dialect: SQLite, DSN: dsn, Schema: "main"}, nil
	}
	return Source{}, ErrUnsupportedDSN
}

// Open connects to the database of src and puts the session in read-only
// mode. The pool is limited to that one session.
func Open(ctx context.Context, src Source) (*sql.DB, error) {
	var db *sql.DB
	switch src.Dialect {
	case Postgres:
		cfg, err := pgx.ParseConfig(src.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		db = stdlib.OpenDB(*cfg)
	case MySQL:
		cfg, err := mysql.ParseDSN(src.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db = sql.OpenDB(connector)
	case SQLite:
		var err error
		db, err = sql.Open("sqlite", src.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	default:
		return nil, fmt.Errorf("open: unknown dialect %q", src.Dialect)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to %s: %w", src.Dialect, err)
	}
	if _, err := db.ExecContext(ctx, adapterFor(src.Dialect).readOnly()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable read-only session: %w", err)
	}
	return db, nil
}

// Catalog reads every table and view of src.Schema.
func Catalog(ctx context.Context, db *sql.DB, src Source, logger logging.Logger) (*catalog.Catalog, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With("dialect", src.Dialect, "schema", src.Schema)
	a := adapterFor(src.Dialect)
	if a == nil {
		return nil, fmt.Errorf("introspect: unknown dialect %q", src.Dialect)
	}

	names, err := listTables(ctx, db, a, src.Schema)
	if err != nil {
		return nil, err
	}
	tables := make([]*catalog.Table, 0, len(names))
	for _, name := range names {
		columns, err := readColumns(ctx, db, a, src.Schema, name)
		if err != nil {
			return nil, err
		}
		table, err := catalog.NewTable(name, columns...)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		logger.Debug("introspected table", "table", name, "columns", len(columns))
		tables = append(tables, table)
	}
	return catalog.New(tables...)
}

// Load parses dsn, connects, and reads its catalog.
func Load(ctx context.Context, dsn string, logger logging.Logger) (*catalog.Catalog, error) {
	src, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := Open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return Catalog(ctx, db, src, logger)
}

func listTables(ctx context.Context, db *sql.DB, a adapter, schema string) ([]string, error) {
	query, args := a.tablesQuery(schema)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

func readColumns(ctx context.Context, db *sql.DB, a adapter, schema, table string) ([]catalog.Column, error) {
	query, args := a.columnsQuery(schema, table)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []catalog.Column
	for rows.Next() {
		col, err := a.scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	return columns, nil
}
