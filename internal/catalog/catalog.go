// Package catalog models the static schema that SQL is validated against.
//
// A Catalog is built once per run from static definition files and is
// read-only afterwards, so one instance may be shared by concurrent checks.
// Lookups are case-insensitive; names keep their declared casing for display
// and suggestions.
package catalog

import (
	"fmt"
	"strings"

	"github.com/electwix/sqlvet/internal/source"
)

// Column describes one table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Table is a named, ordered set of columns.
type Table struct {
	Name    string
	Columns []Column
	index   map[string]int
}

// NewTable builds a table, rejecting empty and duplicate column names.
func NewTable(name string, columns ...Column) (*Table, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}
	t := &Table{Name: name, index: make(map[string]int, len(columns))}
	for _, col := range columns {
		if err := t.addColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) addColumn(col Column) error {
	if strings.TrimSpace(col.Name) == "" {
		return fmt.Errorf("table %s: column name is empty", t.Name)
	}
	key := fold(col.Name)
	if _, exists := t.index[key]; exists {
		return fmt.Errorf("table %s: duplicate column %s", t.Name, col.Name)
	}
	t.index[key] = len(t.Columns)
	t.Columns = append(t.Columns, col)
	return nil
}

func (t *Table) dropColumn(name string) bool {
	idx, ok := t.index[fold(name)]
	if !ok {
		return false
	}
	t.Columns = append(t.Columns[:idx], t.Columns[idx+1:]...)
	t.reindex()
	return true
}

func (t *Table) renameColumn(from, to string) error {
	idx, ok := t.index[fold(from)]
	if !ok {
		return fmt.Errorf("table %s: unknown column %s", t.Name, from)
	}
	if other, exists := t.index[fold(to)]; exists && other != idx {
		return fmt.Errorf("table %s: duplicate column %s", t.Name, to)
	}
	t.Columns[idx].Name = to
	t.reindex()
	return nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, col := range t.Columns {
		t.index[fold(col.Name)] = i
	}
}

// LookupColumn finds a column by name, ignoring case.
func (t *Table) LookupColumn(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	idx, ok := t.index[fold(name)]
	if !ok {
		return Column{}, false
	}
	return t.Columns[idx], true
}

// ColumnNames returns the declared column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return names
}

// Catalog is the collection of known tables.
type Catalog struct {
	tables []*Table
	index  map[string]*Table
}

// New builds a catalog from tables in declaration order. Duplicate table names
// are rejected.
func New(tables ...*Table) (*Catalog, error) {
	b := newBuilder()
	for _, t := range tables {
		if t == nil {
			continue
		}
		if err := b.add(t); err != nil {
			return nil, err
		}
	}
	return b.build(), nil
}

// LookupTable finds a table by name, ignoring case. Schema-qualified names
// (public.users) fall back to the unqualified name.
func (c *Catalog) LookupTable(name string) (*Table, bool) {
	if c == nil {
		return nil, false
	}
	if t, ok := c.index[fold(name)]; ok {
		return t, true
	}
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		t, ok := c.index[fold(name[dot+1:])]
		return t, ok
	}
	return nil, false
}

// LookupColumn returns the declared type of table.column.
func (c *Catalog) LookupColumn(table, column string) (string, bool) {
	t, ok := c.LookupTable(table)
	if !ok {
		return "", false
	}
	col, ok := t.LookupColumn(column)
	if !ok {
		return "", false
	}
	return col.Type, true
}

// Tables returns the tables in declaration order.
func (c *Catalog) Tables() []*Table {
	if c == nil {
		return nil
	}
	return append([]*Table(nil), c.tables...)
}

// TableNames returns the table names in declaration order.
func (c *Catalog) TableNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.tables))
	for _, t := range c.tables {
		names = append(names, t.Name)
	}
	return names
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tables)
}

// LoadError reports a schema source that could not be read or understood.
// It is fatal for a validation run.
type LoadError struct {
	Path string
	// Pos is the offending location when known; zero otherwise.
	Pos source.Position
	Err error
}

func (e *LoadError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("schema %s:%d:%d: %v", e.Path, e.Pos.Line, e.Pos.Column, e.Err)
	}
	return fmt.Sprintf("schema %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// builder accumulates tables while sources are loaded. Later sources may alter
// or drop tables declared by earlier ones, as migrations do.
type builder struct {
	tables []*Table
	index  map[string]*Table
}

func newBuilder() *builder {
	return &builder{index: make(map[string]*Table)}
}

func (b *builder) add(t *Table) error {
	key := fold(t.Name)
	if _, exists := b.index[key]; exists {
		return fmt.Errorf("duplicate table %s", t.Name)
	}
	if t.index == nil {
		t.reindex()
	}
	b.index[key] = t
	b.tables = append(b.tables, t)
	return nil
}

func (b *builder) get(name string) (*Table, bool) {
	t, ok := b.index[fold(name)]
	return t, ok
}

func (b *builder) drop(name string) bool {
	key := fold(name)
	t, ok := b.index[key]
	if !ok {
		return false
	}
	delete(b.index, key)
	for i, candidate := range b.tables {
		if candidate == t {
			b.tables = append(b.tables[:i], b.tables[i+1:]...)
			break
		}
	}
	return true
}

func (b *builder) rename(from, to string) error {
	t, ok := b.get(from)
	if !ok {
		return fmt.Errorf("unknown table %s", from)
	}
	if other, exists := b.get(to); exists && other != t {
		return fmt.Errorf("duplicate table %s", to)
	}
	delete(b.index, fold(from))
	t.Name = to
	b.index[fold(to)] = t
	return nil
}

func (b *builder) build() *Catalog {
	c := &Catalog{tables: append([]*Table(nil), b.tables...), index: make(map[string]*Table, len(b.tables))}
	for _, t := range c.tables {
		c.index[fold(t.Name)] = t
	}
	return c
}

func fold(name string) string {
	return strings.ToLower(name)
}
