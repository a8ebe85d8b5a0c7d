package validator

import (
	"slices"
	"strings"

	"github.com/electwix/sqlvet/internal/catalog"
	"github.com/electwix/sqlvet/internal/types"
)

type scopeColumn struct {
	name string
	typ  types.Type
}

// scopeEntry is one table visible to a query: a catalog table, a CTE or a
// derived table. Opaque entries have unknown columns and accept any name.
type scopeEntry struct {
	name        string
	table       string
	columns     []scopeColumn
	columnIndex map[string]int
	opaque      bool
}

func newScopeEntry(name, table string) *scopeEntry {
	return &scopeEntry{name: name, table: table, columnIndex: make(map[string]int)}
}

func opaqueEntry(name, table string) *scopeEntry {
	e := newScopeEntry(name, table)
	e.opaque = true
	return e
}

func tableEntry(name string, t *catalog.Table) *scopeEntry {
	e := newScopeEntry(name, t.Name)
	for _, col := range t.Columns {
		e.add(scopeColumn{name: col.Name, typ: types.Classify(col.Type)})
	}
	return e
}

// add appends a column unless one with the same name is already present.
func (e *scopeEntry) add(col scopeColumn) {
	key := fold(col.name)
	if _, exists := e.columnIndex[key]; exists {
		return
	}
	e.columnIndex[key] = len(e.columns)
	e.columns = append(e.columns, col)
}

func (e *scopeEntry) column(name string) (scopeColumn, bool) {
	if idx, ok := e.columnIndex[fold(name)]; ok {
		return e.columns[idx], true
	}
	if e.opaque {
		return scopeColumn{name: name}, true
	}
	return scopeColumn{}, false
}

func (e *scopeEntry) hasColumn(name string) bool {
	_, ok := e.column(name)
	return ok
}

func (e *scopeEntry) columnNames() []string {
	names := make([]string, 0, len(e.columns))
	for _, col := range e.columns {
		names = append(names, col.name)
	}
	return names
}

// renamed returns a copy of e referred to by name.
func (e *scopeEntry) renamed(name string) *scopeEntry {
	c := *e
	c.name = name
	return &c
}

type scopeLookupResult int

const (
	scopeLookupOK scopeLookupResult = iota
	scopeLookupAliasNotFound
	scopeLookupColumnNotFound
	scopeLookupAmbiguous
)

type scopeLookup struct {
	result     scopeLookupResult
	column     scopeColumn
	entry      *scopeEntry
	candidates []*scopeEntry
}

// queryScope holds the names visible to one query level. Lookups that fail
// in a scope continue in its parent, which is how correlated subqueries see
// the enclosing query.
type queryScope struct {
	parent  *queryScope
	entries []*scopeEntry
	ctes    map[string]*scopeEntry
	// merged holds columns joined with USING or NATURAL; an unqualified
	// reference to them is not ambiguous.
	merged map[string]bool

	aliases        []scopeColumn
	aliasIndex     map[string]int
	aliasesVisible bool
}

func newScope(parent *queryScope) *queryScope {
	return &queryScope{
		parent:     parent,
		ctes:       make(map[string]*scopeEntry),
		merged:     make(map[string]bool),
		aliasIndex: make(map[string]int),
	}
}

func (s *queryScope) add(e *scopeEntry) {
	s.entries = append(s.entries, e)
}

func (s *queryScope) addAlias(col scopeColumn) {
	key := fold(col.name)
	if _, exists := s.aliasIndex[key]; exists {
		return
	}
	s.aliasIndex[key] = len(s.aliases)
	s.aliases = append(s.aliases, col)
}

func (s *queryScope) alias(name string) (scopeColumn, bool) {
	if !s.aliasesVisible {
		return scopeColumn{}, false
	}
	idx, ok := s.aliasIndex[fold(name)]
	if !ok {
		return scopeColumn{}, false
	}
	return s.aliases[idx], true
}

// lookupCTE finds a WITH entry visible from s.
func (s *queryScope) lookupCTE(name string) (*scopeEntry, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if e, ok := scope.ctes[fold(name)]; ok {
			return e, true
		}
	}
	return nil, false
}

func (s *queryScope) cteNames() []string {
	var names []string
	for scope := s; scope != nil; scope = scope.parent {
		for _, e := range scope.ctes {
			names = append(names, e.table)
		}
	}
	// Map order is random; suggestions must be deterministic.
	slices.Sort(names)
	return names
}

// entry finds a table by the name it is referred to within the query.
// Schema-qualified qualifiers fall back to their last part.
func (s *queryScope) entry(qualifier string) (*scopeEntry, bool) {
	key := fold(qualifier)
	short := key
	if dot := strings.LastIndexByte(key, '.'); dot >= 0 {
		short = key[dot+1:]
	}
	for scope := s; scope != nil; scope = scope.parent {
		for _, e := range scope.entries {
			if fold(e.name) == key {
				return e, true
			}
		}
		if short != key {
			for _, e := range scope.entries {
				if fold(e.name) == short {
					return e, true
				}
			}
		}
	}
	return nil, false
}

func (s *queryScope) lookupQualified(qualifier, column string) scopeLookup {
	e, ok := s.entry(qualifier)
	if !ok {
		return scopeLookup{result: scopeLookupAliasNotFound}
	}
	col, ok := e.column(column)
	if !ok {
		return scopeLookup{result: scopeLookupColumnNotFound, entry: e}
	}
	return scopeLookup{result: scopeLookupOK, column: col, entry: e}
}

// lookup resolves an unqualified column. The nearest scope with a match
// wins; an opaque table in a scope stops the search with an untyped match.
func (s *queryScope) lookup(column string) scopeLookup {
	for scope := s; scope != nil; scope = scope.parent {
		var matches []*scopeEntry
		var found scopeColumn
		opaque := false
		for _, e := range scope.entries {
			if e.opaque {
				opaque = true
				continue
			}
			if col, ok := e.column(column); ok {
				if len(matches) == 0 {
					found = col
				}
				matches = append(matches, e)
			}
		}
		switch {
		case len(matches) == 1:
			return scopeLookup{result: scopeLookupOK, column: found, entry: matches[0]}
		case len(matches) > 1:
			if scope.merged[fold(column)] {
				return scopeLookup{result: scopeLookupOK, column: found, entry: matches[0]}
			}
			return scopeLookup{result: scopeLookupAmbiguous, candidates: matches}
		case opaque:
			return scopeLookup{result: scopeLookupOK, column: scopeColumn{name: column}}
		}
	}
	return scopeLookup{result: scopeLookupColumnNotFound}
}

// hasConcrete reports whether any scope up the chain holds a resolved table.
func (s *queryScope) hasConcrete() bool {
	for scope := s; scope != nil; scope = scope.parent {
		for _, e := range scope.entries {
			if !e.opaque {
				return true
			}
		}
	}
	return false
}

// columnNames lists the columns an unqualified reference could have meant,
// nearest scope first.
func (s *queryScope) columnNames() []string {
	var names []string
	seen := make(map[string]bool)
	addName := func(name string) {
		if key := fold(name); !seen[key] {
			seen[key] = true
			names = append(names, name)
		}
	}
	for _, col := range s.aliases {
		if s.aliasesVisible {
			addName(col.name)
		}
	}
	for scope := s; scope != nil; scope = scope.parent {
		for _, e := range scope.entries {
			for _, col := range e.columns {
				addName(col.name)
			}
		}
	}
	return names
}

func (s *queryScope) refNames() []string {
	var names []string
	for scope := s; scope != nil; scope = scope.parent {
		for _, e := range scope.entries {
			if e.name != "" {
				names = append(names, e.name)
			}
		}
	}
	return names
}

// candidateLabels names the tables of an ambiguous match, using the alias
// when the same table appears twice.
func candidateLabels(entries []*scopeEntry) string {
	count := make(map[string]int, len(entries))
	for _, e := range entries {
		count[fold(e.table)]++
	}
	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		label := e.table
		if count[fold(e.table)] > 1 || label == "" {
			label = e.name
		}
		labels = append(labels, label)
	}
	return strings.Join(labels, ", ")
}

func fold(name string) string {
	return strings.ToLower(name)
}

func lastPart(name string) string {
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		return name[dot+1:]
	}
	return name
}
