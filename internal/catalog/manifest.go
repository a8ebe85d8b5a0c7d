package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/electwix/sqlvet/internal/source"
)

// manifestColumn is one column entry of a JSON or YAML manifest.
type manifestColumn struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable *bool  `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

type manifestTable struct {
	Columns []manifestColumn `json:"columns" yaml:"columns"`
}

func (m manifestTable) toTable(name string) (*Table, error) {
	cols := make([]Column, 0, len(m.Columns))
	for i, c := range m.Columns {
		if c.Name == "" {
			return nil, fmt.Errorf("table %s: column %d has no name", name, i+1)
		}
		nullable := true
		if c.Nullable != nil {
			nullable = *c.Nullable
		}
		cols = append(cols, Column{Name: c.Name, Type: c.Type, Nullable: nullable})
	}
	return NewTable(name, cols...)
}

// decodeJSON reads {"table": {"columns": [...]}}. Tables are added in sorted
// key order so loading is deterministic.
func decodeJSON(path string, data []byte, b *builder) error {
	var doc map[string]manifestTable
	if err := json.Unmarshal(data, &doc); err != nil {
		return &LoadError{Path: path, Pos: jsonErrorPos(data, err), Err: err}
	}
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t, err := doc[name].toTable(name)
		if err != nil {
			return &LoadError{Path: path, Err: err}
		}
		if err := b.add(t); err != nil {
			return &LoadError{Path: path, Err: err}
		}
	}
	return nil
}

func jsonErrorPos(data []byte, err error) source.Position {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return source.NewLineIndex(data).Position(int(syntaxErr.Offset))
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return source.NewLineIndex(data).Position(int(typeErr.Offset))
	}
	return source.Position{}
}

// decodeYAML reads the same shape as JSON. The document is walked as a node
// tree so tables keep their declaration order and errors carry a line.
func decodeYAML(path string, data []byte, b *builder) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return &LoadError{Path: path, Err: err}
	}
	if root.Kind == 0 {
		// Empty document.
		return nil
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return &LoadError{Path: path, Pos: yamlPos(doc), Err: errors.New("expected a mapping of table names")}
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		var mt manifestTable
		if err := value.Decode(&mt); err != nil {
			return &LoadError{Path: path, Pos: yamlPos(value), Err: fmt.Errorf("table %s: %w", key.Value, err)}
		}
		t, err := mt.toTable(key.Value)
		if err != nil {
			return &LoadError{Path: path, Pos: yamlPos(key), Err: err}
		}
		if err := b.add(t); err != nil {
			return &LoadError{Path: path, Pos: yamlPos(key), Err: err}
		}
	}
	return nil
}

func yamlPos(n *yaml.Node) source.Position {
	if n == nil || n.Line == 0 {
		return source.Position{}
	}
	return source.Position{Line: n.Line, Column: n.Column - 1}
}

// Encode writes the catalog as a JSON or YAML manifest. Other formats are
// rejected.
func Encode(w io.Writer, c *Catalog, format Format) error {
	switch format {
	case FormatJSON:
		doc := make(map[string]manifestTable, c.Len())
		for _, t := range c.Tables() {
			doc[t.Name] = manifestFromTable(t)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		// A mapping node keeps the catalog's table order in the output.
		doc := &yaml.Node{Kind: yaml.MappingNode}
		for _, t := range c.Tables() {
			var value yaml.Node
			if err := value.Encode(manifestFromTable(t)); err != nil {
				return fmt.Errorf("encode table %s: %w", t.Name, err)
			}
			doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: t.Name}, &value)
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err := w.Write(buf.Bytes())
		return err
	default:
		return fmt.Errorf("cannot encode catalog as %s", format)
	}
}

func manifestFromTable(t *Table) manifestTable {
	cols := make([]manifestColumn, 0, len(t.Columns))
	for _, c := range t.Columns {
		nullable := c.Nullable
		cols = append(cols, manifestColumn{Name: c.Name, Type: c.Type, Nullable: &nullable})
	}
	return manifestTable{Columns: cols}
}
