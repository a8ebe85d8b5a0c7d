package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is a schema source format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatSQL      Format = "sql"
	FormatManifest Format = "schema"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".sql", ".ddl":
		return FormatSQL, true
	case ".schema":
		return FormatManifest, true
	}
	return "", false
}

// ParseFormat parses a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatSQL, FormatManifest:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown schema format %q", s)
}

// Load reads one schema source.
func Load(path string) (*Catalog, error) {
	return LoadFiles([]string{path})
}

// LoadFiles reads several schema sources in order into one catalog. DDL
// sources may alter or drop tables declared by earlier sources; declaring the
// same table twice is an error.
func LoadFiles(paths []string) (*Catalog, error) {
	if len(paths) == 0 {
		return nil, &LoadError{Err: errors.New("no schema sources")}
	}
	b := newBuilder()
	for _, path := range paths {
		format, ok := FormatFromPath(path)
		if !ok {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported schema file extension %q", filepath.Ext(path))}
		}
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		if err := decodeInto(path, data, format, b); err != nil {
			return nil, err
		}
	}
	return b.build(), nil
}

// Decode reads a schema source from r. name is used in error messages.
func Decode(r io.Reader, name string, format Format) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Path: name, Err: err}
	}
	b := newBuilder()
	if err := decodeInto(name, data, format, b); err != nil {
		return nil, err
	}
	return b.build(), nil
}

func decodeInto(path string, data []byte, format Format, b *builder) error {
	switch format {
	case FormatJSON:
		return decodeJSON(path, data, b)
	case FormatYAML:
		return decodeYAML(path, data, b)
	case FormatSQL:
		return decodeDDL(path, data, b)
	case FormatManifest:
		return decodeManifest(path, data, b)
	}
	return &LoadError{Path: path, Err: fmt.Errorf("unknown schema format %q", format)}
}
