package diagnostics

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/electwix/sqlvet/internal/source"
)

// jsonIssue is one entry of the "errors" array. The field names are a
// contract with editor integrations and must not change.
type jsonIssue struct {
	File       string  `json:"file,omitempty"`
	Line       int     `json:"line"`
	Column     int     `json:"column"`
	Message    string  `json:"message"`
	Suggestion *string `json:"suggestion"`
}

type document struct {
	Errors []jsonIssue `json:"errors"`
}

func toJSON(path string, issue Issue) jsonIssue {
	return jsonIssue{
		File:       path,
		Line:       issue.Pos.Line,
		Column:     issue.Pos.Column,
		Message:    issue.Message,
		Suggestion: issue.Suggestion,
	}
}

// Marshal renders issues as {"errors":[...]}. No issues renders
// {"errors":[]}.
func Marshal(issues []Issue) ([]byte, error) {
	doc := document{Errors: make([]jsonIssue, 0, len(issues))}
	for _, issue := range issues {
		doc.Errors = append(doc.Errors, toJSON("", issue))
	}
	return json.Marshal(doc)
}

// Encode writes the JSON document for issues followed by a newline.
func Encode(w io.Writer, issues []Issue) error {
	data, err := Marshal(issues)
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// EncodeFiles writes one document for several files; every entry carries the
// path of its file under "file".
func EncodeFiles(w io.Writer, files []FileIssues) error {
	doc := document{Errors: []jsonIssue{}}
	for _, f := range files {
		for _, issue := range f.Issues {
			doc.Errors = append(doc.Errors, toJSON(f.Path, issue))
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Decode reads a document written by Encode. The kind is not part of the
// contract, so decoded issues have KindUnspecified.
func Decode(r io.Reader) ([]Issue, error) {
	files, err := DecodeFiles(r)
	if err != nil {
		return nil, err
	}
	var issues []Issue
	for _, f := range files {
		issues = append(issues, f.Issues...)
	}
	return issues, nil
}

// DecodeFiles reads a document and groups its entries by "file", in order of
// first appearance. Entries without a file share the group with an empty path.
func DecodeFiles(r io.Reader) ([]FileIssues, error) {
	var doc struct {
		Errors *[]jsonIssue `json:"errors"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	if doc.Errors == nil {
		return nil, fmt.Errorf("decode issues: missing \"errors\" field")
	}

	var files []FileIssues
	index := make(map[string]int)
	for i, entry := range *doc.Errors {
		if entry.Line < 1 || entry.Column < 0 {
			return nil, fmt.Errorf("decode issues: entry %d has invalid position %d:%d", i, entry.Line, entry.Column)
		}
		idx, ok := index[entry.File]
		if !ok {
			idx = len(files)
			index[entry.File] = idx
			files = append(files, FileIssues{Path: entry.File})
		}
		files[idx].Issues = append(files[idx].Issues, Issue{
			Message:    entry.Message,
			Pos:        source.Position{Line: entry.Line, Column: entry.Column},
			Suggestion: entry.Suggestion,
		})
	}
	return files, nil
}
