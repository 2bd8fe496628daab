// Package schema holds the feature schema the classifier was trained on and
// builds feature rows from the eight patient summary inputs.
package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptySchema = errors.New("feature schema has no columns")

// Schema is the ordered column set fixed at training time. It is immutable
// after parsing and safe for concurrent use.
type Schema struct {
	names []string
	index map[string]int
}

func New(names []string) (*Schema, error) {
	if len(names) == 0 {
		return nil, ErrEmptySchema
	}

	s := &Schema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		s.names[i] = name
		s.index[name] = i
	}

	return s, nil
}

// Parse reads only the header row of a delimited table.
func Parse(r io.Reader) (*Schema, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptySchema
		}
		return nil, fmt.Errorf("failed to read schema header: %w", err)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	return New(header)
}

func (s *Schema) Len() int {
	return len(s.names)
}

// Names returns a copy of the ordered column names.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}
