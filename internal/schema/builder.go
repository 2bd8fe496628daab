package schema

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFeatureName = errors.New("unknown feature name")

// UnknownFeatureError lists every expected input column the schema lacks.
type UnknownFeatureError struct {
	Names []string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("%s: schema is missing %s", ErrUnknownFeatureName, strings.Join(e.Names, ", "))
}

func (e *UnknownFeatureError) Unwrap() error {
	return ErrUnknownFeatureName
}

// Row is a single feature row whose columns match a Schema in identity and order.
type Row struct {
	Columns []string
	Values  []float64
}

func (r Row) Len() int {
	return len(r.Values)
}

func (r Row) Value(name string) (float64, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return 0, false
}

// Build zero-fills a row over every schema column and writes the eight inputs
// into their slots by name.
func Build(s *Schema, in PatientSummary) (Row, error) {
	if s == nil || s.Len() == 0 {
		return Row{}, ErrEmptySchema
	}

	fields := in.Fields()

	var missing []string
	for _, f := range fields {
		if _, ok := s.Index(f.Name); !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return Row{}, &UnknownFeatureError{Names: missing}
	}

	row := Row{
		Columns: s.Names(),
		Values:  make([]float64, s.Len()),
	}
	for _, f := range fields {
		i, _ := s.Index(f.Name)
		row.Values[i] = f.Value
	}

	return row, nil
}
