package filter

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidSchema is returned when a field or metric definition is malformed.
	ErrInvalidSchema = errors.New("invalid filter schema")
	// ErrUnknownField is returned when a metric, sort or facet references a field the schema lacks.
	ErrUnknownField = errors.New("unknown field")
	// ErrNotNumeric is returned when a numeric operation targets a field without a numeric accessor.
	ErrNotNumeric = errors.New("field is not numeric")
	// ErrUnknownKey is returned by Validate under RejectUnknownKeys.
	ErrUnknownKey = errors.New("unknown filter key")
)

// Field describes one filterable attribute of T.
//
// Value resolves a stored or derived categorical value compared by exact equality. Number resolves
// a numeric value; when Value is nil the decimal form of Number is used for equality. Match, when
// set, replaces equality with a caller supplied predicate. Values listed in Any never constrain.
type Field[T any] struct {
	Key    string
	Value  func(T) string
	Number func(T) int
	Match  func(T, string) bool
	Any    []string
}

// Categorical builds a field compared by exact string equality.
func Categorical[T any](key string, value func(T) string) Field[T] {
	return Field[T]{Key: key, Value: value}
}

// Numeric builds a field backed by an integer accessor.
func Numeric[T any](key string, number func(T) int) Field[T] {
	return Field[T]{Key: key, Number: number}
}

// Predicate builds a field whose criterion is evaluated by match.
func Predicate[T any](key string, match func(T, string) bool) Field[T] {
	return Field[T]{Key: key, Match: match}
}

// WithAny marks values that behave like an empty criterion for this field.
func (f Field[T]) WithAny(values ...string) Field[T] {
	f.Any = append(append([]string(nil), f.Any...), values...)
	return f
}

func (f Field[T]) passThrough(value string) bool {
	if value == "" {
		return true
	}
	for _, v := range f.Any {
		if v == value {
			return true
		}
	}
	return false
}

func (f Field[T]) matches(record T, value string) bool {
	if f.Match != nil {
		return f.Match(record, value)
	}
	return f.resolve(record) == value
}

func (f Field[T]) resolve(record T) string {
	if f.Value != nil {
		return f.Value(record)
	}
	if f.Number != nil {
		return strconv.Itoa(f.Number(record))
	}
	return ""
}

// Schema is the set of fields known for one record type.
type Schema[T any] struct {
	fields map[string]Field[T]
	keys   []string
}

// NewSchema validates the field definitions and indexes them by key.
func NewSchema[T any](fields ...Field[T]) (*Schema[T], error) {
	s := &Schema[T]{fields: make(map[string]Field[T], len(fields))}
	for _, f := range fields {
		if f.Key == "" {
			return nil, fmt.Errorf("%w: field key is empty", ErrInvalidSchema)
		}
		if f.Value == nil && f.Number == nil && f.Match == nil {
			return nil, fmt.Errorf("%w: field %q has no accessor", ErrInvalidSchema, f.Key)
		}
		if _, exists := s.fields[f.Key]; exists {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, f.Key)
		}
		s.fields[f.Key] = f
		s.keys = append(s.keys, f.Key)
	}
	return s, nil
}

// Keys lists field keys in declaration order.
func (s *Schema[T]) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Has reports whether the schema declares key.
func (s *Schema[T]) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

func (s *Schema[T]) field(key string) (Field[T], bool) {
	f, ok := s.fields[key]
	return f, ok
}
