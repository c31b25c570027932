package domain

import "fmt"

// MissingDataError indicates a document lacks data required for
// normalization, for example no usable text or no resolvable location.
type MissingDataError struct {
	Field  string
	Reason string
}

func (e *MissingDataError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("missing data: %s", e.Reason)
	}
	return fmt.Sprintf("missing data in %q: %s", e.Field, e.Reason)
}

// UnsupportedValueError indicates a document carries a value the pipeline
// does not handle, for example an unsupported language.
type UnsupportedValueError struct {
	Field string
	Value string
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported value %q for %q", e.Value, e.Field)
}

// MalformedValueError indicates an input value that could not be parsed,
// for example an unparseable date or an inverted time range.
type MalformedValueError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedValueError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed value %q for %q", e.Value, e.Field)
	}
	return fmt.Sprintf("malformed value %q for %q: %s", e.Value, e.Field, e.Reason)
}
