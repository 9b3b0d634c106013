package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Key    string // Field name
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("field %q: %s (got %T)", e.Key, e.Reason, e.Value)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}

// Violation is the serializable form of a ValidationError.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Violations flattens err into field/reason pairs suitable for an error payload.
// Errors that are not validation errors are reported under an empty field name.
func Violations(err error) []Violation {
	if err == nil {
		return nil
	}
	errs := ValidationErrors(err)
	if errs == nil {
		errs = []error{err}
	}
	out := make([]Violation, 0, len(errs))
	for _, e := range errs {
		var ve *ValidationError
		if errors.As(e, &ve) {
			out = append(out, Violation{Field: ve.Key, Reason: ve.Reason})
			continue
		}
		out = append(out, Violation{Reason: e.Error()})
	}
	return out
}
