package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrSchema           = errors.New("schema error")
	ErrParse            = errors.New("parse error")
	ErrInsufficientData = errors.New("insufficient data")
)

// SchemaError reports columns that are missing, duplicated or otherwise unusable.
type SchemaError struct {
	Missing   []string
	Duplicate []string
	Column    string // set for single-column problems such as an unknown target
	Reason    string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate columns: "+strings.Join(e.Duplicate, ", "))
	}
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column %q: %s", e.Column, e.Reason))
	} else if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return "schema: " + strings.Join(parts, "; ")
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ParseError reports a malformed cell or row. Line is the 1-based line number in
// the source file, counting the header as line 1.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse: line %d", e.Line)
	if e.Column != "" {
		msg += fmt.Sprintf(", column %q", e.Column)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(", value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// InsufficientDataError reports a statistic requested on too few samples.
type InsufficientDataError struct {
	Columns []string
	Samples int
	Need    int
	Reason  string
}

func (e *InsufficientDataError) Error() string {
	msg := fmt.Sprintf("insufficient data for %s: %d samples, need %d",
		strings.Join(e.Columns, "/"), e.Samples, e.Need)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }
