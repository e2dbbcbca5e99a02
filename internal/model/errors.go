package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable means a ticker or date has no backing price rows.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInsufficientCapital means a sized trade costs more than free cash.
	ErrInsufficientCapital = errors.New("insufficient capital")
	// ErrInvalidSizing means the sizer produced a non-positive quantity.
	ErrInvalidSizing = errors.New("invalid sizing")
	// ErrMalformedInput means an input file is missing required fields. Fatal for the run.
	ErrMalformedInput = errors.New("malformed input")
)

// MalformedInputError locates a MalformedInput failure.
type MalformedInputError struct {
	File   string
	Row    int // 1-based data row, 0 when the problem is the header
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	loc := e.File
	if e.Row > 0 {
		loc = fmt.Sprintf("%s row %d", e.File, e.Row)
	}
	if e.Field != "" {
		return fmt.Sprintf("malformed input: %s: %s: %s", loc, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed input: %s: %s", loc, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }
