package driven

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidContext is returned when a render context is empty or not a
	// flat mapping of scalar values. No I/O has happened when it is returned.
	ErrInvalidContext = errors.New("invalid render context")

	// ErrMissingSource is returned when the template file does not exist.
	ErrMissingSource = errors.New("template source does not exist")

	// ErrRender is matched by every *RenderError.
	ErrRender = errors.New("render failed")
)

// RenderError describes a failure to substitute or write a template. Offset
// is the byte offset in the template of a syntax or lookup failure, or -1.
type RenderError struct {
	Template string
	Offset   int
	Reason   string
	Err      error
}

func (e *RenderError) Error() string {
	msg := "render " + e.Template
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRender) hold.
func (e *RenderError) Is(target error) bool { return target == ErrRender }

// ConfigRenderer defines the driven port that turns a template and a context
// into a configuration file on disk.
type ConfigRenderer interface {
	// Render substitutes vars into the template at source and replaces the
	// file at target with the result. Either the whole new file is visible at
	// target, or the previous file is left untouched.
	Render(ctx context.Context, source, target string, vars map[string]any) error
}
