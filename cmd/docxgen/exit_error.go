package main

import (
	"errors"
	"fmt"

	"github.com/benjaminschreck/go-docxgen/pkg/docxgen"
)

const (
	exitOK      = 0
	exitFailure = 1
	// exitUsage reports bad flags, configuration or data
	exitUsage = 2
	// exitTemplate reports a template that cannot be resolved against the data
	exitTemplate = 3
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// classify maps a generation error to an exit code
func classify(err error) error {
	var parseErr *docxgen.ParseError
	var resErr *docxgen.ResolutionError
	switch {
	case errors.As(err, &parseErr), errors.As(err, &resErr):
		return &ExitError{Code: exitTemplate, Err: err}
	default:
		return err
	}
}
