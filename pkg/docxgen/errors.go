package docxgen

import (
	"errors"
	"fmt"
	"strings"
)

// ParseErrorKind distinguishes broken XML from XML in a vocabulary we do not handle.
type ParseErrorKind int

const (
	// Malformed means the part is not well-formed XML
	Malformed ParseErrorKind = iota
	// UnsupportedSchema means the part parsed but its root is not WordprocessingML
	UnsupportedSchema
)

func (k ParseErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case UnsupportedSchema:
		return "unsupported schema"
	default:
		return "unknown"
	}
}

// ParseError represents a template part that could not be turned into a tree.
// It is raised before any mutation takes place.
type ParseError struct {
	Part    string
	Kind    ParseErrorKind
	Line    int
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d (%s): %s", e.Part, e.Line, e.Kind, e.Message)
	}
	return fmt.Sprintf("parse error in %s (%s): %s", e.Part, e.Kind, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ResolutionErrorKind classifies failures while binding the template to data.
type ResolutionErrorKind int

const (
	UnboundPlaceholder ResolutionErrorKind = iota
	MalformedLoop
	InvalidImage
)

func (k ResolutionErrorKind) String() string {
	switch k {
	case UnboundPlaceholder:
		return "unbound placeholder"
	case MalformedLoop:
		return "malformed loop"
	case InvalidImage:
		return "invalid image"
	default:
		return "unknown"
	}
}

// Sentinels matched by ResolutionError through errors.Is.
var (
	ErrUnboundPlaceholder = errors.New("unbound placeholder")
	ErrMalformedLoop      = errors.New("malformed loop")
	ErrInvalidImage       = errors.New("invalid image")
)

// ResolutionError represents a placeholder, loop or image that could not be resolved.
type ResolutionError struct {
	Kind     ResolutionErrorKind
	Name     string
	Part     string
	Location string
	Reason   string
	Cause    error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Part != "" {
		fmt.Fprintf(&b, " in %s", e.Part)
	}
	if e.Location != "" {
		fmt.Fprintf(&b, " at %s", e.Location)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error kind
func (e *ResolutionError) Is(target error) bool {
	switch e.Kind {
	case UnboundPlaceholder:
		return target == ErrUnboundPlaceholder
	case MalformedLoop:
		return target == ErrMalformedLoop
	case InvalidImage:
		return target == ErrInvalidImage
	}
	return false
}

// RebuildError signals that the output package would break a packaging invariant.
type RebuildError struct {
	Part   string
	Reason string
	Cause  error
}

func (e *RebuildError) Error() string {
	msg := "rebuild error"
	if e.Part != "" {
		msg += " for " + e.Part
	}
	msg += ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RebuildError) Unwrap() error {
	return e.Cause
}

// DocumentError represents an error during document operations
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("document error during %s of '%s': %v", e.Operation, e.Path, e.Cause)
	} else if e.Path != "" {
		return fmt.Sprintf("document error during %s of '%s'", e.Operation, e.Path)
	} else if e.Cause != nil {
		return fmt.Sprintf("document error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("document error during %s", e.Operation)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error
func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// ContextError adds context to an existing error
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	var contextParts []string
	for k, v := range e.Context {
		contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
	}

	if len(contextParts) > 0 {
		return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(contextParts, ", "), e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// RecoverError converts a panic recovery value to an error
func RecoverError(r interface{}) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic recovered: %w", v)
	case string:
		return fmt.Errorf("panic recovered: %s", v)
	default:
		return fmt.Errorf("panic recovered: %v", v)
	}
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsResolutionError checks if an error is a resolution error
func IsResolutionError(err error) bool {
	var target *ResolutionError
	return errors.As(err, &target)
}

// IsRebuildError checks if an error is a rebuild error
func IsRebuildError(err error) bool {
	var target *RebuildError
	return errors.As(err, &target)
}

// IsDocumentError checks if an error is a document error
func IsDocumentError(err error) bool {
	var target *DocumentError
	return errors.As(err, &target)
}
