package viewer

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below unwrap to one of these so callers
// can match with errors.Is.
var (
	// ErrMalformed indicates a corrupt or structurally invalid document
	ErrMalformed = errors.New("malformed document")
	// ErrUnsupported indicates an unknown format, DRM or encryption that cannot be opened
	ErrUnsupported = errors.New("unsupported document")
	// ErrEmptyBuffer indicates an empty source buffer
	ErrEmptyBuffer = errors.New("empty buffer")

	// ErrTargetUnavailable indicates the render target is not mounted or has no usable size
	ErrTargetUnavailable = errors.New("render target unavailable")
	// ErrIndexOutOfRange indicates a page or section index outside the document
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrSuperseded indicates a render lost to a newer request. It is never
	// reported as a session failure.
	ErrSuperseded = errors.New("render superseded")

	// ErrNotRegistered indicates a theme name that was never registered
	ErrNotRegistered = errors.New("theme not registered")

	// ErrNotReady indicates navigation before the page count is known
	ErrNotReady = errors.New("navigation not ready")
	// ErrSessionEnded indicates a call on a session after End
	ErrSessionEnded = errors.New("session ended")
	// ErrNoRendition indicates a theme call on a session without a rendition (PDF)
	ErrNoRendition = errors.New("session has no rendition")
)

// ParseErrorKind classifies a ParseError
type ParseErrorKind int

const (
	Malformed ParseErrorKind = iota
	Unsupported
	EmptyBuffer
)

func (k ParseErrorKind) String() string {
	switch k {
	case Unsupported:
		return "unsupported"
	case EmptyBuffer:
		return "empty buffer"
	}
	return "malformed"
}

func (k ParseErrorKind) sentinel() error {
	switch k {
	case Unsupported:
		return ErrUnsupported
	case EmptyBuffer:
		return ErrEmptyBuffer
	}
	return ErrMalformed
}

// ParseError reports a document that could not be opened
type ParseError struct {
	Kind   ParseErrorKind
	Format Format
	Err    error // underlying parser error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open %s: %s: %v", e.Format, e.Kind, e.Err)
	}
	return fmt.Sprintf("open %s: %s", e.Format, e.Kind)
}

// Unwrap exposes both the kind's sentinel and the underlying error.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

// RenderErrorKind classifies a RenderError
type RenderErrorKind int

const (
	TargetUnavailable RenderErrorKind = iota
	IndexOutOfRange
	Superseded
)

func (k RenderErrorKind) String() string {
	switch k {
	case IndexOutOfRange:
		return "index out of range"
	case Superseded:
		return "superseded"
	}
	return "target unavailable"
}

func (k RenderErrorKind) sentinel() error {
	switch k {
	case IndexOutOfRange:
		return ErrIndexOutOfRange
	case Superseded:
		return ErrSuperseded
	}
	return ErrTargetUnavailable
}

// RenderError reports a failed render of one page or section
type RenderError struct {
	Kind  RenderErrorKind
	Index int
	Err   error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %d: %s: %v", e.Index, e.Kind, e.Err)
	}
	return fmt.Sprintf("render %d: %s", e.Index, e.Kind)
}

func (e *RenderError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

// ThemeErrorKind classifies a ThemeError
type ThemeErrorKind int

const (
	NotRegistered ThemeErrorKind = iota
)

// ThemeError reports a theme selection that was ignored. It is not fatal
// to the session.
type ThemeError struct {
	Kind ThemeErrorKind
	Name string
}

func (e *ThemeError) Error() string {
	return fmt.Sprintf("theme %q not registered", e.Name)
}

func (e *ThemeError) Unwrap() error {
	return ErrNotRegistered
}
