// Package errs defines the error taxonomy shared by all spkg components.
//
// Every error a user is expected to act on is an *Error carrying a Kind and a
// reason sentinel. Anything else reaching the command boundary is treated as
// unexpected and printed with its stack.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies domain errors.
type Kind uint8

const (
	// Other is any error that is not a domain error.
	Other Kind = iota
	// Config covers the environment, the persisted mapping and repository lookups.
	Config
	// Network is a transport failure talking to a repository.
	Network
	// Manifest means a repository answered but its manifest is unusable.
	Manifest
	// Resolution means zero or several repositories match a script.
	Resolution
	// AlreadyExists means the install target exists and overwrite was not requested.
	AlreadyExists
	// Transfer is a failure while downloading or writing an asset.
	Transfer
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config error"
	case Network:
		return "network error"
	case Manifest:
		return "manifest error"
	case Resolution:
		return "resolution error"
	case AlreadyExists:
		return "already exists"
	case Transfer:
		return "transfer error"
	default:
		return "error"
	}
}

var (
	ErrMissingHome   = errors.New("missing base directory")
	ErrMalformed     = errors.New("malformed content")
	ErrInvalidURL    = errors.New("invalid repository url")
	ErrInvalidName   = errors.New("invalid repository name")
	ErrDuplicate     = errors.New("repository already exists")
	ErrNotFound      = errors.New("repository not found")
	ErrNotAdvertised = errors.New("script not advertised")
	ErrAmbiguous     = errors.New("ambiguous script")
	ErrNoSuchScript  = errors.New("script not found")
	ErrExists        = errors.New("file exists")
	ErrChecksum      = errors.New("checksum mismatch")
)

// Error is a domain error.
type Error struct {
	Kind   Kind
	Reason error
	Msg    string
	Hint   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

// Unwrap exposes both the reason sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	var out []error
	if e.Reason != nil {
		out = append(out, e.Reason)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WithHint returns e with an actionable hint attached.
func (e *Error) WithHint(format string, args ...interface{}) *Error {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

// New builds a domain error of the given kind.
func New(kind Kind, reason error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a domain error of the given kind around err.
func Wrap(err error, kind Kind, reason error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: reason, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost domain error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return Other
}

// IsDomain reports whether err should be rendered as a plain user message.
func IsDomain(err error) bool {
	return KindOf(err) != Other
}

// HintOf returns the first hint found in err's chain.
func HintOf(err error) string {
	for err != nil {
		de, ok := err.(*Error)
		if ok && de.Hint != "" {
			return de.Hint
		}
		if ok {
			err = de.Err
			continue
		}
		err = errors.Unwrap(err)
	}
	return ""
}
