// Package errkind defines the closed error taxonomy shared by the blob store,
// the agent processors, and the orchestrator. Every failure that crosses a
// component boundary is tagged with exactly one Kind; transient errors are
// retried inside the adapters and never surface here directly.
package errkind

import (
	"errors"
	"fmt"
)

// Kind identifies a failure category. The set is closed; persisted records and
// metrics labels use the string value verbatim.
type Kind string

const (
	SourceMissing Kind = "source_missing"
	Classify      Kind = "classify"
	Model         Kind = "model"
	Storage       Kind = "storage"
	Conflict      Kind = "conflict"
	External      Kind = "external"
	Auth          Kind = "auth"
	Timeout       Kind = "timeout"
	Config        Kind = "config"
	Oversize      Kind = "oversize"
)

// Error pairs a Kind with an underlying cause. It supports errors.Is against
// other *Error values of the same Kind and errors.As for unwrapping.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error from a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Newf creates a tagged error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error. A nil err returns nil. If err already carries a
// Kind it is preserved; wrapping never re-tags.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// Of returns the Kind carried by err, or ("", false) when err is untagged.
func Of(err error) (Kind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
