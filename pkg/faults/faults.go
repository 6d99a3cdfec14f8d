// Package faults defines the error kinds shared by the arm, gripper and
// sequencer packages.
package faults

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Match them with errors.Is.
var (
	ErrConnection   = errors.New("connection failed")
	ErrSend         = errors.New("send failed")
	ErrTimeout      = errors.New("timed out")
	ErrParse        = errors.New("parse failed")
	ErrRPC          = errors.New("rpc failed")
	ErrNotConnected = errors.New("not connected")
	ErrInvalid      = errors.New("invalid argument")
)

// Error ties an error kind to the operation that failed and its cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// New returns an *Error of the given kind. err may be nil.
func New(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf returns an *Error of the given kind with a formatted cause.
func Newf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the first known kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrConnection, ErrSend, ErrTimeout, ErrParse, ErrRPC, ErrNotConnected, ErrInvalid} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
