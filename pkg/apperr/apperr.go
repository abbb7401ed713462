// Package apperr defines the error kinds surfaced by provisioning operations.
//
// Callers match kinds with errors.Is against the Err* sentinels; the concrete
// *Error also carries the step that failed so an operator can reconcile.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindProvisioning    Kind = "provisioning"
	KindPortExhaustion  Kind = "port_exhaustion"
	KindMaterialization Kind = "materialization"
	KindRepository      Kind = "repository"
	KindTimeout         Kind = "timeout"
)

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrProvisioning    = &Error{Kind: KindProvisioning}
	ErrPortExhaustion  = &Error{Kind: KindPortExhaustion}
	ErrMaterialization = &Error{Kind: KindMaterialization}
	ErrRepository      = &Error{Kind: KindRepository}
	ErrTimeout         = &Error{Kind: KindTimeout}
)

type Error struct {
	Kind Kind
	Step string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Step != "" {
		s += " at " + e.Step
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels work as kind checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithStep returns a copy of e annotated with step. The original is untouched.
func (e *Error) WithStep(step string) *Error {
	cp := *e
	cp.Step = step
	return &cp
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, nil, format, args...)
}

func Provisioning(err error, format string, args ...any) *Error {
	return newf(KindProvisioning, err, format, args...)
}

func PortExhaustion(format string, args ...any) *Error {
	return newf(KindPortExhaustion, nil, format, args...)
}

func Materialization(err error, format string, args ...any) *Error {
	return newf(KindMaterialization, err, format, args...)
}

func Repository(err error, format string, args ...any) *Error {
	return newf(KindRepository, err, format, args...)
}

func Timeout(err error, format string, args ...any) *Error {
	return newf(KindTimeout, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StepOf returns the step recorded on the first *Error in err's chain.
func StepOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Step
	}
	return ""
}
