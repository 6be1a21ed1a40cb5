// Package vaulterr defines the error kinds surfaced by the vault core.
//
// Every fallible step returns an error whose chain contains a *Error carrying
// one Kind. Intermediate layers add context with fmt.Errorf("...: %w", err);
// the kind survives wrapping and is recovered with KindOf or errors.Is against
// the sentinel values below.
package vaulterr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds are stable and map to string codes that
// the UI layer switches on.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	CorruptVault
	HashMismatch
	IO
	Database
	LicenseRequired
	LicenseInvalid
	UnsupportedFormat
)

// Code returns the stable string code for a kind.
func (k Kind) Code() string {
	switch k {
	case Validation:
		return "VALIDATION_ERROR"
	case NotFound:
		return "NOT_FOUND"
	case CorruptVault:
		return "CORRUPT_VAULT"
	case HashMismatch:
		return "HASH_MISMATCH"
	case IO:
		return "IO_ERROR"
	case Database:
		return "DB_ERROR"
	case LicenseRequired:
		return "LICENSE_REQUIRED"
	case LicenseInvalid:
		return "LICENSE_INVALID"
	case UnsupportedFormat:
		return "UNSUPPORTED_FORMAT"
	default:
		return "INTERNAL_ERROR"
	}
}

func (k Kind) String() string { return k.Code() }

// Error is a classified failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.Code()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind.Code(), e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error of the same kind, so that
// errors.Is(err, vaulterr.ErrNotFound) matches any not-found error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// Sentinels for use with errors.Is.
var (
	ErrInternal          = &Error{Kind: Internal}
	ErrValidation        = &Error{Kind: Validation}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrCorruptVault      = &Error{Kind: CorruptVault}
	ErrHashMismatch      = &Error{Kind: HashMismatch}
	ErrIO                = &Error{Kind: IO}
	ErrDatabase          = &Error{Kind: Database}
	ErrLicenseRequired   = &Error{Kind: LicenseRequired}
	ErrLicenseInvalid    = &Error{Kind: LicenseInvalid}
	ErrUnsupportedFormat = &Error{Kind: UnsupportedFormat}
)

// New returns a *Error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind with a short message. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal
// when the chain carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
