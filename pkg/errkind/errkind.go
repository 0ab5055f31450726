// Package errkind defines the stable error kinds reported by the loading
// pipeline. Every failure that reaches a caller carries exactly one Kind.
package errkind

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies a class of load failure.
type Kind int

const (
	Unknown Kind = iota
	UnsupportedFormat
	DependencyAsPrimary
	DecoderInit
	Fetch
	Parse
	Normalization
	ResourceLimit
	Cancelled
)

var kindNames = [...]string{
	Unknown:             "unknown",
	UnsupportedFormat:   "unsupported-format",
	DependencyAsPrimary: "dependency-as-primary",
	DecoderInit:         "decoder-init",
	Fetch:               "fetch",
	Parse:               "parse",
	Normalization:       "normalization",
	ResourceLimit:       "resource-limit",
	Cancelled:           "cancelled",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText lets Kind appear as its name in JSON event payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is a classified load failure.
type Error struct {
	Kind      Kind
	Detail    string
	Extension string // set for UnsupportedFormat and DependencyAsPrimary
	FormatID  string // set for DecoderInit and Parse when known
	Err       error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so errors.Is(err, errkind.New(errkind.Parse, ""))
// works as a kind test.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap returns an error of the given kind wrapping cause.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

func NewUnsupportedFormat(ext string) *Error {
	detail := "no decoder for extension"
	if ext == "" {
		detail = "no extension or recognised content type"
	} else {
		detail += " ." + ext
	}
	return &Error{Kind: UnsupportedFormat, Detail: detail, Extension: ext}
}

func NewDependencyAsPrimary(ext string) *Error {
	return &Error{
		Kind:      DependencyAsPrimary,
		Detail:    fmt.Sprintf(".%s is a dependency file and cannot be opened on its own", ext),
		Extension: ext,
	}
}

func NewDecoderInit(formatID string, cause error) *Error {
	return &Error{Kind: DecoderInit, Detail: "initializing " + formatID + " decoder", FormatID: formatID, Err: cause}
}

func NewFetch(detail string, cause error) *Error {
	return &Error{Kind: Fetch, Detail: detail, Err: cause}
}

func NewParse(formatID, detail string, cause error) *Error {
	return &Error{Kind: Parse, Detail: detail, FormatID: formatID, Err: cause}
}

func NewResourceLimit(detail string) *Error {
	return &Error{Kind: ResourceLimit, Detail: detail}
}

// KindOf classifies err. Context cancellation maps to Cancelled, deadline
// expiry to Fetch, and anything unclassified to Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Cancelled
	case errors.Is(err, context.DeadlineExceeded):
		return Fetch
	}
	return Unknown
}

// As converts err to *Error, classifying plain errors with fallback.
func As(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if k := KindOf(err); k != Unknown {
		fallback = k
	}
	return &Error{Kind: fallback, Detail: err.Error(), Err: err}
}
