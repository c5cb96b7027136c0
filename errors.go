// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedMessage      = errors.New("ipc: malformed message")
	ErrMissingCorrelation    = errors.New("ipc: missing correlation id")
	ErrDuplicateName         = errors.New("ipc: duplicate instance name")
	ErrDuplicateMethod       = errors.New("ipc: duplicate method name")
	ErrNothingExposed        = errors.New("ipc: no exposed methods")
	ErrFrozen                = errors.New("ipc: registry is frozen")
	ErrUnsupportedSignature  = errors.New("ipc: unsupported method signature")
	ErrNotFound              = errors.New("ipc: not found")
	ErrUnsupportedConversion = errors.New("ipc: unsupported conversion")
	ErrTargetInvocation      = errors.New("ipc: target invocation failed")
)

// invalidFormatMessage is the failure text for unusable envelopes.
const invalidFormatMessage = "Invalid message format."

// MalformedMessageError reports an envelope that could not be parsed.
// ID is nil when the correlation id itself was unusable.
type MalformedMessageError struct {
	ID     *string
	Reason string
}

func (e *MalformedMessageError) Error() string {
	return invalidFormatMessage
}

func (e *MalformedMessageError) Is(target error) bool {
	if target == ErrMalformedMessage {
		return true
	}
	return target == ErrMissingCorrelation && e.ID == nil
}

// DuplicateNameError is returned when an instance name is registered twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("instance name %q already exists in the registry", e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// NotFoundError reports an unknown instance or method at dispatch time.
type NotFoundError struct {
	Instance string
	Method   string // empty when the instance itself is missing
}

func (e *NotFoundError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("Instance '%s' not found.", e.Instance)
	}
	return fmt.Sprintf("Method '%s' not found on instance '%s'.", e.Method, e.Instance)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnsupportedConversionError names the JSON kind and the Go type that could not
// be reconciled.
type UnsupportedConversionError struct {
	Index    int
	JSONKind string
	GoType   string
	Detail   string
}

func (e *UnsupportedConversionError) Error() string {
	msg := fmt.Sprintf("Unsupported conversion from %s to %s", e.JSONKind, e.GoType)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *UnsupportedConversionError) Unwrap() error { return ErrUnsupportedConversion }

// TargetInvocationFault wraps a failure raised inside an invoked method,
// including recovered panics and arity mismatches.
type TargetInvocationFault struct {
	Instance string
	Method   string
	Cause    error
}

func (e *TargetInvocationFault) Error() string {
	return e.Cause.Error()
}

func (e *TargetInvocationFault) Unwrap() []error {
	return []error{ErrTargetInvocation, e.Cause}
}

// SignatureError is a registration-time rejection of a method shape.
type SignatureError struct {
	Instance string
	Method   string
	Detail   string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("method %s.%s: %s", e.Instance, e.Method, e.Detail)
}

func (e *SignatureError) Unwrap() error { return ErrUnsupportedSignature }
