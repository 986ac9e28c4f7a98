// Package apperrors defines the machine-readable error taxonomy shared by
// every apllodb layer. Every fallible operation in the engine returns one
// of these kinds (or wraps one), never a bare string.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is an SQLSTATE-like machine-readable error code.
type Kind string

const (
	// Name/definition
	NameTooLong              Kind = "NameTooLong"
	UndefinedObject          Kind = "UndefinedObject"
	UndefinedTable           Kind = "UndefinedTable"
	UndefinedColumn          Kind = "UndefinedColumn"
	DuplicateTable           Kind = "DuplicateTable"
	DuplicateDatabase        Kind = "DuplicateDatabase"
	DuplicateColumn          Kind = "DuplicateColumn"
	InvalidName              Kind = "InvalidName"
	AmbiguousColumn          Kind = "AmbiguousColumn"
	InvalidTableDefinition   Kind = "InvalidTableDefinition"

	// Data/type
	DatatypeMismatch               Kind = "DatatypeMismatch"
	DataExceptionIllegalConversion Kind = "DataExceptionIllegalConversion"
	DataExceptionIllegalOperation  Kind = "DataExceptionIllegalOperation"

	// Integrity
	IntegrityConstraintUniqueViolation  Kind = "IntegrityConstraintUniqueViolation"
	IntegrityConstraintNotNullViolation Kind = "IntegrityConstraintNotNullViolation"
	IntegrityConstraintViolation        Kind = "IntegrityConstraintViolation"

	// Transaction
	InvalidTransactionState Kind = "InvalidTransactionState"
	DeadlockDetected        Kind = "DeadlockDetected"
	ConnectionDoesNotExist  Kind = "ConnectionDoesNotExist"

	// I/O & encoding
	IoError             Kind = "IoError"
	SerializationError  Kind = "SerializationError"
	DeserializationError Kind = "DeserializationError"
	SyntaxError         Kind = "SyntaxError"

	// Capability
	FeatureNotSupported Kind = "FeatureNotSupported"
)

// Error is the single error type that crosses every apllodb layer boundary.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf extracts the Kind carried by err, or "" if err does not wrap an
// *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTransactionFatal reports whether kind forces the owning session back
// to SessionWithDb's propagation policy.
func IsTransactionFatal(kind Kind) bool {
	switch kind {
	case DeadlockDetected, IoError,
		IntegrityConstraintUniqueViolation,
		IntegrityConstraintNotNullViolation,
		IntegrityConstraintViolation:
		return true
	default:
		return false
	}
}
