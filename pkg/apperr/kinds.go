// Package apperr defines the closed set of application errors that may reach a caller
// of the method registry. Every kind carries a fixed 5-digit extended status; the
// HTTP-like code is always derived from its first three digits.
package apperr

import "fmt"

// Kind identifies one application error category.
type Kind struct {
	Name   string
	Status int
}

// Application error kinds. New kinds are added with a new status, never by
// changing the behavior of an existing one.
var (
	Validation             = Kind{Name: "ValidationError", Status: 40000}
	ParamValidation        = Kind{Name: "ParamValidationError", Status: 40001}
	AuthenticationRequired = Kind{Name: "AuthenticationRequiredError", Status: 40100}
	AuthenticationFailed   = Kind{Name: "AuthenticationFailedError", Status: 40101}
	PolicyDeny             = Kind{Name: "PolicyDenyError", Status: 40300}
	NotFound               = Kind{Name: "NotFoundError", Status: 40400}
	ResourceNotFound       = Kind{Name: "ResourceNotFoundError", Status: 40401}
	MethodNotFound         = Kind{Name: "MethodNotFoundError", Status: 40402}
	EntityNotFound         = Kind{Name: "EntityNotFoundError", Status: 40403}
	MethodNotAllowed       = Kind{Name: "MethodNotAllowedError", Status: 40500}
	EventTimeout           = Kind{Name: "EventTimeoutError", Status: 40800}
	TaskTimeout            = Kind{Name: "TaskTimeoutError", Status: 40801}
	Conflict               = Kind{Name: "ConflictError", Status: 40900}
	PayloadTooLarge        = Kind{Name: "PayloadTooLargeError", Status: 41300}
	TooManyRequests        = Kind{Name: "TooManyRequestsError", Status: 42900}
	TooManyTries           = Kind{Name: "TooManyTriesError", Status: 42901}
	Cancelled              = Kind{Name: "CancelledError", Status: 49900}
	Internal               = Kind{Name: "InternalError", Status: 50000}
	InternalDataCorruption = Kind{Name: "InternalDataCorruptionError", Status: 50001}
	NotImplemented         = Kind{Name: "NotImplementedError", Status: 50100}
	ExternalServiceFailure = Kind{Name: "ExternalServiceFailureError", Status: 50200}
)

var allKinds = []Kind{
	Validation, ParamValidation, AuthenticationRequired, AuthenticationFailed,
	PolicyDeny, NotFound, ResourceNotFound, MethodNotFound, EntityNotFound,
	MethodNotAllowed, EventTimeout, TaskTimeout, Conflict, PayloadTooLarge,
	TooManyRequests, TooManyTries, Cancelled, Internal, InternalDataCorruption,
	NotImplemented, ExternalServiceFailure,
}

// Kinds returns every known kind in status order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Lookup finds a kind by name, accepting the name with or without the "Error" suffix.
func Lookup(name string) (Kind, bool) {
	for _, k := range allKinds {
		if k.Name == name || k.Name == name+"Error" {
			return k, true
		}
	}
	return Kind{}, false
}

// DeriveCode returns the HTTP-like code for an extended status: its first three
// digits when status >= 1000, else status itself.
func DeriveCode(status int) int {
	if status < 1000 {
		return status
	}
	for status >= 1000 {
		status /= 10
	}
	return status
}

// Code is the HTTP-like code derived from the kind's status.
func (k Kind) Code() int {
	return DeriveCode(k.Status)
}

// New builds an error of this kind with the given message.
func (k Kind) New(message string) *Error {
	return newError(k, message, 2)
}

// Newf builds an error of this kind with a formatted message.
func (k Kind) Newf(format string, args ...any) *Error {
	return newError(k, fmt.Sprintf(format, args...), 2)
}

// Wrap builds an error of this kind caused by err.
func (k Kind) Wrap(cause error, message string) *Error {
	e := newError(k, message, 2)
	e.setCause(cause)
	return e
}

// WithDetail builds an error of this kind from a structured detail map. All keys are
// merged onto the error; "message", "readableMessage" and "cause" are interpreted.
func (k Kind) WithDetail(detail map[string]any) *Error {
	e := newError(k, "", 2)
	e.merge(detail)
	return e
}

// Is reports whether err is (or wraps) an application error of this kind.
func (k Kind) Is(err error) bool {
	ae, ok := As(err)
	return ok && ae.Status == k.Status && ae.Name == k.Name
}

func (k Kind) String() string {
	return fmt.Sprintf("%s(%d)", k.Name, k.Status)
}
