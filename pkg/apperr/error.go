package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
)

const derivedMarker = "--- derived from ---"

var development atomic.Bool

// SetDevelopment toggles inclusion of stack traces in serialized errors.
func SetDevelopment(on bool) {
	development.Store(on)
}

// Development reports whether serialized errors carry stack traces.
func Development() bool {
	return development.Load()
}

// Error is an application error: the only error type allowed to reach a caller.
type Error struct {
	Name            string
	Message         string
	ReadableMessage string
	Status          int
	Cause           error
	Details         map[string]any

	stack string
}

func newError(k Kind, message string, skip int) *Error {
	e := &Error{
		Name:    k.Name,
		Message: message,
		Status:  k.Status,
	}
	e.stack = e.header() + "\n" + captureStack(skip+2)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.ReadableMessage
	}
	if msg == "" {
		return e.Name
	}
	return e.Name + ": " + msg
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code is the HTTP-like code derived from Status.
func (e *Error) Code() int {
	return DeriveCode(e.Status)
}

// ExtendedStatus returns the 5-digit status.
func (e *Error) ExtendedStatus() int {
	return e.Status
}

// Kind returns the kind this error was built from.
func (e *Error) Kind() Kind {
	return Kind{Name: e.Name, Status: e.Status}
}

// Stack returns the captured trace, including any "derived from" cause traces.
func (e *Error) Stack() string {
	return e.stack
}

// Set assigns a detail field. Intended for use right after construction.
func (e *Error) Set(key string, value any) *Error {
	e.merge(map[string]any{key: value})
	return e
}

// Detail returns the error's own detail fields, excluding bookkeeping fields.
func (e *Error) Detail() map[string]any {
	out := make(map[string]any, len(e.Details))
	for k, v := range e.Details {
		if isBookkeeping(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// ToObject returns the canonical serialized form. The stack is only included in
// development mode.
func (e *Error) ToObject() map[string]any {
	out := e.Detail()
	out["name"] = e.Name
	out["message"] = e.Message
	out["readableMessage"] = e.readable()
	out["status"] = e.Status
	out["code"] = e.Code()
	if Development() {
		out["stack"] = e.stack
	}
	return out
}

// MarshalJSON serializes ToObject.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToObject())
}

func (e *Error) readable() string {
	if e.ReadableMessage != "" {
		return e.ReadableMessage
	}
	return e.Message
}

func (e *Error) header() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

func (e *Error) merge(detail map[string]any) {
	for k, v := range detail {
		switch k {
		case "message":
			e.Message = fmt.Sprint(v)
			e.refreshHeader()
		case "readableMessage":
			e.ReadableMessage = fmt.Sprint(v)
		case "cause":
			if err, ok := v.(error); ok {
				e.setCause(err)
			} else if v != nil {
				e.setCause(errors.New(fmt.Sprint(v)))
			}
		case "name", "status", "stack":
			// fixed by the kind
		default:
			if e.Details == nil {
				e.Details = make(map[string]any)
			}
			e.Details[k] = v
		}
	}
}

func (e *Error) refreshHeader() {
	if i := strings.IndexByte(e.stack, '\n'); i >= 0 {
		e.stack = e.header() + e.stack[i:]
		return
	}
	e.stack = e.header()
}

func (e *Error) setCause(cause error) {
	if cause == nil {
		return
	}
	e.Cause = cause
	e.stack += "\n" + derivedMarker + "\n" + traceOf(cause)
}

func isBookkeeping(key string) bool {
	switch key {
	case "status", "stack", "message", "name", "readableMessage":
		return true
	}
	return false
}

func traceOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.stack
	}
	return err.Error()
}

func captureStack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "    at %s (%s:%d)\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// As extracts an application error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// From converts any error into an application error. Application errors pass through
// unchanged; context cancellation and deadline errors map to Cancelled and TaskTimeout;
// everything else becomes Internal with err as its cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Cancelled.Wrap(err, "operation cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return TaskTimeout.Wrap(err, "operation timed out")
	}
	return Internal.Wrap(err, err.Error())
}

// FromPanic converts a recovered panic value into an application error.
func FromPanic(r any) *Error {
	if err, ok := r.(error); ok {
		if ae, ok := As(err); ok {
			return ae
		}
		return Internal.Wrap(err, fmt.Sprintf("panic: %v", err))
	}
	return Internal.New(fmt.Sprintf("panic: %v", r))
}
