package cast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Failure reasons used by the engine. Custom types and validators supply their own.
const (
	ReasonRequired    = "required but not provided"
	ReasonNoCandidate = "no candidate type matched"
	ReasonNotObject   = "expected an object"
	ReasonNotDict     = "expected a dictionary"
	ReasonNullMember  = "null member not allowed"
	ReasonValidator   = "rejected by validator"
	ReasonRecordCheck = "rejected by record validator"
	ReasonConversion  = "conversion failed"
)

// Error is a structured cast failure. It is created at the point of failure and
// enriched as it propagates outward: Path and Property gain prefixes, Record keeps
// the innermost record name. The message is only rendered by Error().
type Error struct {
	Reason      string
	Path        Path
	Record      string
	Property    string
	Value       any
	Types       []string
	Cause       error
	Validator   string
	Description string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("cast")
	if e.Record != "" {
		b.WriteString(" " + e.Record)
	}
	if e.Property != "" {
		fmt.Fprintf(&b, " %q", e.Property)
	}
	if !e.Path.IsZero() {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Validator != "" {
		fmt.Fprintf(&b, " %s", e.Validator)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	if len(e.Types) > 0 {
		fmt.Fprintf(&b, "; expected %s", strings.Join(e.Types, " | "))
	}
	if e.Reason != ReasonRequired {
		fmt.Fprintf(&b, "; got %s", preview(e.Value))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Fields returns the error as a flat detail map, suitable for attaching to an
// application error.
func (e *Error) Fields() map[string]any {
	out := map[string]any{"reason": e.Reason}
	if !e.Path.IsZero() {
		out["path"] = e.Path.String()
	}
	if e.Record != "" {
		out["record"] = e.Record
	}
	if e.Property != "" {
		out["property"] = e.Property
	}
	if e.Validator != "" {
		out["validator"] = e.Validator
	}
	if len(e.Types) > 0 {
		out["types"] = e.Types
	}
	if e.Description != "" {
		out["description"] = e.Description
	}
	return out
}

// Qualify prefixes the property with an outer name, such as the parameter the
// value was bound to, and returns e.
func (e *Error) Qualify(name string) *Error {
	e.prefixProperty(name)
	return e
}

func (e *Error) prefixPath(p Path) {
	if p.IsZero() {
		return
	}
	e.Path = e.Path.Prepend(p.steps...)
}

func (e *Error) prefixProperty(name string) {
	switch {
	case name == "":
	case e.Property == "":
		e.Property = name
	case strings.HasPrefix(e.Property, "["):
		e.Property = name + e.Property
	default:
		e.Property = name + "." + e.Property
	}
}

func (e *Error) inRecord(name string) {
	if e.Record == "" {
		e.Record = name
	}
}

func (e *Error) describe(desc string) {
	if e.Description == "" {
		e.Description = desc
	}
}

// asCastError returns err as a *Error, wrapping foreign errors so enrichment
// always has something to work with.
func asCastError(err error, value any) *Error {
	if ce, ok := err.(*Error); ok {
		return ce
	}
	return &Error{Reason: ReasonConversion, Value: value, Cause: err}
}

func preview(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		if len(t) > 64 {
			t = t[:64] + "..."
		}
		return fmt.Sprintf("%q", t)
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(t))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	if len(data) > 64 {
		return string(data[:64]) + "..."
	}
	return string(data)
}
