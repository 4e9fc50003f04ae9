package registry

import (
	"errors"

	"github.com/morezero/castrpc/pkg/apperr"
	"github.com/morezero/castrpc/pkg/cast"
)

var (
	// ErrDuplicateMethod is returned when a name, alias or name@version is already taken.
	ErrDuplicateMethod = errors.New("duplicate method")
	// ErrInvalidMethod is returned when a method descriptor cannot be registered or prepared.
	ErrInvalidMethod = errors.New("invalid method")
)

// Handler implements a method. The call context is always the first argument;
// bound parameters arrive in args in declaration order.
type Handler func(call *Call, args Args) (any, error)

// Outcome is the settled result of an asynchronous handler.
type Outcome struct {
	Value any
	Err   error
}

// Method describes a callable method.
type Method struct {
	Name        string
	Aliases     []string
	Version     string
	Deprecated  bool
	Description string

	Params  []Param
	Returns *cast.Descriptor
	Errors  []apperr.Kind

	// Extensions carries free-form documentation metadata.
	Extensions map[string]any

	// Envelope names the default outgoing strategy for this method.
	Envelope  string
	RateLimit *RateLimit

	// Exactly one of Handler or Resolve must be set. Resolve is called once,
	// during preparation.
	Handler Handler
	Resolve func() (Handler, error)
}

// Param is one declared handler parameter.
type Param struct {
	Name string
	// Desc declares the accepted types. Nil accepts any value.
	Desc *cast.Descriptor

	// Path overrides where the value is read from. Defaults to the input key
	// equal to Name, or to Desc's own path when one is set.
	Path string
	// WholeInput binds the entire input record.
	WholeInput bool
	// Optional turns a cast failure into an unset argument.
	Optional bool
	// Rest receives every top-level input key not claimed by another parameter.
	// At most one parameter per method may set it.
	Rest bool

	Description string
}

// RateLimit throttles calls to a single method.
type RateLimit struct {
	PerSecond float64 `json:"perSecond" yaml:"perSecond"`
	Burst     int     `json:"burst" yaml:"burst"`
}

// CallOptions tunes a single dispatch.
type CallOptions struct {
	// Env is exposed to the handler through Call.Env.
	Env map[string]any
	// Envelope overrides every other strategy selection for this call.
	Envelope string
	// CallID is generated when empty.
	CallID string
}

// MethodInfo is the read-only description of a registered method.
type MethodInfo struct {
	Name        string         `json:"name"`
	Version     string         `json:"version,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
	Deprecated  bool           `json:"deprecated,omitempty"`
	Description string         `json:"description,omitempty"`
	Params      []ParamInfo    `json:"params"`
	Returns     *TypeInfo      `json:"returns,omitempty"`
	Errors      []ErrorInfo    `json:"errors,omitempty"`
	Extensions  map[string]any `json:"extensions,omitempty"`
	Envelope    string         `json:"envelope,omitempty"`
	RateLimit   *RateLimit     `json:"rateLimit,omitempty"`
	Prepared    bool           `json:"prepared"`
}

// ParamInfo describes one parameter binding.
type ParamInfo struct {
	Name string `json:"name"`
	TypeInfo
	Path       string `json:"path,omitempty"`
	WholeInput bool   `json:"wholeInput,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
	Rest       bool   `json:"rest,omitempty"`
}

// TypeInfo summarizes a type descriptor.
type TypeInfo struct {
	Types       []string `json:"types"`
	Cardinality string   `json:"cardinality"`
	Required    bool     `json:"required,omitempty"`
	Nullable    bool     `json:"nullable,omitempty"`
	HasDefault  bool     `json:"hasDefault,omitempty"`
	Validators  []string `json:"validators,omitempty"`
	Description string   `json:"description,omitempty"`
}

// ErrorInfo describes a declared error kind.
type ErrorInfo struct {
	Name   string `json:"name"`
	Status int    `json:"status"`
	Code   int    `json:"code"`
}

// HealthOutput holds the result of the health check.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

// HealthChecks holds individual health check results.
type HealthChecks struct {
	Finalized bool `json:"finalized"`
	Methods   int  `json:"methods"`
	// Failed lists methods whose preparation failed.
	Failed []string `json:"failed,omitempty"`
}
