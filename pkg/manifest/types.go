// Package manifest loads method and record declarations from YAML or JSON and
// turns them into registry methods bound to named handlers.
package manifest

// Manifest is the root manifest document.
type Manifest struct {
	Name            string                `yaml:"name" json:"name"`
	Version         string                `yaml:"version" json:"version"`
	Description     string                `yaml:"description,omitempty" json:"description,omitempty"`
	DefaultEnvelope string                `yaml:"defaultEnvelope,omitempty" json:"defaultEnvelope,omitempty"`
	Enums           map[string][]any      `yaml:"enums,omitempty" json:"enums,omitempty"`
	Records         map[string]RecordSpec `yaml:"records,omitempty" json:"records,omitempty"`
	Methods         []MethodSpec          `yaml:"methods" json:"methods"`
}

// RecordSpec declares a record type. Fields keep their declaration order.
type RecordSpec struct {
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Mixins      []string    `yaml:"mixins,omitempty" json:"mixins,omitempty"`
	Fields      []FieldSpec `yaml:"fields" json:"fields"`
	Additional  *TypeSpec   `yaml:"additional,omitempty" json:"additional,omitempty"`
}

// TypeSpec declares a type descriptor.
//
// Type names are the built-ins (string, number, boolean, date, binary, object,
// array, null), enums and records declared in the same manifest, or an inline
// enum written as "enum:a|b|c".
type TypeSpec struct {
	Types          []string `yaml:"types" json:"types"`
	Path           string   `yaml:"path,omitempty" json:"path,omitempty"`
	Cardinality    string   `yaml:"cardinality,omitempty" json:"cardinality,omitempty"`
	Required       bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Default        any      `yaml:"default,omitempty" json:"default,omitempty"`
	Nullable       bool     `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	MemberNullable bool     `yaml:"memberNullable,omitempty" json:"memberNullable,omitempty"`
	// Validate holds go-playground/validator tags applied to each value.
	Validate    []string `yaml:"validate,omitempty" json:"validate,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// FieldSpec is a named record field.
type FieldSpec struct {
	Name     string `yaml:"name" json:"name"`
	TypeSpec `yaml:",inline"`
}

// ParamSpec is a method parameter with its binding annotation.
type ParamSpec struct {
	Name       string `yaml:"name" json:"name"`
	TypeSpec   `yaml:",inline"`
	WholeInput bool `yaml:"wholeInput,omitempty" json:"wholeInput,omitempty"`
	Optional   bool `yaml:"optional,omitempty" json:"optional,omitempty"`
	Rest       bool `yaml:"rest,omitempty" json:"rest,omitempty"`
}

// RateLimitSpec throttles one method.
type RateLimitSpec struct {
	PerSecond float64 `yaml:"perSecond" json:"perSecond"`
	Burst     int     `yaml:"burst" json:"burst"`
}

// MethodSpec declares one method. Handler names the implementation the method
// is bound to; it defaults to Name.
type MethodSpec struct {
	Name        string         `yaml:"name" json:"name"`
	Handler     string         `yaml:"handler,omitempty" json:"handler,omitempty"`
	Aliases     []string       `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Version     string         `yaml:"version,omitempty" json:"version,omitempty"`
	Deprecated  bool           `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Envelope    string         `yaml:"envelope,omitempty" json:"envelope,omitempty"`
	Params      []ParamSpec    `yaml:"params,omitempty" json:"params,omitempty"`
	Returns     *TypeSpec      `yaml:"returns,omitempty" json:"returns,omitempty"`
	Errors      []string       `yaml:"errors,omitempty" json:"errors,omitempty"`
	RateLimit   *RateLimitSpec `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	Extensions  map[string]any `yaml:"extensions,omitempty" json:"extensions,omitempty"`
}

// HandlerName returns the handler the method binds to.
func (m MethodSpec) HandlerName() string {
	if m.Handler != "" {
		return m.Handler
	}
	return m.Name
}
