package manifest

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/morezero/castrpc/pkg/apperr"
	"github.com/morezero/castrpc/pkg/cast"
	"github.com/morezero/castrpc/pkg/registry"
)

const compileLogPrefix = "manifest:compile"

// Handlers binds handler names used in a manifest to implementations. Lookups
// happen when the registry prepares a method, so entries may be added after
// Compile as long as it is before Finalize.
type Handlers map[string]registry.Handler

// Compiled is the result of compiling a manifest.
type Compiled struct {
	Methods []registry.Method
	Records map[string]*cast.RecordDefinition
	Enums   map[string]cast.Type
}

// Record returns a compiled record definition by name.
func (c *Compiled) Record(name string) (*cast.RecordDefinition, bool) {
	def, ok := c.Records[name]
	return def, ok
}

// Compile resolves every type name and builds registry methods bound to handlers.
func Compile(m *Manifest, handlers Handlers) (*Compiled, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	c := &compiler{
		m:        m,
		enums:    make(map[string]cast.Type, len(m.Enums)),
		records:  make(map[string]*cast.RecordDefinition, len(m.Records)),
		building: make(map[string]bool),
	}
	for name, values := range m.Enums {
		c.enums[name] = cast.Enum(name, values...)
	}

	// Sorted so errors and merge warnings are reported deterministically.
	names := make([]string, 0, len(m.Records))
	for name := range m.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := c.record(name); err != nil {
			return nil, err
		}
	}

	out := &Compiled{Records: c.records, Enums: c.enums}
	for _, spec := range m.Methods {
		method, err := c.method(spec, handlers)
		if err != nil {
			return nil, err
		}
		out.Methods = append(out.Methods, method)
	}

	slog.Debug(fmt.Sprintf("%s - compiled %s records=%d methods=%d", compileLogPrefix, m.Name, len(out.Records), len(out.Methods)))
	return out, nil
}

// Register compiles m and registers its methods on reg.
func Register(reg *registry.Registry, m *Manifest, handlers Handlers) (*Compiled, error) {
	compiled, err := Compile(m, handlers)
	if err != nil {
		return nil, err
	}
	for _, method := range compiled.Methods {
		if err := reg.Register(method); err != nil {
			return nil, fmt.Errorf("%s - register %s: %w", compileLogPrefix, method.Name, err)
		}
	}
	return compiled, nil
}

type compiler struct {
	m        *Manifest
	enums    map[string]cast.Type
	records  map[string]*cast.RecordDefinition
	building map[string]bool
}

func (c *compiler) typeByName(name string) (cast.Type, error) {
	switch name {
	case "string":
		return cast.String, nil
	case "number":
		return cast.Number, nil
	case "boolean":
		return cast.Boolean, nil
	case "date":
		return cast.Date, nil
	case "binary":
		return cast.Binary, nil
	case "object":
		return cast.Object, nil
	case "array":
		return cast.Array, nil
	case "null":
		return cast.Null, nil
	}

	if rest, ok := strings.CutPrefix(name, "enum:"); ok {
		parts := strings.Split(rest, "|")
		values := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%s - inline enum %q has no values", compileLogPrefix, name)
		}
		return cast.Enum(name, values...), nil
	}
	if t, ok := c.enums[name]; ok {
		return t, nil
	}
	if _, ok := c.m.Records[name]; ok {
		return c.record(name)
	}
	return nil, fmt.Errorf("%s - unknown type %q", compileLogPrefix, name)
}

func (c *compiler) descriptor(ts TypeSpec) (*cast.Descriptor, error) {
	if len(ts.Types) == 0 {
		return nil, fmt.Errorf("%s - no types declared", compileLogPrefix)
	}
	types := make([]cast.Type, 0, len(ts.Types))
	for _, name := range ts.Types {
		t, err := c.typeByName(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	d := cast.Field(types...)
	if ts.Path != "" {
		p, err := cast.ParsePath(ts.Path)
		if err != nil {
			return nil, fmt.Errorf("%s - path: %w", compileLogPrefix, err)
		}
		d.AtPath(p)
	}
	switch ts.Cardinality {
	case "", "scalar":
	case "array":
		d.Array()
	case "dict":
		d.Dict()
	default:
		return nil, fmt.Errorf("%s - unknown cardinality %q", compileLogPrefix, ts.Cardinality)
	}
	if ts.Required {
		d.Require()
	}
	if ts.Nullable {
		d.AllowNull()
	}
	if ts.MemberNullable {
		d.AllowNullMembers()
	}
	for _, tag := range ts.Validate {
		d.Check(cast.Tag(tag))
	}
	if ts.Description != "" {
		d.Describe(ts.Description)
	}

	if ts.Default != nil {
		v, err := d.Cast(ts.Default, nil)
		if err != nil {
			return nil, fmt.Errorf("%s - default: %w", compileLogPrefix, err)
		}
		d.WithDefault(v)
	}
	return d, nil
}

// record builds a record definition once, after its mixins and any record
// its fields refer to. Self-reference, direct or indirect, is an error.
func (c *compiler) record(name string) (*cast.RecordDefinition, error) {
	if def, ok := c.records[name]; ok {
		return def, nil
	}
	if c.building[name] {
		return nil, fmt.Errorf("%s - record %q refers to itself", compileLogPrefix, name)
	}
	c.building[name] = true
	defer delete(c.building, name)

	spec := c.m.Records[name]

	var def *cast.RecordDefinition
	if len(spec.Mixins) > 0 {
		mixins := make([]*cast.RecordDefinition, 0, len(spec.Mixins))
		for _, mixin := range spec.Mixins {
			if _, ok := c.m.Records[mixin]; !ok {
				return nil, fmt.Errorf("%s - record %q: unknown mixin %q", compileLogPrefix, name, mixin)
			}
			md, err := c.record(mixin)
			if err != nil {
				return nil, err
			}
			mixins = append(mixins, md)
		}
		def = cast.Merge(name, mixins...)
	} else {
		def = cast.Define(name)
	}

	for _, f := range spec.Fields {
		desc, err := c.descriptor(f.TypeSpec)
		if err != nil {
			return nil, fmt.Errorf("%s - record %q field %q: %w", compileLogPrefix, name, f.Name, err)
		}
		def.Field(f.Name, desc)
	}
	if spec.Additional != nil {
		desc, err := c.descriptor(*spec.Additional)
		if err != nil {
			return nil, fmt.Errorf("%s - record %q additional: %w", compileLogPrefix, name, err)
		}
		def.Additional(desc)
	}

	c.records[name] = def
	return def, nil
}

func (c *compiler) method(spec MethodSpec, handlers Handlers) (registry.Method, error) {
	m := registry.Method{
		Name:        spec.Name,
		Aliases:     spec.Aliases,
		Version:     spec.Version,
		Deprecated:  spec.Deprecated,
		Description: spec.Description,
		Envelope:    spec.Envelope,
		Extensions:  spec.Extensions,
	}

	for _, ps := range spec.Params {
		p := registry.Param{
			Name:        ps.Name,
			WholeInput:  ps.WholeInput,
			Optional:    ps.Optional,
			Rest:        ps.Rest,
			Description: ps.Description,
		}
		if len(ps.Types) > 0 {
			desc, err := c.descriptor(ps.TypeSpec)
			if err != nil {
				return m, fmt.Errorf("%s - method %q param %q: %w", compileLogPrefix, spec.Name, ps.Name, err)
			}
			p.Desc = desc
		}
		m.Params = append(m.Params, p)
	}

	if spec.Returns != nil {
		desc, err := c.descriptor(*spec.Returns)
		if err != nil {
			return m, fmt.Errorf("%s - method %q returns: %w", compileLogPrefix, spec.Name, err)
		}
		m.Returns = desc
	}

	for _, name := range spec.Errors {
		kind, ok := apperr.Lookup(name)
		if !ok {
			return m, fmt.Errorf("%s - method %q: unknown error kind %q", compileLogPrefix, spec.Name, name)
		}
		m.Errors = append(m.Errors, kind)
	}

	if spec.RateLimit != nil {
		m.RateLimit = &registry.RateLimit{PerSecond: spec.RateLimit.PerSecond, Burst: spec.RateLimit.Burst}
	}

	handlerName := spec.HandlerName()
	m.Resolve = func() (registry.Handler, error) {
		h, ok := handlers[handlerName]
		if !ok || h == nil {
			return nil, fmt.Errorf("no handler named %q", handlerName)
		}
		return h, nil
	}
	return m, nil
}
