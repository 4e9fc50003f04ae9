package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/morezero/castrpc/pkg/apperr"
	"github.com/morezero/castrpc/pkg/cast"
)

// Args holds bound handler arguments in declaration order. An argument whose
// input was absent and had no default is unset.
type Args struct {
	names  []string
	values map[string]any
	set    map[string]bool
}

func newArgs(n int) Args {
	return Args{
		names:  make([]string, 0, n),
		values: make(map[string]any, n),
		set:    make(map[string]bool, n),
	}
}

func (a *Args) add(name string, v any, ok bool) {
	a.names = append(a.names, name)
	if ok {
		a.values[name] = v
		a.set[name] = true
	}
}

// Get returns an argument and whether it is set.
func (a Args) Get(name string) (any, bool) {
	return a.values[name], a.set[name]
}

// Has reports whether the argument is set.
func (a Args) Has(name string) bool {
	return a.set[name]
}

// Value returns the argument, or nil when unset.
func (a Args) Value(name string) any {
	return a.values[name]
}

// Names returns the parameter names in declaration order.
func (a Args) Names() []string {
	return append([]string(nil), a.names...)
}

// Values returns the arguments positionally; unset ones are nil.
func (a Args) Values() []any {
	out := make([]any, len(a.names))
	for i, n := range a.names {
		out[i] = a.values[n]
	}
	return out
}

// Map returns the set arguments keyed by parameter name.
func (a Args) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Len returns the number of declared parameters.
func (a Args) Len() int {
	return len(a.names)
}

// Arg returns a typed argument. ok is false when the argument is unset or has
// a different type.
func Arg[T any](a Args, name string) (v T, ok bool) {
	raw, set := a.Get(name)
	if !set {
		return v, false
	}
	v, ok = raw.(T)
	return v, ok
}

// FitInputToArgs binds input to the parameters of the named method without
// invoking it.
func (r *Registry) FitInputToArgs(name string, input map[string]any) (Args, error) {
	e, aerr := r.lookup(name)
	if aerr != nil {
		return Args{}, aerr
	}
	p, err := r.prepare(e)
	if err != nil {
		return Args{}, apperr.Internal.Wrap(err, "method preparation failed")
	}
	args, aerr := r.bind(e, p, input)
	if aerr != nil {
		return Args{}, aerr
	}
	return args, nil
}

// bind casts each parameter from input. Optional parameters swallow cast
// failures; the rest parameter then receives every top-level key no other
// parameter's path starts with.
func (r *Registry) bind(e *entry, p *prepared, input map[string]any) (Args, *apperr.Error) {
	if input == nil {
		input = map[string]any{}
	}

	args := newArgs(len(p.params))
	claimed := make(map[string]bool, len(p.params))

	for _, bp := range p.params {
		if !bp.rest {
			if root, ok := bp.desc.Path.Root(); ok {
				claimed[root] = true
			}
		}

		v, ok, err := bp.desc.Resolve(input)
		if err != nil {
			if bp.optional {
				r.logger.Debug(fmt.Sprintf("%s - %s optional parameter %q dropped: %v", logPrefix, e.key(), bp.name, err))
				args.add(bp.name, nil, false)
				continue
			}
			return Args{}, paramError(e, bp, err)
		}
		args.add(bp.name, v, ok)
	}

	if p.rest >= 0 {
		name := p.params[p.rest].name
		if v, ok := args.values[name]; ok {
			args.values[name] = absorb(v, input, claimed)
		}
	}
	return args, nil
}

// absorb copies unclaimed input keys onto a record or map value. Other values
// are returned unchanged.
func absorb(v any, input map[string]any, claimed map[string]bool) any {
	keys := make([]string, 0, len(input))
	for k := range input {
		if !claimed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	switch t := v.(type) {
	case *cast.Record:
		if len(keys) == 0 {
			return t
		}
		out := t.Clone()
		for _, k := range keys {
			if !out.Has(k) {
				out.Set(k, input[k])
			}
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t)+len(keys))
		for k, val := range t {
			out[k] = val
		}
		for _, k := range keys {
			if _, ok := out[k]; !ok {
				out[k] = input[k]
			}
		}
		return out
	}
	return v
}

func paramError(e *entry, bp boundParam, err error) *apperr.Error {
	detail := map[string]any{
		"message": fmt.Sprintf("Invalid parameter %q for %s", bp.name, e.key()),
		"param":   bp.name,
		"method":  e.method.Name,
		"cause":   err,
	}
	var ce *cast.Error
	if errors.As(err, &ce) {
		ce.Qualify(bp.name)
		for k, v := range ce.Fields() {
			detail[k] = v
		}
		detail["readableMessage"] = ce.Error()
	} else {
		detail["readableMessage"] = err.Error()
	}
	return apperr.ParamValidation.WithDetail(detail)
}
