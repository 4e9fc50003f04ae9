package registry

import (
	"fmt"
	"log/slog"

	"github.com/morezero/castrpc/pkg/apperr"
	"github.com/morezero/castrpc/pkg/cast"
)

const describeLogPrefix = "registry:describe"

// Describe returns the description of the method ref resolves to. ref accepts
// the same forms as Exec, including aliases and "@range" suffixes.
func (r *Registry) Describe(ref string) (*MethodInfo, error) {
	slog.Debug(fmt.Sprintf("%s - ref=%s", describeLogPrefix, ref))

	e, aerr := r.lookup(ref)
	if aerr != nil {
		return nil, aerr
	}
	info := describeEntry(e)
	return &info, nil
}

// Methods describes every registered method version, sorted by name then version.
func (r *Registry) Methods() []MethodInfo {
	r.mu.RLock()
	all := r.entriesLocked()
	r.mu.RUnlock()

	out := make([]MethodInfo, 0, len(all))
	for _, e := range all {
		out = append(out, describeEntry(e))
	}
	return out
}

func describeEntry(e *entry) MethodInfo {
	m := e.method
	info := MethodInfo{
		Name:        m.Name,
		Version:     m.Version,
		Aliases:     append([]string(nil), m.Aliases...),
		Deprecated:  m.Deprecated,
		Description: m.Description,
		Params:      make([]ParamInfo, 0, len(m.Params)),
		Extensions:  m.Extensions,
		Envelope:    m.Envelope,
		Prepared:    e.state.Load() == statePrepared,
	}
	if e.limiter != nil {
		info.RateLimit = &RateLimit{PerSecond: e.limiter.rps, Burst: e.limiter.burst}
	}

	for _, p := range m.Params {
		pi := ParamInfo{
			Name:       p.Name,
			WholeInput: p.WholeInput,
			Optional:   p.Optional,
			Rest:       p.Rest,
		}
		if desc, err := bindDescriptor(p); err == nil {
			pi.TypeInfo = typeInfo(desc)
			pi.Path = desc.Path.String()
		} else {
			pi.Path = p.Path
		}
		if pi.Description == "" {
			pi.Description = p.Description
		}
		info.Params = append(info.Params, pi)
	}

	if m.Returns != nil {
		ti := typeInfo(m.Returns)
		info.Returns = &ti
	}
	for _, k := range m.Errors {
		info.Errors = append(info.Errors, errorInfo(k))
	}
	return info
}

func typeInfo(d *cast.Descriptor) TypeInfo {
	ti := TypeInfo{
		Types:       d.Types.Names(),
		Cardinality: d.Cardinality.String(),
		Required:    d.Required,
		Nullable:    d.Nullable,
		HasDefault:  d.HasDefault || d.DefaultFunc != nil,
		Description: d.Description,
	}
	for _, v := range d.Validators {
		ti.Validators = append(ti.Validators, v.DisplayName())
	}
	for _, v := range d.CollectionValidators {
		ti.Validators = append(ti.Validators, v.DisplayName())
	}
	return ti
}

func errorInfo(k apperr.Kind) ErrorInfo {
	return ErrorInfo{Name: k.Name, Status: k.Status, Code: k.Code()}
}
