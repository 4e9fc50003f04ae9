package registry

import (
	"fmt"

	"github.com/morezero/castrpc/pkg/cast"
)

// prepared is the cached, call-ready form of a method.
type prepared struct {
	handler Handler
	params  []boundParam
	rest    int // index into params, -1 without a rest parameter
}

type boundParam struct {
	name     string
	desc     *cast.Descriptor
	optional bool
	rest     bool
}

// prepare builds the call-ready form of e once. Every later call gets the same
// result, including a failure.
func (r *Registry) prepare(e *entry) (*prepared, error) {
	e.once.Do(func() {
		e.prepared, e.prepErr = buildPrepared(e.method)
		if e.prepErr != nil {
			e.state.Store(stateFailed)
			r.logger.Error(fmt.Sprintf("%s - failed to prepare %s: %v", logPrefix, e.key(), e.prepErr))
			return
		}
		e.state.Store(statePrepared)
		r.logger.Debug(fmt.Sprintf("%s - prepared %s params=%d", logPrefix, e.key(), len(e.prepared.params)))
	})
	return e.prepared, e.prepErr
}

func buildPrepared(m Method) (p *prepared, err error) {
	h := m.Handler
	if h == nil {
		h, err = resolveHandler(m)
		if err != nil {
			return nil, err
		}
	}

	p = &prepared{handler: h, rest: -1}
	for i, param := range m.Params {
		desc, err := bindDescriptor(param)
		if err != nil {
			return nil, fmt.Errorf("%s - %s parameter %q: %v: %w", logPrefix, m.Name, param.Name, err, ErrInvalidMethod)
		}
		if param.Rest {
			p.rest = i
		}
		p.params = append(p.params, boundParam{
			name:     param.Name,
			desc:     desc,
			optional: param.Optional,
			rest:     param.Rest,
		})
	}
	return p, nil
}

func resolveHandler(m Method) (h Handler, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h, err = nil, fmt.Errorf("%s - %s resolver panicked: %v: %w", logPrefix, m.Name, rec, ErrInvalidMethod)
		}
	}()
	h, err = m.Resolve()
	if err != nil {
		return nil, fmt.Errorf("%s - %s resolver: %v: %w", logPrefix, m.Name, err, ErrInvalidMethod)
	}
	if h == nil {
		return nil, fmt.Errorf("%s - %s resolver returned no handler: %w", logPrefix, m.Name, ErrInvalidMethod)
	}
	return h, nil
}

// bindDescriptor copies the declared descriptor and fixes its access path. The
// binding annotation wins over the descriptor's own path; a descriptor without
// a path reads the key named after the parameter, except for rest parameters
// which default to the whole input.
func bindDescriptor(param Param) (*cast.Descriptor, error) {
	var desc *cast.Descriptor
	if param.Desc != nil {
		desc = param.Desc.Clone()
	} else {
		desc = cast.Field(cast.Object)
	}

	switch {
	case param.WholeInput:
		desc.Path = cast.Path{}
	case param.Path != "":
		p, err := cast.ParsePath(param.Path)
		if err != nil {
			return nil, err
		}
		desc.Path = p
	case !desc.Path.IsZero():
	case param.Rest:
		desc.Path = cast.Path{}
	default:
		desc.Path = cast.KeyPath(param.Name)
	}
	return desc, nil
}
