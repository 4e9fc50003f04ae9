// Package envelope turns the outcome of a method call into a transport-neutral
// result: an exported payload plus protocol metadata (HTTP-like code, extended
// status, content type, headers) that adapters render onto their own transport.
package envelope

import "github.com/morezero/castrpc/pkg/apperr"

// Meta is protocol metadata carried alongside a value, never inside it.
type Meta struct {
	HTTPCode    int               `json:"httpCode,omitempty" yaml:"httpCode,omitempty"`
	Status      int               `json:"status,omitempty" yaml:"status,omitempty"`
	ContentType string            `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Envelope names the strategy the value asks to be wrapped with.
	Envelope string         `json:"envelope,omitempty" yaml:"envelope,omitempty"`
	Extra    map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// IsZero reports whether no field is set.
func (m Meta) IsZero() bool {
	return m.HTTPCode == 0 && m.Status == 0 && m.ContentType == "" &&
		len(m.Headers) == 0 && m.Envelope == "" && len(m.Extra) == 0
}

// Merge returns m overlaid with every field set in o. Headers and Extra merge
// key by key.
func (m Meta) Merge(o Meta) Meta {
	out := m
	if o.HTTPCode != 0 {
		out.HTTPCode = o.HTTPCode
	}
	if o.Status != 0 {
		out.Status = o.Status
	}
	if o.ContentType != "" {
		out.ContentType = o.ContentType
	}
	if o.Envelope != "" {
		out.Envelope = o.Envelope
	}
	if len(m.Headers) > 0 || len(o.Headers) > 0 {
		out.Headers = make(map[string]string, len(m.Headers)+len(o.Headers))
		for k, v := range m.Headers {
			out.Headers[k] = v
		}
		for k, v := range o.Headers {
			out.Headers[k] = v
		}
	}
	if len(m.Extra) > 0 || len(o.Extra) > 0 {
		out.Extra = make(map[string]any, len(m.Extra)+len(o.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
		for k, v := range o.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// PatchMeta fills whichever of HTTPCode and Status is missing from the other:
// Status = HTTPCode*100, HTTPCode = first three digits of Status. When both or
// neither are set, m is returned unchanged.
func PatchMeta(m Meta) Meta {
	switch {
	case m.HTTPCode != 0 && m.Status == 0:
		m.Status = m.HTTPCode * 100
	case m.Status != 0 && m.HTTPCode == 0:
		m.HTTPCode = apperr.DeriveCode(m.Status)
	}
	return m
}

// Annotated pairs a value with metadata.
type Annotated struct {
	Value any
	Meta  Meta
}

// Export implements Exporter by exporting the wrapped value.
func (a *Annotated) Export() any {
	if a == nil {
		return nil
	}
	return a.Value
}

// WithMeta attaches meta to v. Annotating an already annotated value merges the
// new metadata over the old, last write wins.
func WithMeta(v any, m Meta) *Annotated {
	if a, ok := v.(*Annotated); ok && a != nil {
		return &Annotated{Value: a.Value, Meta: a.Meta.Merge(m)}
	}
	return &Annotated{Value: v, Meta: m}
}

// MetaOf returns the metadata attached to v, if any.
func MetaOf(v any) (Meta, bool) {
	if a, ok := v.(*Annotated); ok && a != nil {
		return a.Meta, true
	}
	return Meta{}, false
}

// Unwrap strips an annotation, returning the bare value.
func Unwrap(v any) any {
	if a, ok := v.(*Annotated); ok && a != nil {
		return a.Value
	}
	return v
}
