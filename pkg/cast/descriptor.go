package cast

import (
	"fmt"
	"reflect"
)

// Cardinality selects how a descriptor treats its resolved value.
type Cardinality int

const (
	Scalar Cardinality = iota
	ArrayOf
	DictOf
)

func (c Cardinality) String() string {
	switch c {
	case ArrayOf:
		return "array"
	case DictOf:
		return "dict"
	}
	return "scalar"
}

// Descriptor says how to locate, convert and validate one value inside an input.
// Descriptors are built with Field and its chained setters, usually at startup.
type Descriptor struct {
	Path                 Path
	Types                TypeSet
	Cardinality          Cardinality
	Required             bool
	Default              any
	DefaultFunc          func() any
	HasDefault           bool
	Nullable             bool
	MemberNullable       bool
	Validators           []Validator
	CollectionValidators []Validator
	Description          string
}

// Field starts a descriptor with the given candidate types, tried in order.
// Panics when no type is given.
func Field(types ...Type) *Descriptor {
	if len(types) == 0 {
		panic("cast: descriptor needs at least one candidate type")
	}
	for i, t := range types {
		if t == nil {
			panic(fmt.Sprintf("cast: candidate type %d is nil", i))
		}
	}
	return &Descriptor{Types: TypeSet(types)}
}

// At sets the access path. Panics on a malformed path.
func (d *Descriptor) At(path string) *Descriptor {
	d.Path = MustPath(path)
	return d
}

// AtPath sets an already parsed access path.
func (d *Descriptor) AtPath(p Path) *Descriptor {
	d.Path = p
	return d
}

// Array makes every element of the value be cast against the candidate types.
func (d *Descriptor) Array() *Descriptor {
	d.Cardinality = ArrayOf
	return d
}

// Dict makes every value of a string-keyed map be cast against the candidate types.
func (d *Descriptor) Dict() *Descriptor {
	d.Cardinality = DictOf
	return d
}

func (d *Descriptor) Require() *Descriptor {
	d.Required = true
	return d
}

// Default is used when the value is absent. Slices and maps are deep-copied on
// every use.
func (d *Descriptor) WithDefault(v any) *Descriptor {
	d.Default = v
	d.HasDefault = true
	d.DefaultFunc = nil
	return d
}

// WithDefaultFunc computes the default each time the value is absent.
func (d *Descriptor) WithDefaultFunc(fn func() any) *Descriptor {
	d.DefaultFunc = fn
	d.HasDefault = fn != nil
	d.Default = nil
	return d
}

func (d *Descriptor) AllowNull() *Descriptor {
	d.Nullable = true
	return d
}

// AllowNullMembers lets array and dict members be null.
func (d *Descriptor) AllowNullMembers() *Descriptor {
	d.MemberNullable = true
	return d
}

// Check adds value validators. On arrays and dicts they run against every member.
func (d *Descriptor) Check(vs ...Validator) *Descriptor {
	d.Validators = append(d.Validators, vs...)
	return d
}

// CheckCollection adds validators run against the whole array or dict after all
// members succeed.
func (d *Descriptor) CheckCollection(vs ...Validator) *Descriptor {
	d.CollectionValidators = append(d.CollectionValidators, vs...)
	return d
}

func (d *Descriptor) Describe(text string) *Descriptor {
	d.Description = text
	return d
}

// Clone returns an independent copy; setters on the copy never affect d.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.Types = append(TypeSet(nil), d.Types...)
	c.Validators = append([]Validator(nil), d.Validators...)
	c.CollectionValidators = append([]Validator(nil), d.CollectionValidators...)
	c.Path = Path{steps: d.Path.Steps()}
	return &c
}

// Resolve locates the value at the descriptor's path within input and casts it.
// ok is false when the value is absent and no default applies, or when an explicit
// null is discarded by a non-nullable descriptor.
func (d *Descriptor) Resolve(input any) (value any, ok bool, err error) {
	return d.resolveAt(d.Path, input)
}

func (d *Descriptor) resolveAt(p Path, input any) (any, bool, error) {
	raw, present := p.Lookup(input)
	if !present {
		switch {
		case d.DefaultFunc != nil:
			return d.DefaultFunc(), true, nil
		case d.HasDefault:
			return copyValue(d.Default), true, nil
		case d.Required:
			return nil, false, d.fail(&Error{Reason: ReasonRequired, Path: p})
		}
		return nil, false, nil
	}
	if raw == nil {
		if d.Nullable {
			return nil, true, nil
		}
		return nil, false, nil
	}
	v, err := d.castPresent(raw, input)
	if err != nil {
		ce := asCastError(err, raw)
		ce.prefixPath(p)
		return nil, false, d.fail(ce)
	}
	return v, true, nil
}

// Cast converts a present, non-null value according to the descriptor's
// cardinality, candidates and validators. Path lookup, defaults and null handling
// are the caller's concern.
func (d *Descriptor) Cast(raw, input any) (any, error) {
	v, err := d.castPresent(raw, input)
	if err != nil {
		return nil, d.fail(asCastError(err, raw))
	}
	return v, nil
}

func (d *Descriptor) castPresent(raw, input any) (any, error) {
	switch d.Cardinality {
	case ArrayOf:
		return d.castArray(raw, input)
	case DictOf:
		return d.castDict(raw, input)
	}
	v, err := CastOne(d.Types, raw)
	if err != nil {
		return nil, err
	}
	if err := runValidators(d.Validators, v, input); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *Descriptor) fail(e *Error) *Error {
	e.describe(d.Description)
	return e
}

// copyValue deep-copies records, slices and maps so callers can mutate a default freely.
func copyValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Record:
		if t == nil {
			return t
		}
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(copyReflect(rv.Index(i)))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyReflect(iter.Value()))
		}
		return out.Interface()
	}
	return v
}

func copyReflect(v reflect.Value) reflect.Value {
	if !v.IsValid() || (v.Kind() == reflect.Interface && v.IsNil()) {
		return v
	}
	c := copyValue(v.Interface())
	if c == nil {
		return reflect.Zero(v.Type())
	}
	return reflect.ValueOf(c)
}
