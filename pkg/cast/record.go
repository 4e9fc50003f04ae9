package cast

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

type fieldDef struct {
	name  string
	owner string
	desc  *Descriptor
	path  Path
}

// RecordValidator checks a fully assembled record against the raw input it was
// built from.
type RecordValidator struct {
	Name  string
	Check func(rec *Record, input any) error
}

// RecordDefinition is an ordered set of named field descriptors. A definition is
// itself a Type, so records nest: a field whose candidate is a definition builds
// the nested record from the sub-value.
type RecordDefinition struct {
	name       string
	fields     []fieldDef
	index      map[string]int
	additional *Descriptor
	validators []RecordValidator
	overrides  []string
}

// Define starts an empty record definition.
func Define(name string) *RecordDefinition {
	return &RecordDefinition{name: name, index: make(map[string]int)}
}

// Field appends a field. Without an explicit path the field reads the input key
// equal to its name. Redefining a name replaces the descriptor in place.
func (d *RecordDefinition) Field(name string, desc *Descriptor) *RecordDefinition {
	f := fieldDef{name: name, owner: d.name, desc: desc, path: desc.Path}
	if f.path.IsZero() {
		f.path = KeyPath(name)
	}
	if i, ok := d.index[name]; ok {
		d.fields[i] = f
		return d
	}
	d.index[name] = len(d.fields)
	d.fields = append(d.fields, f)
	return d
}

// Additional absorbs top-level input keys no field claims. Each unclaimed value is
// cast against desc's candidates as a dict member.
func (d *RecordDefinition) Additional(desc *Descriptor) *RecordDefinition {
	d.additional = desc
	return d
}

// Validate adds a whole-record validator, run after every field is assigned.
func (d *RecordDefinition) Validate(name string, check func(rec *Record, input any) error) *RecordDefinition {
	d.validators = append(d.validators, RecordValidator{Name: name, Check: check})
	return d
}

func (d *RecordDefinition) Name() string { return d.name }

// FieldNames returns the declared field names in order.
func (d *RecordDefinition) FieldNames() []string {
	out := make([]string, len(d.fields))
	for i, f := range d.fields {
		out[i] = f.name
	}
	return out
}

// FieldDescriptor returns the descriptor for a named field.
func (d *RecordDefinition) FieldDescriptor(name string) (*Descriptor, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.fields[i].desc, true
}

// Overrides lists field conflicts resolved while merging mixins.
func (d *RecordDefinition) Overrides() []string {
	return append([]string(nil), d.overrides...)
}

// TypeName implements Type.
func (d *RecordDefinition) TypeName() string { return d.name }

// Convert implements Type. Records of this definition are accepted unchanged.
func (d *RecordDefinition) Convert(raw any, _ TypeSet) (any, error) {
	if rec, ok := raw.(*Record); ok && rec.def == d {
		return rec, nil
	}
	return d.Build(raw)
}

// Build constructs a record from raw input, which must be an object.
func Build(def *RecordDefinition, raw any) (*Record, error) {
	return def.Build(raw)
}

// Build constructs a record from raw input. Fields are resolved in declaration
// order and the first failure aborts construction.
func (d *RecordDefinition) Build(raw any) (*Record, error) {
	obj, ok := asDict(raw)
	if !ok {
		return nil, &Error{Reason: ReasonNotObject, Record: d.name, Value: raw}
	}
	rec := newRecord(d)
	claimed := make(map[string]bool, len(d.fields))
	for _, f := range d.fields {
		if root, ok := f.path.Root(); ok {
			claimed[root] = true
		}
		v, present, err := f.desc.resolveAt(f.path, obj)
		if err != nil {
			ce := err.(*Error)
			ce.prefixProperty(f.name)
			ce.inRecord(d.name)
			return nil, ce
		}
		if present {
			rec.set(f.name, v)
		}
	}
	if d.additional != nil {
		rest := make(map[string]any)
		for k, v := range obj {
			if !claimed[k] {
				rest[k] = v
			}
		}
		extras, err := d.additional.castEntries(rest, obj)
		if err == nil {
			err = runValidators(d.additional.CollectionValidators, extras, obj)
		}
		if err != nil {
			ce := asCastError(err, rest)
			ce.inRecord(d.name)
			return nil, ce
		}
		for _, k := range sortedKeys(extras) {
			if !rec.Has(k) {
				rec.set(k, extras[k])
			}
		}
	}
	for _, rv := range d.validators {
		if err := rv.run(rec, raw); err != nil {
			err.Record = d.name
			return nil, err
		}
	}
	return rec, nil
}

func (rv RecordValidator) run(rec *Record, input any) (err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Reason: ReasonRecordCheck, Validator: rv.Name, Value: input, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	if cerr := rv.Check(rec, input); cerr != nil {
		return &Error{Reason: ReasonRecordCheck, Validator: rv.Name, Value: input, Cause: cerr}
	}
	return nil
}

// Record is a value built from a RecordDefinition. Field order follows the
// definition, with catch-all extras after the declared fields.
type Record struct {
	def    *RecordDefinition
	keys   []string
	values map[string]any
}

func newRecord(def *RecordDefinition) *Record {
	return &Record{def: def, values: make(map[string]any)}
}

// Definition returns the definition the record was built from.
func (r *Record) Definition() *RecordDefinition { return r.def }

// Get returns a field value and whether the field is set.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether the field is set.
func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Set assigns a field, appending it to the key order if new.
func (r *Record) Set(name string, v any) {
	r.set(name, v)
}

func (r *Record) set(name string, v any) {
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = v
}

// Clone returns a deep copy of the record. Nested records, slices and maps are
// copied too; the definition is shared.
func (r *Record) Clone() *Record {
	out := &Record{
		def:    r.def,
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = copyValue(v)
	}
	return out
}

// Keys returns the set field names in order.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Fields returns a shallow copy of the field map.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Export returns the record as plain maps and slices, nested records included.
func (r *Record) Export() any {
	return plain(r)
}

func plain(v any) any {
	switch t := v.(type) {
	case *Record:
		out := make(map[string]any, len(t.values))
		for k, e := range t.values {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	}
	return v
}

// MarshalJSON writes the fields in record order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("cast: marshal %s.%s: %w", r.def.name, k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode copies the record into a Go struct (or map) using json field tags.
func (r *Record) Decode(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  dst,
	})
	if err != nil {
		return fmt.Errorf("cast: decoder for %s: %w", r.def.name, err)
	}
	if err := dec.Decode(plain(r)); err != nil {
		return fmt.Errorf("cast: decode %s: %w", r.def.name, err)
	}
	return nil
}
