package cast

import (
	"reflect"
	"sort"
	"strconv"
)

func (d *Descriptor) castArray(raw, input any) (any, error) {
	elems, ok := asSlice(raw)
	if !ok {
		elems = []any{raw}
	}
	out := make([]any, len(elems))
	for i, e := range elems {
		v, err := d.castMember(e)
		if err != nil {
			ce := asCastError(err, e)
			ce.prefixPath(Path{steps: []Step{{Index: i, IsIndex: true}}})
			ce.prefixProperty("[" + strconv.Itoa(i) + "]")
			return nil, ce
		}
		out[i] = v
	}
	for i, v := range out {
		if v == nil {
			continue
		}
		if err := runValidators(d.Validators, v, input); err != nil {
			ce := err.(*Error)
			ce.prefixPath(Path{steps: []Step{{Index: i, IsIndex: true}}})
			ce.prefixProperty("[" + strconv.Itoa(i) + "]")
			return nil, ce
		}
	}
	if err := runValidators(d.CollectionValidators, out, input); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Descriptor) castDict(raw, input any) (any, error) {
	entries, ok := asDict(raw)
	if !ok {
		return nil, &Error{Reason: ReasonNotDict, Value: raw, Types: d.Types.Names()}
	}
	out, err := d.castEntries(entries, input)
	if err != nil {
		return nil, err
	}
	if err := runValidators(d.CollectionValidators, out, input); err != nil {
		return nil, err
	}
	return out, nil
}

// castEntries casts every value of entries in key order, then runs member validators.
func (d *Descriptor) castEntries(entries map[string]any, input any) (map[string]any, error) {
	keys := sortedKeys(entries)
	out := make(map[string]any, len(entries))
	for _, k := range keys {
		v, err := d.castMember(entries[k])
		if err != nil {
			ce := asCastError(err, entries[k])
			ce.prefixPath(KeyPath(k))
			ce.prefixProperty(k)
			return nil, ce
		}
		out[k] = v
	}
	for _, k := range keys {
		if out[k] == nil {
			continue
		}
		if err := runValidators(d.Validators, out[k], input); err != nil {
			ce := err.(*Error)
			ce.prefixPath(KeyPath(k))
			ce.prefixProperty(k)
			return nil, ce
		}
	}
	return out, nil
}

// castMember casts one array or dict member. Nulls are kept when members may be
// null or when Null is itself a candidate.
func (d *Descriptor) castMember(raw any) (any, error) {
	if raw == nil {
		if d.MemberNullable {
			return nil, nil
		}
		if !d.Types.Has(Null) {
			return nil, &Error{Reason: ReasonNullMember, Types: d.Types.Names()}
		}
	}
	return CastOne(d.Types, raw)
}

// asDict views a string-keyed map or a built record as map[string]any.
func asDict(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case *Record:
		return v.Fields(), true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
