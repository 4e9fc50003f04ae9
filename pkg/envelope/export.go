package envelope

import (
	"io"
	"reflect"
	"time"
)

// Exporter is implemented by values that marshal lazily into a plainer form.
// Export may return another Exporter; resolution is bounded by MaxExportDepth.
type Exporter interface {
	Export() any
}

// MaxExportDepth bounds chained Exporter resolution.
const MaxExportDepth = 10

// Export resolves Exporters and deep-copies plain slices and maps with every member
// exported. Primitives, byte slices and readers pass through unchanged. Other
// slice and map types are copied with their concrete type preserved; structs and
// pointers are returned as they are. A container that contains itself exports
// as nil at the point where it recurs.
func Export(v any) any {
	x := exporter{path: make(map[containerKey]bool)}
	return x.export(v, 0)
}

type containerKey struct {
	kind reflect.Kind
	ptr  uintptr
	len  int
}

// exporter tracks the containers on the path from the root to the value being
// exported.
type exporter struct {
	path map[containerKey]bool
}

// enter marks a slice or map as being exported. It reports false when the
// container is already on the path.
func (x *exporter) enter(rv reflect.Value) (containerKey, bool) {
	key := containerKey{kind: rv.Kind(), ptr: rv.Pointer()}
	if key.kind == reflect.Slice {
		key.len = rv.Len()
	}
	if key.ptr == 0 {
		return key, true
	}
	if x.path[key] {
		return key, false
	}
	x.path[key] = true
	return key, true
}

func (x *exporter) leave(key containerKey) {
	delete(x.path, key)
}

func (x *exporter) export(v any, depth int) any {
	switch t := v.(type) {
	case nil, bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64,
		[]byte, time.Time, io.Reader:
		return v
	case Exporter:
		if depth >= MaxExportDepth {
			return nil
		}
		return x.export(t.Export(), depth+1)
	case []any:
		key, ok := x.enter(reflect.ValueOf(t))
		if !ok {
			return nil
		}
		defer x.leave(key)
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = x.export(e, depth)
		}
		return out
	case map[string]any:
		key, ok := x.enter(reflect.ValueOf(t))
		if !ok {
			return nil
		}
		defer x.leave(key)
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = x.export(e, depth)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		key, ok := x.enter(rv)
		if !ok {
			return nil
		}
		defer x.leave(key)
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(x.exportInto(rv.Index(i), depth))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		key, ok := x.enter(rv)
		if !ok {
			return nil
		}
		defer x.leave(key)
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), x.exportInto(iter.Value(), depth))
		}
		return out.Interface()
	case reflect.Func, reflect.Chan:
		return nil
	}
	return v
}

// exportInto exports one member of a typed container, keeping the original member
// when the exported form no longer fits the element type.
func (x *exporter) exportInto(member reflect.Value, depth int) reflect.Value {
	if member.Kind() == reflect.Interface && member.IsNil() {
		return member
	}
	exported := x.export(member.Interface(), depth)
	if exported == nil {
		return reflect.Zero(member.Type())
	}
	ev := reflect.ValueOf(exported)
	if ev.Type().AssignableTo(member.Type()) {
		return ev
	}
	return member
}
