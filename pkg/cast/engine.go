// Package cast converts untyped input (decoded JSON, query maps, manifests) into
// typed values. A Descriptor says where a value lives and which candidate Types
// it may become; a RecordDefinition groups descriptors into a named record.
package cast

import (
	"errors"
)

// CastOne tries each candidate in order and returns the first successful
// conversion. Types reporting ErrMismatch are skipped silently; other errors are
// remembered and the last one is returned if nothing matches. A *Error coming out
// of a nested record stops the search and propagates as is.
func CastOne(types []Type, raw any) (any, error) {
	set := TypeSet(types)
	var last error
	for _, t := range set {
		v, err := t.Convert(raw, set)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrMismatch) {
			continue
		}
		var ce *Error
		if errors.As(err, &ce) {
			return nil, ce
		}
		last = err
	}
	if last != nil {
		return nil, &Error{Reason: ReasonConversion, Value: raw, Types: set.Names(), Cause: last}
	}
	return nil, &Error{Reason: ReasonNoCandidate, Value: raw, Types: set.Names()}
}
