package cast

import (
	"fmt"
	"log/slog"
)

const logPrefix = "cast:mixin"

// Merge flattens mixins into a new definition. Fields keep the position of their
// first appearance; a later mixin redefining a field replaces its descriptor and
// the conflict is logged and recorded in Overrides. The last catch-all wins and
// record validators accumulate in merge order.
func Merge(name string, mixins ...*RecordDefinition) *RecordDefinition {
	out := Define(name)
	for _, m := range mixins {
		for _, f := range m.fields {
			if i, ok := out.index[f.name]; ok {
				prev := out.fields[i]
				note := fmt.Sprintf("%s.%s overrides %s.%s", f.owner, f.name, prev.owner, prev.name)
				out.overrides = append(out.overrides, note)
				slog.Warn(fmt.Sprintf("%s - %s: %s", logPrefix, name, note))
				out.fields[i] = f
				continue
			}
			out.index[f.name] = len(out.fields)
			out.fields = append(out.fields, f)
		}
		if m.additional != nil {
			out.additional = m.additional
		}
		out.validators = append(out.validators, m.validators...)
	}
	return out
}
