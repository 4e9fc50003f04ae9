package app

import (
	"net/http"
	"strings"

	"github.com/morezero/castrpc/pkg/apperr"
	"github.com/morezero/castrpc/pkg/cast"
	"github.com/morezero/castrpc/pkg/envelope"
	"github.com/morezero/castrpc/pkg/registry"
)

// Built-in method names.
const (
	MethodList     = "system.methods"
	MethodDescribe = "system.describe"
	MethodHealth   = "system.health"
	MethodEcho     = "system.echo"
)

// builtins returns the introspection methods every castrpc process exposes.
// They go through the same binding and envelope path as manifest methods.
func builtins(reg *registry.Registry) []registry.Method {
	return []registry.Method{
		{
			Name:        MethodList,
			Aliases:     []string{"methods"},
			Description: "List registered methods, optionally filtered by name prefix",
			Params: []registry.Param{
				{Name: "prefix", Desc: cast.Field(cast.String), Optional: true},
			},
			Returns: cast.Field(cast.Object).Array(),
			Handler: func(_ *registry.Call, args registry.Args) (any, error) {
				prefix, _ := registry.Arg[string](args, "prefix")
				all := reg.Methods()
				out := make([]registry.MethodInfo, 0, len(all))
				for _, m := range all {
					if strings.HasPrefix(m.Name, prefix) {
						out = append(out, m)
					}
				}
				return out, nil
			},
		},
		{
			Name:        MethodDescribe,
			Aliases:     []string{"describe"},
			Description: "Describe one method by name, alias or name@range",
			Params: []registry.Param{
				{Name: "method", Desc: cast.Field(cast.String).Require().Check(cast.Tag("min=1"))},
			},
			Returns: cast.Field(cast.Object),
			Errors:  []apperr.Kind{apperr.MethodNotFound},
			Handler: func(_ *registry.Call, args registry.Args) (any, error) {
				ref, _ := registry.Arg[string](args, "method")
				return reg.Describe(ref)
			},
		},
		{
			Name:        MethodHealth,
			Aliases:     []string{"health"},
			Description: "Registry health; answers 503 until every method is prepared",
			Returns:     cast.Field(cast.Object),
			Handler: func(*registry.Call, registry.Args) (any, error) {
				h := reg.Health()
				if h.Status != "healthy" {
					return envelope.WithMeta(h, envelope.Meta{HTTPCode: http.StatusServiceUnavailable}), nil
				}
				return h, nil
			},
		},
		{
			Name:        MethodEcho,
			Aliases:     []string{"echo"},
			Description: "Return the input unchanged",
			Params: []registry.Param{
				{Name: "input", WholeInput: true},
			},
			Handler: func(_ *registry.Call, args registry.Args) (any, error) {
				return args.Value("input"), nil
			},
		},
	}
}
