package meta

import (
	"fmt"

	"sable/internal/runtime/builtins"
	"sable/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.TypeOf,
			Name:       "typeOf",
			Arity:      1,
			ParamNames: []string{"value"},
		},
		// typeOf names the runtime variant: null, int, bool, string, array
		// or function.
		Call: func(env builtins.Env, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return value.Null(), fmt.Errorf("typeOf expects 1 argument, got %d: %w", len(args), builtins.ErrArity)
			}
			return value.Str(args[0].(value.Value).Kind.String()), nil
		},
	})
}
