package strings

import (
	"fmt"

	"sable/internal/runtime/builtins"
	"sable/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Str,
			Name:       "str",
			Arity:      1,
			ParamNames: []string{"value"},
		},
		Call: func(env builtins.Env, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return value.Null(), fmt.Errorf("str expects 1 argument, got %d: %w", len(args), builtins.ErrArity)
			}
			return value.Str(args[0].(value.Value).String()), nil
		},
	})
}
