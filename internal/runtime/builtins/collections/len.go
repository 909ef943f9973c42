package collections

import (
	"fmt"

	"sable/internal/runtime/builtins"
	"sable/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Len,
			Name:       "len",
			Arity:      1,
			ParamNames: []string{"value"},
		},
		Call: func(env builtins.Env, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return value.Null(), fmt.Errorf("len expects 1 argument, got %d: %w", len(args), builtins.ErrArity)
			}
			arg := args[0].(value.Value)
			switch arg.Kind {
			case value.KindArray:
				return value.Int(int64(len(arg.Array.Elems))), nil
			case value.KindString:
				return value.Int(int64(len(arg.Str))), nil
			}
			return value.Null(), fmt.Errorf("len expects array or string, got %v: %w", arg.Kind, builtins.ErrType)
		},
	})
}
