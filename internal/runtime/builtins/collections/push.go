package collections

import (
	"fmt"

	"sable/internal/runtime/builtins"
	"sable/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Push,
			Name:       "push",
			Arity:      2,
			ParamNames: []string{"array", "element"},
		},
		// push appends in place, so every alias of the array sees the new
		// element. It returns the array.
		Call: func(env builtins.Env, args []interface{}) (interface{}, error) {
			if len(args) != 2 {
				return value.Null(), fmt.Errorf("push expects 2 arguments, got %d: %w", len(args), builtins.ErrArity)
			}
			arr := args[0].(value.Value)
			if arr.Kind != value.KindArray {
				return value.Null(), fmt.Errorf("push expects an array, got %v: %w", arr.Kind, builtins.ErrType)
			}
			arr.Array.Elems = append(arr.Array.Elems, args[1].(value.Value))
			return arr, nil
		},
	})
}
