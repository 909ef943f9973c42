package io

import (
	"fmt"

	"sable/internal/runtime/builtins"
	"sable/internal/value"
)

func init() {
	builtins.Register(builtins.Builtin{
		Meta: builtins.Meta{
			ID:         builtins.Print,
			Name:       "print",
			Arity:      1,
			ParamNames: []string{"value"},
		},
		Call: func(env builtins.Env, args []interface{}) (interface{}, error) {
			if len(args) != 1 {
				return value.Null(), fmt.Errorf("print expects 1 argument, got %d: %w", len(args), builtins.ErrArity)
			}
			if env == nil || env.IO() == nil {
				return value.Null(), fmt.Errorf("runtime env IO is nil")
			}
			val := args[0].(value.Value)
			env.IO().Println(val.String())
			return value.Null(), nil
		},
	})
}
