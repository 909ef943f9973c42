package runtime

import (
	"fmt"

	"sable/internal/runtime/builtins"
	// Import all builtin packages to trigger their init() functions for self-registration
	_ "sable/internal/runtime/builtins/collections"
	_ "sable/internal/runtime/builtins/io"
	_ "sable/internal/runtime/builtins/meta"
	_ "sable/internal/runtime/builtins/strings"
	"sable/internal/value"
)

// CallBuiltin executes a builtin identified by builtins.ID with given args.
// It uses services from Env. Errors wrap builtins.ErrArity or
// builtins.ErrType when the arguments are at fault.
func CallBuiltin(env *Env, id builtins.ID, args []value.Value) (value.Value, error) {
	builtin := builtins.LookupByID(id)
	if builtin == nil {
		return value.Null(), fmt.Errorf("unknown builtin id %d", id)
	}
	if len(args) != builtin.Meta.Arity {
		return value.Null(), fmt.Errorf("%s expects %d argument(s), got %d: %w",
			builtin.Meta.Name, builtin.Meta.Arity, len(args), builtins.ErrArity)
	}

	// Convert []value.Value to []interface{} for the Call function
	argsIface := make([]interface{}, len(args))
	for i, arg := range args {
		argsIface[i] = arg
	}

	var benv builtins.Env
	if env != nil {
		benv = env
	}
	resultIface, err := builtin.Call(benv, argsIface)
	if err != nil {
		return value.Null(), err
	}

	// Convert result back to value.Value
	result, ok := resultIface.(value.Value)
	if !ok {
		return value.Null(), fmt.Errorf("builtin %s returned non-Value type", builtin.Meta.Name)
	}

	return result, nil
}

// LookupBuiltin reports the name and arity of a registered builtin.
func LookupBuiltin(id builtins.ID) (name string, arity int, ok bool) {
	b := builtins.LookupByID(id)
	if b == nil {
		return "", 0, false
	}
	return b.Meta.Name, b.Meta.Arity, true
}
