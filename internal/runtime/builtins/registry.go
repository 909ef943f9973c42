package builtins

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Env provides host services to builtins.
// This interface is implemented by runtime.Env to avoid import cycles.
type Env interface {
	IO() IO
}

// IO is the minimal output interface needed by print.
type IO interface {
	Println(string)
}

// ID is a builtin function identifier. IDs are stored in compiled images,
// so existing values must never be renumbered.
type ID int

const (
	Print ID = iota
	Len
	Push
	Str
	TypeOf
	// future builtins go here
)

// Errors returned by builtin implementations. The VM turns them into the
// matching fault kinds.
var (
	ErrArity = errors.New("wrong number of arguments")
	ErrType  = errors.New("wrong argument type")
)

// Meta contains metadata about a builtin function.
type Meta struct {
	ID         ID
	Name       string
	Arity      int
	ParamNames []string // Parameter names in order (must match Arity)
}

// Builtin represents a builtin function with both metadata and implementation.
// The Call function signature uses interface{} to avoid import cycles.
// Implementations should import the value package and cast appropriately.
type Builtin struct {
	Meta Meta
	// Call executes the builtin. env may be nil for pure builtins.
	Call func(env Env, args []interface{}) (interface{}, error)
}

// registry holds all registered builtins with fast lookup indexes.
type registry struct {
	mu sync.RWMutex

	// Index by ID for fast dispatch
	byID map[ID]*Builtin

	// Index by name for compile-time lookup
	byName map[string]*Builtin
}

var globalRegistry = &registry{
	byID:   make(map[ID]*Builtin),
	byName: make(map[string]*Builtin),
}

// Register registers a builtin. This is called automatically by each builtin's init() function.
// Panics if the builtin ID or name is already registered or if metadata is invalid.
func Register(b Builtin) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if len(b.Meta.ParamNames) != b.Meta.Arity {
		panic(fmt.Sprintf("builtin %s (ID %d): ParamNames length (%d) != Arity (%d)",
			b.Meta.Name, b.Meta.ID, len(b.Meta.ParamNames), b.Meta.Arity))
	}
	if b.Call == nil {
		panic(fmt.Sprintf("builtin %s (ID %d) has no implementation", b.Meta.Name, b.Meta.ID))
	}
	if _, exists := globalRegistry.byID[b.Meta.ID]; exists {
		panic(fmt.Sprintf("builtin ID %d (%s) is already registered", b.Meta.ID, b.Meta.Name))
	}
	if _, exists := globalRegistry.byName[b.Meta.Name]; exists {
		panic(fmt.Sprintf("builtin name %q is already registered", b.Meta.Name))
	}

	globalRegistry.byID[b.Meta.ID] = &b
	globalRegistry.byName[b.Meta.Name] = &b
}

// LookupByID finds a builtin by ID. Returns nil if not found.
func LookupByID(id ID) *Builtin {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return globalRegistry.byID[id]
}

// LookupByName finds a builtin by name. Returns nil if not found.
func LookupByName(name string) *Builtin {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return globalRegistry.byName[name]
}

// All returns all registered builtin metadata ordered by ID.
func All() []Meta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	result := make([]Meta, 0, len(globalRegistry.byID))
	for _, b := range globalRegistry.byID {
		result = append(result, b.Meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
