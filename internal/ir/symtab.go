package ir

// SymbolScope says where a symbol's value lives at runtime.
type SymbolScope int

const (
	GlobalScope   SymbolScope = iota // globals table slot
	LocalScope                       // frame slot relative to base
	FunctionScope                    // the function currently being compiled
)

func (s SymbolScope) String() string {
	switch s {
	case GlobalScope:
		return "GLOBAL"
	case LocalScope:
		return "LOCAL"
	case FunctionScope:
		return "FUNCTION"
	}
	return "UNKNOWN"
}

// Symbol is the compile-time binding of a name to a storage location.
type Symbol struct {
	Name  string
	Scope SymbolScope
	Index int
	// Depth is the function nesting level the symbol was defined at;
	// 0 is top-level code.
	Depth int
}

type scopeLevel struct {
	names map[string]Symbol
}

// SymbolTable is a stack of lexical scopes owned by the compiler. The
// innermost scope is last. Each function gets its own slot counter; block
// scopes inside a function draw from that counter so sibling blocks never
// reuse a slot.
type SymbolTable struct {
	levels     []scopeLevel
	counters   []int // slot counter per enclosing function, innermost last
	numGlobals int
}

// NewSymbolTable returns a table holding only the global scope.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		levels: []scopeLevel{{names: make(map[string]Symbol)}},
	}
}

// Depth is the current function nesting level.
func (st *SymbolTable) Depth() int { return len(st.counters) }

// NumGlobals is the number of global slots handed out so far.
func (st *SymbolTable) NumGlobals() int { return st.numGlobals }

// Define binds name in the innermost scope to the next free slot. A second
// definition in the same scope replaces the first and gets a fresh slot.
func (st *SymbolTable) Define(name string) Symbol {
	sym := Symbol{Name: name, Depth: st.Depth()}
	if len(st.counters) == 0 {
		sym.Scope = GlobalScope
		sym.Index = st.numGlobals
		st.numGlobals++
	} else {
		top := len(st.counters) - 1
		sym.Scope = LocalScope
		sym.Index = st.counters[top]
		st.counters[top]++
	}
	st.levels[len(st.levels)-1].names[name] = sym
	return sym
}

// DefineFunctionName binds the name of the function being compiled. It
// takes no slot; loads compile to OpCurrentFunction. global is the slot a
// top-level declaration is stored in, or -1 for a nested function.
func (st *SymbolTable) DefineFunctionName(name string, global int) Symbol {
	sym := Symbol{Name: name, Scope: FunctionScope, Index: global, Depth: st.Depth()}
	st.levels[len(st.levels)-1].names[name] = sym
	return sym
}

// Resolve looks name up from the innermost scope outwards.
func (st *SymbolTable) Resolve(name string) (Symbol, bool) {
	for i := len(st.levels) - 1; i >= 0; i-- {
		if sym, ok := st.levels[i].names[name]; ok {
			return sym, true
		}
	}
	return Symbol{}, false
}

// EnterFunction opens the outermost scope of a new function body.
func (st *SymbolTable) EnterFunction() {
	st.counters = append(st.counters, 0)
	st.push()
}

// ExitFunction closes the function scope and returns the number of local
// slots it used.
func (st *SymbolTable) ExitFunction() int {
	st.pop()
	top := len(st.counters) - 1
	n := st.counters[top]
	st.counters = st.counters[:top]
	return n
}

// EnterBlock opens a nested block scope in the current storage area.
func (st *SymbolTable) EnterBlock() { st.push() }

// ExitBlock closes the innermost block scope.
func (st *SymbolTable) ExitBlock() { st.pop() }

func (st *SymbolTable) push() {
	st.levels = append(st.levels, scopeLevel{names: make(map[string]Symbol)})
}

func (st *SymbolTable) pop() {
	if len(st.levels) == 1 {
		panic("symbol table: cannot pop the global scope")
	}
	st.levels = st.levels[:len(st.levels)-1]
}
