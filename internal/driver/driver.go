// Package driver wires the pipeline stages together: source to bytecode,
// optionally through the compile cache, and bytecode to a result.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"sable/internal/config"
	"sable/internal/ir"
	"sable/internal/parser"
	"sable/internal/runtime"
	"sable/internal/store"
	"sable/internal/value"
	"sable/internal/vm"
)

var log = commonlog.GetLogger("sable.driver")

// File extensions.
const (
	SourceExt = ".sb"
	ImageExt  = ".sbc"
)

// ParseError carries every lexer and parser diagnostic of one source.
type ParseError struct {
	Errors []string
}

func (e *ParseError) Error() string {
	return strings.Join(e.Errors, "\n")
}

// Compile lexes, parses and compiles src. Parse errors stop the pipeline
// before compilation and are returned as *ParseError; compile errors as
// ir.ErrorList.
func Compile(src string) (*ir.Bytecode, error) {
	prog, errs := parser.ParseProgram(src)
	if len(errs) > 0 {
		return nil, &ParseError{Errors: errs}
	}
	return ir.Compile(prog)
}

// CompileCached is Compile with a lookup in st first. A nil store compiles
// directly. hit reports whether the unit came from the cache.
func CompileCached(ctx context.Context, st *store.Store, src string) (bc *ir.Bytecode, hit bool, err error) {
	if st == nil {
		bc, err = Compile(src)
		return bc, false, err
	}

	key := store.Key(src)
	bc, hit, err = st.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if hit {
		log.Debugf("cache hit %s", key[:12])
		return bc, true, nil
	}

	bc, err = Compile(src)
	if err != nil {
		return nil, false, err
	}
	if err := st.Put(ctx, key, bc); err != nil {
		// The cache is an optimisation; a failed write is not fatal.
		log.Warningf("cache write %s: %s", key[:12], err)
	}
	return bc, false, nil
}

// Load returns the unit for path: a .sbc image is read as is, anything
// else is compiled as source (through st when non-nil).
func Load(ctx context.Context, st *store.Store, path string) (*ir.Bytecode, error) {
	if filepath.Ext(path) == ImageExt {
		bc, err := ir.ReadBytecodeFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read bytecode: %w", err)
		}
		return bc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bc, _, err := CompileCached(ctx, st, string(data))
	return bc, err
}

// VMOptions translates the [vm] section into VM options.
func VMOptions(cfg *config.Config) []vm.Option {
	if cfg == nil {
		return nil
	}
	return []vm.Option{
		vm.WithMaxFrames(cfg.VM.MaxFrames),
		vm.WithMaxStack(cfg.VM.MaxStack),
		vm.WithStepBudget(cfg.VM.StepBudget),
	}
}

// Run executes bc in a fresh VM. A nil env prints to stdout. opts are
// applied after the ones derived from cfg.
func Run(ctx context.Context, bc *ir.Bytecode, env *runtime.Env, cfg *config.Config, opts ...vm.Option) (value.Value, error) {
	m := vm.New(bc, env, append(VMOptions(cfg), opts...)...)
	return m.Run(ctx)
}

// OpenCache opens the store named by cfg, or returns nil when caching is
// disabled.
func OpenCache(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg == nil || cfg.Cache.Driver == "" {
		return nil, nil
	}
	return store.Open(ctx, cfg.Cache.Driver, cfg.Cache.DSN)
}
