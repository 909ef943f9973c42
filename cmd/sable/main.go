package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"sable/internal/ast"
	"sable/internal/config"
	"sable/internal/conformance"
	"sable/internal/driver"
	"sable/internal/ir"
	"sable/internal/parser"
	"sable/internal/runtime"
	"sable/internal/runtime/builtins"
)

const version = "0.1.0"

var log = commonlog.GetLogger("sable.cli")

// globals holds the flags accepted before the command name.
type globals struct {
	configPath string
	verbosity  int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var g globals
	fs := flag.NewFlagSet("sable", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.configPath, "config", "", "path to sable.toml (default: search upwards)")
	fs.BoolFunc("v", "increase log verbosity (repeatable)", func(string) error {
		g.verbosity++
		return nil
	})
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "run":
		err = cmdRun(ctx, g, rest, stdout)
	case "build":
		err = cmdBuild(ctx, g, rest)
	case "disasm":
		err = cmdDisasm(ctx, g, rest, stdout)
	case "ast":
		err = cmdAST(rest, stdout)
	case "test":
		err = cmdTest(ctx, g, rest, stdout)
	case "help", "-h", "--help":
		usage(stdout)
	case "version", "--version":
		fmt.Fprintln(stdout, "sable", version)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", cmd)
		usage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `sable language CLI

Usage:
  sable [-config file] [-v] <command> [arguments]

Commands:
  run      Compile+run .sb source or run .sbc bytecode
  build    Compile .sb source into .sbc file
  disasm   Print the bytecode listing of a .sb or .sbc file
  ast      Print the syntax tree of a .sb file
  test     Run the YAML conformance suites in a directory
  version  sable version

Flags (run):
  -result  Print the program result

Flags (build):
  -o       Output file name (default: <input>.sbc)

Flags (test):
  -j       Number of tests run concurrently (default: all)

Builtins:`)
	for _, m := range builtins.All() {
		fmt.Fprintf(w, "  %s(%s)\n", m.Name, strings.Join(m.ParamNames, ", "))
	}
}

// setup loads the configuration for a command working on path and
// configures logging from it.
func setup(g globals, path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case g.configPath != "":
		cfg, err = config.Load(g.configPath)
	case path != "":
		cfg, err = config.FindAndLoad(filepath.Dir(path))
	default:
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}

	var logFile *string
	if cfg.Log.File != "" {
		logFile = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity+g.verbosity, logFile)
	if cfg.Path != "" {
		log.Debugf("using config %s", cfg.Path)
	}
	return cfg, nil
}

// load resolves path to a unit, going through the compile cache when one
// is configured.
func load(ctx context.Context, cfg *config.Config, path string) (*ir.Bytecode, error) {
	st, err := driver.OpenCache(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("compile cache: %w", err)
	}
	if st != nil {
		defer st.Close()
	}
	return driver.Load(ctx, st, path)
}

func checkExt(cmd, path string, allowed ...string) error {
	ext := filepath.Ext(path)
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported file extension %q (use %s)", cmd, ext, strings.Join(allowed, " or "))
}

// -------------- RUN --------------

func cmdRun(ctx context.Context, g globals, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var printResult bool
	fs.BoolVar(&printResult, "result", false, "print the program result")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("run: missing input file")
	}
	input := fs.Arg(0)
	if err := checkExt("run", input, driver.SourceExt, driver.ImageExt); err != nil {
		return err
	}

	cfg, err := setup(g, input)
	if err != nil {
		return err
	}
	bc, err := load(ctx, cfg, input)
	if err != nil {
		return err
	}

	val, err := driver.Run(ctx, bc, runtime.NewWriterEnv(stdout), cfg)
	if err != nil {
		return err
	}
	if printResult {
		fmt.Fprintln(stdout, val.Inspect())
	}
	return nil
}

// -------------- BUILD --------------

func cmdBuild(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var out string
	fs.StringVar(&out, "o", "", "output file (default: <input>.sbc)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("build: missing input file")
	}
	input := fs.Arg(0)

	if filepath.Ext(input) != driver.SourceExt {
		return fmt.Errorf("build: input must be %s source file", driver.SourceExt)
	}
	if out == "" {
		out = strings.TrimSuffix(input, driver.SourceExt) + driver.ImageExt
	}

	cfg, err := setup(g, input)
	if err != nil {
		return err
	}
	bc, err := load(ctx, cfg, input)
	if err != nil {
		return err
	}
	if err := ir.WriteBytecodeToFile(out, bc); err != nil {
		return fmt.Errorf("failed to write bytecode: %w", err)
	}
	log.Infof("wrote %s", out)
	return nil
}

// -------------- DISASM --------------

func cmdDisasm(ctx context.Context, g globals, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("disasm: missing input file")
	}
	input := args[0]
	if err := checkExt("disasm", input, driver.SourceExt, driver.ImageExt); err != nil {
		return err
	}
	cfg, err := setup(g, input)
	if err != nil {
		return err
	}
	bc, err := load(ctx, cfg, input)
	if err != nil {
		return err
	}
	return ir.Disassemble(stdout, bc)
}

// -------------- AST --------------

func cmdAST(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("ast: missing input file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	prog, errs := parser.ParseProgram(string(data))
	if len(errs) > 0 {
		return &driver.ParseError{Errors: errs}
	}
	fmt.Fprint(stdout, ast.Dump(prog))
	return nil
}

// -------------- TEST --------------

func cmdTest(ctx context.Context, g globals, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var jobs int
	fs.IntVar(&jobs, "j", 0, "number of tests run concurrently (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	cfg, err := setup(g, filepath.Join(dir, "x"))
	if err != nil {
		return err
	}
	tests, err := conformance.Load(dir)
	if err != nil {
		return err
	}
	if len(tests) == 0 {
		return fmt.Errorf("test: no suites found in %s", dir)
	}

	report, err := conformance.NewRunner(cfg, jobs).RunAll(ctx, tests)
	if err != nil {
		return err
	}
	for _, r := range report.Results {
		switch {
		case r.Skipped:
			fmt.Fprintf(stdout, "SKIP %s: %s\n", r.Test.Name(), r.SkipReason)
		case !r.Passed:
			fmt.Fprintf(stdout, "FAIL %s: %v\n", r.Test.Name(), r.Error)
		}
	}
	fmt.Fprintf(stdout, "run %s: %s\n", report.RunID, conformance.FormatStats(report.Stats))
	if report.Stats.Failed > 0 {
		return errors.New("conformance failures")
	}
	return nil
}
