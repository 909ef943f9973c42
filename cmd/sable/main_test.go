package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunSource(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "hello.sb", `print("hello"); return 6 * 7;`)

	code, out, errOut := runCLI(t, "run", "-result", src)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "hello\n42\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBuildThenRunImage(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "prog.sb", `fun sq(x) { return x * x; } print(sq(9));`)
	img := filepath.Join(dir, "out.sbc")

	if code, _, errOut := runCLI(t, "build", "-o", img, src); code != 0 {
		t.Fatalf("build exit %d: %s", code, errOut)
	}
	code, out, errOut := runCLI(t, "run", img)
	if code != 0 {
		t.Fatalf("run exit %d: %s", code, errOut)
	}
	if out != "81\n" {
		t.Fatalf("unexpected output %q", out)
	}

	code, out, _ = runCLI(t, "disasm", img)
	if code != 0 || !strings.Contains(out, "func sq (params=1, locals=1)") {
		t.Fatalf("unexpected disassembly (exit %d):\n%s", code, out)
	}
}

func TestRunFaultExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "bad.sb", "return 1 / 0;")
	code, _, errOut := runCLI(t, "run", src)
	if code != 1 || !strings.Contains(errOut, "DivisionByZero") {
		t.Fatalf("expected DivisionByZero failure, got exit %d: %s", code, errOut)
	}
}

func TestRunUsesConfigAndCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sable.toml", "[vm]\nstep_budget = 50\n\n[cache]\ndriver = \"sqlite\"\ndsn = \"cache.db\"\n")
	src := writeFile(t, dir, "loop.sb", "while (true) { }")

	code, _, errOut := runCLI(t, "run", src)
	if code != 1 || !strings.Contains(errOut, "Canceled") {
		t.Fatalf("expected step budget fault, got exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache.db")); err != nil {
		t.Fatalf("expected cache database next to config: %v", err)
	}
}

func TestASTCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.sb", "let x = 1;")
	code, out, errOut := runCLI(t, "ast", src)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "VarDecl name=x") {
		t.Fatalf("unexpected ast dump:\n%s", out)
	}
}

func TestTestCommand(t *testing.T) {
	code, out, errOut := runCLI(t, "test", "-j", "2", filepath.Join("..", "..", "internal", "conformance", "testdata"))
	if code != 0 {
		t.Fatalf("exit %d:\n%s\n%s", code, out, errOut)
	}
	if !strings.Contains(out, "0 failed") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	if code, _, _ := runCLI(t, "frobnicate"); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != 0 || out != "sable "+version+"\n" {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestHelpListsBuiltins(t *testing.T) {
	code, out, _ := runCLI(t, "help")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	for _, want := range []string{"Builtins:", "  print(value)\n", "  push(array, element)\n", "  typeOf(value)\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help output missing %q:\n%s", want, out)
		}
	}
}
