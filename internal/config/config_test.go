package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaults(t *testing.T) {
	c := Default()
	if c.VM.MaxFrames != 1024 || c.VM.MaxStack != 65536 || c.VM.StepBudget != 0 {
		t.Fatalf("unexpected vm defaults %+v", c.VM)
	}
	if c.Cache.Driver != "" {
		t.Fatalf("cache should be disabled by default")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `
[vm]
step_budget = 5000

[cache]
driver = "sqlite"
dsn = "cache.db"

[log]
verbosity = 2
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.VM.StepBudget != 5000 {
		t.Fatalf("expected step budget 5000, got %d", c.VM.StepBudget)
	}
	if c.VM.MaxFrames != 1024 {
		t.Fatalf("unset keys should keep defaults, got max_frames=%d", c.VM.MaxFrames)
	}
	if c.Log.Verbosity != 2 {
		t.Fatalf("expected verbosity 2, got %d", c.Log.Verbosity)
	}
	if want := filepath.Join(dir, "cache.db"); c.Cache.DSN != want {
		t.Fatalf("expected dsn %q, got %q", want, c.Cache.DSN)
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "[vm]\nmax_frames = 10\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.VM.MaxFrames != 10 {
		t.Fatalf("expected max_frames 10, got %d", c.VM.MaxFrames)
	}
	if c.Path == "" {
		t.Fatalf("expected Path to be set")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"bad driver", "[cache]\ndriver = \"mysql\"\ndsn = \"x\"\n"},
		{"missing dsn", "[cache]\ndriver = \"postgres\"\n"},
		{"negative", "[vm]\nmax_stack = -1\n"},
		{"syntax", "[vm\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			writeFile(t, path, tt.toml)
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPostgresDSNUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	dsn := "postgres://user@localhost/sable?sslmode=disable"
	writeFile(t, path, "[cache]\ndriver = \"postgres\"\ndsn = \""+dsn+"\"\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Cache.DSN != dsn {
		t.Fatalf("expected dsn unchanged, got %q", c.Cache.DSN)
	}
}
