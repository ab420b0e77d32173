package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "neuromatch ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"index", "build"}, {"index", "search"}, {"match"}, {"version"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}

func TestIndexBuild_RequiresInput(t *testing.T) {
	if _, err := run(t, "index", "build"); err == nil {
		t.Fatal("expected error without --input")
	}
}

func TestIndexBuild_MissingConfigFile(t *testing.T) {
	input := filepath.Join(t.TempDir(), "jobs.txt")
	if err := os.WriteFile(input, []byte("a\nb\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "index", "build", "--input", input, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestReadCorpusFile(t *testing.T) {
	dir := t.TempDir()

	lines := filepath.Join(dir, "jobs.txt")
	if err := os.WriteFile(lines, []byte("  python engineer \n\nchef position\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := readCorpusFile(lines)
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(got) != 2 || got[0] != "python engineer" || got[1] != "chef position" {
		t.Errorf("unexpected lines %q", got)
	}

	arr := filepath.Join(dir, "jobs.JSON")
	if err := os.WriteFile(arr, []byte(`["multi\nline job", "second"]`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = readCorpusFile(arr)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(got) != 2 || got[0] != "multi\nline job" {
		t.Errorf("unexpected json corpus %q", got)
	}

	if _, err := readCorpusFile(filepath.Join(dir, "absent.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
