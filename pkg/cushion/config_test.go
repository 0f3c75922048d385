package cushion

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfigRunsMultipleInputsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "a.c", "int a;\n")
	writeTempFile(t, dir, "b.c", "int b;\n")

	var buf bytes.Buffer
	cfg := &Config{
		Inputs: []string{dir + "/a.c", dir + "/b.c"},
		Output: &buf,
	}
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := engine.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(buf.String())
	aIdx := strings.Index(got, "int a;")
	bIdx := strings.Index(got, "int b;")
	if aIdx < 0 || bIdx < 0 || bIdx < aIdx {
		t.Fatalf("got %q, want a.c's content before b.c's", got)
	}
}

func TestConfigUndefinesRemoveACommandLineDefine(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "int x = FOO;\n")
	out, err := runCushion(t, dir, "main.c", func(cfg *Config) {
		cfg.Defines = []MacroDef{{Name: "FOO", Value: "1"}}
		cfg.Undefines = []string{"FOO"}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stripLineMarkers(out); !strings.Contains(got, "int x = FOO;") {
		t.Fatalf("got %q, want the --undefine flag to win over an earlier -D", got)
	}
}

func TestConfigForbidRedefinitionAllowsIdenticalRedefinition(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "#define FOO 1\n#define FOO 1\nint x = FOO;\n")
	out, err := runCushion(t, dir, "main.c", func(cfg *Config) {
		cfg.ForbidRedefinition = true
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stripLineMarkers(out); !strings.Contains(got, "int x = 1;") {
		t.Fatalf("got %q", got)
	}
}

func TestConfigCommandLineDefineRejectsWrappedMarker(t *testing.T) {
	cfg := &Config{
		Output:  &bytes.Buffer{},
		Defines: []MacroDef{{Name: "FOO", Value: "__CUSHION_WRAPPED__"}},
	}
	if _, err := NewEngine(cfg); err == nil {
		t.Fatal("expected NewEngine to reject __CUSHION_WRAPPED__ in a -D value")
	}
}

func TestConfigCommandLineDefineRejectsPreserveMarker(t *testing.T) {
	cfg := &Config{
		Output:  &bytes.Buffer{},
		Defines: []MacroDef{{Name: "FOO", Value: "__CUSHION_PRESERVE__"}},
	}
	if _, err := NewEngine(cfg); err == nil {
		t.Fatal("expected NewEngine to reject __CUSHION_PRESERVE__ in a -D value")
	}
}

func TestConfigSearchPathsAreWiredIntoIncludeResolver(t *testing.T) {
	includeDir := t.TempDir()
	writeTempFile(t, includeDir, "shared.h", "int fromShared;\n")
	mainDir := t.TempDir()
	writeTempFile(t, mainDir, "main.c", `#include "shared.h"`+"\n")

	out, err := runCushion(t, mainDir, "main.c", func(cfg *Config) {
		cfg.SearchPaths = []SearchPath{{Dir: includeDir, Kind: SearchFull}}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stripLineMarkers(out); !strings.Contains(got, "int fromShared;") {
		t.Fatalf("got %q, want the header resolved via cfg.SearchPaths", got)
	}
}
