package cushion

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var lineMarkerRE = regexp.MustCompile(`(?m)^#line \d+ ".*"\n?`)

// stripLineMarkers removes the synthetic "#line N \"file\"" markers a run
// emits so a test can assert on the substantive output text without also
// pinning down the absolute temp-directory path used for the source file.
func stripLineMarkers(s string) string {
	return lineMarkerRE.ReplaceAllString(s, "")
}

func runCushion(t *testing.T, dir, mainName string, configure func(cfg *Config)) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cfg := &Config{
		Inputs: []string{filepath.Join(dir, mainName)},
		Output: &buf,
	}
	if configure != nil {
		configure(cfg)
	}
	engine, err := NewEngine(cfg)
	if err != nil {
		return "", err
	}
	err = engine.Run()
	return buf.String(), err
}

func TestLexerPlainPassthrough(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "int x = 1;\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stripLineMarkers(out); got != "int x = 1;\n" {
		t.Fatalf("got %q", got)
	}
}

func TestLexerObjectLikeMacroExpansion(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "#define WIDTH 80\nint w = WIDTH;\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if !strings.Contains(got, "int w = 80;") {
		t.Fatalf("got %q, want it to contain %q", got, "int w = 80;")
	}
}

func TestLexerFunctionLikeMacroExpansion(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "#define ADD(a, b) ((a) + (b))\nint s = ADD(1, 2);\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if !strings.Contains(got, "int s = ((1) + (2));") {
		t.Fatalf("got %q", got)
	}
}

func TestLexerStringizeAndPaste(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c",
		"#define STR(x) #x\n#define CAT(a, b) a ## b\nchar *s = STR(hello);\nint CAT(foo, bar);\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if !strings.Contains(got, `char *s = "hello";`) {
		t.Fatalf("got %q, want the stringized literal", got)
	}
	if !strings.Contains(got, "int foobar;") {
		t.Fatalf("got %q, want the pasted identifier", got)
	}
}

func TestLexerConditionalInclusionTakesTrueBranchOnly(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c",
		"#define FEATURE 1\n#if FEATURE\nint on;\n#else\nint off;\n#endif\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if !strings.Contains(got, "int on;") {
		t.Fatalf("got %q, want the #if branch", got)
	}
	if strings.Contains(got, "int off;") {
		t.Fatalf("got %q, should not contain the #else branch", got)
	}
}

func TestLexerIfdefIfndefAndElif(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c",
		"#define B\n#ifdef A\nint a;\n#elif defined(B)\nint b;\n#else\nint c;\n#endif\n"+
			"#ifndef A\nint notA;\n#endif\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	for _, want := range []string{"int b;", "int notA;"} {
		if !strings.Contains(got, want) {
			t.Errorf("got %q, want it to contain %q", got, want)
		}
	}
	for _, unwanted := range []string{"int a;", "int c;"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("got %q, should not contain %q", got, unwanted)
		}
	}
}

func TestLexerFileAndLineBuiltins(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "int l = __LINE__;\nconst char *f = __FILE__;\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if !strings.Contains(got, "int l = 1;") {
		t.Fatalf("got %q, want __LINE__ substituted with 1", got)
	}
	if !strings.Contains(got, `const char *f = "`) {
		t.Fatalf("got %q, want __FILE__ substituted with a quoted path", got)
	}
}

func TestLexerUndefMakesNameOrdinaryAgain(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "#define FOO 1\n#undef FOO\nint FOO;\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if !strings.Contains(got, "int FOO;") {
		t.Fatalf("got %q, want the undefined name left alone", got)
	}
}

func TestLexerCommandLineDefine(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "int x = VALUE;\n")
	out, err := runCushion(t, dir, "main.c", func(cfg *Config) {
		cfg.Defines = []MacroDef{{Name: "VALUE", Value: "42"}}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if !strings.Contains(got, "int x = 42;") {
		t.Fatalf("got %q", got)
	}
}

func TestLexerCommandLineDefineDefaultsToOne(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "#if FLAG\nint on;\n#endif\n")
	out, err := runCushion(t, dir, "main.c", func(cfg *Config) {
		cfg.Defines = []MacroDef{{Name: "FLAG"}}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stripLineMarkers(out); !strings.Contains(got, "int on;") {
		t.Fatalf("got %q, want a bare -D to define its name as 1", got)
	}
}

func TestLexerForbidMacroRedefinitionRejectsChangedReplacement(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "#define FOO 1\n#define FOO 2\n")
	_, err := runCushion(t, dir, "main.c", func(cfg *Config) {
		cfg.ForbidRedefinition = true
	})
	if err == nil {
		t.Fatal("expected an error for an incompatible macro redefinition")
	}
}

func TestLexerUndefinedIdentifierInIfIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "#if SOME_UNDEFINED_NAME\nint x;\n#endif\n")
	_, err := runCushion(t, dir, "main.c", nil)
	if err == nil {
		t.Fatal("expected an error for an undefined identifier in a controlling expression")
	}
}

func TestLexerPragmaOnceSkipsSecondInclusion(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "once.h", "#pragma once\nint shared;\n")
	writeTempFile(t, dir, "main.c", `#include "once.h"`+"\n"+`#include "once.h"`+"\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if strings.Count(got, "int shared;") != 1 {
		t.Fatalf("got %q, want exactly one copy of the pragma-once header's content", got)
	}
}

func TestLexerIncludeEchoesUnmatchedHeaderUnlessScanOnly(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "main.c", "#include <does-not-exist.h>\nint x;\n")
	out, err := runCushion(t, dir, "main.c", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if !strings.Contains(got, "#include <does-not-exist.h>") {
		t.Fatalf("got %q, want the unresolved #include echoed back", got)
	}
}

func TestLexerScanOnlySearchPathNeverEmitsHeaderContent(t *testing.T) {
	dir := t.TempDir()
	scanDir := t.TempDir()
	writeTempFile(t, scanDir, "macros.h", "#define SCANNED 9\n")
	writeTempFile(t, dir, "main.c", "#include <macros.h>\nint x = SCANNED;\n")
	out, err := runCushion(t, dir, "main.c", func(cfg *Config) {
		cfg.SearchPaths = []SearchPath{{Dir: scanDir, Kind: SearchScan}}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := stripLineMarkers(out)
	if strings.Contains(got, "#define") {
		t.Fatalf("got %q, a scan-only header's text must never be emitted", got)
	}
	if !strings.Contains(got, "int x = 9;") {
		t.Fatalf("got %q, want the scan-only header's macro still visible to the including file", got)
	}
}

func TestLexerDepfileListsEveryOpenedFile(t *testing.T) {
	dir := t.TempDir()
	headerPath := writeTempFile(t, dir, "dep.h", "int fromHeader;\n")
	mainPath := writeTempFile(t, dir, "main.c", `#include "dep.h"`+"\n")

	var depBuf bytes.Buffer
	_, err := runCushion(t, dir, "main.c", func(cfg *Config) {
		cfg.DepfileOutput = &depBuf
		cfg.DepfileTargetName = "out.i"
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	depAbs, _ := filepath.Abs(headerPath)
	mainAbs, _ := filepath.Abs(mainPath)
	got := depBuf.String()
	if !strings.Contains(got, depAbs) || !strings.Contains(got, mainAbs) {
		t.Fatalf("depfile %q does not list both %q and %q", got, mainAbs, depAbs)
	}
	if !strings.HasPrefix(got, `"out.i":`) {
		t.Fatalf("depfile %q does not target out.i", got)
	}
}

func TestLexerOsStat(t *testing.T) {
	// Sanity check that writeTempFile actually produced a readable file,
	// guarding against a silently broken fixture helper masking every
	// other test in this file as a false pass.
	dir := t.TempDir()
	path := writeTempFile(t, dir, "x.c", "x")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Stat: %v", err)
	}
}
