package cushion

import (
	"os"
	"path/filepath"
	"strings"
)

// SearchKind tags whether files found via a search path entry may be
// emitted to output (FULL) or only contribute macros and dependencies
// (SCAN).
type SearchKind int

const (
	SearchFull SearchKind = iota
	SearchScan
)

// SearchPath is one directory in the include search list, tagged with
// the kind of inclusion it is allowed to serve.
type SearchPath struct {
	Dir  string
	Kind SearchKind
}

// IncludeResolver resolves #include headers against an ordered search
// list, tracks #pragma once, and feeds the depfile set every path it
// actually opens.
type IncludeResolver struct {
	Paths []SearchPath

	pragmaOnce map[string]struct{}
	depfile    *Depfile
}

// NewIncludeResolver creates a resolver recording opened paths into deps.
func NewIncludeResolver(deps *Depfile) *IncludeResolver {
	return &IncludeResolver{pragmaOnce: make(map[string]struct{}), depfile: deps}
}

// ResolvedInclude describes a header resolved to an openable file.
type ResolvedInclude struct {
	AbsPath string
	Kind    SearchKind
}

// ResolveLocal resolves a user-form ("...") header: first against dir (the
// directory of the including file), then falling through to the ordered
// search list exactly as ResolveAngled does.
func (r *IncludeResolver) ResolveLocal(dir, name string) (ResolvedInclude, bool) {
	if dir != "" {
		cand := filepath.Join(dir, name)
		if abs, ok := statAbs(cand); ok {
			return ResolvedInclude{AbsPath: abs, Kind: SearchFull}, true
		}
	}
	return r.ResolveAngled(name)
}

// ResolveAngled resolves a system-form (<...>) header against the ordered
// search list, returning the first entry whose directory contains name.
func (r *IncludeResolver) ResolveAngled(name string) (ResolvedInclude, bool) {
	for _, p := range r.Paths {
		cand := filepath.Join(p.Dir, name)
		if abs, ok := statAbs(cand); ok {
			return ResolvedInclude{AbsPath: abs, Kind: p.Kind}, true
		}
	}
	return ResolvedInclude{}, false
}

func statAbs(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return abs, true
}

// AlreadyPragmaOnce reports whether path was previously registered by
// #pragma once, in which case the caller must skip re-opening it.
func (r *IncludeResolver) AlreadyPragmaOnce(absPath string) bool {
	_, ok := r.pragmaOnce[absPath]
	return ok
}

// RegisterPragmaOnce records absPath as having processed #pragma once.
func (r *IncludeResolver) RegisterPragmaOnce(absPath string) {
	r.pragmaOnce[absPath] = struct{}{}
}

// RecordOpen records absPath as a dependency of the output.
func (r *IncludeResolver) RecordOpen(absPath string) {
	if r.depfile != nil {
		r.depfile.Add(absPath)
	}
}

// Depfile accumulates the distinct absolute paths opened during a run and
// renders them as a single Make-syntax prerequisite line.
type Depfile struct {
	seen  map[string]struct{}
	order []string
}

// NewDepfile creates an empty Depfile.
func NewDepfile() *Depfile {
	return &Depfile{seen: make(map[string]struct{})}
}

// Add records path as a dependency, ignoring duplicates.
func (d *Depfile) Add(path string) {
	if _, ok := d.seen[path]; ok {
		return
	}
	d.seen[path] = struct{}{}
	d.order = append(d.order, path)
}

// Render produces the single depfile line naming outputPath as the target.
// Paths are rendered with '/' separators regardless of host platform, per
// the output format contract shared with #line markers.
func (d *Depfile) Render(outputPath string) string {
	var b strings.Builder
	b.WriteByte('"')
	b.WriteString(toSlash(outputPath))
	b.WriteString("\":")
	for _, p := range d.order {
		b.WriteByte(' ')
		b.WriteString(toSlash(p))
	}
	b.WriteByte('\n')
	return b.String()
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
