package cushion

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FeatureSet gates the non-standard extensions; each is off unless the
// caller's configuration turns it on, so a plain translation unit that
// happens to use one of the reserved identifiers as an ordinary name is
// never silently reinterpreted.
type FeatureSet struct {
	Defer                bool
	WrapperMacro         bool
	StatementAccumulator bool
	Snippet              bool
}

// MacroDef is one command-line -D definition, still in unparsed
// "NAME" / "NAME=VALUE" form.
type MacroDef struct {
	Name  string
	Value string
}

// Config is everything the engine needs to run a preprocessing job; the
// command-line flag parser and the absolute-path resolver that build one
// are outside the core's scope. The CLI layer owns opening Output and
// DepfileOutput before calling NewEngine/Run.
type Config struct {
	Features           FeatureSet
	ForbidRedefinition bool
	Inputs             []string
	Output             io.Writer
	DepfileOutput      io.Writer // nil disables depfile emission
	DepfileTargetName  string    // the "<output-path>" that appears in the depfile
	Defines            []MacroDef
	Undefines          []string
	SearchPaths        []SearchPath
}

// Engine owns every piece of state that survives across the input files of
// a single run: the macro table, the include resolver and its depfile, the
// two extension managers, and the deferred-output sink multiplexer wrapping
// the caller's writer.
type Engine struct {
	arena        *Arena
	macros       *MacroTable
	includes     *IncludeResolver
	depfile      *Depfile
	accumulators *AccumulatorTable
	defers       *DeferManager
	out          *SinkWriter
	features     FeatureSet
	config       *Config
}

// NewEngine builds an Engine from cfg, installing the command-line macro
// definitions before any input file is processed.
func NewEngine(cfg *Config) (*Engine, error) {
	arena := NewArena()
	macros := NewMacroTable()
	macros.ForbidRedefinition = cfg.ForbidRedefinition
	depfile := NewDepfile()
	e := &Engine{
		arena:        arena,
		macros:       macros,
		includes:     NewIncludeResolver(depfile),
		depfile:      depfile,
		accumulators: NewAccumulatorTable(),
		defers:       NewDeferManager(),
		features:     cfg.Features,
		config:       cfg,
	}
	e.includes.Paths = cfg.SearchPaths
	for _, u := range cfg.Undefines {
		macros.Undefine(u)
	}
	for _, d := range cfg.Defines {
		if err := e.installCommandLineDefine(d); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// installCommandLineDefine parses one -D flag's value into a macro
// definition. §7 rejects __CUSHION_WRAPPED__/__CUSHION_PRESERVE__ appearing
// in a command-line define's value: those tokens only have meaning as the
// literal leading/embedded markers of a source-level #define.
func (e *Engine) installCommandLineDefine(d MacroDef) error {
	value := d.Value
	if value == "" {
		value = "1"
	}
	tz := NewTokenizerFromString(value, "<command-line>")
	tz.Mode = ModeRegular
	tz.atBOL = false
	var repl []TokenListItem
	for {
		tok, err := tz.NextToken()
		if err != nil {
			return err
		}
		if tok.Kind == KindEOF {
			break
		}
		if tok.Kind == KindWhitespace || tok.Kind == KindNewline || tok.Kind == KindComment {
			continue
		}
		if tok.Kind == KindIdentifier && tok.Ident == IdentCushionWrapped {
			return errf(KindSemantics, SourcePos{File: "<command-line>"}, "__CUSHION_WRAPPED__ is not permitted in a command-line define")
		}
		if tok.Kind == KindIdentifier && tok.Ident == IdentCushionPreserve {
			return errf(KindSemantics, SourcePos{File: "<command-line>"}, "__CUSHION_PRESERVE__ is not permitted in a command-line define")
		}
		repl = append(repl, TokenListItem{Tok: tok})
	}
	m := &Macro{Name: d.Name, Kind: MacroObjectLike, Replacement: repl, DefPos: SourcePos{File: "<command-line>"}}
	return e.macros.Define(m)
}

// Run preprocesses every configured input file in order to cfg.Output, then
// finalizes every statement accumulator and writes the depfile to
// cfg.DepfileOutput if one was supplied.
func (e *Engine) Run() error {
	e.out = NewSinkWriter(e.config.Output)
	for _, in := range e.config.Inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return errf(KindIO, SourcePos{}, "resolving input path %q: %v", in, err)
		}
		if err := e.runFile(abs, false); err != nil {
			return err
		}
	}
	for _, acc := range e.accumulators.All() {
		if err := e.finalizeAccumulator(acc); err != nil {
			return err
		}
	}
	if err := e.accumulators.Finalize(); err != nil {
		return err
	}
	if e.config.DepfileOutput != nil {
		if _, err := e.config.DepfileOutput.Write([]byte(e.depfile.Render(e.config.DepfileTargetName))); err != nil {
			return errf(KindIO, SourcePos{}, "writing depfile: %v", err)
		}
	}
	return nil
}

// runFile opens absPath, lexes it to completion, and releases the
// transient arena space it used. File handles are scoped to this call:
// opened on entry, closed on every exit path.
func (e *Engine) runFile(absPath string, scanOnly bool) error {
	if e.includes.AlreadyPragmaOnce(absPath) {
		return nil
	}
	f, err := os.Open(absPath)
	if err != nil {
		return errf(KindIO, SourcePos{}, "opening %q: %v", absPath, err)
	}
	defer f.Close()
	e.includes.RecordOpen(absPath)

	marker := e.arena.MarkTransient()
	defer e.arena.ResetTransient(marker)

	tz := NewTokenizer(f, absPath)
	lx := newLexer(e, tz, absPath, scanOnly)
	return lx.Run()
}

// processInclude is the #include entry point: dispatch into a fresh file
// scope, propagating the scan-only flag from the matching search path
// entry (or the including file, whichever already forces it).
func (e *Engine) processInclude(resolved ResolvedInclude, scanOnly bool) error {
	return e.runFile(resolved.AbsPath, scanOnly)
}

// finalizeAccumulator writes one declared accumulator's buffered entries
// into its reserved sink position, each entry preceded by a #line marker
// restoring its origin, then finishes the sink so it (and any now-
// contiguous finished sinks ahead of it) flushes to the real output.
func (e *Engine) finalizeAccumulator(acc *Accumulator) error {
	e.out.Select(acc.Sink)
	for _, entry := range acc.Entries {
		e.out.WriteString(renderLineMark(entry.Pos))
		e.out.WriteString(TokensText(entry.Tokens))
		e.out.WriteString("\n")
	}
	e.out.Select(nil)
	return e.out.Finish(acc.Sink)
}

func renderLineMark(pos SourcePos) string {
	return fmt.Sprintf("#line %d \"%s\"\n", pos.Line, toSlash(pos.File))
}
