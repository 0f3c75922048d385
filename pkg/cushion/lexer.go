package cushion

import "fmt"

const (
	condIncluded = iota
	condExcluded
	condPreserved
)

type condNode struct {
	state        int
	wasIncluded  bool
	hadPlainElse bool
	// preserveGuard marks a branch opened by "#if __CUSHION_PRESERVE__":
	// its directive skeleton is echoed verbatim instead of evaluated, and
	// every branch body still flows through ordinary macro expansion.
	preserveGuard bool
	openLine      int
}

type stackFrame struct {
	items []TokenListItem
	pos   int
}

// flagNoReplay marks a control-flow keyword token that has already had its
// CUSHION_DEFER replay inserted ahead of it, so requeuing it for output
// does not re-trigger the replay a second time.
const flagNoReplay ItemFlags = 1 << 3

// Lexer drives one file through the tokenizer, maintaining the conditional
// stack, the macro-replacement token stack, and the file's line-marker
// bookkeeping. Re-entrant: an #include creates a new Lexer sharing the
// same Engine.
type Lexer struct {
	engine   *Engine
	tok      *Tokenizer
	absPath  string
	scanOnly bool

	stack []stackFrame
	unget []TokenListItem
	cond  []condNode

	lastFile string
	lastLine int

	lastWasMacroReplacement bool
	sawGlueSincePrev        bool

	depth int
}

func newLexer(e *Engine, tz *Tokenizer, absPath string, scanOnly bool) *Lexer {
	return &Lexer{engine: e, tok: tz, absPath: absPath, scanOnly: scanOnly}
}

func (lx *Lexer) excluded() bool {
	for _, c := range lx.cond {
		if c.state == condExcluded {
			return true
		}
	}
	return false
}

func (lx *Lexer) popRaw() (TokenListItem, error) {
	if n := len(lx.unget); n > 0 {
		it := lx.unget[n-1]
		lx.unget = lx.unget[:n-1]
		return it, nil
	}
	for len(lx.stack) > 0 {
		top := &lx.stack[len(lx.stack)-1]
		if top.pos >= len(top.items) {
			lx.stack = lx.stack[:len(lx.stack)-1]
			continue
		}
		it := top.items[top.pos]
		top.pos++
		return it, nil
	}
	// Inside an excluded conditional branch or a scan-only file, ordinary
	// body content is discarded after emission anyway; let the tokenizer
	// skip straight to the next newline instead of scanning it token by
	// token. Directive lines are still recognized regardless (§4.2), since
	// the tokenizer only engages the skip once a line is confirmed not to
	// open with '#'.
	lx.tok.SkipRegular = lx.scanOnly || lx.excluded()
	t, err := lx.tok.NextToken()
	if err != nil {
		return TokenListItem{}, err
	}
	return TokenListItem{Tok: t}, nil
}

func (lx *Lexer) pushback(it TokenListItem) {
	lx.unget = append(lx.unget, it)
}

// PushReplacement re-injects items ahead of whatever the lexer would
// otherwise consume next.
func (lx *Lexer) PushReplacement(items []TokenListItem) {
	if len(items) == 0 {
		return
	}
	lx.stack = append(lx.stack, stackFrame{items: items})
}

// nextNonGlue pops tokens until a non-whitespace/comment/(optionally
// newline) item, returning the consumed glue so the caller can restore it
// verbatim if it decides not to proceed (e.g. a function-like macro name
// not actually followed by '(').
func (lx *Lexer) nextNonGlue(allowNewline bool) (TokenListItem, []TokenListItem, error) {
	var glue []TokenListItem
	for {
		it, err := lx.popRaw()
		if err != nil {
			return TokenListItem{}, glue, err
		}
		if it.Tok.Kind == KindWhitespace || it.Tok.Kind == KindComment ||
			(allowNewline && it.Tok.Kind == KindNewline) {
			glue = append(glue, it)
			continue
		}
		return it, glue, nil
	}
}

func (lx *Lexer) restore(peeked TokenListItem, glue []TokenListItem) {
	lx.pushback(peeked)
	for i := len(glue) - 1; i >= 0; i-- {
		lx.pushback(glue[i])
	}
}

// Run executes the processing loop for one file (§4.4).
func (lx *Lexer) Run() error {
	e := lx.engine
	if !lx.scanOnly {
		e.out.WriteString(fmt.Sprintf("#line 1 \"%s\"\n", toSlash(lx.absPath)))
		lx.lastFile = lx.absPath
		lx.lastLine = 1
	}
	for {
		item, err := lx.popRaw()
		if err != nil {
			return err
		}
		tok := item.Tok

		if tok.Kind == KindEOF {
			return nil
		}
		if tok.Kind == KindWhitespace || tok.Kind == KindNewline || tok.Kind == KindComment {
			lx.sawGlueSincePrev = true
			continue
		}
		if isDirectiveKind(tok.Kind) {
			if err := lx.handleDirective(tok); err != nil {
				return err
			}
			continue
		}

		suppressed := item.Flags&flagNoReplay != 0
		if e.features.Defer && !suppressed {
			if handled, err := lx.maybeReplayDefer(item, tok); err != nil {
				return err
			} else if handled {
				continue
			}
		}
		if e.features.Defer {
			if tok.Kind == KindPunctuator && tok.Punct == PunctLBrace {
				e.defers.EnterScope()
			} else if tok.Kind == KindPunctuator && tok.Punct == PunctRBrace {
				groups := e.defers.ExitScope()
				if len(groups) > 0 {
					closing := item
					closing.Flags |= flagNoReplay
					lx.PushReplacement([]TokenListItem{closing})
					for gi := len(groups) - 1; gi >= 0; gi-- {
						lx.PushReplacement(groups[gi])
					}
					continue
				}
			}
		}

		if tok.Kind == KindIdentifier {
			handled, err := lx.handleIdentifier(item, tok)
			if err != nil {
				return err
			}
			if handled {
				continue
			}
		}

		if err := lx.emit(item); err != nil {
			return err
		}
	}
}

func isDirectiveKind(k TokenKind) bool {
	return k >= KindDirectiveIf && k <= KindDirectivePragma
}

func (lx *Lexer) maybeReplayDefer(item TokenListItem, tok Token) (bool, error) {
	if tok.Kind != KindIdentifier {
		return false, nil
	}
	var groups [][]TokenListItem
	switch tok.Ident {
	case IdentKeywordReturn, IdentKeywordGoto:
		groups = lx.engine.defers.ReplayForReturn()
	case IdentKeywordBreak, IdentKeywordContinue:
		groups = lx.engine.defers.ReplayForLoopExit()
	default:
		return false, nil
	}
	if len(groups) == 0 {
		return false, nil
	}
	keyword := item
	keyword.Flags |= flagNoReplay
	lx.PushReplacement([]TokenListItem{keyword})
	for gi := len(groups) - 1; gi >= 0; gi-- {
		lx.PushReplacement(groups[gi])
	}
	return true, nil
}

// handleIdentifier dispatches builtins, extension directives and macro
// expansion for a free-standing identifier token. It reports handled=true
// when the token should not itself be emitted (its substitution, if any,
// has already been queued).
func (lx *Lexer) handleIdentifier(item TokenListItem, tok Token) (bool, error) {
	e := lx.engine
	switch tok.Ident {
	case IdentFile:
		lx.pushAndContinue(Token{Kind: KindStringLiteral, Text: quoteString(lx.tok.FileName()), Pos: tok.Pos, Inner: lx.tok.FileName()})
		return true, nil
	case IdentLine:
		lx.pushAndContinue(Token{Kind: KindInteger, Text: fmt.Sprintf("%d", tok.Pos.Line), Pos: tok.Pos, Int: uint64(tok.Pos.Line)})
		return true, nil
	case IdentCushionDefer:
		if !e.features.Defer {
			return false, errf(KindExtension, tok.Pos, "CUSHION_DEFER used without the defer feature enabled")
		}
		return true, lx.handleDefer(tok)
	case IdentCushionStmtAccumulator:
		if !e.features.StatementAccumulator {
			return false, errf(KindExtension, tok.Pos, "CUSHION_STATEMENT_ACCUMULATOR used without the statement-accumulator feature enabled")
		}
		return true, lx.handleAccumulatorDecl(tok)
	case IdentCushionStmtAccumulatorPush:
		if !e.features.StatementAccumulator {
			return false, errf(KindExtension, tok.Pos, "CUSHION_STATEMENT_ACCUMULATOR_PUSH used without the statement-accumulator feature enabled")
		}
		return true, lx.handleAccumulatorPush(tok)
	case IdentCushionStmtAccumulatorRef:
		if !e.features.StatementAccumulator {
			return false, errf(KindExtension, tok.Pos, "CUSHION_STATEMENT_ACCUMULATOR_REF used without the statement-accumulator feature enabled")
		}
		return true, lx.handleAccumulatorRef(tok)
	case IdentCushionStmtAccumulatorUnref:
		if !e.features.StatementAccumulator {
			return false, errf(KindExtension, tok.Pos, "CUSHION_STATEMENT_ACCUMULATOR_UNREF used without the statement-accumulator feature enabled")
		}
		return true, lx.handleAccumulatorUnref(tok)
	}

	m := e.macros.Lookup(tok.Text)
	if m == nil || m.Preserved {
		return false, nil
	}
	var wrapped []TokenListItem
	if m.Kind == MacroFunctionLike {
		peek, glue, err := lx.nextNonGlue(true)
		if err != nil {
			return false, err
		}
		if !(peek.Tok.Kind == KindPunctuator && peek.Tok.Punct == PunctLParen) {
			lx.restore(peek, glue)
			return false, nil
		}
		args, err := lx.collectArguments()
		if err != nil {
			return false, err
		}
		args, err = validateArgCount(m, args, tok.Pos)
		if err != nil {
			return false, err
		}
		if m.IsWrapper {
			if !e.features.WrapperMacro {
				return false, errf(KindExtension, tok.Pos, "wrapper macro %q used without the wrapper-macro feature enabled", m.Name)
			}
			wb, err := lx.collectWrappedBlock()
			if err != nil {
				return false, err
			}
			wrapped = wb
		}
		inv, err := lx.buildInvocation(m, args, wrapped)
		if err != nil {
			return false, err
		}
		repl, err := lx.buildReplacement(m.Replacement, inv)
		if err != nil {
			return false, err
		}
		lx.PushReplacement(markReplacement(repl))
		return true, nil
	}

	inv := &invocation{m: m}
	repl, err := lx.buildReplacement(m.Replacement, inv)
	if err != nil {
		return false, err
	}
	lx.PushReplacement(markReplacement(repl))
	return true, nil
}

func markReplacement(items []TokenListItem) []TokenListItem {
	out := make([]TokenListItem, len(items))
	for i, it := range items {
		it.Flags |= FlagMacroReplacement
		out[i] = it
	}
	return out
}

func (lx *Lexer) pushAndContinue(tok Token) {
	lx.PushReplacement([]TokenListItem{{Tok: tok, Flags: FlagMacroReplacement}})
}

// collectWrappedBlock collects the tokens between a wrapper-macro
// invocation's '{' and its matching '}', tagging every token that did not
// itself originate from a macro replacement with FlagWrappedBlock.
func (lx *Lexer) collectWrappedBlock() ([]TokenListItem, error) {
	open, glue, err := lx.nextNonGlue(true)
	if err != nil {
		return nil, err
	}
	if !(open.Tok.Kind == KindPunctuator && open.Tok.Punct == PunctLBrace) {
		lx.restore(open, glue)
		return nil, errf(KindGrammar, open.Tok.Pos, "wrapper macro invocation expects '{'")
	}
	// Pin the block's start across whatever refills the body's token-by-token
	// collection triggers; slot 1 is this helper's alone, separate from
	// collectBracedBlock's slot 0.
	lx.tok.PlaceGuardrail(1)
	defer lx.tok.ReleaseGuardrail(1)
	var out []TokenListItem
	depth := 1
	for {
		it, err := lx.popRaw()
		if err != nil {
			return nil, err
		}
		if it.Tok.Kind == KindEOF {
			return nil, errf(KindGrammar, it.Tok.Pos, "unterminated wrapper macro block")
		}
		if it.Tok.Kind == KindWhitespace || it.Tok.Kind == KindNewline || it.Tok.Kind == KindComment {
			continue
		}
		if it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctLBrace {
			depth++
		} else if it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctRBrace {
			depth--
			if depth == 0 {
				return out, nil
			}
		}
		if it.Flags&FlagMacroReplacement == 0 {
			it.Flags |= FlagWrappedBlock
		}
		out = append(out, it)
	}
}

// emit writes a substantive (non-glue, non-directive) token to the
// selected output, inserting the line marker and adjacent-token spacing
// per §4.4.4/§4.4.5.
func (lx *Lexer) emit(item TokenListItem) error {
	if lx.scanOnly || lx.excluded() {
		lx.sawGlueSincePrev = false
		lx.lastWasMacroReplacement = item.Flags&FlagMacroReplacement != 0
		return nil
	}
	lx.ensureLineMark(item.Tok.Pos)
	if lx.lastWasMacroReplacement && !lx.sawGlueSincePrev {
		lx.engine.out.WriteString(" ")
	}
	lx.engine.out.WriteString(item.Tok.Text)
	lx.sawGlueSincePrev = false
	lx.lastWasMacroReplacement = item.Flags&FlagMacroReplacement != 0
	return nil
}

func (lx *Lexer) ensureLineMark(pos SourcePos) {
	if pos.File == "" {
		return
	}
	if pos.File == lx.lastFile && pos.Line == lx.lastLine {
		return
	}
	if pos.File == lx.lastFile && pos.Line > lx.lastLine && pos.Line-lx.lastLine <= 4 {
		for i := 0; i < pos.Line-lx.lastLine; i++ {
			lx.engine.out.WriteString("\n")
		}
	} else {
		lx.engine.out.WriteString(fmt.Sprintf("#line %d \"%s\"\n", pos.Line, toSlash(pos.File)))
	}
	lx.lastFile = pos.File
	lx.lastLine = pos.Line
}
