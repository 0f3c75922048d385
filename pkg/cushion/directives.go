package cushion

import "strings"

// collectDirectiveLine gathers every token up to (but not including) the
// terminating newline/EOF of the current logical line, discarding
// whitespace/comment glue.
func (lx *Lexer) collectDirectiveLine() ([]TokenListItem, error) {
	var out []TokenListItem
	for {
		it, err := lx.popRaw()
		if err != nil {
			return nil, err
		}
		switch it.Tok.Kind {
		case KindNewline, KindEOF:
			return out, nil
		case KindWhitespace, KindComment:
			continue
		default:
			out = append(out, it)
		}
	}
}

func (lx *Lexer) handleDirective(tok Token) error {
	switch tok.Kind {
	case KindDirectiveIf:
		return lx.handleIf(tok)
	case KindDirectiveIfdef:
		return lx.handleIfdef(tok, true)
	case KindDirectiveIfndef:
		return lx.handleIfdef(tok, false)
	case KindDirectiveElif:
		return lx.handleElif(tok)
	case KindDirectiveElifdef:
		return lx.handleElifdef(tok, true)
	case KindDirectiveElifndef:
		return lx.handleElifdef(tok, false)
	case KindDirectiveElse:
		return lx.handleElse(tok)
	case KindDirectiveEndif:
		return lx.handleEndif(tok)
	case KindDirectiveInclude:
		return lx.handleInclude(tok)
	case KindDirectiveDefine:
		return lx.handleDefine(tok)
	case KindDirectiveUndef:
		return lx.handleUndef(tok)
	case KindDirectiveLine:
		return lx.handleLine(tok)
	case KindDirectivePragma:
		return lx.handlePragma(tok)
	}
	return errf(KindGrammar, tok.Pos, "unhandled directive %q", tok.Text)
}

// --- Conditional inclusion (§4.2, §4.6) ---

// pushCond installs a new conditional node (from #if/#ifdef/#ifndef) once
// its truth value, or for a __CUSHION_PRESERVE__ guard its pass-through
// status, is known, applying the ancestor-excluded/preserve-guard
// precedence in exactly one place.
func (lx *Lexer) pushCond(included, preserveGuard bool) {
	state := boolCondState(included)
	if preserveGuard || lx.excludedBeforePush() {
		state = condPreserved
	}
	lx.cond = append(lx.cond, condNode{state: state, wasIncluded: included, preserveGuard: preserveGuard, openLine: lx.tok.Pos().Line})
}

// excludedBeforePush reports whether the *enclosing* branch (before this
// push) was already excluded, in which case a nested #if can never itself
// become INCLUDED regardless of its own condition.
func (lx *Lexer) excludedBeforePush() bool {
	return lx.excluded()
}

// isPreserveGuard reports whether a #if/#elif controlling-expression line's
// first substantive token is __CUSHION_PRESERVE__, per §4.4.1: such a guard
// is never evaluated, and the whole #if/#elif/#else/#endif skeleton around
// it is echoed to output unchanged instead.
func isPreserveGuard(line []TokenListItem) bool {
	return len(line) > 0 && line[0].Tok.Kind == KindIdentifier && line[0].Tok.Ident == IdentCushionPreserve
}

func (lx *Lexer) handleIf(tok Token) error {
	line, err := lx.collectDirectiveLine()
	if err != nil {
		return err
	}
	if lx.excluded() {
		lx.cond = append(lx.cond, condNode{state: condPreserved, openLine: tok.Pos.Line})
		return nil
	}
	if isPreserveGuard(line) {
		lx.pushCond(false, true)
		return lx.echoPreservedDirective(tok, "#if", line)
	}
	expanded, err := lx.expandControllingExpr(line)
	if err != nil {
		return err
	}
	val, err := NewEvaluator(lx.engine.macros, tok.Pos.Line).Evaluate(expanded)
	if err != nil {
		return err
	}
	included := val != 0
	lx.pushCond(included, false)
	return nil
}

func (lx *Lexer) handleIfdef(tok Token, wantDefined bool) error {
	line, err := lx.collectDirectiveLine()
	if err != nil {
		return err
	}
	if lx.excluded() {
		lx.cond = append(lx.cond, condNode{state: condPreserved, openLine: tok.Pos.Line})
		return nil
	}
	name, err := singleIdentifier(line, tok.Pos, tok.Text)
	if err != nil {
		return err
	}
	defined := lx.engine.macros.IsDefined(name)
	included := defined == wantDefined
	lx.pushCond(included, false)
	return nil
}

// echoPreservedDirective writes a PRESERVED conditional's directive line
// (the "#if"/"#elif" keyword plus its untouched guard tokens, or a bare
// "#else"/"#endif") to output verbatim, mirroring emitPreservedDefine's
// treatment of a __CUSHION_PRESERVE__-marked #define.
func (lx *Lexer) echoPreservedDirective(tok Token, directive string, line []TokenListItem) error {
	if lx.scanOnly {
		return nil
	}
	lx.ensureLineMark(tok.Pos)
	lx.engine.out.WriteString(directive)
	for _, it := range line {
		lx.engine.out.WriteString(" ")
		lx.engine.out.WriteString(it.Tok.Text)
	}
	lx.engine.out.WriteString("\n")
	return nil
}

func boolCondState(included bool) int {
	if included {
		return condIncluded
	}
	return condExcluded
}

func singleIdentifier(line []TokenListItem, pos SourcePos, directive string) (string, error) {
	if len(line) != 1 || line[0].Tok.Kind != KindIdentifier {
		return "", errf(KindGrammar, pos, "#%s expects a single identifier", directive)
	}
	return line[0].Tok.Text, nil
}

func (lx *Lexer) handleElif(tok Token) error {
	if len(lx.cond) == 0 {
		return errf(KindGrammar, tok.Pos, "#elif without matching #if")
	}
	top := &lx.cond[len(lx.cond)-1]
	if top.hadPlainElse {
		return errf(KindGrammar, tok.Pos, "#elif after #else")
	}
	line, err := lx.collectDirectiveLine()
	if err != nil {
		return err
	}
	if lx.condAncestorsExcluded() {
		top.state = condPreserved
		return nil
	}
	if top.preserveGuard {
		return lx.echoPreservedDirective(tok, "#elif", line)
	}
	if top.wasIncluded {
		top.state = condExcluded
		return nil
	}
	expanded, err := lx.expandControllingExpr(line)
	if err != nil {
		return err
	}
	val, err := NewEvaluator(lx.engine.macros, tok.Pos.Line).Evaluate(expanded)
	if err != nil {
		return err
	}
	if val != 0 {
		top.state = condIncluded
		top.wasIncluded = true
	} else {
		top.state = condExcluded
	}
	return nil
}

func (lx *Lexer) handleElifdef(tok Token, wantDefined bool) error {
	if len(lx.cond) == 0 {
		return errf(KindGrammar, tok.Pos, "#elifdef without matching #if")
	}
	top := &lx.cond[len(lx.cond)-1]
	if top.hadPlainElse {
		return errf(KindGrammar, tok.Pos, "#elifdef after #else")
	}
	line, err := lx.collectDirectiveLine()
	if err != nil {
		return err
	}
	if lx.condAncestorsExcluded() {
		top.state = condPreserved
		return nil
	}
	if top.preserveGuard {
		return lx.echoPreservedDirective(tok, "#"+tok.Text, line)
	}
	if top.wasIncluded {
		top.state = condExcluded
		return nil
	}
	name, err := singleIdentifier(line, tok.Pos, tok.Text)
	if err != nil {
		return err
	}
	if lx.engine.macros.IsDefined(name) == wantDefined {
		top.state = condIncluded
		top.wasIncluded = true
	} else {
		top.state = condExcluded
	}
	return nil
}

// condAncestorsExcluded reports whether every conditional enclosing (but
// not including) the innermost one is excluded.
func (lx *Lexer) condAncestorsExcluded() bool {
	for i := 0; i < len(lx.cond)-1; i++ {
		if lx.cond[i].state == condExcluded {
			return true
		}
	}
	return false
}

func (lx *Lexer) handleElse(tok Token) error {
	if len(lx.cond) == 0 {
		return errf(KindGrammar, tok.Pos, "#else without matching #if")
	}
	if _, err := lx.collectDirectiveLine(); err != nil {
		return err
	}
	top := &lx.cond[len(lx.cond)-1]
	if top.hadPlainElse {
		return errf(KindGrammar, tok.Pos, "duplicate #else")
	}
	top.hadPlainElse = true
	if lx.condAncestorsExcluded() {
		top.state = condPreserved
		return nil
	}
	if top.preserveGuard {
		return lx.echoPreservedDirective(tok, "#else", nil)
	}
	if top.wasIncluded {
		top.state = condExcluded
	} else {
		top.state = condIncluded
		top.wasIncluded = true
	}
	return nil
}

func (lx *Lexer) handleEndif(tok Token) error {
	if len(lx.cond) == 0 {
		return errf(KindGrammar, tok.Pos, "#endif without matching #if")
	}
	if _, err := lx.collectDirectiveLine(); err != nil {
		return err
	}
	top := lx.cond[len(lx.cond)-1]
	lx.cond = lx.cond[:len(lx.cond)-1]
	if top.preserveGuard {
		return lx.echoPreservedDirective(tok, "#endif", nil)
	}
	return nil
}

// expandControllingExpr macro-expands a #if/#elif line while leaving the
// operand of every defined(...) / defined NAME untouched, per the rule
// that defined's argument is never itself macro-expanded.
func (lx *Lexer) expandControllingExpr(tokens []TokenListItem) ([]TokenListItem, error) {
	var out []TokenListItem
	i, n := 0, len(tokens)
	segStart := 0
	flush := func(end int) error {
		if end <= segStart {
			return nil
		}
		exp, err := lx.expandFlat(tokens[segStart:end])
		if err != nil {
			return err
		}
		out = append(out, exp...)
		return nil
	}
	for i < n {
		it := tokens[i]
		if it.Tok.Kind == KindIdentifier && it.Tok.Ident == IdentDefined {
			if err := flush(i); err != nil {
				return nil, err
			}
			out = append(out, it)
			i++
			for i < n && isGlueKind(tokens[i].Tok.Kind) {
				out = append(out, tokens[i])
				i++
			}
			if i < n && tokens[i].Tok.Kind == KindPunctuator && tokens[i].Tok.Punct == PunctLParen {
				out = append(out, tokens[i])
				i++
				for i < n && isGlueKind(tokens[i].Tok.Kind) {
					out = append(out, tokens[i])
					i++
				}
				if i < n {
					out = append(out, tokens[i])
					i++
				}
				for i < n && isGlueKind(tokens[i].Tok.Kind) {
					out = append(out, tokens[i])
					i++
				}
				if i < n && tokens[i].Tok.Kind == KindPunctuator && tokens[i].Tok.Punct == PunctRParen {
					out = append(out, tokens[i])
					i++
				}
			} else if i < n {
				out = append(out, tokens[i])
				i++
			}
			segStart = i
			continue
		}
		i++
	}
	if err := flush(n); err != nil {
		return nil, err
	}
	return out, nil
}

// --- #include (§4.4.3, §4.6 search rules) ---

func (lx *Lexer) handleInclude(tok Token) error {
	if lx.excluded() {
		_, err := lx.collectDirectiveLine()
		return err
	}
	header, _, err := lx.nextNonGlue(false)
	if err != nil {
		return err
	}
	if _, err := lx.collectDirectiveLine(); err != nil {
		return err
	}
	var resolved ResolvedInclude
	var ok bool
	switch header.Tok.Kind {
	case KindHeaderUser:
		resolved, ok = lx.engine.includes.ResolveLocal(dirOf(lx.absPath), header.Tok.Inner)
	case KindHeaderSystem:
		resolved, ok = lx.engine.includes.ResolveAngled(header.Tok.Inner)
	default:
		return errf(KindGrammar, header.Tok.Pos, "#include expects a header name")
	}
	if !ok {
		if lx.scanOnly {
			return nil
		}
		lx.ensureLineMark(tok.Pos)
		lx.engine.out.WriteString("#include ")
		lx.engine.out.WriteString(header.Tok.Text)
		lx.engine.out.WriteString("\n")
		lx.lastFile = ""
		return nil
	}
	if lx.scanOnly && resolved.Kind == SearchFull {
		return errf(KindSemantics, header.Tok.Pos, "cannot pull a full-inclusion header %q into a scan-only file", header.Tok.Inner)
	}
	childScanOnly := lx.scanOnly || resolved.Kind == SearchScan
	if err := lx.engine.processInclude(resolved, childScanOnly); err != nil {
		return err
	}
	lx.lastFile = ""
	return nil
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// --- #define / #undef (§4.4.1) ---

func (lx *Lexer) handleDefine(tok Token) error {
	if lx.excluded() {
		_, err := lx.collectDirectiveLine()
		return err
	}
	nameItem, glue, err := lx.nextNonGlue(false)
	if err != nil {
		return err
	}
	if nameItem.Tok.Kind != KindIdentifier {
		return errf(KindGrammar, nameItem.Tok.Pos, "macro name must be an identifier")
	}
	m := &Macro{Name: nameItem.Tok.Text, DefPos: nameItem.Tok.Pos}

	funcLike, paramGlue, err := lx.nextNonGlue(false)
	if err != nil {
		return err
	}
	if funcLike.Tok.Kind == KindPunctuator && funcLike.Tok.Punct == PunctLParen && len(paramGlue) == 0 {
		m.Kind = MacroFunctionLike
		if err := lx.parseMacroParams(m); err != nil {
			return err
		}
	} else {
		m.Kind = MacroObjectLike
		lx.restore(funcLike, paramGlue)
	}

	repl, err := lx.collectDirectiveLine()
	if err != nil {
		return err
	}
	if len(repl) > 0 && repl[0].Tok.Kind == KindIdentifier && repl[0].Tok.Ident == IdentCushionPreserve {
		m.Preserved = true
		repl = repl[1:]
	}
	for _, it := range repl {
		if it.Tok.Kind == KindIdentifier && it.Tok.Ident == IdentCushionWrapped {
			m.IsWrapper = true
			break
		}
	}
	m.Replacement = repl
	_ = glue
	if err := lx.engine.macros.Define(m); err != nil {
		return err
	}
	if m.Preserved {
		return lx.emitPreservedDefine(tok, nameItem, m)
	}
	return nil
}

// emitPreservedDefine echoes a __CUSHION_PRESERVE__-marked #define back to
// the output verbatim, since such macros are registered but never expanded.
func (lx *Lexer) emitPreservedDefine(hashTok Token, nameItem TokenListItem, _ *Macro) error {
	if lx.scanOnly || lx.excluded() {
		return nil
	}
	lx.ensureLineMark(hashTok.Pos)
	lx.engine.out.WriteString("#define ")
	lx.engine.out.WriteString(nameItem.Tok.Text)
	lx.engine.out.WriteString("\n")
	return nil
}

func (lx *Lexer) parseMacroParams(m *Macro) error {
	for {
		it, glue, err := lx.nextNonGlue(false)
		_ = glue
		if err != nil {
			return err
		}
		switch {
		case it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctRParen:
			return nil
		case it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctEllipsis:
			m.IsVariadic = true
			m.VariadicName = "__VA_ARGS__"
			closeParen, g2, err := lx.nextNonGlue(false)
			_ = g2
			if err != nil {
				return err
			}
			if !(closeParen.Tok.Kind == KindPunctuator && closeParen.Tok.Punct == PunctRParen) {
				return errf(KindGrammar, closeParen.Tok.Pos, "expected ')' after '...'")
			}
			return nil
		case it.Tok.Kind == KindIdentifier:
			m.Params = append(m.Params, it.Tok.Text)
			next, g3, err := lx.nextNonGlue(false)
			_ = g3
			if err != nil {
				return err
			}
			if next.Tok.Kind == KindPunctuator && next.Tok.Punct == PunctRParen {
				return nil
			}
			if next.Tok.Kind == KindPunctuator && next.Tok.Punct == PunctComma {
				continue
			}
			return errf(KindGrammar, next.Tok.Pos, "expected ',' or ')' in macro parameter list")
		default:
			return errf(KindGrammar, it.Tok.Pos, "unexpected token in macro parameter list")
		}
	}
}

func (lx *Lexer) handleUndef(tok Token) error {
	if lx.excluded() {
		_, err := lx.collectDirectiveLine()
		return err
	}
	line, err := lx.collectDirectiveLine()
	if err != nil {
		return err
	}
	name, err := singleIdentifier(line, tok.Pos, "undef")
	if err != nil {
		return err
	}
	lx.engine.macros.Undefine(name)
	return nil
}

// --- #line (§4.4.1) ---

func (lx *Lexer) handleLine(tok Token) error {
	line, err := lx.collectDirectiveLine()
	if err != nil {
		return err
	}
	if lx.excluded() {
		return nil
	}
	expanded, err := lx.expandFlat(line)
	if err != nil {
		return err
	}
	if len(expanded) == 0 || expanded[0].Tok.Kind != KindInteger {
		return errf(KindGrammar, tok.Pos, "#line requires a digit-sequence line number")
	}
	newLine := int(expanded[0].Tok.Int)
	file := ""
	if len(expanded) > 1 {
		if expanded[1].Tok.Kind != KindStringLiteral {
			return errf(KindGrammar, tok.Pos, "#line filename must be a string literal")
		}
		file = expanded[1].Tok.Inner
	}
	lx.tok.SetLine(newLine, file)
	return nil
}

// --- #pragma (§4.4.1) ---

func (lx *Lexer) handlePragma(tok Token) error {
	line, err := lx.collectDirectiveLine()
	if err != nil {
		return err
	}
	if lx.excluded() {
		return nil
	}
	if len(line) == 1 && line[0].Tok.Kind == KindIdentifier && line[0].Tok.Text == "once" {
		lx.engine.includes.RegisterPragmaOnce(lx.absPath)
		return nil
	}
	if lx.scanOnly {
		return nil
	}
	lx.ensureLineMark(tok.Pos)
	lx.engine.out.WriteString("#pragma")
	for _, it := range line {
		lx.engine.out.WriteString(" ")
		lx.engine.out.WriteString(it.Tok.Text)
	}
	lx.engine.out.WriteString("\n")
	return nil
}

// --- Extension directives (§4.7) ---

func (lx *Lexer) handleDefer(tok Token) error {
	open, _, err := lx.nextNonGlue(true)
	if err != nil {
		return err
	}
	if !(open.Tok.Kind == KindPunctuator && open.Tok.Punct == PunctLBrace) {
		return errf(KindGrammar, open.Tok.Pos, "CUSHION_DEFER expects '{'")
	}
	body, err := lx.collectBracedBlock()
	if err != nil {
		return err
	}
	return lx.engine.defers.Register(body, tok.Pos)
}

// collectBracedBlock collects the tokens between an already-consumed
// opening '{' and its matching '}', glue discarded.
func (lx *Lexer) collectBracedBlock() ([]TokenListItem, error) {
	// Pin the block's start across whatever refills the body's token-by-token
	// collection triggers; slot 0 is this helper's alone, separate from
	// collectWrappedBlock's slot 1.
	lx.tok.PlaceGuardrail(0)
	defer lx.tok.ReleaseGuardrail(0)
	var out []TokenListItem
	depth := 1
	for {
		it, err := lx.popRaw()
		if err != nil {
			return nil, err
		}
		if it.Tok.Kind == KindEOF {
			return nil, errf(KindGrammar, it.Tok.Pos, "unterminated braced block")
		}
		if isGlueKind(it.Tok.Kind) {
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
		out = append(out, it)
	}
}

func (lx *Lexer) handleAccumulatorDecl(tok Token) error {
	name, err := lx.parseParenIdentifier(tok)
	if err != nil {
		return err
	}
	if _, err := lx.collectDirectiveLine(); err != nil {
		return err
	}
	if lx.excluded() {
		return nil
	}
	s := lx.engine.out.NewSink(tok.Pos)
	_, err = lx.engine.accumulators.Declare(name, s, tok.Pos)
	if err != nil {
		return err
	}
	return nil
}

func (lx *Lexer) handleAccumulatorRef(tok Token) error {
	names, err := lx.parseParenIdentifierPair(tok)
	if err != nil {
		return err
	}
	if _, err := lx.collectDirectiveLine(); err != nil {
		return err
	}
	if lx.excluded() {
		return nil
	}
	return lx.engine.accumulators.Ref(names[0], names[1], tok.Pos)
}

func (lx *Lexer) handleAccumulatorUnref(tok Token) error {
	name, err := lx.parseParenIdentifier(tok)
	if err != nil {
		return err
	}
	if _, err := lx.collectDirectiveLine(); err != nil {
		return err
	}
	if lx.excluded() {
		return nil
	}
	lx.engine.accumulators.Unref(name)
	return nil
}

// handleAccumulatorPush implements CUSHION_STATEMENT_ACCUMULATOR_PUSH(name,
// [options,] { body }): the target name, an optional comma-separated run
// of "unique"/"optional"/"unordered" option identifiers, and a braced
// statement body.
func (lx *Lexer) handleAccumulatorPush(tok Token) error {
	openParen, _, err := lx.nextNonGlue(true)
	if err != nil {
		return err
	}
	if !(openParen.Tok.Kind == KindPunctuator && openParen.Tok.Punct == PunctLParen) {
		return errf(KindGrammar, openParen.Tok.Pos, "%s expects '('", tok.Text)
	}
	nameItem, _, err := lx.nextNonGlue(true)
	if err != nil {
		return err
	}
	if nameItem.Tok.Kind != KindIdentifier {
		return errf(KindGrammar, nameItem.Tok.Pos, "%s expects an accumulator name", tok.Text)
	}
	var unique, optional, unordered bool
	for {
		sep, _, err := lx.nextNonGlue(true)
		if err != nil {
			return err
		}
		if sep.Tok.Kind == KindPunctuator && sep.Tok.Punct == PunctRParen {
			break
		}
		if !(sep.Tok.Kind == KindPunctuator && sep.Tok.Punct == PunctComma) {
			return errf(KindGrammar, sep.Tok.Pos, "expected ',' or ')' in %s", tok.Text)
		}
		opt, _, err := lx.nextNonGlue(true)
		if err != nil {
			return err
		}
		switch {
		case opt.Tok.Kind == KindPunctuator && opt.Tok.Punct == PunctLBrace:
			// options list ended and the body started without a trailing
			// comma before it; put the brace back for the block scan below.
			lx.pushback(opt)
			goto body
		case opt.Tok.Kind == KindIdentifier && opt.Tok.Text == "unique":
			unique = true
		case opt.Tok.Kind == KindIdentifier && opt.Tok.Text == "optional":
			optional = true
		case opt.Tok.Kind == KindIdentifier && opt.Tok.Text == "unordered":
			unordered = true
		default:
			return errf(KindGrammar, opt.Tok.Pos, "unrecognized %s option %q", tok.Text, opt.Tok.Text)
		}
	}
body:
	openBrace, _, err := lx.nextNonGlue(true)
	if err != nil {
		return err
	}
	if !(openBrace.Tok.Kind == KindPunctuator && openBrace.Tok.Punct == PunctLBrace) {
		return errf(KindGrammar, openBrace.Tok.Pos, "%s expects a braced body", tok.Text)
	}
	body, err := lx.collectBracedBlock()
	if err != nil {
		return err
	}
	if _, err := lx.collectDirectiveLine(); err != nil {
		return err
	}
	if lx.excluded() {
		return nil
	}
	entry := AccumulatorEntry{Pos: tok.Pos, Tokens: body}
	return lx.engine.accumulators.Push(nameItem.Tok.Text, entry, unique, optional, unordered)
}

func (lx *Lexer) parseParenIdentifier(tok Token) (string, error) {
	open, _, err := lx.nextNonGlue(true)
	if err != nil {
		return "", err
	}
	if !(open.Tok.Kind == KindPunctuator && open.Tok.Punct == PunctLParen) {
		return "", errf(KindGrammar, open.Tok.Pos, "%s expects '('", tok.Text)
	}
	name, _, err := lx.nextNonGlue(true)
	if err != nil {
		return "", err
	}
	if name.Tok.Kind != KindIdentifier {
		return "", errf(KindGrammar, name.Tok.Pos, "%s expects an identifier", tok.Text)
	}
	closeParen, _, err := lx.nextNonGlue(true)
	if err != nil {
		return "", err
	}
	if !(closeParen.Tok.Kind == KindPunctuator && closeParen.Tok.Punct == PunctRParen) {
		return "", errf(KindGrammar, closeParen.Tok.Pos, "%s expects ')'", tok.Text)
	}
	return name.Tok.Text, nil
}

func (lx *Lexer) parseParenIdentifierPair(tok Token) ([2]string, error) {
	var names [2]string
	open, _, err := lx.nextNonGlue(true)
	if err != nil {
		return names, err
	}
	if !(open.Tok.Kind == KindPunctuator && open.Tok.Punct == PunctLParen) {
		return names, errf(KindGrammar, open.Tok.Pos, "%s expects '('", tok.Text)
	}
	for i := 0; i < 2; i++ {
		if i > 0 {
			comma, _, err := lx.nextNonGlue(true)
			if err != nil {
				return names, err
			}
			if !(comma.Tok.Kind == KindPunctuator && comma.Tok.Punct == PunctComma) {
				return names, errf(KindGrammar, comma.Tok.Pos, "%s expects ','", tok.Text)
			}
		}
		name, _, err := lx.nextNonGlue(true)
		if err != nil {
			return names, err
		}
		if name.Tok.Kind != KindIdentifier {
			return names, errf(KindGrammar, name.Tok.Pos, "%s expects an identifier", tok.Text)
		}
		names[i] = name.Tok.Text
	}
	closeParen, _, err := lx.nextNonGlue(true)
	if err != nil {
		return names, err
	}
	if !(closeParen.Tok.Kind == KindPunctuator && closeParen.Tok.Punct == PunctRParen) {
		return names, errf(KindGrammar, closeParen.Tok.Pos, "%s expects ')'", tok.Text)
	}
	return names, nil
}
