package cushion

import "strings"

// invocation describes a single call-site's arguments, ready for
// substitution into a macro's replacement list.
type invocation struct {
	m        *Macro
	rawArgs  map[string][]TokenListItem
	expArgs  map[string][]TokenListItem
	rawVA    []TokenListItem
	expVA    []TokenListItem
	hasVA    bool
	wrapped  []TokenListItem
}

// collectArguments gathers a function-like macro invocation's argument
// list from the live token stream (stack-then-tokenizer), assuming the
// opening '(' has already been consumed. Whitespace, comments and
// newlines inside the list are discarded; only the comma-separated token
// groups matter to substitution.
func (lx *Lexer) collectArguments() ([][]TokenListItem, error) {
	var args [][]TokenListItem
	var cur []TokenListItem
	depth := 0
	for {
		it, err := lx.popRaw()
		if err != nil {
			return nil, err
		}
		switch {
		case it.Tok.Kind == KindWhitespace || it.Tok.Kind == KindComment || it.Tok.Kind == KindNewline:
			continue
		case it.Tok.Kind == KindEOF:
			return nil, errf(KindGrammar, it.Tok.Pos, "unterminated macro argument list")
		case it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctLParen:
			depth++
			cur = append(cur, it)
		case it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctRParen:
			if depth == 0 {
				args = append(args, cur)
				return args, nil
			}
			depth--
			cur = append(cur, it)
		case it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctComma && depth == 0:
			args = append(args, cur)
			cur = nil
		default:
			cur = append(cur, it)
		}
	}
}

func validateArgCount(m *Macro, args [][]TokenListItem, pos SourcePos) ([][]TokenListItem, error) {
	if len(m.Params) == 0 && !m.IsVariadic {
		if len(args) == 1 && len(args[0]) == 0 {
			return nil, nil
		}
		if len(args) != 0 {
			return nil, errf(KindGrammar, pos, "macro %q requires no arguments, got %d", m.Name, len(args))
		}
		return nil, nil
	}
	if m.IsVariadic {
		if len(args) < len(m.Params) {
			return nil, errf(KindGrammar, pos, "macro %q requires at least %d arguments, got %d", m.Name, len(m.Params), len(args))
		}
	} else if len(args) != len(m.Params) {
		return nil, errf(KindGrammar, pos, "macro %q requires %d arguments, got %d", m.Name, len(m.Params), len(args))
	}
	return args, nil
}

// buildInvocation assembles an invocation's raw and (bounded) pre-expanded
// argument forms, keyed by parameter name.
func (lx *Lexer) buildInvocation(m *Macro, args [][]TokenListItem, wrapped []TokenListItem) (*invocation, error) {
	inv := &invocation{m: m, rawArgs: map[string][]TokenListItem{}, expArgs: map[string][]TokenListItem{}, wrapped: wrapped}
	named := args
	if len(args) > len(m.Params) {
		named = args[:len(m.Params)]
	}
	for i, p := range m.Params {
		var raw []TokenListItem
		if i < len(named) {
			raw = named[i]
		}
		inv.rawArgs[p] = raw
		exp, err := lx.expandFlat(raw)
		if err != nil {
			return nil, err
		}
		inv.expArgs[p] = exp
	}
	if m.IsVariadic && len(args) > len(m.Params) {
		inv.hasVA = true
		for i := len(m.Params); i < len(args); i++ {
			if i > len(m.Params) {
				inv.rawVA = append(inv.rawVA, TokenListItem{Tok: Token{Kind: KindPunctuator, Punct: PunctComma, Text: ","}})
			}
			inv.rawVA = append(inv.rawVA, args[i]...)
		}
		exp, err := lx.expandFlat(inv.rawVA)
		if err != nil {
			return nil, err
		}
		inv.expVA = exp
	}
	return inv, nil
}

// expandFlat fully macro-expands a standalone token slice (used for
// pre-expanding macro arguments before substitution). It is bounded so a
// self-referential macro cannot hang the preprocessor while still
// expanding to a fixed point for the well-behaved case.
func (lx *Lexer) expandFlat(items []TokenListItem) ([]TokenListItem, error) {
	const maxRounds = 64
	cur := items
	for round := 0; round < maxRounds; round++ {
		next, changed, err := lx.expandFlatOnce(cur)
		if err != nil {
			return nil, err
		}
		if !changed {
			return next, nil
		}
		cur = next
	}
	return cur, nil
}

func (lx *Lexer) expandFlatOnce(items []TokenListItem) ([]TokenListItem, bool, error) {
	var out []TokenListItem
	changed := false
	i := 0
	for i < len(items) {
		it := items[i]
		if it.Tok.Kind == KindIdentifier {
			if it.Tok.Ident == IdentFile {
				out = append(out, TokenListItem{Tok: Token{Kind: KindStringLiteral, Text: quoteString(lx.tok.FileName()), Pos: it.Tok.Pos, Inner: lx.tok.FileName()}})
				changed = true
				i++
				continue
			}
			if it.Tok.Ident == IdentLine {
				out = append(out, TokenListItem{Tok: Token{Kind: KindInteger, Text: "", Pos: it.Tok.Pos, Int: uint64(it.Tok.Pos.Line)}})
				changed = true
				i++
				continue
			}
			if m := lx.engine.macros.Lookup(it.Tok.Text); m != nil && !m.Preserved {
				if m.Kind == MacroFunctionLike {
					j := i + 1
					for j < len(items) && isGlueKind(items[j].Tok.Kind) {
						j++
					}
					if j < len(items) && items[j].Tok.Kind == KindPunctuator && items[j].Tok.Punct == PunctLParen {
						args, end, err := collectArgsFromSlice(items, j+1)
						if err != nil {
							return nil, false, err
						}
						vargs, err := validateArgCount(m, args, it.Tok.Pos)
						if err != nil {
							return nil, false, err
						}
						inv, err := lx.buildInvocation(m, vargs, nil)
						if err != nil {
							return nil, false, err
						}
						repl, err := lx.buildReplacement(m.Replacement, inv)
						if err != nil {
							return nil, false, err
						}
						out = append(out, repl...)
						changed = true
						i = end
						continue
					}
				} else {
					inv := &invocation{m: m}
					repl, err := lx.buildReplacement(m.Replacement, inv)
					if err != nil {
						return nil, false, err
					}
					out = append(out, repl...)
					changed = true
					i++
					continue
				}
			}
		}
		out = append(out, it)
		i++
	}
	return out, changed, nil
}

func isGlueKind(k TokenKind) bool {
	return k == KindWhitespace || k == KindComment || k == KindNewline
}

func collectArgsFromSlice(items []TokenListItem, start int) ([][]TokenListItem, int, error) {
	var args [][]TokenListItem
	var cur []TokenListItem
	depth := 0
	i := start
	for i < len(items) {
		it := items[i]
		switch {
		case isGlueKind(it.Tok.Kind):
			i++
			continue
		case it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctLParen:
			depth++
			cur = append(cur, it)
			i++
		case it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctRParen:
			if depth == 0 {
				args = append(args, cur)
				return args, i + 1, nil
			}
			depth--
			cur = append(cur, it)
			i++
		case it.Tok.Kind == KindPunctuator && it.Tok.Punct == PunctComma && depth == 0:
			args = append(args, cur)
			cur = nil
			i++
		default:
			cur = append(cur, it)
			i++
		}
	}
	return nil, i, errf(KindGrammar, SourcePos{}, "unterminated macro argument list")
}

// substUnit is one element of a replacement list after # and __VA_OPT__
// have been resolved to concrete tokens but before ## pasting: either a
// concrete (already decided) token sequence, or a parameter/__VA_ARGS__
// reference still carrying both its raw and expanded forms so an adjacent
// ## can choose the raw one.
type substUnit struct {
	raw      []TokenListItem
	expanded []TokenListItem
}

func concreteUnit(items []TokenListItem) substUnit {
	return substUnit{raw: items, expanded: items}
}

// buildReplacement substitutes inv's arguments into repl, applying
// stringize (#), token-pasting (##), __VA_OPT__, __VA_ARGS__ and
// __CUSHION_WRAPPED__ per §4.4.2.
func (lx *Lexer) buildReplacement(repl []TokenListItem, inv *invocation) ([]TokenListItem, error) {
	units, err := lx.lowerReplacement(repl, inv)
	if err != nil {
		return nil, err
	}
	return pasteUnits(units), nil
}

// lowerReplacement turns a raw replacement list into substUnits, resolving
// every non-## construct (stringize, __VA_OPT__, __VA_ARGS__, parameters,
// __CUSHION_WRAPPED__) but leaving ## markers in place for pasteUnits.
func (lx *Lexer) lowerReplacement(repl []TokenListItem, inv *invocation) ([]substUnit, error) {
	var units []substUnit
	pasteMarker := substUnit{raw: []TokenListItem{{Tok: Token{Kind: KindPunctuator, Punct: PunctHashHash, Text: "##"}}}}
	i := 0
	n := len(repl)
	isOperand := func(it TokenListItem) (string, bool, bool) {
		// returns (paramName, isVA, ok)
		if it.Tok.Kind != KindIdentifier {
			return "", false, false
		}
		if it.Tok.Ident == IdentVAArgs && inv.m.IsVariadic {
			return "", true, true
		}
		if inv.m != nil && inv.m.ParamIndex(it.Tok.Text) >= 0 {
			return it.Tok.Text, false, true
		}
		return "", false, false
	}
	for i < n {
		tok := repl[i].Tok
		switch {
		case tok.Kind == KindPunctuator && tok.Punct == PunctHash && i+1 < n:
			name, isVA, ok := isOperand(repl[i+1])
			if !ok {
				return nil, errf(KindGrammar, tok.Pos, "'#' is not followed by a macro parameter")
			}
			var raw []TokenListItem
			if isVA {
				raw = inv.rawVA
			} else {
				raw = inv.rawArgs[name]
			}
			units = append(units, concreteUnit([]TokenListItem{{Tok: stringizeToken(raw, tok.Pos)}}))
			i += 2
		case tok.Kind == KindIdentifier && tok.Ident == IdentVAOpt:
			j := i + 1
			for j < n && isGlueKind(repl[j].Tok.Kind) {
				j++
			}
			if j >= n || repl[j].Tok.Kind != KindPunctuator || repl[j].Tok.Punct != PunctLParen {
				return nil, errf(KindGrammar, tok.Pos, "__VA_OPT__ must be followed by '('")
			}
			depth := 1
			k := j + 1
			for k < n && depth > 0 {
				if repl[k].Tok.Kind == KindPunctuator && repl[k].Tok.Punct == PunctLParen {
					depth++
				} else if repl[k].Tok.Kind == KindPunctuator && repl[k].Tok.Punct == PunctRParen {
					depth--
					if depth == 0 {
						break
					}
				}
				k++
			}
			if depth != 0 {
				return nil, errf(KindGrammar, tok.Pos, "unterminated __VA_OPT__")
			}
			if inv.hasVA && len(inv.rawVA) > 0 {
				inner, err := lx.buildReplacement(repl[j+1:k], inv)
				if err != nil {
					return nil, err
				}
				units = append(units, concreteUnit(inner))
			}
			i = k + 1
		case tok.Kind == KindIdentifier && tok.Ident == IdentCushionWrapped:
			units = append(units, concreteUnit(inv.wrapped))
			i++
		case tok.Kind == KindPunctuator && tok.Punct == PunctHashHash:
			units = append(units, pasteMarker)
			i++
		default:
			if name, isVA, ok := isOperand(repl[i]); ok {
				if isVA {
					units = append(units, substUnit{raw: inv.rawVA, expanded: inv.expVA})
				} else {
					units = append(units, substUnit{raw: inv.rawArgs[name], expanded: inv.expArgs[name]})
				}
			} else {
				units = append(units, concreteUnit([]TokenListItem{repl[i]}))
			}
			i++
		}
	}
	return units, nil
}

func isPasteMarker(u substUnit) bool {
	return len(u.raw) == 1 && u.raw[0].Tok.Kind == KindPunctuator && u.raw[0].Tok.Punct == PunctHashHash && len(u.expanded) == 0
}

// pasteUnits resolves ## markers left by lowerReplacement, merging the
// boundary tokens of the units on either side and using each side's raw
// form (unexpanded argument tokens) rather than its expanded form.
func pasteUnits(units []substUnit) []TokenListItem {
	var out []TokenListItem
	i := 0
	for i < len(units) {
		if isPasteMarker(units[i]) {
			i++
			continue
		}
		left := units[i].expanded
		if i+1 < len(units) && isPasteMarker(units[i+1]) && i+2 < len(units) {
			leftRaw := units[i].raw
			rightRaw := units[i+2].raw
			merged, leftRest, rightRest := pasteBoundary(leftRaw, rightRaw)
			out = append(out, leftRest...)
			out = append(out, merged...)
			// Continue folding additional chained ## to the right.
			rest := append(append([]TokenListItem{}, rightRest...))
			j := i + 3
			for j < len(units) && isPasteMarker(units[j]) && j+1 < len(units) {
				nextRaw := units[j+1].raw
				m2, leftRest2, rightRest2 := pasteBoundary(rest, nextRaw)
				rest = append(append(leftRest2, m2...), rightRest2...)
				j += 2
			}
			out = append(out, rest...)
			i = j
			continue
		}
		out = append(out, left...)
		i++
	}
	return out
}

// pasteBoundary merges the last token of left with the first token of
// right, returning the merged token plus left's other leading tokens and
// right's other trailing tokens untouched. An empty side (a parameter that
// expanded to nothing) leaves the other side's token unmerged, per the
// placemarker rule.
func pasteBoundary(left, right []TokenListItem) (merged, leftRest, rightRest []TokenListItem) {
	if len(left) == 0 && len(right) == 0 {
		return nil, nil, nil
	}
	if len(left) == 0 {
		return []TokenListItem{right[0]}, nil, right[1:]
	}
	if len(right) == 0 {
		return []TokenListItem{left[len(left)-1]}, left[:len(left)-1], nil
	}
	lastLeft := left[len(left)-1].Tok
	firstRight := right[0].Tok
	text := lastLeft.Text + firstRight.Text
	var tok Token
	if looksLikeIdentText(text) {
		tok = Token{Kind: KindIdentifier, Text: text, Pos: lastLeft.Pos, Ident: classifyIdentifier(text)}
	} else if v, err := decodeInteger(text); err == nil && allDigitsOrSuffix(text) {
		tok = Token{Kind: KindInteger, Text: text, Pos: lastLeft.Pos, Int: v}
	} else {
		tok = Token{Kind: KindOther, Text: text, Pos: lastLeft.Pos}
	}
	return []TokenListItem{{Tok: tok}}, left[:len(left)-1], right[1:]
}

func looksLikeIdentText(s string) bool {
	if s == "" || !isIdentStartByte(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentContinueByte(s[i]) {
			return false
		}
	}
	return true
}

func allDigitsOrSuffix(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigitByte(c) && c != 'u' && c != 'U' && c != 'l' && c != 'L' && c != '\'' {
			return false
		}
	}
	return s != ""
}

// stringizeToken implements the '#' operator: the argument's tokens
// rendered with a single space between them, quotes and backslashes
// escaped, wrapped in a string-literal token.
func stringizeToken(args []TokenListItem, pos SourcePos) Token {
	var b strings.Builder
	for i, it := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(escapeForStringize(it.Tok.Text))
	}
	inner := b.String()
	return Token{Kind: KindStringLiteral, Text: quoteString(inner), Pos: pos, Inner: inner}
}

func escapeForStringize(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func quoteString(inner string) string {
	return "\"" + inner + "\""
}
