package cushion

import "testing"

func tokenizeExpr(t *testing.T, src string) []TokenListItem {
	t.Helper()
	tz := NewTokenizerFromString(src, "<test>")
	var items []TokenListItem
	for {
		tok, err := tz.NextToken()
		if err != nil {
			t.Fatalf("tokenizing %q: %v", src, err)
		}
		if tok.Kind == KindEOF {
			return items
		}
		if tok.Kind == KindWhitespace || tok.Kind == KindNewline || tok.Kind == KindComment {
			continue
		}
		items = append(items, TokenListItem{Tok: tok})
	}
}

func evalExprString(t *testing.T, macros *MacroTable, line int, src string) int64 {
	t.Helper()
	if macros == nil {
		macros = NewMacroTable()
	}
	v, err := NewEvaluator(macros, line).Evaluate(tokenizeExpr(t, src))
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", src, err)
	}
	return v
}

func TestEvaluatorArithmeticAndPrecedence(t *testing.T) {
	cases := map[string]int64{
		"1 + 2 * 3":       7,
		"(1 + 2) * 3":     9,
		"10 % 3":          1,
		"1 << 4":          16,
		"8 >> 2":          2,
		"~0":              -1,
		"-5 + 3":          -2,
		"!0":              1,
		"!1":              0,
		"1 && 0":          0,
		"1 || 0":          1,
		"1 == 1 && 2 > 1": 1,
		"1 ? 2 : 3":       2,
		"0 ? 2 : 3":       3,
		"1 & 3 | 4":       5,
		"5 ^ 1":           4,
	}
	for src, want := range cases {
		if got := evalExprString(t, nil, 0, src); got != want {
			t.Errorf("%q = %d, want %d", src, got, want)
		}
	}
}

func TestEvaluatorDefined(t *testing.T) {
	mt := NewMacroTable()
	mt.Define(objectLikeMacro("FOO", "1"))
	if got := evalExprString(t, mt, 0, "defined(FOO)"); got != 1 {
		t.Errorf("defined(FOO) = %d, want 1", got)
	}
	if got := evalExprString(t, mt, 0, "defined FOO"); got != 1 {
		t.Errorf("defined FOO = %d, want 1", got)
	}
	if got := evalExprString(t, mt, 0, "defined(BAR)"); got != 0 {
		t.Errorf("defined(BAR) = %d, want 0", got)
	}
	if got := evalExprString(t, mt, 0, "!defined(BAR)"); got != 1 {
		t.Errorf("!defined(BAR) = %d, want 1", got)
	}
}

func TestEvaluatorLine(t *testing.T) {
	if got := evalExprString(t, nil, 42, "__LINE__"); got != 42 {
		t.Errorf("__LINE__ = %d, want 42", got)
	}
}

func TestEvaluatorUndefinedIdentifierIsAnError(t *testing.T) {
	_, err := NewEvaluator(NewMacroTable(), 0).Evaluate(tokenizeExpr(t, "UNKNOWN_NAME + 1"))
	if err == nil {
		t.Fatal("expected an error for an undefined identifier in a controlling expression")
	}
}

func TestEvaluatorDivisionByZeroIsAnError(t *testing.T) {
	_, err := NewEvaluator(NewMacroTable(), 0).Evaluate(tokenizeExpr(t, "1 / 0"))
	if err == nil {
		t.Fatal("expected a division-by-zero error")
	}
}

func TestEvaluatorFloatingAndStringRejected(t *testing.T) {
	if _, err := NewEvaluator(NewMacroTable(), 0).Evaluate(tokenizeExpr(t, "1.5")); err == nil {
		t.Error("expected floating-point constant to be rejected")
	}
	if _, err := NewEvaluator(NewMacroTable(), 0).Evaluate(tokenizeExpr(t, `"str"`)); err == nil {
		t.Error("expected string literal to be rejected")
	}
}

func TestEvaluatorCharLiteral(t *testing.T) {
	if got := evalExprString(t, nil, 0, "'A'"); got != 65 {
		t.Errorf("'A' = %d, want 65", got)
	}
	if got := evalExprString(t, nil, 0, `'\n'`); got != 10 {
		t.Errorf(`'\n' = %d, want 10`, got)
	}
}
