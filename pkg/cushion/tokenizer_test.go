package cushion

import "testing"

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	tz := NewTokenizerFromString(src, "<test>")
	var toks []Token
	for {
		tok, err := tz.NextToken()
		if err != nil {
			t.Fatalf("NextToken: %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == KindEOF {
			return toks
		}
	}
}

func TestTokenizerIdentifiersAndPunctuators(t *testing.T) {
	toks := scanAll(t, "foo+bar==baz")
	var kinds []TokenKind
	for _, tok := range toks {
		if tok.Kind == KindEOF {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	want := []TokenKind{KindIdentifier, KindPunctuator, KindIdentifier, KindPunctuator, KindIdentifier}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), kinds)
	}
	for i, k := range kinds {
		if k != want[i] {
			t.Errorf("token %d: got %v, want %v", i, k, want[i])
		}
	}
	if toks[1].Punct != PunctPlus {
		t.Errorf("token 1 punct = %v, want PunctPlus", toks[1].Punct)
	}
	if toks[3].Punct != PunctEqEq {
		t.Errorf("token 3 punct = %v, want PunctEqEq", toks[3].Punct)
	}
}

func TestTokenizerStringEncodingPassthrough(t *testing.T) {
	cases := []struct {
		src  string
		enc  LiteralEncoding
		kind TokenKind
	}{
		{`"plain"`, EncodingOrdinary, KindStringLiteral},
		{`u8"utf8"`, EncodingUTF8, KindStringLiteral},
		{`u"utf16"`, EncodingUTF16, KindStringLiteral},
		{`U"utf32"`, EncodingUTF32, KindStringLiteral},
		{`L"wide"`, EncodingWide, KindStringLiteral},
		{`'c'`, EncodingOrdinary, KindCharLiteral},
		{`L'c'`, EncodingWide, KindCharLiteral},
	}
	for _, tc := range cases {
		toks := scanAll(t, tc.src)
		if toks[0].Kind != tc.kind {
			t.Errorf("%q: kind = %v, want %v", tc.src, toks[0].Kind, tc.kind)
		}
		if toks[0].Encoding != tc.enc {
			t.Errorf("%q: encoding = %v, want %v", tc.src, toks[0].Encoding, tc.enc)
		}
	}
}

func TestTokenizerStringEscapesPreserveInner(t *testing.T) {
	toks := scanAll(t, `"a\"b"`)
	if toks[0].Kind != KindStringLiteral {
		t.Fatalf("kind = %v, want KindStringLiteral", toks[0].Kind)
	}
	if toks[0].Inner != `a\"b` {
		t.Errorf("inner = %q, want %q", toks[0].Inner, `a\"b`)
	}
}

func TestTokenizerIntegerLiterals(t *testing.T) {
	cases := map[string]uint64{
		"42":    42,
		"0x2A":  42,
		"052":   42,
		"0b101": 5,
		"10u":   10,
		"10UL":  10,
		"1'000": 1000,
	}
	for src, want := range cases {
		toks := scanAll(t, src)
		if toks[0].Kind != KindInteger {
			t.Fatalf("%q: kind = %v, want KindInteger", src, toks[0].Kind)
		}
		if toks[0].Int != want {
			t.Errorf("%q: value = %d, want %d", src, toks[0].Int, want)
		}
	}
}

func TestTokenizerFloatingLiterals(t *testing.T) {
	for _, src := range []string{"1.5", "1e10", "1.5e-3", "0x1p4"} {
		toks := scanAll(t, src)
		if toks[0].Kind != KindFloating {
			t.Errorf("%q: kind = %v, want KindFloating", src, toks[0].Kind)
		}
	}
}

func TestTokenizerLineSplice(t *testing.T) {
	toks := scanAll(t, "fo\\\no")
	if toks[0].Kind != KindIdentifier || toks[0].Text != "foo" {
		t.Fatalf("got %+v, want spliced identifier %q", toks[0], "foo")
	}
}

func TestTokenizerCommentsCollapseToGlue(t *testing.T) {
	toks := scanAll(t, "a /* block */ b // line\nc")
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []TokenKind{
		KindIdentifier, KindWhitespace, KindWhitespace, KindIdentifier,
		KindWhitespace, KindWhitespace, KindNewline, KindIdentifier, KindEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestTokenizerDirectiveRecognition(t *testing.T) {
	tz := NewTokenizerFromString("#define FOO 1\n", "<test>")
	tok, err := tz.NextToken()
	if err != nil {
		t.Fatalf("NextToken: %v", err)
	}
	if tok.Kind != KindDirectiveDefine {
		t.Fatalf("kind = %v, want KindDirectiveDefine", tok.Kind)
	}
}

func TestTokenizerUnrecognizedHashFallsBackToBareHash(t *testing.T) {
	tz := NewTokenizerFromString("#nonsense\n", "<test>")
	tok, err := tz.NextToken()
	if err != nil {
		t.Fatalf("NextToken: %v", err)
	}
	if tok.Kind != KindPunctuator || tok.Punct != PunctHash {
		t.Fatalf("got %+v, want bare PunctHash", tok)
	}
	next, err := tz.NextToken()
	if err != nil {
		t.Fatalf("NextToken: %v", err)
	}
	if next.Kind != KindIdentifier || next.Text != "nonsense" {
		t.Fatalf("got %+v, want identifier %q", next, "nonsense")
	}
}

func TestTokenizerUnterminatedStringIsAnError(t *testing.T) {
	tz := NewTokenizerFromString("\"unterminated\n", "<test>")
	if _, err := tz.NextToken(); err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestTokenizerSetLineOverridesPosition(t *testing.T) {
	tz := NewTokenizerFromString("x\n", "a.c")
	tz.SetLine(100, "b.h")
	tok, err := tz.NextToken()
	if err != nil {
		t.Fatalf("NextToken: %v", err)
	}
	if tok.Pos.File != "b.h" || tok.Pos.Line != 100 {
		t.Fatalf("pos = %+v, want file=b.h line=100", tok.Pos)
	}
}
