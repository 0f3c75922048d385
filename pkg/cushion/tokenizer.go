package cushion

import (
	"io"
)

// TokenizerMode selects which sub-grammar NextToken scans with. The lexer
// driver switches modes around directive boundaries; the tokenizer itself
// only knows how to behave once told which mode it is in.
type TokenizerMode int

const (
	ModeRegular TokenizerMode = iota
	ModeNewLine
	ModeInclude
	ModeLine
)

// defaultBufferSize is the tokenizer's rolling buffer capacity. It bounds
// the longest single lexeme (identifier, string literal, number) the
// tokenizer can scan without hitting "lexeme overflow"; chosen generously
// for real-world C source.
const defaultBufferSize = 16384

// Tokenizer converts a byte stream (a file handle or an in-memory string,
// both accepted as io.Reader) into a stream of Tokens, refilling its
// rolling buffer on demand without losing any in-flight lexeme.
type Tokenizer struct {
	src  io.Reader
	buf  []byte
	size int // number of valid bytes currently in buf[0:size]
	eof  bool

	cursor      int // next unread byte
	tokenStart  int // start of the lexeme currently being scanned
	savedCursor int // -1 when unset; single-slot lookahead rollback point
	guardrail   [2]int // -1 when unset; positions a refill must not discard

	file string
	line int
	col  int

	Mode        TokenizerMode
	SkipRegular bool // discard to next newline without producing tokens

	atBOL bool
}

// NewTokenizer creates a tokenizer reading from src, reporting positions
// under the given file name (used for #line bookkeeping and diagnostics).
func NewTokenizer(src io.Reader, file string) *Tokenizer {
	return newTokenizerSize(src, file, defaultBufferSize)
}

// NewTokenizerFromString creates a tokenizer over an in-memory string,
// satisfying the "or an in-memory string" half of the tokenizer's contract
// without a distinct code path.
func NewTokenizerFromString(s, file string) *Tokenizer {
	return NewTokenizer(&stringReader{s: s}, file)
}

func newTokenizerSize(src io.Reader, file string, bufSize int) *Tokenizer {
	return &Tokenizer{
		src:         src,
		buf:         make([]byte, bufSize),
		savedCursor: -1,
		guardrail:   [2]int{-1, -1},
		file:        file,
		line:        1,
		col:         1,
		Mode:        ModeNewLine,
		atBOL:       true,
	}
}

// stringReader is a minimal io.Reader over a string, used so in-memory
// sources and file handles share exactly one scanning implementation.
type stringReader struct {
	s   string
	pos int
}

func (r *stringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}

// SetLine overrides the tokenizer's notion of the current line (and
// optionally the file name), implementing the effect of a #line directive.
func (t *Tokenizer) SetLine(line int, file string) {
	t.line = line
	if file != "" {
		t.file = file
	}
}

// FileName returns the tokenizer's current file name (post any #line rewrite).
func (t *Tokenizer) FileName() string { return t.file }

// Pos returns the tokenizer's current position.
func (t *Tokenizer) Pos() SourcePos {
	return SourcePos{File: t.file, Line: t.line, Column: t.col}
}

// PlaceGuardrail marks the tokenizer's current cursor as a position that
// refill must never discard, protecting an in-flight extension body (a
// CUSHION_DEFER or accumulator push collects its tokens one at a time, but
// a guardrail additionally lets callers hold a raw span across that
// collection without it being shifted out from under them).
func (t *Tokenizer) PlaceGuardrail(slot int) {
	t.guardrail[slot] = t.cursor
}

// ReleaseGuardrail clears a previously placed guardrail.
func (t *Tokenizer) ReleaseGuardrail(slot int) {
	t.guardrail[slot] = -1
}

// ensureAvailable guarantees that at least n bytes starting at t.cursor are
// present in the buffer (fewer only if the source is exhausted), refilling
// and shifting as needed. It returns an error naming the limiting guardrail
// when no further shift is possible.
func (t *Tokenizer) ensureAvailable(n int) error {
	for t.size-t.cursor < n && !t.eof {
		if err := t.refill(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tokenizer) refill() error {
	minKeep := t.tokenStart
	limiter := "token-start"
	if t.savedCursor >= 0 && t.savedCursor < minKeep {
		minKeep = t.savedCursor
		limiter = "saved-cursor"
	}
	if t.guardrail[0] >= 0 && t.guardrail[0] < minKeep {
		minKeep = t.guardrail[0]
		limiter = "guardrail"
	}
	if t.guardrail[1] >= 0 && t.guardrail[1] < minKeep {
		minKeep = t.guardrail[1]
		limiter = "guardrail"
	}
	if minKeep > 0 {
		copy(t.buf, t.buf[minKeep:t.size])
		t.size -= minKeep
		t.cursor -= minKeep
		t.tokenStart -= minKeep
		if t.savedCursor >= 0 {
			t.savedCursor -= minKeep
		}
		if t.guardrail[0] >= 0 {
			t.guardrail[0] -= minKeep
		}
		if t.guardrail[1] >= 0 {
			t.guardrail[1] -= minKeep
		}
	} else if t.size == len(t.buf) {
		return errf(KindTokenization, t.Pos(), "lexeme overflow (limited by %s)", limiter)
	}
	n, err := t.src.Read(t.buf[t.size:])
	t.size += n
	if err != nil {
		t.eof = true
	}
	return nil
}

// peekAt returns the byte at cursor+offset, or 0 with ok=false at EOF.
func (t *Tokenizer) peekAt(offset int) (byte, bool) {
	if err := t.ensureAvailable(offset + 1); err != nil {
		// Overflow while looking ahead is reported by the caller that
		// actually needs the byte; treat as EOF here to let bounded
		// lookahead (e.g. "is the next byte '/'?") fail closed.
		return 0, false
	}
	if t.cursor+offset >= t.size {
		return 0, false
	}
	return t.buf[t.cursor+offset], true
}

func (t *Tokenizer) peek() byte {
	b, _ := t.peekAt(0)
	return b
}

func (t *Tokenizer) peek2() (byte, bool) {
	return t.peekAt(1)
}

func (t *Tokenizer) advance() {
	b, ok := t.peekAt(0)
	if !ok {
		return
	}
	t.cursor++
	if b == '\n' {
		t.line++
		t.col = 1
	} else {
		t.col++
	}
}

func (t *Tokenizer) atEOF() bool {
	_, ok := t.peekAt(0)
	return !ok
}

func (t *Tokenizer) loc() SourcePos {
	return SourcePos{File: t.file, Line: t.line, Column: t.col}
}

// handleLineSplice consumes any run of backslash-newline (optionally
// followed by carriage return) at the current position, as C requires
// before any other lexical analysis.
func (t *Tokenizer) handleLineSplice() {
	for {
		b, ok := t.peekAt(0)
		if !ok || b != '\\' {
			return
		}
		n, ok2 := t.peekAt(1)
		if !ok2 {
			return
		}
		if n == '\n' {
			t.advance()
			t.advance()
			continue
		}
		if n == '\r' {
			if n3, ok3 := t.peekAt(2); ok3 && n3 == '\n' {
				t.advance()
				t.advance()
				t.advance()
				continue
			}
		}
		return
	}
}

func isWhitespaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f' || c == '\v' || c == '\r'
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigitByte(c byte) bool {
	return isDigitByte(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStartByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentContinueByte(c byte) bool {
	return isIdentStartByte(c) || isDigitByte(c)
}

// NextToken produces the next token, updating line/column, emitting a
// single KindEOF sentinel once the stream is exhausted.
func (t *Tokenizer) NextToken() (Token, error) {
	for {
		t.handleLineSplice()

		if t.atEOF() {
			return Token{Kind: KindEOF, Pos: t.loc()}, nil
		}

		c := t.peek()

		if c == '\n' {
			loc := t.loc()
			t.advance()
			t.Mode = ModeNewLine
			t.atBOL = true
			return Token{Kind: KindNewline, Text: "\n", Pos: loc}, nil
		}

		switch t.Mode {
		case ModeInclude:
			t.Mode = ModeRegular
			return t.scanHeaderName()
		case ModeLine:
			t.Mode = ModeRegular
			if isDigitByte(c) {
				return t.scanLineNumber()
			}
		}

		if isWhitespaceByte(c) {
			return t.scanWhitespace(), nil
		}

		if c == '/' {
			if n, ok := t.peek2(); ok && n == '/' {
				return t.scanLineComment()
			}
			if n, ok := t.peek2(); ok && n == '*' {
				return t.scanBlockComment()
			}
		}

		if c == '#' && t.atBOL {
			return t.scanDirectiveHash()
		}
		t.atBOL = false

		if t.SkipRegular {
			tok, done, err := t.skipToNewline()
			if err != nil {
				return Token{}, err
			}
			if done {
				return tok, nil
			}
			continue
		}

		if c >= 0x80 {
			return Token{}, errf(KindTokenization, t.loc(), "non-ASCII byte 0x%02x outside comments/literals", c)
		}

		if c == '"' {
			loc := t.startToken()
			return t.scanString(EncodingOrdinary, loc)
		}
		if c == '\'' {
			loc := t.startToken()
			return t.scanChar(EncodingOrdinary, loc)
		}
		if (c == 'u' || c == 'U' || c == 'L') {
			if tok, ok, err := t.tryScanPrefixedLiteral(); err != nil {
				return Token{}, err
			} else if ok {
				return tok, nil
			}
		}

		if isDigitByte(c) {
			return t.scanNumber()
		}
		if c == '.' {
			if n, ok := t.peek2(); ok && isDigitByte(n) {
				return t.scanNumber()
			}
		}

		if isIdentStartByte(c) {
			return t.scanIdentifier(), nil
		}

		return t.scanPunctuator()
	}
}

// skipToNewline discards bytes up to (not including) the next newline
// without producing a token for any of them, used once a line is known not
// to open with a directive so an excluded/scan-only line's body can be
// skipped in one pass instead of token-by-token.
func (t *Tokenizer) skipToNewline() (Token, bool, error) {
	for {
		c, ok := t.peekAt(0)
		if !ok {
			t.SkipRegular = false
			return Token{Kind: KindEOF, Pos: t.loc()}, true, nil
		}
		if c == '\n' {
			t.SkipRegular = false
			loc := t.loc()
			t.advance()
			t.Mode = ModeNewLine
			t.atBOL = true
			return Token{Kind: KindNewline, Text: "\n", Pos: loc}, true, nil
		}
		t.advance()
	}
}

func (t *Tokenizer) startToken() SourcePos {
	t.tokenStart = t.cursor
	return t.loc()
}

func (t *Tokenizer) textSinceStart() string {
	return string(t.buf[t.tokenStart:t.cursor])
}

func (t *Tokenizer) scanWhitespace() Token {
	loc := t.startToken()
	for {
		c, ok := t.peekAt(0)
		if !ok || !isWhitespaceByte(c) {
			break
		}
		t.advance()
		t.handleLineSplice()
	}
	return Token{Kind: KindWhitespace, Text: " ", Pos: loc}
}

func (t *Tokenizer) scanLineComment() Token {
	loc := t.startToken()
	t.advance()
	t.advance()
	for {
		c, ok := t.peekAt(0)
		if !ok || c == '\n' {
			break
		}
		t.advance()
	}
	return Token{Kind: KindWhitespace, Text: " ", Pos: loc}
}

func (t *Tokenizer) scanBlockComment() Token {
	loc := t.startToken()
	t.advance()
	t.advance()
	for {
		c, ok := t.peekAt(0)
		if !ok {
			break
		}
		if c == '*' {
			if n, ok2 := t.peek2(); ok2 && n == '/' {
				t.advance()
				t.advance()
				break
			}
		}
		t.advance()
	}
	return Token{Kind: KindWhitespace, Text: " ", Pos: loc}
}

// directiveNames maps the directive keyword (right after '#') to its token
// kind, per spec §4.2/§6.
var directiveNames = map[string]TokenKind{
	"if":        KindDirectiveIf,
	"ifdef":     KindDirectiveIfdef,
	"ifndef":    KindDirectiveIfndef,
	"elif":      KindDirectiveElif,
	"elifdef":   KindDirectiveElifdef,
	"elifndef":  KindDirectiveElifndef,
	"else":      KindDirectiveElse,
	"endif":     KindDirectiveEndif,
	"include":   KindDirectiveInclude,
	"define":    KindDirectiveDefine,
	"undef":     KindDirectiveUndef,
	"line":      KindDirectiveLine,
	"pragma":    KindDirectivePragma,
}

// scanDirectiveHash consumes the leading '#' of a directive line, skips
// intervening whitespace, and if the following word names a recognized
// directive, returns the matching Kind* token (positioned at the '#').
// Anything else (an empty directive, an unrecognized name, a GNU-style
// numeric linemarker) is returned as a bare PunctHash token, leaving the
// driver to interpret or reject the remainder of the line.
func (t *Tokenizer) scanDirectiveHash() (Token, error) {
	loc := t.startToken()
	t.advance() // consume '#'
	t.atBOL = false

	save := t.cursor
	for {
		c, ok := t.peekAt(0)
		if !ok || !isWhitespaceByte(c) {
			break
		}
		t.advance()
	}

	c, ok := t.peekAt(0)
	if ok && isIdentStartByte(c) {
		start := t.cursor
		for {
			c, ok := t.peekAt(0)
			if !ok || !isIdentContinueByte(c) {
				break
			}
			t.advance()
		}
		word := string(t.buf[start:t.cursor])
		if kind, isDirective := directiveNames[word]; isDirective {
			if kind == KindDirectiveInclude {
				t.Mode = ModeInclude
			} else if kind == KindDirectiveLine {
				t.Mode = ModeLine
			}
			return Token{Kind: kind, Text: word, Pos: loc}, nil
		}
		// Not a recognized directive name; rewind so the word is lexed
		// as a regular identifier by the driver.
		t.cursor = save
	}
	return Token{Kind: KindPunctuator, Punct: PunctHash, Text: "#", Pos: loc}, nil
}

func (t *Tokenizer) scanHeaderName() (Token, error) {
	for {
		c, ok := t.peekAt(0)
		if !ok || !isWhitespaceByte(c) {
			break
		}
		t.advance()
	}
	loc := t.startToken()
	c, ok := t.peekAt(0)
	if !ok {
		return Token{Kind: KindEOF, Pos: loc}, nil
	}
	if c == '<' {
		t.advance()
		for {
			c, ok := t.peekAt(0)
			if !ok || c == '\n' {
				return Token{}, errf(KindTokenization, loc, "unterminated header name")
			}
			if c == '>' {
				t.advance()
				break
			}
			t.advance()
		}
		text := t.textSinceStart()
		return Token{Kind: KindHeaderSystem, Text: text, Pos: loc, Inner: text[1 : len(text)-1]}, nil
	}
	if c == '"' {
		t.advance()
		for {
			c, ok := t.peekAt(0)
			if !ok || c == '\n' {
				return Token{}, errf(KindTokenization, loc, "unterminated header name")
			}
			if c == '"' {
				t.advance()
				break
			}
			t.advance()
		}
		text := t.textSinceStart()
		return Token{Kind: KindHeaderUser, Text: text, Pos: loc, Inner: text[1 : len(text)-1]}, nil
	}
	// Not a literal header name; fall back to regular scanning so the
	// driver can macro-expand a computed #include.
	t.Mode = ModeRegular
	return t.NextToken()
}

func (t *Tokenizer) scanLineNumber() (Token, error) {
	loc := t.startToken()
	for {
		c, ok := t.peekAt(0)
		if !ok || !isDigitByte(c) {
			break
		}
		t.advance()
	}
	text := t.textSinceStart()
	val, err := decodeDecimal(text)
	if err != nil {
		return Token{}, wrapf(KindTokenization, loc, err, "invalid #line argument %q", text)
	}
	return Token{Kind: KindInteger, Text: text, Pos: loc, Int: val}, nil
}

func (t *Tokenizer) tryScanPrefixedLiteral() (Token, bool, error) {
	loc := t.startToken()
	enc := EncodingOrdinary
	c := t.peek()
	switch c {
	case 'u':
		if n, ok := t.peek2(); ok && n == '8' {
			if n2, ok2 := t.peekAt(2); ok2 && (n2 == '"' || n2 == '\'') {
				enc = EncodingUTF8
				t.advance()
				t.advance()
			}
		} else if ok && (n == '"' || n == '\'') {
			enc = EncodingUTF16
			t.advance()
		}
	case 'U':
		if n, ok := t.peek2(); ok && (n == '"' || n == '\'') {
			enc = EncodingUTF32
			t.advance()
		}
	case 'L':
		if n, ok := t.peek2(); ok && (n == '"' || n == '\'') {
			enc = EncodingWide
			t.advance()
		}
	}
	if enc == EncodingOrdinary {
		// tokenStart was advanced for nothing; the caller re-scans this
		// byte as a plain identifier.
		return Token{}, false, nil
	}
	if t.peek() == '"' {
		tok, err := t.scanString(enc, loc)
		return tok, true, err
	}
	tok, err := t.scanChar(enc, loc)
	return tok, true, err
}

func (t *Tokenizer) scanString(enc LiteralEncoding, loc SourcePos) (Token, error) {
	quoteStart := t.cursor
	t.advance() // consume opening quote
	for {
		c, ok := t.peekAt(0)
		if !ok || c == '\n' {
			return Token{}, errf(KindTokenization, loc, "unterminated string literal")
		}
		if c == '\\' {
			t.advance()
			if _, ok := t.peekAt(0); ok {
				t.advance()
			}
			continue
		}
		if c == '"' {
			t.advance()
			break
		}
		t.advance()
	}
	text := t.textSinceStart()
	inner := string(t.buf[quoteStart+1 : t.cursor-1])
	return Token{Kind: KindStringLiteral, Text: text, Pos: loc, Encoding: enc, Inner: inner}, nil
}

func (t *Tokenizer) scanChar(enc LiteralEncoding, loc SourcePos) (Token, error) {
	quoteStart := t.cursor
	t.advance()
	for {
		c, ok := t.peekAt(0)
		if !ok || c == '\n' {
			return Token{}, errf(KindTokenization, loc, "unterminated character literal")
		}
		if c == '\\' {
			t.advance()
			if _, ok := t.peekAt(0); ok {
				t.advance()
			}
			continue
		}
		if c == '\'' {
			t.advance()
			break
		}
		t.advance()
	}
	text := t.textSinceStart()
	inner := string(t.buf[quoteStart+1 : t.cursor-1])
	return Token{Kind: KindCharLiteral, Text: text, Pos: loc, Encoding: enc, Inner: inner}, nil
}

func (t *Tokenizer) scanNumber() (Token, error) {
	loc := t.startToken()
	for {
		c, ok := t.peekAt(0)
		if !ok {
			break
		}
		if c == '\'' {
			// digit separator
			t.advance()
			continue
		}
		if (c == 'e' || c == 'E' || c == 'p' || c == 'P') {
			if n, ok2 := t.peek2(); ok2 && (n == '+' || n == '-') {
				t.advance()
				t.advance()
				continue
			}
		}
		if isIdentContinueByte(c) || c == '.' {
			t.advance()
			continue
		}
		break
	}
	text := t.textSinceStart()
	isFloat := false
	for i := 0; i < len(text); i++ {
		if text[i] == '.' {
			isFloat = true
		}
		if (text[i] == 'e' || text[i] == 'E') && !hasHexPrefix(text) {
			isFloat = true
		}
		if (text[i] == 'p' || text[i] == 'P') && hasHexPrefix(text) {
			isFloat = true
		}
	}
	if isFloat {
		return Token{Kind: KindFloating, Text: text, Pos: loc}, nil
	}
	val, err := decodeInteger(text)
	if err != nil {
		return Token{}, wrapf(KindTokenization, loc, err, "invalid integer literal %q", text)
	}
	return Token{Kind: KindInteger, Text: text, Pos: loc, Int: val}, nil
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func (t *Tokenizer) scanIdentifier() Token {
	loc := t.startToken()
	for {
		c, ok := t.peekAt(0)
		if !ok || !isIdentContinueByte(c) {
			break
		}
		t.advance()
		t.handleLineSplice()
	}
	text := t.textSinceStart()
	return Token{Kind: KindIdentifier, Text: text, Pos: loc, Ident: classifyIdentifier(text)}
}

func (t *Tokenizer) scanPunctuator() (Token, error) {
	loc := t.startToken()
	b3 := [3]byte{}
	n := 0
	for n < 3 {
		c, ok := t.peekAt(n)
		if !ok {
			break
		}
		b3[n] = c
		n++
	}
	if n >= 3 {
		s := string(b3[:3])
		for _, p := range punctuators3 {
			if p.text == s {
				t.advance()
				t.advance()
				t.advance()
				return Token{Kind: KindPunctuator, Punct: p.kind, Text: s, Pos: loc}, nil
			}
		}
	}
	if n >= 2 {
		s := string(b3[:2])
		for _, p := range punctuators2 {
			if p.text == s {
				t.advance()
				t.advance()
				return Token{Kind: KindPunctuator, Punct: p.kind, Text: s, Pos: loc}, nil
			}
		}
	}
	if n >= 1 {
		if kind, ok := punctuators1[b3[0]]; ok {
			t.advance()
			return Token{Kind: KindPunctuator, Punct: kind, Text: string(b3[0]), Pos: loc}, nil
		}
	}
	if n == 0 {
		return Token{Kind: KindEOF, Pos: loc}, nil
	}
	t.advance()
	return Token{Kind: KindOther, Text: string(b3[0]), Pos: loc}, nil
}
