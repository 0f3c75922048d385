package cushion

import (
	"fmt"
	"strconv"
	"strings"
)

// decodeDecimal parses a run of decimal digits (no separators, no suffix),
// the grammar a #line argument is restricted to.
func decodeDecimal(text string) (uint64, error) {
	return strconv.ParseUint(text, 10, 64)
}

// decodeInteger parses a pp-number already known to denote an integer
// constant: an optional 0x/0X, 0b/0B or leading-0 octal prefix, digits
// (possibly separated by digit-separator quotes), and a u/U/l/L suffix
// combination which is accepted but not separately reported.
func decodeInteger(text string) (uint64, error) {
	body := stripDigitSeparators(text)
	body, _ = splitIntegerSuffix(body)

	base := 10
	switch {
	case len(body) > 2 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X'):
		base = 16
		body = body[2:]
	case len(body) > 2 && body[0] == '0' && (body[1] == 'b' || body[1] == 'B'):
		base = 2
		body = body[2:]
	case len(body) > 1 && body[0] == '0':
		base = 8
	}
	if body == "" {
		return 0, nil
	}
	val, err := strconv.ParseUint(body, base, 64)
	if err != nil {
		return 0, fmt.Errorf("cushion: %w", err)
	}
	return val, nil
}

func stripDigitSeparators(s string) string {
	if !strings.ContainsRune(s, '\'') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// splitIntegerSuffix trims a trailing u/U/l/L run and reports it separately;
// the evaluator only needs the numeric value, not the declared width.
func splitIntegerSuffix(s string) (body, suffix string) {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if c == 'u' || c == 'U' || c == 'l' || c == 'L' {
			i--
			continue
		}
		break
	}
	return s[:i], s[i:]
}
