package analyzer

import (
	"strconv"
	"strings"
)

// decodeANSIC expands the escapes of a $'...' string, so $'\x72\x6d'
// is seen as "rm".
func decodeANSIC(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch c := s[i]; c {
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'e', 'E':
			b.WriteByte(0x1b)
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case 'x':
			n := digits(s[i+1:], 2, isHex)
			writeCode(&b, s[i+1:i+1+n], 16, 'x')
			i += n
		case 'u':
			n := digits(s[i+1:], 4, isHex)
			writeRune(&b, s[i+1:i+1+n], 'u')
			i += n
		case 'U':
			n := digits(s[i+1:], 8, isHex)
			writeRune(&b, s[i+1:i+1+n], 'U')
			i += n
		case '0', '1', '2', '3', '4', '5', '6', '7':
			n := digits(s[i:], 3, isOctal)
			writeCode(&b, s[i:i+n], 8, 0)
			i += n - 1
		default:
			// \\, \', \" and \? stand for themselves.
			b.WriteByte(c)
		}
	}
	return b.String()
}

func digits(s string, max int, ok func(byte) bool) int {
	n := 0
	for n < len(s) && n < max && ok(s[n]) {
		n++
	}
	return n
}

func writeCode(b *strings.Builder, code string, base int, prefix byte) {
	v, err := strconv.ParseUint(code, base, 8)
	if err != nil {
		b.WriteByte('\\')
		if prefix != 0 {
			b.WriteByte(prefix)
		}
		b.WriteString(code)
		return
	}
	b.WriteByte(byte(v))
}

func writeRune(b *strings.Builder, code string, prefix byte) {
	v, err := strconv.ParseUint(code, 16, 32)
	if err != nil {
		b.WriteByte('\\')
		b.WriteByte(prefix)
		b.WriteString(code)
		return
	}
	b.WriteRune(rune(v))
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
