package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/icse/api-cache/pkg/client"
)

const (
	exportPrefix = "export const "
	pragmaSuffix = " //pragma: allowlist secret\n"
)

// Render returns the fixture file contents for resource name holding doc.
func Render(name string, doc []byte) ([]byte, error) {
	if !isIdentifier(name) {
		return nil, fmt.Errorf("fixture name %q is not a JavaScript identifier", name)
	}

	formatted, err := FormatJSON(doc)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.Grow(len(exportPrefix) + len(name) + 3 + len(formatted) + len(pragmaSuffix))
	b.WriteString(exportPrefix)
	b.WriteString(name)
	b.WriteString(" = ")
	b.Write(formatted)
	b.WriteString(pragmaSuffix)
	return b.Bytes(), nil
}

// FormatJSON re-serializes doc the way Python's json.dumps writes the
// decoded value: one line, ", " and ": " separators, ASCII-only string
// literals and floats in their shortest repr form.
func FormatJSON(doc []byte) ([]byte, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, doc); err != nil {
		return nil, &client.APIError{
			Class:   client.ErrorClassMalformedJSON,
			Message: err.Error(),
			Err:     client.ErrMalformedJSON,
		}
	}

	src := compact.Bytes()
	out := make([]byte, 0, len(src)+len(src)/8)
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case ',':
			out = append(out, ',', ' ')
		case ':':
			out = append(out, ':', ' ')
		case '"':
			end := stringEnd(src, i)
			var s string
			if err := json.Unmarshal(src[i:end], &s); err != nil {
				return nil, fmt.Errorf("decode string literal: %w", err)
			}
			out = appendASCIIString(out, s)
			i = end - 1
		case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			end := numberEnd(src, i)
			out = appendNumber(out, string(src[i:end]))
			i = end - 1
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

func numberEnd(src []byte, start int) int {
	i := start
	for i < len(src) && strings.IndexByte("+-.eE0123456789", src[i]) >= 0 {
		i++
	}
	return i
}

// appendNumber writes a JSON number literal. Integers keep every digit
// ("-0" is 0); anything with a fraction or exponent is a float.
func appendNumber(out []byte, lit string) []byte {
	if !strings.ContainsAny(lit, ".eE") {
		if lit == "-0" {
			return append(out, '0')
		}
		return append(out, lit...)
	}

	f, _ := strconv.ParseFloat(lit, 64)
	return appendFloat(out, f)
}

// appendFloat writes f as Python's float repr: the shortest round-tripping
// digits, positional with a trailing ".0" when the decimal exponent is in
// [-4, 16), scientific with a signed two-digit exponent otherwise.
func appendFloat(out []byte, f float64) []byte {
	switch {
	case math.IsInf(f, 1):
		return append(out, "Infinity"...)
	case math.IsInf(f, -1):
		return append(out, "-Infinity"...)
	case math.IsNaN(f):
		return append(out, "NaN"...)
	}
	if math.Signbit(f) {
		out = append(out, '-')
		f = -f
	}
	if f == 0 {
		return append(out, "0.0"...)
	}

	// d.ddde±XX
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(sci, "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mant, ".", "", 1)
	decpt := exp + 1

	switch {
	case decpt <= -4 || decpt > 16:
		out = append(out, digits[0])
		if len(digits) > 1 {
			out = append(out, '.')
			out = append(out, digits[1:]...)
		}
		return fmt.Appendf(out, "e%+03d", exp)
	case decpt <= 0:
		out = append(out, "0."...)
		out = append(out, strings.Repeat("0", -decpt)...)
		return append(out, digits...)
	case decpt >= len(digits):
		out = append(out, digits...)
		out = append(out, strings.Repeat("0", decpt-len(digits))...)
		return append(out, ".0"...)
	default:
		out = append(out, digits[:decpt]...)
		out = append(out, '.')
		return append(out, digits[decpt:]...)
	}
}

// stringEnd returns the index just past the string literal starting at src[start].
func stringEnd(src []byte, start int) int {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(src)
}

const hexDigits = "0123456789abcdef"

func appendASCIIString(out []byte, s string) []byte {
	out = append(out, '"')
	for _, r := range s {
		switch {
		case r == '"':
			out = append(out, '\\', '"')
		case r == '\\':
			out = append(out, '\\', '\\')
		case r == '\n':
			out = append(out, '\\', 'n')
		case r == '\r':
			out = append(out, '\\', 'r')
		case r == '\t':
			out = append(out, '\\', 't')
		case r == '\b':
			out = append(out, '\\', 'b')
		case r == '\f':
			out = append(out, '\\', 'f')
		case r >= 0x20 && r < 0x7f:
			out = append(out, byte(r))
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			out = appendUnicodeEscape(out, hi)
			out = appendUnicodeEscape(out, lo)
		default:
			out = appendUnicodeEscape(out, r)
		}
	}
	return append(out, '"')
}

func appendUnicodeEscape(out []byte, r rune) []byte {
	return append(out, '\\', 'u',
		hexDigits[r>>12&0xf], hexDigits[r>>8&0xf], hexDigits[r>>4&0xf], hexDigits[r&0xf])
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
