// Package validation checks user-supplied text before it reaches the
// keyboard and renders it safely for logs.
package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultMaxMessageLength is the largest accepted message, in bytes.
const DefaultMaxMessageLength = 1000

// DefaultLogLength is how much of a message SanitizeForLog keeps.
const DefaultLogLength = 50

var (
	ErrEmpty             = errors.New("message cannot be empty")
	ErrTooLong           = errors.New("message exceeds maximum length")
	ErrInvalidCharacters = errors.New("message contains invalid characters")
)

// ValidateMessage checks emptiness, then length, then characters. A
// maxLen of zero or less uses DefaultMaxMessageLength.
func ValidateMessage(msg string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	if len(msg) == 0 {
		return ErrEmpty
	}
	if len(msg) > maxLen {
		return ErrTooLong
	}
	if !utf8.ValidString(msg) {
		return ErrInvalidCharacters
	}
	for _, r := range msg {
		if isForbidden(r) {
			return ErrInvalidCharacters
		}
	}
	return nil
}

// isForbidden rejects C0 controls other than newline, carriage return and
// tab, DEL, and C1 controls.
func isForbidden(r rune) bool {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return false
	case r < 0x20:
		return true
	case r == 0x7f:
		return true
	case r >= 0x80 && r <= 0x9f:
		return true
	}
	return false
}

// SanitizeForLog keeps at most maxLen bytes of msg, escapes newline,
// carriage return and tab, and replaces every other non-printable or
// non-ASCII byte with '.'. Truncated output ends in "...".
func SanitizeForLog(msg string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultLogLength
	}

	n := len(msg)
	if n > maxLen {
		n = maxLen
	}

	var b strings.Builder
	b.Grow(n + 3)
	for i := 0; i < n; i++ {
		c := msg[i]
		switch {
		case c >= 0x20 && c <= 0x7e:
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte('.')
		}
	}
	if len(msg) > maxLen {
		b.WriteString("...")
	}
	return b.String()
}
