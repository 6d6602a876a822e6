// Package layout decodes the in-memory representation of string types
// the debugger engine can not format on its own.
//
// Everything in this package is a pure function of the field texts
// reported by the engine and of the bytes read from the target, so that
// the layout assumptions can be tested without a live process.
package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// DefaultMaxLength is the number of characters decoded before a string is
// truncated.
const DefaultMaxLength = 40

const ellipsis = "..."

var (
	// ErrStructuralMismatch means that the memory layout of a recognized
	// type did not look the way the decoder expects.
	ErrStructuralMismatch = errors.New("structural mismatch")
	// ErrMemoryRead means that the target memory holding the value could
	// not be read.
	ErrMemoryRead = errors.New("memory read failure")
)

// StructuralError describes which check of a decoder failed. Code numbers
// the check inside the decoder and is reported to the user.
type StructuralError struct {
	Type   string
	Code   int
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("Warning: Internal dumper for '%s' failed with %d (%s).", e.Type, e.Code, e.Reason)
}

// Is makes errors.Is(err, ErrStructuralMismatch) succeed.
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructuralMismatch
}

func mismatch(typ string, code int, format string, args ...interface{}) error {
	return &StructuralError{Type: typ, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ParseInt parses the engine's formatted value of an integer field.
func ParseInt(text string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	return n, err == nil
}

// ParsePointer parses the engine's formatted value of a pointer field,
// "0x00a3f2c0", optionally followed by a blank and a description of the
// pointee.
func ParsePointer(text string) (uint64, bool) {
	if !strings.HasPrefix(text, "0x") {
		return 0, false
	}
	text = text[2:]
	if blank := strings.IndexByte(text, ' '); blank >= 0 {
		text = text[:blank]
	}
	// 64bit engines print the address in two groups: 0x00000001`4000a2f0.
	text = strings.Replace(text, "`", "", 1)
	n, err := strconv.ParseUint(text, 16, 64)
	return n, err == nil
}

// IsNullPointerValue reports whether the formatted value of a pointer,
// "0x000" or "0x000 class X", is a null pointer.
func IsNullPointerValue(value string) bool {
	if blank := strings.IndexByte(value, ' '); blank >= 0 {
		value = value[:blank]
	}
	if len(value) < 3 || !strings.HasPrefix(value, "0x") {
		return false
	}
	for _, ch := range value[2:] {
		if ch != '0' && ch != '`' {
			return false
		}
	}
	return true
}

// quote surrounds s with double quotes, inserting an ellipsis before the
// closing quote if the value was truncated.
func quote(s string, truncated bool) string {
	var sb strings.Builder
	sb.WriteByte('"')
	sb.WriteString(s)
	if truncated {
		sb.WriteString(ellipsis)
	}
	sb.WriteByte('"')
	return sb.String()
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeUTF16 converts little endian UTF-16 code units to a quoted string.
// Decoding stops at the first NUL code unit.
func DecodeUTF16(raw []byte, truncated bool) (string, error) {
	raw = raw[:len(raw)&^1]
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			raw = raw[:i]
			break
		}
	}
	s, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return quote(string(s), truncated), nil
}
