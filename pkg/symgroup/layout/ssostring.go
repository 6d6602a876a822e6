package layout

import (
	"strings"
)

// SSOStringTypes are the small-buffer-optimized byte and wide string types.
var SSOStringTypes = []string{
	"std::basic_string<char,std::char_traits<char>,std::allocator<char> >",
	"std::basic_string<unsigned short,std::char_traits<unsigned short>,std::allocator<unsigned short> >",
}

// SSOString fields relative to the symbol of the string. The string and
// its buffer union, three positions below, are expanded; the inline buffer
// is the first member of the union and the size follows the union.
const (
	SSOStringBxOffset   = 3
	SSOStringBufOffset  = 4
	SSOStringSizeOffset = 6
)

// DecodeSSOString produces the value of a small-buffer-optimized string
// from the formatted value of its size and of its inline buffer. The
// engine already formats the buffer as a quoted fragment, everything
// before the first quote is dropped and the text is truncated to max
// characters.
func DecodeSSOString(sizeText, bufValue string, max int) (string, error) {
	typ := SSOStringTypes[0]
	size, ok := ParseInt(sizeText)
	if !ok {
		return "", mismatch(typ, 4, "size %q is not an integer", sizeText)
	}
	if size < 0 {
		return "", mismatch(typ, 4, "negative size %d", size)
	}
	quotePos := strings.IndexByte(bufValue, '"')
	if quotePos == -1 {
		return "", mismatch(typ, 5, "buffer %q is not a string", bufValue)
	}
	bufValue = bufValue[quotePos:]
	if r := []rune(bufValue); len(r) > max {
		bufValue = string(r[:max]) + ellipsis + `"`
	}
	return bufValue, nil
}

// MatchesType reports whether typ is name or a pointer to name, allowing
// for qualifiers such as "class " in front of it.
func MatchesType(typ, name string) bool {
	return strings.HasSuffix(typ, name) || strings.HasSuffix(typ, name+" *")
}

// IsSSOStringType reports whether typ is one of SSOStringTypes or a
// pointer to it.
func IsSSOStringType(typ string) bool {
	for _, name := range SSOStringTypes {
		if MatchesType(typ, name) {
			return true
		}
	}
	return false
}
