package layout

import (
	"fmt"
)

// COWStringType is the type recognized as a reference counted,
// copy-on-write UTF-16 string.
const COWStringType = "QString"

// COWString fields relative to the symbol of the string. The string is
// expanded first and its private data pointer, four positions below the
// string, is expanded next; size and data are the third and fourth member
// of the private data.
const (
	COWStringDataOffset  = 4
	COWStringSizeOffset  = 3
	COWStringArrayOffset = 4
)

// COWString is the header of a copy-on-write string as read from the
// fields of its private data.
type COWString struct {
	Size int64
	Data uint64
}

// ParseCOWString validates the formatted values of the size and data
// pointer fields of a COWString.
func ParseCOWString(sizeText, dataText string) (COWString, error) {
	size, ok := ParseInt(sizeText)
	if !ok {
		return COWString{}, mismatch(COWStringType, 4, "size %q is not an integer", sizeText)
	}
	if size < 0 {
		return COWString{}, mismatch(COWStringType, 4, "negative size %d", size)
	}
	data, ok := ParsePointer(dataText)
	if !ok {
		return COWString{}, mismatch(COWStringType, 5, "data %q is not a pointer", dataText)
	}
	return COWString{Size: size, Data: data}, nil
}

// ReadFunc reads len(buf) bytes of target memory at addr.
type ReadFunc func(buf []byte, addr uint64) error

// Decode reads at most max code units of s from target memory and returns
// the quoted value.
func (s COWString) Decode(max int, read ReadFunc) (string, error) {
	if s.Size == 0 {
		return quote("", false), nil
	}
	n := s.Size
	truncated := n > int64(max)
	if truncated {
		n = int64(max)
	}
	buf := make([]byte, 2*n)
	if err := read(buf, s.Data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMemoryRead, err)
	}
	v, err := DecodeUTF16(buf, truncated)
	if err != nil {
		return "", mismatch(COWStringType, 6, "%v", err)
	}
	return v, nil
}
