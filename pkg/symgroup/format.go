package symgroup

import (
	"strconv"
	"strings"
)

// FormatInteger formats v in the given base, with a 0x prefix for base 16.
func FormatInteger(v int64, base int) string {
	if base == 16 {
		return "0x" + strconv.FormatInt(v, base)
	}
	return strconv.FormatInt(v, base)
}

// FormatArray formats values as "0x323, 0x2322, ...".
func FormatArray(values []uint64, base int) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		if base == 16 {
			sb.WriteString("0x")
		}
		sb.WriteString(strconv.FormatUint(v, base))
	}
	return sb.String()
}
