package symgroup

import "testing"

func TestFormatInteger(t *testing.T) {
	for _, tc := range []struct {
		v    int64
		base int
		out  string
	}{
		{42, 10, "42"},
		{42, 16, "0x2a"},
		{-3, 10, "-3"},
		{5, 2, "101"},
	} {
		if out := FormatInteger(tc.v, tc.base); out != tc.out {
			t.Errorf("FormatInteger(%d, %d) = %q, expected %q", tc.v, tc.base, out, tc.out)
		}
	}
}

func TestFormatArray(t *testing.T) {
	if out := FormatArray([]uint64{0x323, 0x2322}, 16); out != "0x323, 0x2322" {
		t.Errorf("got %q", out)
	}
	if out := FormatArray([]uint64{1, 2, 3}, 10); out != "1, 2, 3" {
		t.Errorf("got %q", out)
	}
	if out := FormatArray(nil, 16); out != "" {
		t.Errorf("got %q", out)
	}
}
