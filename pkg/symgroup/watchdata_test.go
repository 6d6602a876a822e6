package symgroup

import "testing"

func TestFixValue(t *testing.T) {
	for _, tc := range []struct {
		in, tgt string
	}{
		{"class std::map<int,std::basic_string<char> >", "class std::map<...>"},
		{"<Memory access error>", "<...>"},
		{"std::list<int>", "std::list<int>"},
		{`0x0012ff1c "a<b> and more text"`, `0x0012ff1c "a<b> and more text"`},
		{"class QString with no template", "class QString with no template"},
	} {
		if got := fixValue(tc.in); got != tc.tgt {
			t.Errorf("fixValue(%q) = %q, expected %q", tc.in, got, tc.tgt)
		}
	}
}

func TestDisplayName(t *testing.T) {
	for _, tc := range []struct {
		in, tgt string
	}{
		{"<unnamed1>", "<unnamed1>"},
		{"std::_Tree<std::_Tmap_traits<int> >", "std::_Tree<...>"},
		{"counter", "counter"},
	} {
		if got := displayName(tc.in); got != tc.tgt {
			t.Errorf("displayName(%q) = %q, expected %q", tc.in, got, tc.tgt)
		}
	}
}
