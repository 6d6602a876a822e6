package symgroup

import "sort"

// inameMap maps the iname of every symbol seen so far to its position in
// the symbol table.
type inameMap map[string]int

func (m inameMap) clone() inameMap {
	r := make(inameMap, len(m))
	for k, v := range m {
		r[k] = v
	}
	return r
}

// renumber moves every entry after parent down by inserted positions.
func (m inameMap) renumber(parent, inserted int) {
	if inserted == 0 {
		return
	}
	for k, v := range m {
		if v > parent {
			m[k] = v + inserted
		}
	}
}

// reverse returns the iname of the symbol at index.
func (m inameMap) reverse(index int) (string, bool) {
	for k, v := range m {
		if v == index {
			return k, true
		}
	}
	return "", false
}

// sorted returns the inames ordered by position.
func (m inameMap) sorted() []string {
	r := make([]string, 0, len(m))
	for k := range m {
		r = append(r, k)
	}
	sort.Slice(r, func(i, j int) bool {
		if m[r[i]] != m[r[j]] {
			return m[r[i]] < m[r[j]]
		}
		return r[i] < r[j]
	})
	return r
}
