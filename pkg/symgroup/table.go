package symgroup

import "fmt"

// symbolTable is the local copy of the parameters of every symbol in the
// group, in the order the engine reports them.
type symbolTable struct {
	params []SymbolParameters
}

// loadTable reads the parameters of all symbols of g.
func loadTable(g Group) (symbolTable, error) {
	count, err := g.Count()
	if err != nil {
		return symbolTable{}, backendError(ErrBackendQuery, "Count", -1, err)
	}
	if count == 0 {
		return symbolTable{}, nil
	}
	params, err := g.Parameters(0, count)
	if err == nil && len(params) != count {
		err = fmt.Errorf("%w: %d of %d symbols", errShortParameters, len(params), count)
	}
	if err != nil {
		return symbolTable{}, backendError(ErrBackendQuery, "Parameters", -1, err)
	}
	t := symbolTable{params: make([]SymbolParameters, count, 3*count)}
	copy(t.params, params)
	return t, nil
}

func (t symbolTable) len() int {
	return len(t.params)
}

func (t symbolTable) at(i int) SymbolParameters {
	return t.params[i]
}

func (t symbolTable) valid(i int) bool {
	return i >= 0 && i < len(t.params)
}

// insertAfter returns a copy of t with records spliced in right after
// parent. Parent references of the symbols that moved are corrected, the
// receiver is left untouched.
func (t symbolTable) insertAfter(parent int, records []SymbolParameters) symbolTable {
	n := len(records)
	params := make([]SymbolParameters, 0, len(t.params)+n)
	params = append(params, t.params[:parent+1]...)
	params = append(params, records...)
	for _, p := range t.params[parent+1:] {
		if p.Parent > parent {
			p.Parent += n
		}
		params = append(params, p)
	}
	return symbolTable{params: params}
}

// inSubtree reports whether the symbol at i can belong to the subtree of
// parent. Descendants immediately follow their ancestor, so the first
// record whose parent precedes parent ends the subtree.
func (t symbolTable) inSubtree(i, parent int) bool {
	if parent == Root {
		return true
	}
	p := t.params[i].Parent
	return p != Root && p >= parent
}
