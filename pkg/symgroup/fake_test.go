package symgroup

import (
	"errors"
	"fmt"
)

// fakeSymbol is a variable of fakeGroup. The group lists the children of
// expanded symbols right after them, like the debugger engine does.
type fakeSymbol struct {
	name, typ, value string
	offset           uint64
	flags            SymbolFlags
	children         []*fakeSymbol
	expanded         bool
	// hint overrides the number of children reported before expansion.
	hint int
}

func leaf(name, typ, value string) *fakeSymbol {
	return &fakeSymbol{name: name, typ: typ, value: value, flags: FlagIsLocal}
}

func node(name, typ, value string, children ...*fakeSymbol) *fakeSymbol {
	return &fakeSymbol{name: name, typ: typ, value: value, flags: FlagIsLocal, children: children}
}

func (s *fakeSymbol) subElements() int {
	if s.hint != 0 && !s.expanded {
		return s.hint
	}
	return len(s.children)
}

type fakeEntry struct {
	sym    *fakeSymbol
	parent int
}

var errFake = errors.New("fake engine failure")

type fakeGroup struct {
	roots   []*fakeSymbol
	visible []fakeEntry

	failCount, failParams, failExpand, failWrite, failName, failValue bool
	// The AfterExpand variants fail once Expand was called.
	failCountAfterExpand, failParamsAfterExpand, failNameAfterExpand bool
	expanded                                                         bool
	// failNameAfter is the number of names served after Expand before
	// failNameAfterExpand takes effect.
	failNameAfter int

	writes   int
	released int
}

func newFakeGroup(roots ...*fakeSymbol) *fakeGroup {
	g := &fakeGroup{roots: roots}
	g.flatten()
	return g
}

func (g *fakeGroup) flatten() {
	g.visible = g.visible[:0]
	var walk func(s *fakeSymbol, parent int)
	walk = func(s *fakeSymbol, parent int) {
		index := len(g.visible)
		g.visible = append(g.visible, fakeEntry{s, parent})
		if s.expanded {
			for _, child := range s.children {
				walk(child, index)
			}
		}
	}
	for _, s := range g.roots {
		walk(s, Root)
	}
}

func (g *fakeGroup) entry(index int) (fakeEntry, error) {
	if index < 0 || index >= len(g.visible) {
		return fakeEntry{}, fmt.Errorf("index %d out of range", index)
	}
	return g.visible[index], nil
}

func (g *fakeGroup) Count() (int, error) {
	if g.failCount || (g.failCountAfterExpand && g.expanded) {
		return 0, errFake
	}
	return len(g.visible), nil
}

func (g *fakeGroup) Parameters(start, count int) ([]SymbolParameters, error) {
	if g.failParams || (g.failParamsAfterExpand && g.expanded) {
		return nil, errFake
	}
	if start < 0 || start+count > len(g.visible) {
		return nil, fmt.Errorf("range %d+%d out of range", start, count)
	}
	r := make([]SymbolParameters, 0, count)
	for _, e := range g.visible[start : start+count] {
		p := SymbolParameters{Parent: e.parent, SubElements: e.sym.subElements(), Flags: e.sym.flags}
		if e.sym.expanded {
			p.Flags |= FlagExpanded
		}
		r = append(r, p)
	}
	return r, nil
}

func (g *fakeGroup) Expand(index int) error {
	if g.failExpand {
		return errFake
	}
	e, err := g.entry(index)
	if err != nil {
		return err
	}
	g.expanded = true
	e.sym.expanded = true
	g.flatten()
	return nil
}

func (g *fakeGroup) Write(index int, text string) error {
	g.writes++
	if g.failWrite {
		return errFake
	}
	e, err := g.entry(index)
	if err != nil {
		return err
	}
	e.sym.value = text
	return nil
}

func (g *fakeGroup) Name(index int) (string, error) {
	if g.failName {
		return "", errFake
	}
	if g.failNameAfterExpand && g.expanded {
		if g.failNameAfter == 0 {
			return "", errFake
		}
		g.failNameAfter--
	}
	e, err := g.entry(index)
	if err != nil {
		return "", err
	}
	return e.sym.name, nil
}

func (g *fakeGroup) TypeName(index int) (string, error) {
	e, err := g.entry(index)
	if err != nil {
		return "", err
	}
	return e.sym.typ, nil
}

func (g *fakeGroup) ValueText(index int) (string, error) {
	if g.failValue {
		return "", errFake
	}
	e, err := g.entry(index)
	if err != nil {
		return "", err
	}
	return e.sym.value, nil
}

func (g *fakeGroup) Offset(index int) (uint64, error) {
	e, err := g.entry(index)
	if err != nil {
		return 0, err
	}
	if e.sym.offset == 0 {
		return 0, errors.New("no offset")
	}
	return e.sym.offset, nil
}

func (g *fakeGroup) Release() {
	g.released++
}

// fakeMemory maps addresses to the bytes stored there.
type fakeMemory map[uint64][]byte

func (m fakeMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	for base, data := range m {
		if addr >= base && addr+uint64(len(buf)) <= base+uint64(len(data)) {
			return copy(buf, data[addr-base:]), nil
		}
	}
	return 0, fmt.Errorf("unmapped address %#x", addr)
}

func utf16Bytes(s string) []byte {
	var b []byte
	for _, r := range s {
		b = append(b, byte(r), byte(r>>8))
	}
	return b
}
