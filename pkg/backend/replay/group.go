package replay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/watchtree/watchtree/pkg/logflags"
	"github.com/watchtree/watchtree/pkg/symgroup"
)

// ErrReleased is returned by a Group whose last reference was released.
var ErrReleased = errors.New("symbol group released")

// ErrReadOnly is returned when writing a read-only symbol.
var ErrReadOnly = errors.New("symbol is read-only")

type entry struct {
	sym    *Symbol
	parent int
}

// Group is the symbol group of the snapshot's stack frame. Expanding a
// symbol lists its children right after it and moves all the following
// symbols, like the engine does.
type Group struct {
	snap    *Snapshot
	visible []entry
	refs    int
	log     logflags.Logger
}

var _ symgroup.Group = (*Group)(nil)

// Group returns a new reference to the symbol group of the snapshot. All
// groups of a snapshot share the expansion state of its symbols.
func (s *Snapshot) Group() *Group {
	g := &Group{snap: s, refs: 1, log: logflags.ReplayLogger()}
	g.flatten()
	return g
}

// AddRef acquires another reference to g.
func (g *Group) AddRef() {
	g.refs++
}

// Release implements symgroup.Group.
func (g *Group) Release() {
	if g.refs > 0 {
		g.refs--
	}
}

// Released reports whether the last reference to g was released.
func (g *Group) Released() bool {
	return g.refs == 0
}

func (g *Group) flatten() {
	g.visible = g.visible[:0]
	var walk func(sym *Symbol, parent int)
	walk = func(sym *Symbol, parent int) {
		index := len(g.visible)
		g.visible = append(g.visible, entry{sym, parent})
		if sym.Expanded {
			for _, child := range sym.Children {
				walk(child, index)
			}
		}
	}
	for _, sym := range g.snap.Symbols {
		walk(sym, symgroup.Root)
	}
}

func (g *Group) symbol(index int) (*Symbol, error) {
	if g.refs == 0 {
		return nil, ErrReleased
	}
	if index < 0 || index >= len(g.visible) {
		return nil, fmt.Errorf("invalid symbol index %d", index)
	}
	return g.visible[index].sym, nil
}

// Count implements symgroup.Group.
func (g *Group) Count() (int, error) {
	if g.refs == 0 {
		return 0, ErrReleased
	}
	return len(g.visible), nil
}

// Parameters implements symgroup.Group.
func (g *Group) Parameters(start, count int) ([]symgroup.SymbolParameters, error) {
	if g.refs == 0 {
		return nil, ErrReleased
	}
	if start < 0 || count < 0 || start+count > len(g.visible) {
		return nil, fmt.Errorf("invalid symbol range %d+%d", start, count)
	}
	r := make([]symgroup.SymbolParameters, count)
	for i, e := range g.visible[start : start+count] {
		r[i] = symgroup.SymbolParameters{
			TypeID:      e.sym.TypeID,
			Parent:      e.parent,
			SubElements: e.sym.subElements(),
			Flags:       e.sym.flags,
		}
		if e.sym.Expanded {
			r[i].Flags |= symgroup.FlagExpanded
		}
	}
	return r, nil
}

// Expand implements symgroup.Group.
func (g *Group) Expand(index int) error {
	sym, err := g.symbol(index)
	if err != nil {
		return err
	}
	if sym.Expanded {
		return nil
	}
	sym.Expanded = true
	g.flatten()
	if logflags.Replay() {
		g.log.Debugf("expanded %s (%d), %d symbols", sym.Name, index, len(g.visible))
	}
	return nil
}

// Write implements symgroup.Group. Integer and floating point symbols
// only accept values of their kind.
func (g *Group) Write(index int, text string) error {
	sym, err := g.symbol(index)
	if err != nil {
		return err
	}
	if sym.flags&symgroup.FlagReadOnly != 0 {
		return ErrReadOnly
	}
	text = strings.TrimSpace(text)
	switch {
	case sym.flags&symgroup.FlagIsFloat != 0:
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return fmt.Errorf("invalid floating point value %q", text)
		}
	case isIntegerType(sym.Type):
		if _, err := strconv.ParseInt(text, 0, 64); err != nil {
			if _, err := strconv.ParseUint(text, 0, 64); err != nil {
				return fmt.Errorf("invalid integer value %q", text)
			}
		}
	}
	if logflags.Replay() {
		g.log.Debugf("write %s (%d): %q -> %q", sym.Name, index, sym.Value, text)
	}
	sym.Value = text
	return nil
}

var integerTypes = map[string]bool{
	"char": true, "short": true, "int": true, "long": true, "long long": true, "__int64": true,
}

func isIntegerType(typ string) bool {
	typ = strings.TrimPrefix(typ, "unsigned ")
	return integerTypes[typ]
}

// Name implements symgroup.Group.
func (g *Group) Name(index int) (string, error) {
	sym, err := g.symbol(index)
	if err != nil {
		return "", err
	}
	return sym.Name, nil
}

// TypeName implements symgroup.Group.
func (g *Group) TypeName(index int) (string, error) {
	sym, err := g.symbol(index)
	if err != nil {
		return "", err
	}
	return sym.Type, nil
}

// ValueText implements symgroup.Group.
func (g *Group) ValueText(index int) (string, error) {
	sym, err := g.symbol(index)
	if err != nil {
		return "", err
	}
	return sym.Value, nil
}

// Offset implements symgroup.Group.
func (g *Group) Offset(index int) (uint64, error) {
	sym, err := g.symbol(index)
	if err != nil {
		return 0, err
	}
	if sym.Offset == 0 {
		return 0, fmt.Errorf("%s has no address", sym.Name)
	}
	return sym.Offset, nil
}
