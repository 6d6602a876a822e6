// Package symgroup maintains the tree of local variables of a suspended
// thread on top of a debugger engine that only exposes it as a flat,
// order dependent array of symbols.
//
// Every symbol in the array refers to its parent by position. Expanding a
// symbol makes the engine insert its children right after it, which moves
// every following symbol. The Context keeps a map from the hierarchical
// name of each symbol it has seen (its iname, "local.this.d.size") to its
// current position and renumbers it whenever the array grows.
package symgroup

import (
	"strings"
)

// Root is the parent of top level symbols.
const Root = -1

// SymbolFlags describes a symbol. The values match the ones used by the
// Windows debugger engine.
type SymbolFlags uint32

const (
	FlagExpanded   SymbolFlags = 0x10
	FlagReadOnly   SymbolFlags = 0x20
	FlagIsArray    SymbolFlags = 0x40
	FlagIsFloat    SymbolFlags = 0x80
	FlagIsArgument SymbolFlags = 0x100
	FlagIsLocal    SymbolFlags = 0x200
)

var flagNames = []struct {
	flag SymbolFlags
	name string
}{
	{FlagExpanded, "EXPANDED"},
	{FlagReadOnly, "READ_ONLY"},
	{FlagIsArray, "IS_ARRAY"},
	{FlagIsFloat, "IS_FLOAT"},
	{FlagIsArgument, "IS_ARGUMENT"},
	{FlagIsLocal, "IS_LOCAL"},
}

func (f SymbolFlags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// SymbolParameters is one entry of the flat symbol array.
type SymbolParameters struct {
	// TypeID is an opaque type identifier, only used in diagnostics.
	TypeID uint32
	// Parent is the position of the enclosing symbol or Root.
	Parent int
	// SubElements is the number of children reported by the engine. It
	// is a guess until the symbol is expanded.
	SubElements int
	Flags       SymbolFlags
}

// IsTopLevel returns true if p has no enclosing symbol.
func (p SymbolParameters) IsTopLevel() bool {
	return p.Parent == Root
}

// SymbolState is the expansion state of a symbol.
type SymbolState uint8

const (
	// LeafSymbol has no children.
	LeafSymbol SymbolState = iota
	// CollapsedSymbol has children that the engine did not list yet.
	CollapsedSymbol
	// ExpandedSymbol has its children listed right after it.
	ExpandedSymbol
)

func (s SymbolState) String() string {
	switch s {
	case LeafSymbol:
		return "leaf"
	case CollapsedSymbol:
		return "collapsed"
	case ExpandedSymbol:
		return "expanded"
	}
	return "unknown"
}

func (p SymbolParameters) state() SymbolState {
	if p.SubElements == 0 {
		return LeafSymbol
	}
	if p.Flags&FlagExpanded != 0 {
		return ExpandedSymbol
	}
	return CollapsedSymbol
}

// Group is the symbol group of a debugger engine: the flat array of the
// symbols visible in a stack frame. Positions are only valid until the
// next call to Expand.
type Group interface {
	// Count returns the number of symbols in the group.
	Count() (int, error)
	// Parameters returns the parameters of count symbols starting at start.
	Parameters(start, count int) ([]SymbolParameters, error)
	// Expand inserts the children of the symbol at index right after it.
	Expand(index int) error
	// Write assigns the value described by text to the symbol at index.
	Write(index int, text string) error
	// Name returns the name of the symbol at index.
	Name(index int) (string, error)
	// TypeName returns the name of the type of the symbol at index.
	TypeName(index int) (string, error)
	// ValueText returns the value of the symbol at index as formatted by
	// the engine.
	ValueText(index int) (string, error)
	// Offset returns the address of the symbol at index.
	Offset(index int) (uint64, error)
	// Release drops the reference held on the group.
	Release()
}
