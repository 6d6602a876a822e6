package symgroup

import (
	"fmt"
	"strings"
)

// Dump returns the symbol table, one symbol per line. If verbose is set
// the name map follows.
func (c *Context) Dump(verbose bool) string {
	var sb strings.Builder
	for i, p := range c.table.params {
		fmt.Fprintf(&sb, "%d ", i)
		if !p.IsTopLevel() {
			sb.WriteString("    ")
		}
		sb.WriteString(c.stringAt(c.g.Name, i))
		if p.Flags&FlagIsLocal != 0 {
			fmt.Fprintf(&sb, " '%s", c.stringAt(c.g.TypeName, i))
		}
		fmt.Fprintf(&sb, " %s\n", p)
	}
	if verbose {
		sb.WriteString("NameIndexMap\n")
		for _, iname := range c.inames.sorted() {
			fmt.Fprintf(&sb, "%s %d\n", iname, c.inames[iname])
		}
	}
	return sb.String()
}

func (c *Context) String() string {
	return c.Dump(false)
}

func (p SymbolParameters) String() string {
	parent := "<ROOT>"
	if !p.IsTopLevel() {
		parent = fmt.Sprint(p.Parent)
	}
	return fmt.Sprintf("Type=%d parent=%s Subs=%d flags=%d/%s", p.TypeID, parent, p.SubElements, uint32(p.Flags), p.Flags)
}
