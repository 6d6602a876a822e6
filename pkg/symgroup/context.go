package symgroup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/watchtree/watchtree/pkg/logflags"
	"github.com/watchtree/watchtree/pkg/memory"
	"github.com/watchtree/watchtree/pkg/symgroup/layout"
)

// unnamedFormal is the name the engine gives to parameters declared
// without a name, as in "void foo(int /* x */)".
const unnamedFormal = "__formal"

// Options configures a Context.
type Options struct {
	// Delimiter separates the segments of an iname, "." if empty.
	Delimiter string
	// MaxStringLen is the number of characters decoded by the string
	// dumpers, layout.DefaultMaxLength if zero.
	MaxStringLen int
}

// Context maps the flat symbol group of one stack frame to a tree of
// variables named by inames.
//
// A Context is not safe for concurrent use.
type Context struct {
	prefix       string
	delimiter    string
	maxStringLen int

	g      Group
	closed bool

	table   symbolTable
	inames  inameMap
	unnamed int

	log logflags.Logger
}

// New creates a Context for the symbols of g under the root iname prefix
// and reads all symbols currently in the group. The context takes over the
// reference to g held by the caller, g is released if New fails.
func New(prefix string, g Group) (*Context, error) {
	return NewWithOptions(prefix, g, Options{})
}

// NewWithOptions is like New but lets the caller configure the context.
func NewWithOptions(prefix string, g Group, opts Options) (*Context, error) {
	c := &Context{
		prefix:       prefix,
		delimiter:    opts.Delimiter,
		maxStringLen: opts.MaxStringLen,
		g:            g,
		inames:       inameMap{},
		unnamed:      1,
		log:          logflags.SymGroupLogger().WithField("prefix", prefix),
	}
	if c.delimiter == "" {
		c.delimiter = "."
	}
	if c.maxStringLen <= 0 {
		c.maxStringLen = layout.DefaultMaxLength
	}
	if err := c.Init(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Init reads the symbols of the group. Any state is dropped first.
func (c *Context) Init() error {
	c.Clear()
	table, err := loadTable(c.g)
	if err != nil {
		return err
	}
	s := &stage{table: table, inames: inameMap{}, unnamed: c.unnamed}
	if _, err := c.populate(s, c.prefix, Root, 0, table.len()); err != nil {
		return backendError(ErrBackendQuery, "Name", -1, err)
	}
	c.commit(s)
	if logflags.SymGroup() {
		c.log.Debugf("initialized with %d symbols\n%s", c.table.len(), c.Dump(false))
	}
	return nil
}

// Clear drops the symbol table and the name map.
func (c *Context) Clear() {
	c.table = symbolTable{}
	c.inames = inameMap{}
}

// Close releases the group. The context must not be used afterwards.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.g.Release()
}

// Prefix returns the iname of the root.
func (c *Context) Prefix() string {
	return c.prefix
}

// Delimiter returns the separator of iname segments.
func (c *Context) Delimiter() string {
	return c.delimiter
}

// Len returns the number of symbols in the table.
func (c *Context) Len() int {
	return c.table.len()
}

// Lookup returns the current position of the symbol named iname.
func (c *Context) Lookup(iname string) (int, error) {
	index, ok := c.inames[iname]
	if !ok {
		return 0, notFound(iname)
	}
	return index, nil
}

// INameAt returns the iname of the symbol at index.
func (c *Context) INameAt(index int) (string, bool) {
	return c.inames.reverse(index)
}

// INames returns the names of all symbols seen so far, in table order.
func (c *Context) INames() []string {
	return c.inames.sorted()
}

// Parameters returns the parameters of the symbol at index.
func (c *Context) Parameters(index int) (SymbolParameters, bool) {
	if !c.table.valid(index) {
		return SymbolParameters{}, false
	}
	return c.table.at(index), true
}

// SymbolState returns the expansion state of the symbol named iname. The
// root is always expanded. Unknown symbols are reported as leaves.
func (c *Context) SymbolState(iname string) SymbolState {
	if iname == c.prefix {
		return ExpandedSymbol
	}
	index, ok := c.inames[iname]
	if !ok {
		c.log.Warnf("SymbolState: the symbol '%s' could not be found", iname)
		return LeafSymbol
	}
	return c.table.at(index).state()
}

// ExpandSymbol makes the engine list the children of the symbol named
// iname. Expanding an expanded symbol does nothing, expanding a leaf is an
// error. If the engine fails the context is left unchanged.
func (c *Context) ExpandSymbol(iname string) error {
	index, ok := c.inames[iname]
	if !ok {
		return notFound(iname)
	}
	return c.expandAt(iname, index)
}

func (c *Context) expandAt(iname string, index int) error {
	switch c.table.at(index).state() {
	case LeafSymbol:
		return fmt.Errorf("%w '%s' %d", ErrLeafExpansion, iname, index)
	case ExpandedSymbol:
		return nil
	}
	if err := c.expand(iname, index); err != nil {
		c.log.WithError(err).Errorf("unable to expand '%s' %d", iname, index)
		return err
	}
	return nil
}

// expand inserts the children of the collapsed symbol at index. The new
// table and name map are built aside and only replace the current ones
// once the engine answered every query.
func (c *Context) expand(iname string, index int) error {
	if err := c.g.Expand(index); err != nil {
		return backendError(ErrExpandFailed, "Expand", index, err)
	}
	oldSize := c.table.len()
	newSize, err := c.g.Count()
	if err != nil {
		return backendError(ErrExpandFailed, "Count", -1, err)
	}
	inserted := newSize - oldSize
	if inserted < 0 {
		return backendError(ErrExpandFailed, "Count", -1, fmt.Errorf("symbol count went from %d to %d", oldSize, newSize))
	}

	// The parent itself is fetched again, the engine updates its flags and
	// its number of children.
	params, err := c.g.Parameters(index, inserted+1)
	if err == nil && len(params) != inserted+1 {
		err = fmt.Errorf("%w: %d of %d symbols", errShortParameters, len(params), inserted+1)
	}
	if err != nil {
		return backendError(ErrExpandFailed, "Parameters", index, err)
	}

	s := &stage{
		table:   c.table.insertAfter(index, params[1:]),
		inames:  c.inames.clone(),
		unnamed: c.unnamed,
	}
	s.table.params[index] = params[0]
	s.table.params[index].Flags |= FlagExpanded
	s.inames.renumber(index, inserted)
	if _, err := c.populate(s, iname, index, index+1, inserted); err != nil {
		return backendError(ErrExpandFailed, "Name", -1, err)
	}
	c.commit(s)

	if logflags.SymGroup() {
		c.log.Debugf("expanded '%s' %d, %d new symbols", iname, index, inserted)
	}
	return nil
}

// stage is a symbol table and name map being built.
type stage struct {
	table   symbolTable
	inames  inameMap
	unnamed int
}

func (c *Context) commit(s *stage) {
	c.table = s.table
	c.inames = s.inames
	c.unnamed = s.unnamed
}

// populate names the first count children of parent found from start on,
// descending into children that are already expanded. It returns the
// position following the last symbol it consumed.
func (c *Context) populate(s *stage, prefix string, parent, start, count int) (int, error) {
	symbolPrefix := prefix + c.delimiter
	seen := 0
	i := start
	for i < s.table.len() && seen < count && s.table.inSubtree(i, parent) {
		p := s.table.at(i)
		if p.Parent != parent {
			i++
			continue
		}
		seen++
		name, err := c.g.Name(i)
		if err != nil {
			return i, err
		}
		if name == unnamedFormal {
			name = "<unnamed" + strconv.Itoa(s.unnamed) + ">"
			s.unnamed++
		}
		iname := symbolPrefix + name
		s.inames[iname] = i
		i++
		if p.state() == ExpandedSymbol {
			i, err = c.populate(s, iname, i-1, i, p.SubElements)
			if err != nil {
				return i, err
			}
		}
	}
	return i, nil
}

// ChildrenStart returns the position of the first child of the symbol
// named iname and the position of the symbol itself, Root for the root.
// The symbol is expanded if necessary.
func (c *Context) ChildrenStart(iname string) (start, parent int, err error) {
	if iname == c.prefix {
		return 0, Root, nil
	}
	index, ok := c.inames[iname]
	if !ok {
		return 0, 0, notFound(iname)
	}
	if err := c.expandAt(iname, index); err != nil {
		return 0, 0, err
	}
	return index + 1, index, nil
}

// Children returns the direct children of the symbol named iname,
// expanding it if necessary.
func (c *Context) Children(iname string) ([]WatchData, error) {
	if iname != c.prefix {
		index, err := c.Lookup(iname)
		if err != nil {
			return nil, err
		}
		if c.table.at(index).state() == LeafSymbol {
			return nil, nil
		}
	}
	start, parent, err := c.ChildrenStart(iname)
	if err != nil {
		return nil, err
	}
	var r []WatchData
	for i := start; i < c.table.len() && c.table.inSubtree(i, parent); i++ {
		if c.table.at(i).Parent != parent {
			continue
		}
		wd, err := c.WatchDataAt(i)
		if err != nil {
			return nil, err
		}
		r = append(r, wd)
	}
	return r, nil
}

// Project returns the generic description of the symbol named iname.
func (c *Context) Project(iname string) (WatchData, error) {
	index, ok := c.inames[iname]
	if !ok {
		return WatchData{}, notFound(iname)
	}
	return c.WatchDataAt(index)
}

// WatchDataAt returns the generic description of the symbol at index.
func (c *Context) WatchDataAt(index int) (WatchData, error) {
	iname, ok := c.inames.reverse(index)
	if !ok || !c.table.valid(index) {
		return WatchData{}, fmt.Errorf("%w: no symbol at %d", ErrNotFound, index)
	}
	wd := WatchData{IName: iname, Exp: iname}
	name := iname
	if pos := strings.LastIndex(iname, c.delimiter); pos != -1 {
		name = iname[pos+len(c.delimiter):]
	}
	wd.Name = displayName(name)

	addr, err := c.g.Offset(index)
	if err != nil {
		addr = 0
	}
	wd.Addr = "0x" + strconv.FormatUint(addr, 16)
	wd.Type = c.stringAt(c.g.TypeName, index)
	wd.Value = fixValue(c.stringAt(c.g.ValueText, index))

	// The number of children is only a guess until the symbol is
	// expanded. Null pointers only have children with access errors.
	wd.SetHasChildren(c.table.at(index).SubElements != 0 && !isNullPointer(&wd))
	return wd, nil
}

// ProjectWithDumpers is Project followed by ApplyDumpers.
func (c *Context) ProjectWithDumpers(iname string, mem memory.Reader) (WatchData, DumperResult, error) {
	wd, err := c.Project(iname)
	if err != nil {
		return wd, DumperNotHandled, err
	}
	return wd, c.ApplyDumpers(mem, &wd), nil
}

// AssignValue writes text to the symbol named iname and returns the new
// value as formatted by the engine.
func (c *Context) AssignValue(iname, text string) (string, error) {
	index, ok := c.inames[iname]
	if !ok {
		return "", notFound(iname)
	}
	if err := c.g.Write(index, text); err != nil {
		return "", fmt.Errorf("unable to assign '%s' to '%s': %w", text, iname, backendError(ErrBackendWrite, "Write", index, err))
	}
	value, err := c.g.ValueText(index)
	if err != nil {
		c.log.WithError(err).Warnf("could not read back the value of '%s'", iname)
		return "", nil
	}
	return value, nil
}

// stringAt returns an attribute of the symbol at index, the empty string
// if the engine does not provide it.
func (c *Context) stringAt(get func(int) (string, error), index int) string {
	if !c.table.valid(index) {
		return ""
	}
	s, err := get(index)
	if err != nil {
		return ""
	}
	return s
}
