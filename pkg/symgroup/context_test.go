package symgroup

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const prefix = "local"

func mustNew(t *testing.T, g Group) *Context {
	t.Helper()
	c, err := New(prefix, g)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func scenarioRoots() []*fakeSymbol {
	return []*fakeSymbol{
		leaf("a", "int", "1"),
		leaf("b", "int", "2"),
		node("c", "Foo", "{...}", leaf("x", "int", "3"), leaf("y", "int", "4"), leaf("z", "int", "5")),
		leaf("d", "int", "6"),
		leaf("e", "int", "7"),
	}
}

func assertIndex(t *testing.T, c *Context, iname string, tgt int) {
	t.Helper()
	index, err := c.Lookup(iname)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", iname, err)
	}
	if index != tgt {
		t.Fatalf("Lookup(%q) = %d, expected %d", iname, index, tgt)
	}
}

// checkConsistent verifies that the context agrees with the engine.
func checkConsistent(t *testing.T, c *Context, g *fakeGroup) {
	t.Helper()
	n, _ := g.Count()
	params, err := g.Parameters(0, n)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(c.table.params, params) {
		t.Fatalf("symbol table out of sync:\n%v\nengine:\n%v", c.table.params, params)
	}
	seen := map[int]string{}
	for iname, index := range c.inames {
		if index < 0 || index >= c.Len() {
			t.Fatalf("%s maps to %d, outside of the table", iname, index)
		}
		if other, dup := seen[index]; dup {
			t.Fatalf("%s and %s both map to %d", iname, other, index)
		}
		seen[index] = iname
		name, _ := g.Name(index)
		if !strings.HasSuffix(iname, "."+name) && !strings.Contains(iname, "<unnamed") {
			t.Fatalf("%s maps to %d which is %q", iname, index, name)
		}
		depth := strings.Count(iname[len(prefix)+1:], ".")
		if (depth == 0) != c.table.at(index).IsTopLevel() {
			t.Fatalf("%s at depth %d has parent %d", iname, depth, c.table.at(index).Parent)
		}
	}
}

func TestInitialPopulation(t *testing.T) {
	g := newFakeGroup(scenarioRoots()...)
	c := mustNew(t, g)

	if c.Len() != 5 || len(c.inames) != 5 {
		t.Fatalf("expected 5 symbols and names, got %d and %d", c.Len(), len(c.inames))
	}
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		assertIndex(t, c, prefix+"."+name, i)
		tgt := LeafSymbol
		if i == 2 {
			tgt = CollapsedSymbol
		}
		if state := c.SymbolState(prefix + "." + name); state != tgt {
			t.Errorf("state of %s is %v, expected %v", name, state, tgt)
		}
	}
	checkConsistent(t, c, g)
}

func TestExpandRenumbers(t *testing.T) {
	g := newFakeGroup(scenarioRoots()...)
	c := mustNew(t, g)
	before := c.inames.clone()

	if err := c.ExpandSymbol("local.c"); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 8 {
		t.Fatalf("expected 8 symbols, got %d", c.Len())
	}
	assertIndex(t, c, "local.c.x", 3)
	assertIndex(t, c, "local.c.y", 4)
	assertIndex(t, c, "local.c.z", 5)
	assertIndex(t, c, "local.d", 6)
	assertIndex(t, c, "local.e", 7)

	if len(c.inames) != len(before)+3 {
		t.Fatalf("expected %d names, got %d", len(before)+3, len(c.inames))
	}
	for iname, prior := range before {
		tgt := prior
		if prior > 2 {
			tgt += 3
		}
		assertIndex(t, c, iname, tgt)
	}
	if state := c.SymbolState("local.c"); state != ExpandedSymbol {
		t.Fatalf("local.c is %v after expansion", state)
	}
	checkConsistent(t, c, g)

	// Expanding again does nothing.
	if err := c.ExpandSymbol("local.c"); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 8 {
		t.Fatalf("second expansion changed the table: %d", c.Len())
	}
}

func TestExpandLeaf(t *testing.T) {
	g := newFakeGroup(scenarioRoots()...)
	c := mustNew(t, g)

	err := c.ExpandSymbol("local.a")
	if !errors.Is(err, ErrLeafExpansion) {
		t.Fatalf("expected leaf expansion error, got %v", err)
	}
	if c.Len() != 5 || len(c.inames) != 5 {
		t.Fatalf("state changed: %d symbols, %d names", c.Len(), len(c.inames))
	}
	if g.expanded {
		t.Fatal("engine was asked to expand a leaf")
	}

	if err := c.ExpandSymbol("local.nothere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExpandFailure(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(g *fakeGroup)
		op    string
	}{
		{"expand", func(g *fakeGroup) { g.failExpand = true }, "Expand"},
		{"count", func(g *fakeGroup) { g.failCountAfterExpand = true }, "Count"},
		{"parameters", func(g *fakeGroup) { g.failParamsAfterExpand = true }, "Parameters"},
		{"name", func(g *fakeGroup) { g.failNameAfterExpand = true }, "Name"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := newFakeGroup(scenarioRoots()...)
			c := mustNew(t, g)
			table := append([]SymbolParameters(nil), c.table.params...)
			inames := c.inames.clone()
			tc.setup(g)

			err := c.ExpandSymbol("local.c")
			if !errors.Is(err, ErrExpandFailed) {
				t.Fatalf("expected expand failure, got %v", err)
			}
			var berr *BackendError
			if !errors.As(err, &berr) || berr.Op != tc.op {
				t.Fatalf("expected backend error from %s, got %#v", tc.op, err)
			}
			if !errors.Is(err, errFake) {
				t.Fatalf("engine error lost: %v", err)
			}
			if !reflect.DeepEqual(c.table.params, table) || !reflect.DeepEqual(c.inames, inames) {
				t.Fatalf("failed expansion changed the context:\n%s", c.Dump(true))
			}
			if s := c.SymbolState("local.c"); s != CollapsedSymbol {
				t.Fatalf("local.c is %v after a failed expansion", s)
			}
		})
	}
}

func TestExpandFailureKeepsUnnamedCounter(t *testing.T) {
	f := node("f", "Foo", "{...}", leaf("__formal", "int", "0"), leaf("__formal", "int", "1"))
	g := newFakeGroup(leaf("__formal", "int", "9"), f)
	c := mustNew(t, g)
	g.failNameAfterExpand = true
	g.failNameAfter = 1
	if err := c.ExpandSymbol("local.f"); !errors.Is(err, ErrExpandFailed) {
		t.Fatalf("expected expand failure, got %v", err)
	}
	if c.unnamed != 2 {
		t.Fatalf("failed expansion moved the unnamed counter to %d", c.unnamed)
	}
}

func TestPreExpandedSubtrees(t *testing.T) {
	s := node("s", "Bar", "{...}", leaf("w", "int", "0"))
	q := node("q", "Baz", "{...}", leaf("r1", "int", "1"), leaf("r2", "int", "2"))
	q.expanded = true
	p := node("p", "Foo", "{...}", q, s)
	p.expanded = true
	tt := node("t", "Qux", "{...}", leaf("u", "int", "3"))
	g := newFakeGroup(p, tt)
	c := mustNew(t, g)

	for iname, index := range map[string]int{
		"local.p": 0, "local.p.q": 1, "local.p.q.r1": 2, "local.p.q.r2": 3, "local.p.s": 4, "local.t": 5,
	} {
		assertIndex(t, c, iname, index)
	}
	if len(c.inames) != 6 {
		t.Fatalf("expected 6 names:\n%s", c.Dump(true))
	}
	checkConsistent(t, c, g)

	if err := c.ExpandSymbol("local.t"); err != nil {
		t.Fatal(err)
	}
	assertIndex(t, c, "local.t.u", 6)
	checkConsistent(t, c, g)

	if err := c.ExpandSymbol("local.p.s"); err != nil {
		t.Fatal(err)
	}
	assertIndex(t, c, "local.p.s.w", 5)
	assertIndex(t, c, "local.t", 6)
	assertIndex(t, c, "local.t.u", 7)
	if parent := c.table.at(7).Parent; parent != 6 {
		t.Fatalf("parent of local.t.u is %d", parent)
	}
	checkConsistent(t, c, g)
}

func TestExpandWithWrongHint(t *testing.T) {
	guess := node("guess", "Foo", "{...}", leaf("only", "int", "1"))
	guess.hint = 5
	empty := node("empty", "Foo", "{...}")
	empty.hint = 3
	g := newFakeGroup(guess, empty, leaf("after", "int", "2"))
	c := mustNew(t, g)

	if err := c.ExpandSymbol("local.guess"); err != nil {
		t.Fatal(err)
	}
	assertIndex(t, c, "local.guess.only", 1)
	assertIndex(t, c, "local.empty", 2)
	checkConsistent(t, c, g)

	wd, _ := c.Project("local.empty")
	if wd.HasChildren != True {
		t.Fatalf("collapsed symbol with hint has children %v", wd.HasChildren)
	}
	if err := c.ExpandSymbol("local.empty"); err != nil {
		t.Fatal(err)
	}
	wd, _ = c.Project("local.empty")
	if wd.HasChildren != False {
		t.Fatalf("symbol without children after expansion has children %v", wd.HasChildren)
	}
	checkConsistent(t, c, g)
}

func TestUnnamedFormalParameters(t *testing.T) {
	f := node("f", "Foo", "{...}", leaf("__formal", "int", "3"))
	g := newFakeGroup(leaf("__formal", "int", "1"), leaf("__formal", "int", "2"), f)
	c := mustNew(t, g)
	assertIndex(t, c, "local.<unnamed1>", 0)
	assertIndex(t, c, "local.<unnamed2>", 1)

	if err := c.ExpandSymbol("local.f"); err != nil {
		t.Fatal(err)
	}
	assertIndex(t, c, "local.f.<unnamed3>", 3)

	// The counter is not reset when the context is rebuilt.
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}
	assertIndex(t, c, "local.<unnamed4>", 0)
	assertIndex(t, c, "local.<unnamed5>", 1)
	assertIndex(t, c, "local.f.<unnamed6>", 3)
	if len(c.inames) != 4 {
		t.Fatalf("stale names after Init:\n%s", c.Dump(true))
	}
	checkConsistent(t, c, g)
}

func TestChildren(t *testing.T) {
	g := newFakeGroup(scenarioRoots()...)
	c := mustNew(t, g)

	start, parent, err := c.ChildrenStart(prefix)
	if err != nil || start != 0 || parent != Root {
		t.Fatalf("ChildrenStart(root) = %d, %d, %v", start, parent, err)
	}

	top, err := c.Children(prefix)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, wd := range top {
		names = append(names, wd.Name)
	}
	if strings.Join(names, ",") != "a,b,c,d,e" {
		t.Fatalf("top level: %v", names)
	}

	children, err := c.Children("local.c")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 3 || children[0].IName != "local.c.x" || children[2].Value != "5" {
		t.Fatalf("children of local.c: %v", children)
	}
	start, parent, err = c.ChildrenStart("local.c")
	if err != nil || start != 3 || parent != 2 {
		t.Fatalf("ChildrenStart(local.c) = %d, %d, %v", start, parent, err)
	}

	if children, err := c.Children("local.a"); err != nil || len(children) != 0 {
		t.Fatalf("children of a leaf: %v %v", children, err)
	}
	if _, err := c.Children("local.zz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSymbolState(t *testing.T) {
	c := mustNew(t, newFakeGroup(scenarioRoots()...))
	if s := c.SymbolState(prefix); s != ExpandedSymbol {
		t.Errorf("root is %v", s)
	}
	if s := c.SymbolState("local.zz"); s != LeafSymbol {
		t.Errorf("unknown symbol is %v", s)
	}
}

func TestProject(t *testing.T) {
	a := leaf("count", "int", "42")
	a.offset = 0x12ff40
	const mapType = "std::map<int,std::basic_string<char> >"
	m := node("m", "class "+mapType, mapType, leaf("std::_Tree<std::_Tmap_traits<int> >", "std::_Tree<std::_Tmap_traits<int> >", "{...}"))
	m.expanded = true
	g := newFakeGroup(
		a,
		m,
		leaf("short", "Foo", "a<b>c"),
		leaf("str", "char *", `0x0040 "a string <with> brackets in it"`),
		node("p", "Foo *", "0x00000000", leaf("x", "int", "1")),
		node("p2", "Foo *", "0x00000001 Foo", leaf("x", "int", "1")),
		node("pc", "Foo *", "0x00000000 class Foo", leaf("x", "int", "1")),
	)
	c := mustNew(t, g)

	for _, tc := range []struct {
		iname, name, addr, value string
		children                 Tristate
	}{
		{"local.count", "count", "0x12ff40", "42", False},
		{"local.m", "m", "0x0", "std::map<...>", True},
		{"local.m.std::_Tree<std::_Tmap_traits<int> >", "std::_Tree<...>", "0x0", "{...}", False},
		{"local.short", "short", "0x0", "a<b>c", False},
		{"local.str", "str", "0x0", `0x0040 "a string <with> brackets in it"`, False},
		{"local.p", "p", "0x0", "0x00000000", False},
		{"local.p2", "p2", "0x0", "0x00000001 Foo", True},
		{"local.pc", "pc", "0x0", "0x00000000 class Foo", False},
	} {
		wd, err := c.Project(tc.iname)
		if err != nil {
			t.Fatalf("Project(%q): %v", tc.iname, err)
		}
		if wd.IName != tc.iname || wd.Exp != tc.iname || wd.Name != tc.name || wd.Addr != tc.addr || wd.Value != tc.value || wd.HasChildren != tc.children {
			t.Errorf("Project(%q) = %s", tc.iname, wd.String())
		}
	}

	if _, err := c.Project("local.nothere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.WatchDataAt(100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssignValue(t *testing.T) {
	g := newFakeGroup(scenarioRoots()...)
	c := mustNew(t, g)

	if _, err := c.AssignValue("local.nothere", "5"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if g.writes != 0 {
		t.Fatalf("engine written %d times for an unknown symbol", g.writes)
	}

	v, err := c.AssignValue("local.b", "12")
	if err != nil || v != "12" {
		t.Fatalf("AssignValue = %q, %v", v, err)
	}
	if wd, _ := c.Project("local.b"); wd.Value != "12" {
		t.Fatalf("value not written: %s", wd.String())
	}

	g.failWrite = true
	if _, err := c.AssignValue("local.b", "13"); !errors.Is(err, ErrBackendWrite) {
		t.Fatalf("expected write failure, got %v", err)
	}
}

func TestNewFailure(t *testing.T) {
	for _, setup := range []func(g *fakeGroup){
		func(g *fakeGroup) { g.failCount = true },
		func(g *fakeGroup) { g.failParams = true },
		func(g *fakeGroup) { g.failName = true },
	} {
		g := newFakeGroup(scenarioRoots()...)
		setup(g)
		_, err := New(prefix, g)
		if !errors.Is(err, ErrBackendQuery) {
			t.Fatalf("expected backend query failure, got %v", err)
		}
		if g.released != 1 {
			t.Fatalf("group released %d times", g.released)
		}
	}
}

func TestCloseAndClear(t *testing.T) {
	g := newFakeGroup(scenarioRoots()...)
	c := mustNew(t, g)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Clear left %d symbols", c.Len())
	}
	if _, err := c.Lookup("local.a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Clear left names: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatal(err)
	}
	assertIndex(t, c, "local.e", 4)

	c.Close()
	c.Close()
	if g.released != 1 {
		t.Fatalf("group released %d times", g.released)
	}
}

func TestDump(t *testing.T) {
	g := newFakeGroup(leaf("a", "int", "1"), node("c", "Foo", "{...}", leaf("x", "int", "3")))
	c := mustNew(t, g)
	if err := c.ExpandSymbol("local.c"); err != nil {
		t.Fatal(err)
	}
	const tgt = "0 a 'int Type=0 parent=<ROOT> Subs=0 flags=512/IS_LOCAL\n" +
		"1 c 'Foo Type=0 parent=<ROOT> Subs=1 flags=528/EXPANDED|IS_LOCAL\n" +
		"2     x 'int Type=0 parent=1 Subs=0 flags=512/IS_LOCAL\n"
	if out := c.String(); out != tgt {
		t.Fatalf("Dump(false):\n%s\nexpected:\n%s", out, tgt)
	}
	if out := c.Dump(true); out != tgt+"NameIndexMap\nlocal.a 0\nlocal.c 1\nlocal.c.x 2\n" {
		t.Fatalf("Dump(true):\n%s", out)
	}
	if name, ok := c.INameAt(2); !ok || name != "local.c.x" {
		t.Fatalf("INameAt(2) = %q, %v", name, ok)
	}
}
