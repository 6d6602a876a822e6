package replay

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/watchtree/watchtree/pkg/config"
	"github.com/watchtree/watchtree/pkg/memory"
	"github.com/watchtree/watchtree/pkg/symgroup"
)

func TestOpen(t *testing.T) {
	pages := 0
	tgt, err := Open("testdata/strings.yml", &config.Config{RootPrefix: "frame", NameDelimiter: "/", MemoryCachePages: &pages})
	if err != nil {
		t.Fatal(err)
	}
	defer tgt.Close()
	if _, isCache := tgt.Memory().(*memory.PageCache); isCache {
		t.Fatal("page cache with zero pages")
	}
	c := tgt.Context()
	if c.Prefix() != "frame" {
		t.Fatalf("wrong prefix %q", c.Prefix())
	}
	if _, err := c.Lookup("frame/title"); err != nil {
		t.Fatal(err)
	}
}

func TestReload(t *testing.T) {
	data, err := ioutil.ReadFile("testdata/strings.yml")
	if err != nil {
		t.Fatal(err)
	}
	dir, err := ioutil.TempDir("", "wtree-replay")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "snap.yml")
	if err := ioutil.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	tgt, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tgt.Close()
	if _, isCache := tgt.Memory().(*memory.PageCache); !isCache {
		t.Fatal("no page cache by default")
	}
	old := tgt.Context()
	if err := old.ExpandSymbol("local.this"); err != nil {
		t.Fatal(err)
	}
	n := old.Len()

	if err := tgt.Reload(); err != nil {
		t.Fatal(err)
	}
	if tgt.Context() == old || tgt.Context().Len() >= n {
		t.Fatalf("reload kept the expanded context (%d symbols)", tgt.Context().Len())
	}
	if s := tgt.Context().SymbolState("local.this"); s != symgroup.CollapsedSymbol {
		t.Fatalf("local.this is %v after reload", s)
	}

	if err := ioutil.WriteFile(path, []byte("symbols: [{}]\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cur := tgt.Context()
	if err := tgt.Reload(); err == nil {
		t.Fatal("reload of a broken snapshot succeeded")
	}
	if tgt.Context() != cur {
		t.Fatal("failed reload replaced the context")
	}
}
