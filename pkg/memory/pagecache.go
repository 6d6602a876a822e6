package memory

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/watchtree/watchtree/pkg/logflags"
)

// PageSize is the granularity of PageCache.
const PageSize = 4096

// PageCache caches whole pages of target memory. The target is suspended
// while a PageCache is in use, call Flush whenever it resumes or memory
// is written.
type PageCache struct {
	mem   Reader
	pages *lru.Cache
	log   logflags.Logger
}

// NewPageCache returns a PageCache over mem keeping at most size pages.
func NewPageCache(mem Reader, size int) (*PageCache, error) {
	pages, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &PageCache{mem: mem, pages: pages, log: logflags.MemoryLogger()}, nil
}

// ReadMemory implements Reader. Pages that can not be read as a whole are
// not cached, the request is then forwarded to the underlying Reader as is.
func (pc *PageCache) ReadMemory(buf []byte, addr uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	first := addr &^ (PageSize - 1)
	last := (addr + uint64(len(buf)) - 1) &^ (PageSize - 1)

	n := 0
	for page := first; ; page += PageSize {
		data, ok := pc.page(page)
		if !ok {
			pc.log.Debugf("uncached read of %d bytes at %#x", len(buf), addr)
			return pc.mem.ReadMemory(buf, addr)
		}
		start := uint64(0)
		if page < addr {
			start = addr - page
		}
		n += copy(buf[n:], data[start:])
		if page == last {
			break
		}
	}
	return n, nil
}

func (pc *PageCache) page(page uint64) ([]byte, bool) {
	if v, ok := pc.pages.Get(page); ok {
		return v.([]byte), true
	}
	data := make([]byte, PageSize)
	if err := ReadFull(pc.mem, data, page); err != nil {
		return nil, false
	}
	pc.pages.Add(page, data)
	return data, true
}

// Flush drops every cached page.
func (pc *PageCache) Flush() {
	pc.pages.Purge()
}

// Len returns the number of pages currently cached.
func (pc *PageCache) Len() int {
	return pc.pages.Len()
}
