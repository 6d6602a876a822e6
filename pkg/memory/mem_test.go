package memory

import (
	"bytes"
	"errors"
	"testing"
)

// flatMemory is a target address space made of one mapped region.
type flatMemory struct {
	base  uint64
	data  []byte
	reads int
}

var errUnmapped = errors.New("unmapped")

func (m *flatMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	m.reads++
	if addr < m.base || addr+uint64(len(buf)) > m.base+uint64(len(m.data)) {
		return 0, errUnmapped
	}
	return copy(buf, m.data[addr-m.base:]), nil
}

func newFlatMemory(base uint64, size int) *flatMemory {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return &flatMemory{base: base, data: data}
}

func TestReadUint(t *testing.T) {
	mem := &flatMemory{base: 0x1000, data: []byte{0xff, 0xfe, 0x01, 0x00, 0x00, 0x80, 0x00, 0x00}}
	for _, tc := range []struct {
		addr uint64
		size int
		tgt  uint64
	}{
		{0x1002, 2, 1},
		{0x1000, 2, 0xfeff},
		{0x1000, 3, 0x01feff},
		{0x1002, 4, 0x80000001},
		{0x1000, 8, 0x0000800001feff},
	} {
		u, err := ReadUint(mem, tc.addr, tc.size)
		if err != nil || u != tc.tgt {
			t.Errorf("ReadUint(%#x, %d) = %#x, %v, expected %#x", tc.addr, tc.size, u, err, tc.tgt)
		}
	}
	if _, err := ReadUint(mem, 0x1000, 9); err == nil {
		t.Fatal("expected error for a 9 byte integer")
	}
	if _, err := ReadUint(mem, 0x1006, 4); err == nil {
		t.Fatal("expected error reading past the end of the region")
	}
	var rerr *ReadError
	_, err := ReadUint(mem, 0x2000, 8)
	if !errors.As(err, &rerr) || rerr.Addr != 0x2000 || !errors.Is(err, errUnmapped) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCacheRange(t *testing.T) {
	mem := newFlatMemory(0x1000, 64)
	cached := CacheRange(mem, 0x1010, 16)
	mem.reads = 0
	buf := make([]byte, 4)
	if _, err := cached.ReadMemory(buf, 0x1014); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, []byte{0x14, 0x15, 0x16, 0x17}) {
		t.Fatalf("wrong data %x", buf)
	}
	if mem.reads != 0 {
		t.Fatalf("read inside cached range reached the target (%d reads)", mem.reads)
	}
	if _, err := cached.ReadMemory(buf, 0x1000); err != nil || mem.reads != 1 {
		t.Fatalf("read outside cached range: %v, %d reads", err, mem.reads)
	}
	if CacheRange(mem, 0x5000, 8) != Reader(mem) {
		t.Fatal("unreadable range should not be cached")
	}
}

func TestPageCache(t *testing.T) {
	mem := newFlatMemory(0, 3*PageSize)
	pc, err := NewPageCache(mem, 2)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 8)
	n, err := pc.ReadMemory(buf, PageSize-4)
	if err != nil || n != len(buf) {
		t.Fatalf("cross page read: %d, %v", n, err)
	}
	for i := range buf {
		if buf[i] != byte(PageSize-4+i) {
			t.Fatalf("wrong byte %d: %#x", i, buf[i])
		}
	}
	if pc.Len() != 2 {
		t.Fatalf("expected 2 cached pages, got %d", pc.Len())
	}

	reads := mem.reads
	if _, err := pc.ReadMemory(buf[:4], 16); err != nil {
		t.Fatal(err)
	}
	if mem.reads != reads {
		t.Fatal("cached page read reached the target")
	}

	pc.Flush()
	if pc.Len() != 0 {
		t.Fatalf("flush left %d pages", pc.Len())
	}

	// The last page is partially outside of the mapped region.
	if _, err := pc.ReadMemory(buf, 3*PageSize-4); err == nil {
		t.Fatal("expected error reading unmapped memory")
	}
}
