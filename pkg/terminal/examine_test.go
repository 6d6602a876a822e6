package terminal

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type countingMemory struct {
	base  uint64
	data  []byte
	reads int
}

func (m *countingMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	m.reads++
	if addr < m.base || addr+uint64(len(buf)) > m.base+uint64(len(m.data)) {
		return 0, errors.New("unmapped")
	}
	return copy(buf, m.data[addr-m.base:]), nil
}

func TestReadUnits(t *testing.T) {
	mem := &countingMemory{base: 0x100, data: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}}
	for _, tc := range []struct {
		count, size int
		tgt         []uint64
	}{
		{4, 1, []uint64{0x01, 0x02, 0x03, 0x04}},
		{2, 2, []uint64{0x0201, 0x0403}},
		{3, 3, []uint64{0x030201, 0x060504, 0x090807}},
		{1, 8, []uint64{0x0807060504030201}},
	} {
		mem.reads = 0
		units, err := readUnits(mem, 0x100, tc.count, tc.size)
		if err != nil {
			t.Fatalf("readUnits(%d, %d): %v", tc.count, tc.size, err)
		}
		if !reflect.DeepEqual(units, tc.tgt) {
			t.Errorf("readUnits(%d, %d) = %#x, expected %#x", tc.count, tc.size, units, tc.tgt)
		}
		if mem.reads != 1 {
			t.Errorf("readUnits(%d, %d) read the target %d times", tc.count, tc.size, mem.reads)
		}
	}
	if _, err := readUnits(mem, 0x104, 2, 4); err == nil {
		t.Fatal("expected error reading past the end of the region")
	}
}

func TestPrettyExamineMemory(t *testing.T) {
	out := prettyExamineMemory(0x10, []uint64{0x48, 0x61}, 'x', 2)
	if f := strings.Fields(out); !reflect.DeepEqual(f, []string{"0x10:", "0x0048", "0x0061"}) || strings.Count(out, "\n") != 1 {
		t.Fatalf("unexpected output %q", out)
	}
	out = prettyExamineMemory(0x10, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 'd', 1)
	if lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n"); len(lines) != 2 || !strings.HasPrefix(lines[1], "0x18:") {
		t.Fatalf("unexpected output %q", out)
	}
}
