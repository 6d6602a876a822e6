// Package memory describes how watchtree reads the address space of the
// suspended target and provides caches layered over a Reader.
package memory

import (
	"encoding/binary"
	"fmt"
)

// Reader is like io.ReaderAt, but the offset is a uint64 so that it
// can address all of 64-bit memory.
type Reader interface {
	// ReadMemory is just like io.ReaderAt.ReadAt.
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// ReadError is returned when the target memory at Addr could not be read.
type ReadError struct {
	Addr uint64
	Len  int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("could not read %d bytes at %#x: %v", e.Len, e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ReadFull reads exactly len(buf) bytes at addr. A short read is reported
// as an error.
func ReadFull(mem Reader, buf []byte, addr uint64) error {
	n, err := mem.ReadMemory(buf, addr)
	if err != nil {
		return &ReadError{Addr: addr, Len: len(buf), Err: err}
	}
	if n != len(buf) {
		return &ReadError{Addr: addr, Len: len(buf), Err: fmt.Errorf("short read (%d bytes)", n)}
	}
	return nil
}

// ReadUint reads an unsigned little endian integer of size bytes, at most
// eight.
func ReadUint(mem Reader, addr uint64, size int) (uint64, error) {
	if size <= 0 || size > 8 {
		return 0, fmt.Errorf("unsupported integer size %d", size)
	}
	var val [8]byte
	if err := ReadFull(mem, val[:size], addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(val[:]), nil
}

type memCache struct {
	cacheAddr uint64
	cache     []byte
	mem       Reader
}

func (m *memCache) contains(addr uint64, size int) bool {
	return addr >= m.cacheAddr && addr+uint64(size) <= m.cacheAddr+uint64(len(m.cache))
}

func (m *memCache) ReadMemory(data []byte, addr uint64) (n int, err error) {
	if m.contains(addr, len(data)) {
		copy(data, m.cache[addr-m.cacheAddr:])
		return len(data), nil
	}

	return m.mem.ReadMemory(data, addr)
}

// CacheRange returns a Reader that serves reads inside [addr, addr+size)
// from a single read of that range. If the range can not be read mem is
// returned unchanged.
func CacheRange(mem Reader, addr uint64, size int) Reader {
	if size <= 0 {
		return mem
	}
	if cacheMem, isCache := mem.(*memCache); isCache {
		if cacheMem.contains(addr, size) {
			return mem
		}
		mem = cacheMem.mem
	}
	cache := make([]byte, size)
	if err := ReadFull(mem, cache, addr); err != nil {
		return mem
	}
	return &memCache{addr, cache, mem}
}
