package replay

import (
	"fmt"
	"sort"

	"github.com/watchtree/watchtree/pkg/memory"
)

// snapshotMemory serves reads from the memory regions of a snapshot.
type snapshotMemory struct {
	regions []*Region
}

// Memory returns the target memory stored in the snapshot.
func (s *Snapshot) Memory() memory.Reader {
	return &snapshotMemory{regions: s.Regions}
}

// ReadMemory implements memory.Reader. Reads spanning adjacent regions
// are served, a read reaching unmapped memory returns the bytes before it
// and an error.
func (m *snapshotMemory) ReadMemory(buf []byte, addr uint64) (n int, err error) {
	i := sort.Search(len(m.regions), func(i int) bool {
		r := m.regions[i]
		return r.Address+uint64(len(r.data)) > addr
	})
	for n < len(buf) {
		if i >= len(m.regions) || m.regions[i].Address > addr {
			return n, fmt.Errorf("hit unmapped area at %#x after %d bytes", addr, n)
		}
		r := m.regions[i]
		c := copy(buf[n:], r.data[addr-r.Address:])
		n += c
		addr += uint64(c)
		i++
	}
	return n, nil
}
