package terminal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/watchtree/watchtree/pkg/memory"
	"github.com/watchtree/watchtree/pkg/symgroup"
)

const maxExamineLen = 1000

func examineMemoryCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}

	var (
		address uint64
		ok      bool
	)

	// Default value
	priFmt := byte('x')
	count := 1
	size := 1
	list := false

	for i := 0; i < len(v); i++ {
		switch v[i] {
		case "-fmt":
			i++
			if i >= len(v) {
				return errors.New("expected argument after -fmt")
			}
			fmtMapToPriFmt := map[string]byte{
				"oct":         'o',
				"octal":       'o',
				"hex":         'x',
				"hexadecimal": 'x',
				"dec":         'd',
				"decimal":     'd',
				"bin":         'b',
				"binary":      'b',
			}
			priFmt, ok = fmtMapToPriFmt[v[i]]
			if !ok {
				return fmt.Errorf("%q is not a valid format", v[i])
			}
		case "-count", "-len":
			i++
			if i >= len(v) {
				return errors.New("expected argument after -count/-len")
			}
			count, err = strconv.Atoi(v[i])
			if err != nil || count <= 0 {
				return errors.New("count/len must be a positive integer")
			}
		case "-size":
			i++
			if i >= len(v) {
				return errors.New("expected argument after -size")
			}
			size, err = strconv.Atoi(v[i])
			if err != nil || size <= 0 || size > 8 {
				return errors.New("size must be a positive integer (<=8)")
			}
		case "-list":
			list = true
		default:
			if i != len(v)-1 {
				return fmt.Errorf("unknown option %q", v[i])
			}
			address, err = t.resolveAddress(v[i])
			if err != nil {
				return err
			}
		}
	}

	if count*size > maxExamineLen {
		return fmt.Errorf("read memory range (count*size) must be less than or equal to %d bytes", maxExamineLen)
	}

	if address == 0 {
		return errors.New("no address specified")
	}

	units, err := readUnits(t.target.Memory(), address, count, size)
	if err != nil {
		return err
	}
	if list {
		fmt.Fprintln(t.stdout, symgroup.FormatArray(units, baseOf(priFmt)))
		return nil
	}
	fmt.Fprint(t.stdout, prettyExamineMemory(address, units, priFmt, size))
	return nil
}

// readUnits reads count little endian integers of size bytes starting at
// address. The whole range is read from the target once.
func readUnits(mem memory.Reader, address uint64, count, size int) ([]uint64, error) {
	mem = memory.CacheRange(mem, address, count*size)
	units := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		u, err := memory.ReadUint(mem, address+uint64(i*size), size)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// resolveAddress parses arg as a number or, failing that, as the iname of
// a variable whose address is taken.
func (t *Term) resolveAddress(arg string) (uint64, error) {
	if addr, err := strconv.ParseUint(arg, 0, 64); err == nil {
		return addr, nil
	}
	iname, err := t.iname(arg)
	if err != nil {
		return 0, err
	}
	wd, err := t.target.Context().Project(iname)
	if err != nil {
		return 0, err
	}
	addr, err := strconv.ParseUint(wd.Addr, 0, 64)
	if err != nil || addr == 0 {
		return 0, fmt.Errorf("%s has no address", iname)
	}
	return addr, nil
}

func baseOf(format byte) int {
	switch format {
	case 'b':
		return 2
	case 'o':
		return 8
	case 'd':
		return 10
	default:
		return 16
	}
}

func prettyExamineMemory(address uint64, units []uint64, format byte, size int) string {
	var (
		cols      int
		colFormat string
		colBytes  = size

		addrLen int
	)

	switch format {
	case 'b':
		cols = 4
		colFormat = fmt.Sprintf("%%0%db", colBytes*8)
	case 'o':
		cols = 8
		colFormat = fmt.Sprintf("0%%0%do", colBytes*3)
	case 'd':
		cols = 8
		colFormat = fmt.Sprintf("%%0%dd", colBytes*3)
	default:
		cols = 8
		colFormat = fmt.Sprintf("0x%%0%dx", colBytes*2)
	}
	colFormat += "\t"

	l := len(units) * colBytes
	rows := len(units) / cols
	if len(units)%cols != 0 {
		rows++
	}

	// All rows use the width of the last address.
	if l != 0 {
		addrLen = len(fmt.Sprintf("%x", address+uint64(l)))
	}
	addrFmt := "0x%0" + strconv.Itoa(addrLen) + "x:\t"

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 3, ' ', 0)

	for i := 0; i < rows; i++ {
		fmt.Fprintf(w, addrFmt, address)

		for j := 0; j < cols; j++ {
			if k := i*cols + j; k < len(units) {
				fmt.Fprintf(w, colFormat, units[k])
			}
		}
		fmt.Fprintln(w, "")
		address += uint64(cols * colBytes)
	}
	w.Flush()
	return b.String()
}
