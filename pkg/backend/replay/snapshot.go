// Package replay implements the debugger engine interfaces on top of a
// snapshot of a suspended process, stored as YAML.
//
// A snapshot lists the variables of one stack frame as a tree, marking
// the ones the engine had already expanded, and the regions of target
// memory the string dumpers need:
//
//	frame:
//	  function: main
//	symbols:
//	- name: s
//	  type: class QString
//	  children:
//	  - ...
//	memory:
//	- address: 0x1000
//	  utf16: hallo
package replay

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/ioutil"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"gopkg.in/yaml.v2"

	"github.com/watchtree/watchtree/pkg/logflags"
	"github.com/watchtree/watchtree/pkg/symgroup"
)

// Frame describes the stack frame the symbols belong to.
type Frame struct {
	Function string `yaml:"function"`
	File     string `yaml:"file"`
	Line     int    `yaml:"line"`
}

// Symbol is a variable of the snapshot.
type Symbol struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Value  string `yaml:"value"`
	Offset uint64 `yaml:"offset"`
	TypeID uint32 `yaml:"type-id"`
	// Flags are any of read-only, array, float, argument and local.
	Flags []string `yaml:"flags"`
	// Expanded symbols have their children listed from the start.
	Expanded bool `yaml:"expanded"`
	// SubElements overrides the number of children the engine reports
	// before the symbol is expanded.
	SubElements *int      `yaml:"sub-elements"`
	Children    []*Symbol `yaml:"children"`

	flags symgroup.SymbolFlags
}

// Region is a range of target memory. Its contents are given either as
// hex encoded bytes or as text stored in little endian UTF-16.
type Region struct {
	Address uint64 `yaml:"address"`
	Bytes   string `yaml:"bytes"`
	UTF16   string `yaml:"utf16"`

	data []byte
}

// Snapshot is a suspended thread as seen by the debugger engine.
type Snapshot struct {
	Thread  int       `yaml:"thread"`
	Frame   Frame     `yaml:"frame"`
	Symbols []*Symbol `yaml:"symbols"`
	Regions []*Region `yaml:"memory"`

	path string
}

var flagValues = map[string]symgroup.SymbolFlags{
	"read-only": symgroup.FlagReadOnly,
	"array":     symgroup.FlagIsArray,
	"float":     symgroup.FlagIsFloat,
	"argument":  symgroup.FlagIsArgument,
	"local":     symgroup.FlagIsLocal,
}

// ErrOverlappingRegions is returned for snapshots describing the same
// memory twice.
var ErrOverlappingRegions = errors.New("overlapping memory regions")

// Load reads the snapshot stored at path.
func Load(path string) (*Snapshot, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// Parse decodes a snapshot.
func Parse(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := yaml.UnmarshalStrict(data, s); err != nil {
		return nil, fmt.Errorf("could not decode snapshot: %v", err)
	}
	for _, sym := range s.Symbols {
		if err := sym.resolve(); err != nil {
			return nil, err
		}
	}
	for _, r := range s.Regions {
		if err := r.resolve(); err != nil {
			return nil, err
		}
	}
	sort.Slice(s.Regions, func(i, j int) bool { return s.Regions[i].Address < s.Regions[j].Address })
	for i := 1; i < len(s.Regions); i++ {
		prev := s.Regions[i-1]
		if prev.Address+uint64(len(prev.data)) > s.Regions[i].Address {
			return nil, fmt.Errorf("%w at %#x", ErrOverlappingRegions, s.Regions[i].Address)
		}
	}
	if logflags.Replay() {
		logflags.ReplayLogger().Debugf("snapshot with %d top level symbols and %d memory regions", len(s.Symbols), len(s.Regions))
	}
	return s, nil
}

// Path returns the file the snapshot was loaded from.
func (s *Snapshot) Path() string {
	return s.path
}

func (sym *Symbol) resolve() error {
	if sym.Name == "" {
		return errors.New("symbol without a name")
	}
	if sym.SubElements != nil && *sym.SubElements < 0 {
		return fmt.Errorf("symbol %s: negative sub-elements", sym.Name)
	}
	sym.flags = 0
	for _, name := range sym.Flags {
		flag, ok := flagValues[name]
		if !ok {
			return fmt.Errorf("symbol %s: unknown flag %q", sym.Name, name)
		}
		sym.flags |= flag
	}
	for _, child := range sym.Children {
		if err := child.resolve(); err != nil {
			return fmt.Errorf("%s: %v", sym.Name, err)
		}
	}
	return nil
}

func (sym *Symbol) subElements() int {
	if sym.SubElements != nil && !sym.Expanded {
		return *sym.SubElements
	}
	return len(sym.Children)
}

func (r *Region) resolve() error {
	switch {
	case r.Bytes != "" && r.UTF16 != "":
		return fmt.Errorf("region %#x: both bytes and utf16 given", r.Address)
	case r.Bytes != "":
		data, err := hex.DecodeString(strings.Join(strings.Fields(r.Bytes), ""))
		if err != nil {
			return fmt.Errorf("region %#x: %v", r.Address, err)
		}
		r.data = data
	default:
		data, err := utf16le.NewEncoder().Bytes([]byte(r.UTF16))
		if err != nil {
			return fmt.Errorf("region %#x: %v", r.Address, err)
		}
		r.data = data
	}
	return nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
