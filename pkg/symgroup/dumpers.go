package symgroup

import (
	"errors"
	"fmt"

	"github.com/watchtree/watchtree/pkg/logflags"
	"github.com/watchtree/watchtree/pkg/memory"
	"github.com/watchtree/watchtree/pkg/symgroup/layout"
)

// DumperResult is the outcome of ApplyDumpers.
type DumperResult uint8

const (
	// DumperNotHandled means wd kept its generic description.
	DumperNotHandled DumperResult = iota
	// DumperOk means the value of wd was decoded from target memory.
	DumperOk
	// DumperError means the value could not be read, wd is out of scope.
	DumperError
)

func (r DumperResult) String() string {
	switch r {
	case DumperNotHandled:
		return "not handled"
	case DumperOk:
		return "ok"
	case DumperError:
		return "error"
	}
	return "unknown"
}

// ApplyDumpers replaces the generic value of wd for the string types the
// engine can not format, reading their contents from mem. Symbols known
// to have no children, such as null pointers, are left alone.
//
// If the string or its fields can not be expanded or parsed the layout
// does not match the expected one: a warning is logged and wd is left
// unchanged. Only a string whose memory can not be read, or that is no
// longer part of the context, is marked out of scope.
func (c *Context) ApplyDumpers(mem memory.Reader, wd *WatchData) DumperResult {
	if wd.HasChildrenKnown() && wd.HasChildren == False {
		return DumperNotHandled
	}
	var err error
	switch {
	case layout.MatchesType(wd.Type, layout.COWStringType):
		err = c.dumpCOWString(mem, wd)
	case layout.IsSSOStringType(wd.Type):
		err = c.dumpSSOString(wd)
	default:
		return DumperNotHandled
	}

	log := logflags.DumpersLogger().WithField("iname", wd.IName)
	var serr *layout.StructuralError
	switch {
	case err == nil:
		if logflags.Dumpers() {
			log.Debugf("%s = %s", wd.Type, wd.Value)
		}
		return DumperOk
	case errors.As(err, &serr):
		log.Warnf("Warning: Internal dumper for '%s' failed with %d.", wd.Type, serr.Code)
		if logflags.Dumpers() {
			log.Debug(serr.Reason)
		}
		return DumperNotHandled
	default:
		if logflags.Dumpers() {
			log.WithError(err).Debug("out of scope")
		}
		wd.SetOutOfScope()
		return DumperError
	}
}

func structuralError(typ string, code int, err error) error {
	return &layout.StructuralError{Type: typ, Code: code, Reason: err.Error()}
}

// expandChild expands the symbol at index, which must have been named
// while expanding its parent.
func (c *Context) expandChild(index int) error {
	iname, ok := c.inames.reverse(index)
	if !ok || !c.table.valid(index) {
		return fmt.Errorf("%w: no symbol at %d", ErrNotFound, index)
	}
	return c.expandAt(iname, index)
}

// dumpCOWString decodes a copy-on-write UTF-16 string. The string is
// expanded to reach its private data, which is expanded in turn to reach
// its size and data fields.
func (c *Context) dumpCOWString(mem memory.Reader, wd *WatchData) error {
	index, err := c.Lookup(wd.IName)
	if err != nil {
		return err
	}
	if err := c.expandAt(wd.IName, index); err != nil {
		return structuralError(wd.Type, 2, err)
	}
	d := index + layout.COWStringDataOffset
	if err := c.expandChild(d); err != nil {
		return structuralError(wd.Type, 3, err)
	}
	s, err := layout.ParseCOWString(
		c.stringAt(c.g.ValueText, d+layout.COWStringSizeOffset),
		c.stringAt(c.g.ValueText, d+layout.COWStringArrayOffset))
	if err != nil {
		return err
	}
	if mem == nil {
		return fmt.Errorf("%w: no memory access", layout.ErrMemoryRead)
	}
	value, err := s.Decode(c.maxStringLen, func(buf []byte, addr uint64) error {
		return memory.ReadFull(mem, buf, addr)
	})
	if err != nil {
		return err
	}
	wd.Value = value
	wd.SetHasChildren(false)
	return nil
}

// dumpSSOString decodes a small-buffer-optimized string from the value the
// engine shows for its inline buffer.
func (c *Context) dumpSSOString(wd *WatchData) error {
	index, err := c.Lookup(wd.IName)
	if err != nil {
		return err
	}
	if err := c.expandAt(wd.IName, index); err != nil {
		return structuralError(wd.Type, 2, err)
	}
	if err := c.expandChild(index + layout.SSOStringBxOffset); err != nil {
		return structuralError(wd.Type, 3, err)
	}
	value, err := layout.DecodeSSOString(
		c.stringAt(c.g.ValueText, index+layout.SSOStringSizeOffset),
		c.stringAt(c.g.ValueText, index+layout.SSOStringBufOffset),
		c.maxStringLen)
	if err != nil {
		return err
	}
	wd.Value = value
	wd.SetHasChildren(false)
	return nil
}
