package symgroup

import (
	"fmt"
	"strings"

	"github.com/watchtree/watchtree/pkg/symgroup/layout"
)

// Tristate is a boolean that may not be known yet.
type Tristate uint8

const (
	Unknown Tristate = iota
	True
	False
)

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// OutOfScope is the value shown for a variable whose memory could not be
// read.
const OutOfScope = "<Out of scope>"

// WatchData describes a variable the way the front-ends display it.
type WatchData struct {
	IName string
	// Exp is the expression evaluating to the variable, its iname.
	Exp         string
	Name        string
	Addr        string
	Type        string
	Value       string
	HasChildren Tristate
	// Error is set when the value of the variable went out of scope.
	Error string
}

// HasChildrenKnown reports whether HasChildren was decided.
func (wd *WatchData) HasChildrenKnown() bool {
	return wd.HasChildren != Unknown
}

// SetHasChildren decides HasChildren.
func (wd *WatchData) SetHasChildren(b bool) {
	if b {
		wd.HasChildren = True
	} else {
		wd.HasChildren = False
	}
}

// SetOutOfScope marks the variable as unreadable.
func (wd *WatchData) SetOutOfScope() {
	wd.Error = "Out of scope"
	wd.Value = OutOfScope
	wd.HasChildren = False
}

func (wd *WatchData) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "iname=%q name=%q addr=%s type=%q value=%q children=%s", wd.IName, wd.Name, wd.Addr, wd.Type, wd.Value, wd.HasChildren)
	if wd.Error != "" {
		fmt.Fprintf(&sb, " error=%q", wd.Error)
	}
	return sb.String()
}

// removeInnerTemplateType replaces the template arguments of the
// outermost template in value with an ellipsis:
// "std::map<int,std::basic_string<char> >" becomes "std::map<...>".
func removeInnerTemplateType(value string) string {
	first := strings.IndexByte(value, '<')
	if first < 0 {
		return value
	}
	last := strings.LastIndexByte(value, '>')
	if last < first {
		return value
	}
	return value[:first+1] + "..." + value[last:]
}

// displayName shortens the template arguments of a symbol name. Names
// that are entirely bracketed, such as "<unnamed1>", are kept.
func displayName(name string) string {
	if strings.HasPrefix(name, "<") {
		return name
	}
	return removeInnerTemplateType(name)
}

// fixValue shortens the values the engine shows for expandable classes,
// which repeat the full template type name.
func fixValue(value string) string {
	if len(value) < 20 || strings.HasSuffix(value, `"`) {
		return value
	}
	return removeInnerTemplateType(value)
}

func isPointerType(typ string) bool {
	return strings.HasSuffix(strings.TrimSpace(typ), "*")
}

// isNullPointer reports whether wd is a pointer whose value is
// "0x000" or "0x000 class X".
func isNullPointer(wd *WatchData) bool {
	return isPointerType(wd.Type) && layout.IsNullPointerValue(wd.Value)
}
