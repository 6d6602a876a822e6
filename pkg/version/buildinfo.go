package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// BuildInfo returns the Go runtime version followed by the module
// dependencies the binary was built with, one per line, in the
// "mod|dep path version" shape used by 'wtree version -v'.
func BuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s\nnot built in module mode", runtime.Version())
	}
	return fmt.Sprintf("%s\n%s", runtime.Version(), moduleList(info))
}

func moduleList(info *debug.BuildInfo) string {
	var sb strings.Builder
	writeModule(&sb, "mod", &info.Main)
	for _, dep := range info.Deps {
		writeModule(&sb, "dep", dep)
	}
	return sb.String()
}

func writeModule(sb *strings.Builder, kind string, m *debug.Module) {
	sb.WriteString(" " + kind + "\t" + m.Path + "\t" + m.Version)
	if m.Replace != nil {
		sb.WriteString("\t=> " + m.Replace.Path + "\t" + m.Replace.Version)
	}
	sb.WriteString("\n")
}
