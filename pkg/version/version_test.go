package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patch: 3, Metadata: "rc1", Build: "abcdef"}
	if s := v.String(); s != "Version: 1.2.3-rc1\nBuild: abcdef" {
		t.Fatalf("unexpected version string %q", s)
	}
	v = Version{Major: 0, Minor: 3, Build: "0123"}
	if s := v.String(); s != "Version: 0.3.0\nBuild: 0123" {
		t.Fatalf("unexpected version string %q", s)
	}
}

func TestRevisionOf(t *testing.T) {
	for _, tc := range []struct {
		settings []debug.BuildSetting
		tgt      string
	}{
		{nil, ""},
		{[]debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}}, "abc"},
		{[]debug.BuildSetting{{Key: "vcs.modified", Value: "true"}, {Key: "vcs.revision", Value: "abc"}}, "abc-dirty"},
		{[]debug.BuildSetting{{Key: "vcs.modified", Value: "true"}}, ""},
	} {
		if got := revisionOf(tc.settings); got != tc.tgt {
			t.Errorf("revisionOf(%v) = %q, expected %q", tc.settings, got, tc.tgt)
		}
	}
}

func TestModuleList(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/watchtree/watchtree", Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: "gopkg.in/yaml.v2", Version: "v2.4.0"},
			{Path: "github.com/go-delve/liner", Version: "v1.2.2", Replace: &debug.Module{Path: "../liner", Version: ""}},
		},
	}
	lines := strings.Split(strings.TrimSuffix(moduleList(info), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
	if lines[0] != " mod\tgithub.com/watchtree/watchtree\t(devel)" {
		t.Errorf("wrong main module line %q", lines[0])
	}
	if !strings.HasSuffix(lines[2], "\t=> ../liner\t") {
		t.Errorf("replacement not shown in %q", lines[2])
	}
}
