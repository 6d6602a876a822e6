package terminal

import (
	"sort"
	"strings"

	"github.com/derekparker/trie"
)

// complete returns the completions of line: command aliases for the first
// word and inames relative to the root prefix for the last one.
func (t *Term) complete(line string) (c []string) {
	sp := strings.LastIndex(line, " ")
	if sp < 0 {
		for _, cmd := range t.cmds.cmds {
			for _, alias := range cmd.aliases {
				if strings.HasPrefix(alias, strings.ToLower(line)) {
					c = append(c, alias)
				}
			}
		}
		return
	}
	if t.inames == nil {
		t.updateCompletions()
	}
	head, word := line[:sp+1], line[sp+1:]
	matches := t.inames.PrefixSearch(word)
	sort.Strings(matches)
	for _, m := range matches {
		c = append(c, head+m)
	}
	return
}

// updateCompletions rebuilds the iname trie from the symbol context.
func (t *Term) updateCompletions() {
	t.inames = trie.New()
	if t.target == nil {
		return
	}
	ctx := t.target.Context()
	root := ctx.Prefix() + ctx.Delimiter()
	for _, iname := range ctx.INames() {
		if short := strings.TrimPrefix(iname, root); short != iname {
			t.inames.Add(short, nil)
		}
	}
}
