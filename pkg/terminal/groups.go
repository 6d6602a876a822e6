package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	dataCmds
	treeCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Viewing variables and memory", dataCmds},
	{"Inspecting the symbol tree", treeCmds},
	{"Other commands", otherCmds},
}
