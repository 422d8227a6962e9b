package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	tableCmds
	symbolCmds
	addressCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Viewing the header and the segment and section tables", tableCmds},
	{"Viewing symbols and Go runtime metadata", symbolCmds},
	{"Translating addresses and viewing file contents", addressCmds},
	{"Other commands", otherCmds},
}
