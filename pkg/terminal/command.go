package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/go-delve/elfscope/pkg/disasm"
	"github.com/go-delve/elfscope/pkg/elffile"
)

const (
	defaultHexdumpLength    = 256
	defaultDisassembleCount = 20
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the elfscope terminal.
type Commands struct {
	cmds []command
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// DefaultCommands returns a Commands struct with default commands defined.
func DefaultCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"info"}, group: tableCmds, cmdFn: infoCmd, helpMsg: `Prints the file header, the build identifiers and the available panels.`},
		{aliases: []string{"segments", "segs"}, group: tableCmds, cmdFn: segmentsCmd, helpMsg: `Prints the program header table.`},
		{aliases: []string{"sections", "secs"}, group: tableCmds, cmdFn: sectionsCmd, helpMsg: `Prints the section header table.`},
		{aliases: []string{"symbols", "syms"}, group: symbolCmds, cmdFn: symbolsCmd, helpMsg: `Prints the static symbol table.

	symbols [prefix]

If prefix is specified only symbols whose name starts with it are printed.`},
		{aliases: []string{"dynsyms"}, group: symbolCmds, cmdFn: dynsymsCmd, helpMsg: `Prints the dynamic symbol table.

	dynsyms [prefix]`},
		{aliases: []string{"funcs"}, group: symbolCmds, cmdFn: funcsCmd, helpMsg: `Prints the functions found in the Go line table.

	funcs [<regex>]

If regex is specified only the functions matching it will be returned.`},
		{aliases: []string{"translate", "tr"}, group: addressCmds, cmdFn: translateCmd, helpMsg: `Translates an address between file offsets and virtual addresses.

	translate <fo|va> <address>

The address is interpreted in the given space and printed in both.`},
		{aliases: []string{"mask"}, group: addressCmds, cmdFn: maskCmd, helpMsg: `Shows or changes the classes highlighted by hexdump.

	mask
	mask all
	mask none
	mask <class>...

Classes: call, lcall, jmp, ljmp, breakpoint, fstart, fend, header.`},
		{aliases: []string{"hexdump", "x"}, group: addressCmds, cmdFn: hexdumpCmd, helpMsg: `Prints a hex dump of the file.

	hexdump <location> [length]

Location is a file offset, a virtual address prefixed by '*' or a symbol
name. Bytes belonging to an instruction of a highlighted class are colored.`},
		{aliases: []string{"disassemble", "disass"}, group: addressCmds, cmdFn: disassembleCmd, helpMsg: `Disassembler.

	disassemble <location> [count]

Location has the same syntax as in hexdump. The syntax flavour is selected by
the disassemble-flavor configuration option.`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.

	config highlight-colors <class> <color>
	config highlight-colors <class>

Sets or resets the color of a highlight class.`},
		{aliases: []string{"source"}, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of elfscope commands.

	source <path>`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit elfscope.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// name returns the first alias of the command matching cmdstr.
func (c *Commands) name(cmdstr string) string {
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.aliases[0]
		}
	}
	return ""
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var noCmdError = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return noCmdError
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return noCmdError
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// splitArgs splits a command line into words, honouring quotes.
func splitArgs(args string) ([]string, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal commandline '%s'", args)
	}
	return v[0], nil
}

func split2PartsBySpace(s string) []string {
	v := strings.SplitN(s, " ", 2)
	for i := range v {
		v[i] = strings.TrimSpace(v[i])
	}
	return v
}

func infoCmd(t *Term, args string) error {
	fmt.Fprintf(t.stdout, "File:\t%s\n", t.path)
	PrintInfo(t.stdout, t.file)
	return nil
}

func segmentsCmd(t *Term, args string) error {
	PrintSegments(t.stdout, t.file)
	return nil
}

func sectionsCmd(t *Term, args string) error {
	t.stdout.PageMaybe()
	PrintSections(t.stdout, t.file)
	return nil
}

func symbolsCmd(t *Term, args string) error {
	if !t.file.HasPanel(elffile.PanelStaticSymbols) {
		return errors.New("no static symbol table")
	}
	t.stdout.PageMaybe()
	PrintSymbols(t.stdout, t.file.StaticSymbols(), args)
	return nil
}

func dynsymsCmd(t *Term, args string) error {
	if !t.file.HasPanel(elffile.PanelDynamicSymbols) {
		return errors.New("no dynamic symbol table")
	}
	t.stdout.PageMaybe()
	PrintSymbols(t.stdout, t.file.DynamicSymbols(), args)
	return nil
}

func funcsCmd(t *Term, args string) error {
	t.stdout.PageMaybe()
	return PrintFuncs(t.stdout, t.file, args)
}

func translateCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(v) != 2 {
		return errors.New("wrong number of arguments to \"translate\"")
	}
	from, err := ParseAddressSpace(v[0])
	if err != nil {
		return err
	}
	addr, err := ParseUint(v[1])
	if err != nil {
		return err
	}
	to := elffile.VirtualAddress
	if from == elffile.VirtualAddress {
		to = elffile.FileOffset
	}
	r := t.file.ConvertAddress(addr, from, to)
	if r == elffile.InvalidAddress {
		return fmt.Errorf("%s %#x is not mapped", from, addr)
	}
	fmt.Fprintf(t.stdout, "%s %#x = %s %#x\n", from, addr, to, r)
	return nil
}

func maskCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	switch {
	case len(v) == 0:
	case len(v) == 1 && v[0] == "none":
		t.mask = 0
	default:
		mask, err := elffile.ParseMask(v)
		if err != nil {
			return err
		}
		t.mask = mask
	}
	fmt.Fprintf(t.stdout, "highlight: %s\n", t.mask)
	return nil
}

// parseLocation converts a location argument to a file offset. Locations
// are file offsets, virtual addresses prefixed by '*' or symbol names.
func (t *Term) parseLocation(s string) (uint64, error) {
	if strings.HasPrefix(s, "*") {
		va, err := ParseUint(s[1:])
		if err != nil {
			return 0, err
		}
		off := t.file.VAToFileOffset(va)
		if off == elffile.InvalidAddress {
			return 0, fmt.Errorf("virtual address %#x is not mapped", va)
		}
		return off, nil
	}
	if off, err := ParseUint(s); err == nil {
		return off, nil
	}
	sym, ok := t.file.LookupSymbol(s)
	if !ok {
		return 0, fmt.Errorf("could not find symbol %s", s)
	}
	off := t.file.VAToFileOffset(sym.Value)
	if off == elffile.InvalidAddress {
		return 0, fmt.Errorf("symbol %s at %#x is not mapped", s, sym.Value)
	}
	return off, nil
}

func (t *Term) locationArgs(args, cmd string, def uint64) (uint64, uint64, error) {
	v, err := splitArgs(args)
	if err != nil {
		return 0, 0, err
	}
	if len(v) < 1 || len(v) > 2 {
		return 0, 0, fmt.Errorf("wrong number of arguments to %q", cmd)
	}
	off, err := t.parseLocation(v[0])
	if err != nil {
		return 0, 0, err
	}
	n := def
	if len(v) == 2 {
		n, err = ParseUint(v[1])
		if err != nil {
			return 0, 0, err
		}
	}
	return off, n, nil
}

func hexdumpCmd(t *Term, args string) error {
	off, length, err := t.locationArgs(args, "hexdump", defaultHexdumpLength)
	if err != nil {
		return err
	}
	colors, err := HighlightColors(t.conf.HighlightColors)
	if err != nil {
		return err
	}
	t.stdout.PageMaybe()
	return Hexdump(t.stdout, t.file, off, length, HexdumpOptions{
		Width:   t.conf.GetHexdumpWidth(),
		Mask:    t.mask,
		Colors:  colors,
		Colored: t.colors,
	})
}

func disassembleCmd(t *Term, args string) error {
	if !t.file.HasPanel(elffile.PanelOpCodes) {
		return fmt.Errorf("can not disassemble %s code", t.file.Header().Machine)
	}
	off, count, err := t.locationArgs(args, "disassemble", defaultDisassembleCount)
	if err != nil {
		return err
	}
	d := disasm.NewX86()
	h := t.file.Header()
	if err := d.Init(h.Is64(), h.LittleEndian()); err != nil {
		return err
	}
	mem, err := t.file.Source().View(off, uint64(count)*15)
	if err != nil {
		return err
	}
	flavour := disasm.ParseFlavour(t.conf.DisassembleFlavor)
	w := tabwriter.NewWriter(t.stdout, 0, 4, 2, ' ', 0)
	for _, inst := range disasm.Disassemble(d, mem, off, int(count)) {
		pc := t.file.FileOffsetToVA(inst.Offset)
		text := inst.Text(flavour, inst.Offset)
		if pc != elffile.InvalidAddress {
			text = inst.Text(flavour, pc)
		}
		fmt.Fprintf(w, "%#08x\t%s\t%x\t%s\n", inst.Offset, formatAddr(pc), inst.Bytes, text)
	}
	return w.Flush()
}

// ExitRequestError is returned when the user
// exits elfscope.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func (c *Commands) sourceCommand(t *Term, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("wrong number of arguments: source <filename>")
	}
	return c.executeFile(t, args)
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
