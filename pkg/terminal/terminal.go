package terminal

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/go-delve/elfscope/pkg/config"
	"github.com/go-delve/elfscope/pkg/elffile"
	"github.com/go-delve/elfscope/pkg/logflags"
)

const (
	historyFile                 string = ".elfscope_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiRed      = 31
	ansiGreen    = 32
	ansiYellow   = 33
	ansiBlue     = 34
	ansiMagenta  = 35
	ansiCyan     = 36
	ansiWhite    = 37
	ansiBrGreen  = 92
	ansiBrYellow = 93
)

// maxCompletions bounds the number of symbol names offered by the
// completer.
const maxCompletions = 64

// Term represents the terminal running elfscope.
type Term struct {
	file     *elffile.File
	path     string
	conf     *config.Config
	prompt   string
	line     *liner.State
	cmds     *Commands
	colors   bool
	stdout   *pagingWriter
	InitFile string

	mask elffile.Mask

	static, dynamic *trie.Trie
}

// New returns a new Term for a loaded file.
func New(file *elffile.File, path string, conf *config.Config) *Term {
	cmds := DefaultCommands()
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}

	w, colors := ColorableStdout()

	mask, err := elffile.ParseMask(conf.Highlight)
	if err != nil || mask == 0 {
		mask = elffile.HighlightAll
	}

	return &Term{
		file:   file,
		path:   path,
		conf:   conf,
		prompt: "(elfscope) ",
		cmds:   cmds,
		colors: colors,
		stdout: &pagingWriter{w: w},
		mask:   mask,
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
		t.line = nil
	}
}

// Run reads commands from the user until the exit command or EOF.
func (t *Term) Run() (int, error) {
	t.line = liner.NewLiner()
	defer t.Close()

	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(t.complete)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Println("Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println("exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}

		err = t.cmds.Call(cmdstr, t)
		t.stdout.Reset()
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
	} else {
		if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Println("readline history error:", err)
			}
			f.Close()
		}
	}
	return 0, nil
}

// complete completes command names and, after a command that takes a
// symbol, symbol names.
func (t *Term) complete(line string) (c []string) {
	idx := strings.Index(line, " ")
	if idx < 0 {
		for _, cmd := range t.cmds.cmds {
			for _, alias := range cmd.aliases {
				if strings.HasPrefix(alias, strings.ToLower(line)) {
					c = append(c, alias)
				}
			}
		}
		return
	}

	cmdname, arg := line[:idx], strings.TrimLeft(line[idx:], " ")
	var tr *trie.Trie
	switch t.cmds.name(cmdname) {
	case "symbols", "hexdump":
		tr = t.symbolTrie(false)
	case "dynsyms":
		tr = t.symbolTrie(true)
	default:
		return nil
	}
	names := tr.PrefixSearch(arg)
	sort.Strings(names)
	if len(names) > maxCompletions {
		names = names[:maxCompletions]
	}
	for _, name := range names {
		c = append(c, line[:idx+1]+name)
	}
	if logflags.Terminal() {
		logflags.TerminalLogger().Debugf("completion of %q: %d candidates", line, len(c))
	}
	return c
}

// symbolTrie returns the trie of static or dynamic symbol names. The meta
// value of each key is the index of the symbol.
func (t *Term) symbolTrie(dynamic bool) *trie.Trie {
	p, syms := &t.static, t.file.StaticSymbols()
	if dynamic {
		p, syms = &t.dynamic, t.file.DynamicSymbols()
	}
	if *p != nil {
		return *p
	}
	tr := trie.New()
	for i := range syms {
		if syms[i].Name == "" {
			continue
		}
		if _, ok := tr.Find(syms[i].Name); ok {
			continue
		}
		tr.Add(syms[i].Name, i)
	}
	*p = tr
	return tr
}
