package cmds

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-delve/elfscope/pkg/config"
	"github.com/go-delve/elfscope/pkg/demangle"
	"github.com/go-delve/elfscope/pkg/elffile"
	"github.com/go-delve/elfscope/pkg/logflags"
	"github.com/go-delve/elfscope/pkg/terminal"
	"github.com/go-delve/elfscope/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// configFile overrides the configuration file in the user's home.
	configFile string
	// initFile is the path to initialization file.
	initFile string

	symbolsDynamic bool
	symbolsPrefix  string

	translateFrom string
	translateTo   string

	hexdumpOffset uint64
	hexdumpLength uint64
	hexdumpMask   []string

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const elfscopeCommandLongDesc = `elfscope inspects ELF executables and shared objects.

It prints the file header, the segment, section and symbol tables and the
build identifiers found in notes, translates between file offsets and virtual
addresses and dumps file contents with call, jump, breakpoint and function
boundary instructions highlighted.

Go binaries are recognized and their line table is decoded.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Main elfscope root command.
	rootCommand = &cobra.Command{
		Use:               "elfscope",
		Short:             "elfscope is an ELF file inspector.",
		Long:              elfscopeCommandLongDesc,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'elfscope help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'elfscope help log').")
	rootCommand.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file, instead of $HOME/.elfscope/config.yml.")

	// 'info' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "info <file>",
		Short: "Prints the file header, the build identifiers and the available panels.",
		Args:  cobra.ExactArgs(1),
		RunE: withFile(func(cmd *cobra.Command, f *elffile.File, args []string) error {
			terminal.PrintInfo(cmd.OutOrStdout(), f)
			return nil
		}),
	})

	// 'segments' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "segments <file>",
		Short: "Prints the program header table.",
		Args:  cobra.ExactArgs(1),
		RunE: withFile(func(cmd *cobra.Command, f *elffile.File, args []string) error {
			terminal.PrintSegments(cmd.OutOrStdout(), f)
			return nil
		}),
	})

	// 'sections' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "sections <file>",
		Short: "Prints the section header table.",
		Args:  cobra.ExactArgs(1),
		RunE: withFile(func(cmd *cobra.Command, f *elffile.File, args []string) error {
			terminal.PrintSections(cmd.OutOrStdout(), f)
			return nil
		}),
	})

	// 'symbols' subcommand.
	symbolsCommand := &cobra.Command{
		Use:   "symbols <file>",
		Short: "Prints the static or dynamic symbol table.",
		Args:  cobra.ExactArgs(1),
		RunE:  withFile(symbolsCmd),
	}
	symbolsCommand.Flags().BoolVar(&symbolsDynamic, "dynamic", false, "Print the dynamic symbol table.")
	symbolsCommand.Flags().StringVar(&symbolsPrefix, "prefix", "", "Only print symbols whose name starts with prefix.")
	rootCommand.AddCommand(symbolsCommand)

	// 'translate' subcommand.
	translateCommand := &cobra.Command{
		Use:   "translate <file> <address>",
		Short: "Translates an address between file offsets and virtual addresses.",
		Args:  cobra.ExactArgs(2),
		RunE:  withFile(translateCmd),
	}
	translateCommand.Flags().StringVar(&translateFrom, "from", "va", "Address space of the argument, fo or va.")
	translateCommand.Flags().StringVar(&translateTo, "to", "fo", "Address space of the result, fo or va.")
	rootCommand.AddCommand(translateCommand)

	// 'hexdump' subcommand.
	hexdumpCommand := &cobra.Command{
		Use:   "hexdump <file>",
		Short: "Prints a hex dump with instructions highlighted.",
		Long: `Prints a hex dump of the file.

Bytes belonging to an instruction of one of the classes selected by --mask
are colored. Valid classes are call, lcall, jmp, ljmp, breakpoint, fstart,
fend, header and all. Without --mask the highlight option of the
configuration file is used, or all classes if it is empty.`,
		Args: cobra.ExactArgs(1),
		RunE: withFile(hexdumpCmd),
	}
	hexdumpCommand.Flags().Uint64Var(&hexdumpOffset, "offset", 0, "File offset of the first byte.")
	hexdumpCommand.Flags().Uint64Var(&hexdumpLength, "length", 256, "Number of bytes to print.")
	hexdumpCommand.Flags().StringSliceVar(&hexdumpMask, "mask", nil, "Comma separated list of highlighted classes.")
	rootCommand.AddCommand(hexdumpCommand)

	// 'gofuncs' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "gofuncs <file> [regexp]",
		Short: "Prints the functions of the Go line table.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withFile(func(cmd *cobra.Command, f *elffile.File, args []string) error {
			filter := ""
			if len(args) > 1 {
				filter = args[1]
			}
			return terminal.PrintFuncs(cmd.OutOrStdout(), f, filter)
		}),
	})

	// 'repl' subcommand.
	replCommand := &cobra.Command{
		Use:   "repl <file>",
		Short: "Opens an interactive terminal on the file.",
		Args:  cobra.ExactArgs(1),
		RunE:  withFile(replCmd),
	}
	replCommand.Flags().StringVar(&initFile, "init", "", "Init file, executed by the terminal.")
	rootCommand.AddCommand(replCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "elfscope\n%s\n", version.ElfscopeVersion)
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolP("verbose", "v", false, "Print build information.")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	loader		Log header, segment and section table loading
	symbols		Log symbol table decoding
	notes		Log note parsing and build identifiers
	highlight	Log highlight cache activity and decode failures
	pclntab		Log Go line table decoding
	terminal	Log interactive terminal activity

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func setup(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		return err
	}
	if configFile != "" {
		c, err := config.LoadConfigFile(configFile)
		if err != nil {
			return err
		}
		conf = c
	} else {
		conf = config.LoadConfig()
	}
	if logflags.Terminal() {
		cmd.Flags().Visit(func(fl *pflag.Flag) {
			logflags.TerminalLogger().Debugf("flag %s=%s", fl.Name, fl.Value)
		})
	}
	return nil
}

// openFile opens path with the collaborators selected by the configuration.
func openFile(path string) (*elffile.File, error) {
	opts := []elffile.Option{elffile.WithCacheSize(conf.GetCacheSize())}
	if !conf.GetDemangle() {
		opts = append(opts, elffile.WithDemangler(demangle.None))
	}
	f, err := elffile.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	return f, nil
}

type fileCmdFunc func(cmd *cobra.Command, f *elffile.File, args []string) error

func withFile(fn fileCmdFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer logflags.Close()
		f, err := openFile(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return fn(cmd, f, args)
	}
}

func symbolsCmd(cmd *cobra.Command, f *elffile.File, args []string) error {
	syms, panel := f.StaticSymbols(), elffile.PanelStaticSymbols
	if symbolsDynamic {
		syms, panel = f.DynamicSymbols(), elffile.PanelDynamicSymbols
	}
	if !f.HasPanel(panel) {
		return fmt.Errorf("%s has no %s table", args[0], panel)
	}
	terminal.PrintSymbols(cmd.OutOrStdout(), syms, symbolsPrefix)
	return nil
}

func translateCmd(cmd *cobra.Command, f *elffile.File, args []string) error {
	from, err := terminal.ParseAddressSpace(translateFrom)
	if err != nil {
		return err
	}
	to, err := terminal.ParseAddressSpace(translateTo)
	if err != nil {
		return err
	}
	addr, err := terminal.ParseUint(args[1])
	if err != nil {
		return err
	}
	r := f.ConvertAddress(addr, from, to)
	if r == elffile.InvalidAddress {
		return fmt.Errorf("%s %#x is not mapped", from, addr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%#x\n", r)
	return nil
}

func hexdumpCmd(cmd *cobra.Command, f *elffile.File, args []string) error {
	names := hexdumpMask
	if len(names) == 0 {
		names = conf.Highlight
	}
	mask, err := elffile.ParseMask(names)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		mask = elffile.HighlightAll
	}
	colors, err := terminal.HighlightColors(conf.HighlightColors)
	if err != nil {
		return err
	}

	out, colored := cmd.OutOrStdout(), false
	if out == os.Stdout {
		out, colored = terminal.ColorableStdout()
	}
	return terminal.Hexdump(out, f, hexdumpOffset, hexdumpLength, terminal.HexdumpOptions{
		Width:   conf.GetHexdumpWidth(),
		Mask:    mask,
		Colors:  colors,
		Colored: colored,
	})
}

func replCmd(cmd *cobra.Command, f *elffile.File, args []string) error {
	term := terminal.New(f, args[0], conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		return err
	}
	if status != 0 {
		return errors.New("terminal exited with an error")
	}
	return nil
}
