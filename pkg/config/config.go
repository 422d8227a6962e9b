package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".elfscope"
	configFile string = "config.yml"
)

const (
	// DefaultCacheSize is the number of highlight spans kept per file when
	// cache-size is not set.
	DefaultCacheSize = 1 << 16
	// DefaultHexdumpWidth is the number of bytes per hexdump row when
	// hexdump-width is not set.
	DefaultHexdumpWidth = 16
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// Highlight lists the instruction classes highlighted by hexdump when no
	// --mask flag is given. Valid names: call, lcall, jmp, ljmp, breakpoint,
	// fstart, fend, header.
	Highlight []string `yaml:"highlight"`

	// HighlightColors maps an instruction class to the ANSI foreground color
	// used to print it (3/4 bit color codes as defined
	// here: https://en.wikipedia.org/wiki/ANSI_escape_code#Colors)
	HighlightColors map[string]int `yaml:"highlight-colors"`

	// CacheSize bounds the number of cached highlight results per file.
	CacheSize *int `yaml:"cache-size,omitempty"`

	// Demangle controls whether symbol names are demangled.
	Demangle *bool `yaml:"demangle,omitempty"`

	// HexdumpWidth is the number of bytes printed on each hexdump row.
	HexdumpWidth *int `yaml:"hexdump-width,omitempty"`

	// DisassembleFlavor allows user to specify output syntax flavor of assembly, one of
	// this list "intel"(default), "gnu", "go"
	DisassembleFlavor string `yaml:"disassemble-flavor"`
}

// GetCacheSize returns the configured cache size or DefaultCacheSize.
func (c *Config) GetCacheSize() int {
	if c == nil || c.CacheSize == nil || *c.CacheSize <= 0 {
		return DefaultCacheSize
	}
	return *c.CacheSize
}

// GetDemangle returns true unless demangling was explicitly disabled.
func (c *Config) GetDemangle() bool {
	if c == nil || c.Demangle == nil {
		return true
	}
	return *c.Demangle
}

// GetHexdumpWidth returns the configured hexdump row width or DefaultHexdumpWidth.
func (c *Config) GetHexdumpWidth() int {
	if c == nil || c.HexdumpWidth == nil || *c.HexdumpWidth <= 0 {
		return DefaultHexdumpWidth
	}
	return *c.HexdumpWidth
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	if _, err := os.Stat(fullConfigFile); os.IsNotExist(err) {
		f, err := createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
		f.Close()
	}

	c, err := LoadConfigFile(fullConfigFile)
	if err != nil {
		fmt.Printf("%v.", err)
		return &Config{}
	}
	return c
}

// LoadConfigFile reads and decodes the configuration file at path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unable to decode config file: %v", err)
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	return f, nil
}

func writeDefaultConfig(f io.Writer) error {
	_, err := io.WriteString(f,
		`# Configuration file for elfscope.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Instruction classes highlighted by hexdump when --mask is not given.
# Valid names: call, lcall, jmp, ljmp, breakpoint, fstart, fend, header.
# highlight: ["call", "jmp", "fstart", "fend", "header"]

# ANSI foreground color for each highlighted class.
# highlight-colors:
#   call: 32
#   jmp: 33

# Maximum number of highlight results cached per file.
# cache-size: 65536

# Set to false to show raw symbol names.
# demangle: true

# Number of bytes on each hexdump row.
# hexdump-width: 16

# Uncomment the following line to change the syntax used by disassemble ("intel", "gnu" or "go").
# disassemble-flavor: intel
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
