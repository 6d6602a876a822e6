package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".wtree"
	configFile string = "config.yml"
)

const (
	// DefaultMaxStringLen is the number of characters the internal string
	// dumpers decode before truncating with an ellipsis.
	DefaultMaxStringLen = 40
	// DefaultNameDelimiter separates the segments of an iname.
	DefaultNameDelimiter = "."
	// DefaultRootPrefix is the iname of the root of the locals tree.
	DefaultRootPrefix = "local"
	// DefaultMemoryCachePages is the number of target memory pages kept by
	// the read cache.
	DefaultMemoryCachePages = 64
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// MaxStringLen is the maximum number of characters the internal
	// string dumpers decode from target memory.
	MaxStringLen *int `yaml:"max-string-len,omitempty"`

	// NameDelimiter separates the segments of an iname ("local.a.b").
	NameDelimiter string `yaml:"name-delimiter,omitempty"`

	// RootPrefix is the iname of the root of the locals tree.
	RootPrefix string `yaml:"root-prefix,omitempty"`

	// MemoryCachePages is the number of pages of target memory cached
	// between reads, zero disables the cache.
	MemoryCachePages *int `yaml:"memory-cache-pages,omitempty"`

	// If ShowAddresses is true the terminal prints the address of every
	// variable next to its value.
	ShowAddresses bool `yaml:"show-addresses"`
}

// GetMaxStringLen returns the configured maximum string length or the default.
func (c *Config) GetMaxStringLen() int {
	if c == nil || c.MaxStringLen == nil {
		return DefaultMaxStringLen
	}
	return *c.MaxStringLen
}

// GetNameDelimiter returns the configured iname delimiter or the default.
func (c *Config) GetNameDelimiter() string {
	if c == nil || c.NameDelimiter == "" {
		return DefaultNameDelimiter
	}
	return c.NameDelimiter
}

// GetRootPrefix returns the configured root prefix or the default.
func (c *Config) GetRootPrefix() string {
	if c == nil || c.RootPrefix == "" {
		return DefaultRootPrefix
	}
	return c.RootPrefix
}

// GetMemoryCachePages returns the configured memory cache size or the default.
func (c *Config) GetMemoryCachePages() int {
	if c == nil || c.MemoryCachePages == nil {
		return DefaultMemoryCachePages
	}
	return *c.MemoryCachePages
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

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	c, err := readConfig(f.Name())
	if err != nil {
		fmt.Printf("%v.", err)
		return &Config{}
	}
	return c
}

func readConfig(fullConfigFile string) (*Config, error) {
	data, err := ioutil.ReadFile(fullConfigFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
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
	return writeConfig(conf, fullConfigFile)
}

func writeConfig(conf *Config, fullConfigFile string) error {
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

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the wtree symbol tree inspector.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Maximum number of characters decoded by the internal string dumpers.
# max-string-len: 40

# Separator between the segments of an iname.
# name-delimiter: "."

# Iname of the root of the locals tree.
# root-prefix: local

# Number of 4KiB pages of target memory kept in the read cache (0 disables it).
# memory-cache-pages: 64

# Uncomment the following line to print variable addresses in the terminal.
# show-addresses: true
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
	if dir := os.Getenv("WTREE_CONFIG_DIR"); dir != "" {
		return path.Join(dir, file), nil
	}
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
