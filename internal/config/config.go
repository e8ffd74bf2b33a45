package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFilenameTemplate = "{cmd}_{date}_{time}.log"
	DefaultDateFormat       = "2006-01-02"
	DefaultTimeFormat       = "15-04-05"

	// FileName is the name of the config file inside the home directory.
	FileName = ".lg.yaml"
)

// Compression selects the sink variant.
type Compression string

const (
	CompressNone Compression = "none"
	CompressGzip Compression = "gz"
)

// ParseCompression maps a user supplied value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressNone, nil
	case "gz", "gzip":
		return CompressGzip, nil
	}
	return CompressNone, fmt.Errorf("unknown compression %q (want none or gz)", s)
}

// UnmarshalYAML accepts the same spellings as ParseCompression.
func (c *Compression) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseCompression(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TeeMode controls mirroring of child output to the terminal.
type TeeMode string

const (
	TeeAlways TeeMode = "always"
	TeeNever  TeeMode = "never"
	// TeeAuto mirrors only when the wrapper's own stdout is a terminal.
	TeeAuto TeeMode = "auto"
)

// ParseTeeMode maps a user supplied value to a TeeMode. YAML booleans are
// accepted too, so "tee: false" keeps working.
func ParseTeeMode(s string) (TeeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "always", "true", "yes", "on":
		return TeeAlways, nil
	case "never", "false", "no", "off":
		return TeeNever, nil
	case "auto":
		return TeeAuto, nil
	}
	return TeeAlways, fmt.Errorf("unknown tee mode %q (want always, never or auto)", s)
}

func (m *TeeMode) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseTeeMode(node.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Config is the fully resolved policy for one run. It is not mutated once
// the run has started.
type Config struct {
	OutputDir         string      `yaml:"output_dir"`
	FilenameTemplate  string      `yaml:"filename_template"`
	DateFormat        string      `yaml:"date_format"`
	TimeFormat        string      `yaml:"time_format"`
	IncludeArgsInName bool        `yaml:"include_args_in_name"`
	IncludeFullArgs   bool        `yaml:"include_full_args"`
	SanitizeFilename  bool        `yaml:"sanitize_filename"`
	TimestampEachLine bool        `yaml:"timestamp_each_line"`
	PlainLines        bool        `yaml:"plain_lines"`
	SplitStreams      bool        `yaml:"split_streams"`
	Tee               TeeMode     `yaml:"tee"`
	LogEnv            bool        `yaml:"log_env"`
	Compress          Compression `yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FilenameTemplate:  DefaultFilenameTemplate,
		DateFormat:        DefaultDateFormat,
		TimeFormat:        DefaultTimeFormat,
		IncludeFullArgs:   true,
		SanitizeFilename:  true,
		TimestampEachLine: true,
		Tee:               TeeAlways,
		Compress:          CompressNone,
	}
}

// Validate reports settings the run cannot work with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.FilenameTemplate) == "" {
		return errors.New("filename_template must not be empty")
	}
	if c.Compress != CompressNone && c.Compress != CompressGzip {
		return fmt.Errorf("unknown compression %q", c.Compress)
	}
	switch c.Tee {
	case TeeAlways, TeeNever, TeeAuto:
	default:
		return fmt.Errorf("unknown tee mode %q", c.Tee)
	}
	return nil
}

// ResolveTee tells whether output is mirrored, given whether the wrapper's
// stdout is attached to a terminal.
func (c Config) ResolveTee(isTerminal bool) bool {
	switch c.Tee {
	case TeeNever:
		return false
	case TeeAuto:
		return isTerminal
	default:
		return true
	}
}

// DefaultPath returns ~/.lg.yaml, or "" if the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, FileName)
}

// Load reads the YAML config file at path on top of the defaults. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// EnsureFile writes the commented example config to path unless a file
// already exists there.
func EnsureFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(ExampleFile), 0o644); err != nil {
		return fmt.Errorf("failed to create default config at %s: %w", path, err)
	}
	return nil
}

// ExampleFile is written on first use. Every key is commented out so the
// built-in defaults stay in effect until the user edits it.
const ExampleFile = `# lg configuration
#
# Directory for log files (default: current directory)
# output_dir: ~/logs
#
# Placeholders: {cmd} {args} {date} {time} {ts} {hostname} {cwd} {exit_code}
# filename_template: "{cmd}_{date}_{time}.log"
#
# Go time layouts
# date_format: "2006-01-02"
# time_format: "15-04-05"
#
# include_args_in_name: false
# include_full_args: true
# sanitize_filename: true
# timestamp_each_line: true
# plain_lines: false
# split_streams: false
#
# always | never | auto (only when stdout is a terminal)
# tee: always
# log_env: false
#
# none | gz
# compress: none
`
