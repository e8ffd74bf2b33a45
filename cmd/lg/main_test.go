package main

import (
	"os"
	"path/filepath"
	"testing"

	"lg/internal/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// parseFlags registers lg's flags on a fresh flag set, which also resets
// the bound variables to their defaults.
func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("lg", pflag.ContinueOnError)
	registerFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "output_dir: /from/file\ncompress: gz\nsplit_streams: false\n")
	flags := parseFlags(t,
		"--config", path,
		"--output", "/from/flag",
		"--split-streams",
		"--plain-lines",
		"--no-tee",
		"-a",
		"make", "--jobs", "4",
	)

	cfg, err := loadConfig(flags)
	require.NoError(t, err)

	require.Equal(t, "/from/flag", cfg.OutputDir)
	require.True(t, cfg.SplitStreams)
	require.True(t, cfg.PlainLines)
	require.True(t, cfg.IncludeArgsInName)
	require.Equal(t, config.TeeNever, cfg.Tee)
	require.Equal(t, config.CompressGzip, cfg.Compress)

	// Flags after the command belong to the command.
	require.Equal(t, []string{"make", "--jobs", "4"}, flags.Args())
}

func TestLoadConfig_UnknownCompressionFallsBackToNone(t *testing.T) {
	path := writeConfig(t, "compress: gz\n")
	flags := parseFlags(t, "--config", path, "--compress", "zip", "true")

	cfg, err := loadConfig(flags)
	require.NoError(t, err)
	require.Equal(t, config.CompressNone, cfg.Compress)
}

func TestLoadConfig_TeeMode(t *testing.T) {
	path := writeConfig(t, "")
	flags := parseFlags(t, "--config", path, "--tee-mode", "auto", "true")

	cfg, err := loadConfig(flags)
	require.NoError(t, err)
	require.Equal(t, config.TeeAuto, cfg.Tee)

	flags = parseFlags(t, "--config", path, "--tee-mode", "bogus", "true")
	_, err = loadConfig(flags)
	require.Error(t, err)
}

func TestLoadConfig_NoTimestampsAndTemplate(t *testing.T) {
	path := writeConfig(t, "")
	flags := parseFlags(t, "--config", path, "--no-timestamps", "--filename-template", "{cmd}_{exit_code}", "true")

	cfg, err := loadConfig(flags)
	require.NoError(t, err)
	require.False(t, cfg.TimestampEachLine)
	require.Equal(t, "{cmd}_{exit_code}", cfg.FilenameTemplate)
}

func TestLoadConfig_CreatesDefaultFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	flags := parseFlags(t, "true")

	cfg, err := loadConfig(flags)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
	require.FileExists(t, filepath.Join(home, config.FileName))
}
