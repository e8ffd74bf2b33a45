package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"lg/internal/config"
	"lg/internal/runner"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// exitFailure is returned when lg itself fails (bad flags, unwritable log,
// command not found), so it cannot be confused with most child exit codes.
const exitFailure = 125

var (
	configPath       string
	outputDir        string
	filenameTemplate string
	includeArgs      bool
	splitStreams     bool
	plainLines       bool
	compress         string
	noTee            bool
	teeMode          string
	logEnv           bool
	noTimestamps     bool
	verbose          bool

	// childExitCode is set by rootCmd and becomes lg's own exit status.
	childExitCode int
)

var rootCmd = &cobra.Command{
	Use:   "lg [flags] command [args...]",
	Short: "Log any command's output and metadata",
	Long: `lg runs a command, mirrors its output to the terminal and writes every
stdout and stderr line, tagged with its stream, to a log file.

Settings are read from ~/.lg.yaml (created on first use) and can be
overridden with flags. Flags after the command name are passed to the
command unchanged.

Filename placeholders: {cmd} {args} {date} {time} {ts} {hostname} {cwd} {exit_code}

lg exits with the exit code of the command.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(verbose)
		slog.SetDefault(logger)

		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}

		result, err := runner.Run(context.Background(), runner.Options{
			Config:  cfg,
			Command: args[0],
			Args:    args[1:],
			Tee:     cfg.ResolveTee(term.IsTerminal(int(os.Stdout.Fd()))),
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		for _, p := range result.Paths {
			logger.Debug("Log written", "path", p)
		}
		childExitCode = result.ExitCode
		return nil
	},
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
		if err := config.EnsureFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "lg: %v\n", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("output") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("filename-template") {
		cfg.FilenameTemplate = filenameTemplate
	}
	if includeArgs {
		cfg.IncludeArgsInName = true
	}
	if splitStreams {
		cfg.SplitStreams = true
	}
	if plainLines {
		cfg.PlainLines = true
	}
	if noTimestamps {
		cfg.TimestampEachLine = false
	}
	if logEnv {
		cfg.LogEnv = true
	}
	if flags.Changed("compress") {
		c, err := config.ParseCompression(compress)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lg: %v, using none\n", err)
		}
		cfg.Compress = c
	}
	if flags.Changed("tee-mode") {
		mode, err := config.ParseTeeMode(teeMode)
		if err != nil {
			return cfg, err
		}
		cfg.Tee = mode
	}
	if noTee {
		cfg.Tee = config.TeeNever
	}

	return cfg, cfg.Validate()
}

func registerFlags(flags *pflag.FlagSet) {
	// Everything after the command name belongs to the command.
	flags.SetInterspersed(false)

	flags.StringVar(&configPath, "config", "", "Config file (default: ~/.lg.yaml)")
	flags.StringVar(&outputDir, "output", "", "Override output directory")
	flags.StringVar(&filenameTemplate, "filename-template", "", "Override filename template")
	flags.BoolVarP(&includeArgs, "include-args", "a", false, "Include arguments in filename")
	flags.BoolVar(&splitStreams, "split-streams", false, "Split stdout/stderr into separate files")
	flags.BoolVar(&plainLines, "plain-lines", false, "Write logged lines without timestamps or stream markers")
	flags.BoolVar(&noTimestamps, "no-timestamps", false, "Do not prefix logged lines with a timestamp")
	flags.StringVar(&compress, "compress", "", "Compress logs: none|gz")
	flags.BoolVar(&noTee, "no-tee", false, "Disable tee to terminal")
	flags.StringVar(&teeMode, "tee-mode", "", "Tee to terminal: always|never|auto")
	flags.BoolVar(&logEnv, "log-env", false, "Record environment variables in the log header")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug information to stderr")
}

func init() {
	registerFlags(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lg:", err)
		os.Exit(exitFailure)
	}
	os.Exit(childExitCode)
}
