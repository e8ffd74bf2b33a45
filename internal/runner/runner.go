// Package runner runs one child process and records its output.
//
// Run opens the log sinks and writes their headers, starts the child with
// the wrapper's stdin and piped stdout/stderr, drains both pipes through
// package capture, waits for the child, appends the exit code and finally
// renames the logs when their names depend on that exit code.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lg/internal/capture"
	"lg/internal/config"
	"lg/internal/finalize"
	"lg/internal/logline"
	"lg/internal/naming"
	"lg/internal/sink"
)

// FallbackExitCode is reported when the child was killed by a signal or its
// status could not be read.
const FallbackExitCode = 1

var ErrNoCommand = errors.New("no command given")

// openSink is replaced in tests.
var openSink = sink.Open

// Options describe a single run.
type Options struct {
	Config  config.Config
	Command string
	Args    []string

	// Tee mirrors output lines to Stdout/Stderr.
	Tee    bool
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Env is recorded in the header when Config.LogEnv is set. Nil means
	// os.Environ().
	Env []string

	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of a finished run.
type Result struct {
	ExitCode int
	// Signal is the name of the signal that terminated the child, if any.
	Signal string
	// Paths holds where each log ended up: the final name, or the temporary
	// one if the rename failed.
	Paths []string
}

// Run executes the command described by opts. A returned error means the
// log could not be produced; the child's own failure is not an error and is
// reported through Result.ExitCode.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Command == "" {
		return nil, ErrNoCommand
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	rc := naming.NewRenderContext(ctx, opts.Command, opts.Args, cfg.IncludeFullArgs, cfg.DateFormat, cfg.TimeFormat, now())
	layout := naming.Plan(cfg, rc)

	if err := os.MkdirAll(layout.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", layout.Dir, err)
	}

	sinks, err := openSinks(layout, cfg.Compress)
	if err != nil {
		return nil, err
	}

	header := logline.Header{
		Cmd:      rc.Cmd,
		Args:     rc.Args,
		Date:     rc.Date,
		Time:     rc.Time,
		Cwd:      rc.Cwd,
		Hostname: rc.Hostname,
	}
	if cfg.LogEnv {
		header.Env = opts.Env
		if header.Env == nil {
			header.Env = os.Environ()
		}
	}
	for _, s := range sinks {
		if err := logline.WriteHeader(s, header); err != nil {
			discardSinks(sinks)
			return nil, fmt.Errorf("failed to write header to %s: %w", s.Path(), err)
		}
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Stdin = opts.Stdin

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		discardSinks(sinks)
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		discardSinks(sinks)
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	// A terminal interrupt reaches the child through the process group. lg
	// keeps draining until the child is gone so the log gets its trailer.
	stopSignals := ignoreInterrupts(logger)
	defer stopSignals()

	if err := cmd.Start(); err != nil {
		discardSinks(sinks)
		return nil, fmt.Errorf("failed to start command: %w", err)
	}
	logger.Debug("Started command", "cmd", opts.Command, "pid", cmd.Process.Pid, "logs", len(sinks))

	// Combined mode routes both streams to sinks[0].
	route := func(s capture.Stream) *sink.Sink {
		if s == capture.Stderr && len(sinks) > 1 {
			return sinks[1]
		}
		return sinks[0]
	}
	lineOpts := logline.Options{
		TimestampEachLine: cfg.TimestampEachLine,
		Plain:             cfg.PlainLines,
	}
	terminal := capture.Terminal{Stdout: opts.Stdout, Stderr: opts.Stderr}
	tee := opts.Tee

	dispatch := func(line capture.Line) error {
		if tee {
			if err := terminal.Mirror(line); err != nil {
				logger.Warn("Failed to mirror output to terminal, mirroring disabled", "error", err)
				tee = false
			}
		}
		s := route(line.Stream)
		if _, err := s.WriteString(logline.Format(string(line.Stream), line.Text, lineOpts, now())); err != nil {
			return fmt.Errorf("failed to write to %s: %w", s.Path(), err)
		}
		return nil
	}

	// Wait must not run before both pipes are drained: it closes them.
	if err := capture.Interleave(stdoutPipe, stderrPipe, dispatch); err != nil {
		// The child is left running; reap it in the background.
		go func() {
			_ = cmd.Wait()
		}()
		return nil, errors.Join(err, closeSinks(sinks))
	}

	waitErr := cmd.Wait()
	stopSignals()
	exitCode, sig := exitStatus(waitErr)
	logger.Debug("Command finished", "cmd", opts.Command, "exit_code", exitCode, "signal", sig)

	for _, s := range sinks {
		if err := logline.WriteTrailer(s, exitCode); err != nil {
			_ = closeSinks(sinks)
			return nil, fmt.Errorf("failed to write exit code to %s: %w", s.Path(), err)
		}
	}
	if err := closeSinks(sinks); err != nil {
		return nil, err
	}

	final := rc.WithExitCode(exitCode)
	result := &Result{ExitCode: exitCode, Signal: sig}
	for _, target := range layout.Targets {
		result.Paths = append(result.Paths, finalize.Finalize(target.Path, layout.FinalPath(target, final), logger))
	}
	return result, nil
}

// ignoreInterrupts stops SIGINT and SIGQUIT from terminating lg until the
// returned function is called. The returned function may be called more
// than once.
func ignoreInterrupts(logger *slog.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				logger.Debug("Received signal, waiting for command to exit", "signal", sig)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

// exitStatus extracts the exit code and, for signal deaths, the signal name
// from the error returned by cmd.Wait.
func exitStatus(waitErr error) (int, string) {
	if waitErr == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return FallbackExitCode, ""
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return FallbackExitCode, status.Signal().String()
	}
	if code := exitErr.ExitCode(); code >= 0 {
		return code, ""
	}
	return FallbackExitCode, ""
}

func openSinks(layout naming.Layout, c config.Compression) ([]*sink.Sink, error) {
	sinks := make([]*sink.Sink, 0, len(layout.Targets))
	for _, target := range layout.Targets {
		s, err := openSink(target.Path, c)
		if err != nil {
			discardSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func closeSinks(sinks []*sink.Sink) error {
	var errs []error
	for _, s := range sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// discardSinks closes and removes logs of a run that never started.
func discardSinks(sinks []*sink.Sink) {
	for _, s := range sinks {
		_ = s.Close()
		_ = os.Remove(s.Path())
	}
}
