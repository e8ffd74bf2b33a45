// Package logline renders the text that ends up in a log file: the header
// block, one line per captured output line, and the exit code trailer.
package logline

import (
	"fmt"
	"io"
	"time"
)

// LineTimeFormat is the per-line timestamp layout (local time, milliseconds).
const LineTimeFormat = "15:04:05.000"

const (
	headerMarker = "# lg log"
	beginOutput  = "----- BEGIN OUTPUT -----"
)

// Options is the formatting policy for output lines.
type Options struct {
	TimestampEachLine bool
	Plain             bool
}

// Format returns the newline terminated log line for text read from stream
// ("STDOUT" or "STDERR").
func Format(stream, text string, opts Options, now time.Time) string {
	switch {
	case opts.Plain:
		return text + "\n"
	case opts.TimestampEachLine:
		return "[" + now.Format(LineTimeFormat) + "][" + stream + "] " + text + "\n"
	default:
		return "[" + stream + "] " + text + "\n"
	}
}

// Header is the preamble written once at the top of every log file.
type Header struct {
	Cmd      string
	Args     string
	Date     string
	Time     string
	Cwd      string
	Hostname string
	// Env is written as env[NAME]=VALUE lines in the given order. Nil
	// leaves the environment out.
	Env []string
}

// WriteHeader writes h to w, ending with the begin-output delimiter.
func WriteHeader(w io.Writer, h Header) error {
	if _, err := fmt.Fprintf(w, "%s\ncmd: %s\n", headerMarker, h.Cmd); err != nil {
		return err
	}
	if h.Args != "" {
		if _, err := fmt.Fprintf(w, "args: %s\n", h.Args); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "date: %s %s\ncwd: %s\nhost: %s\n", h.Date, h.Time, h.Cwd, h.Hostname); err != nil {
		return err
	}
	for _, kv := range h.Env {
		name, value := splitEnv(kv)
		if _, err := fmt.Fprintf(w, "env[%s]=%s\n", name, value); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, beginOutput)
	return err
}

// WriteTrailer writes the exit code line that closes every log file.
func WriteTrailer(w io.Writer, exitCode int) error {
	_, err := fmt.Fprintf(w, "\n[exit_code] %d\n", exitCode)
	return err
}

func splitEnv(kv string) (string, string) {
	// Windows keeps per-drive variables like "=C:=C:\" with a leading '='.
	for i := 1; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:]
		}
	}
	return kv, ""
}
