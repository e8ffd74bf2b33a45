// Package capture drains a child's stdout and stderr concurrently and hands
// every line, in arrival order, to a single consumer.
package capture

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Stream identifies where a line came from.
type Stream string

const (
	Stdout Stream = "STDOUT"
	Stderr Stream = "STDERR"
)

// Line is one line of child output without its line terminator.
type Line struct {
	Stream Stream
	Text   string
}

// readBufferSize bounds a single read, not the line length.
const readBufferSize = 64 * 1024

// lineBacklog is how many lines a reader may run ahead of the consumer.
const lineBacklog = 256

type result struct {
	line Line
	err  error
}

// Interleave reads stdout and stderr to EOF and calls dispatch for every
// line from the calling goroutine only. Lines of one stream keep their
// order; lines of different streams are dispatched in the order they were
// read. The first read error or dispatch error stops the loop and is
// returned.
func Interleave(stdout, stderr io.Reader, dispatch func(Line) error) error {
	done := make(chan struct{})
	defer close(done)

	outCh := readLines(stdout, Stdout, done)
	errCh := readLines(stderr, Stderr, done)

	// A drained stream's channel is set to nil so select stops waiting on it.
	for outCh != nil || errCh != nil {
		var (
			r  result
			ok bool
		)
		select {
		case r, ok = <-outCh:
			if !ok {
				outCh = nil
				continue
			}
		case r, ok = <-errCh:
			if !ok {
				errCh = nil
				continue
			}
		}

		if r.err != nil {
			return r.err
		}
		if err := dispatch(r.line); err != nil {
			return err
		}
	}
	return nil
}

// readLines starts a goroutine that sends the lines of r until EOF, then
// closes the returned channel. It gives up early once done is closed.
func readLines(r io.Reader, stream Stream, done <-chan struct{}) <-chan result {
	ch := make(chan result, lineBacklog)

	go func() {
		defer close(ch)

		send := func(res result) bool {
			select {
			case ch <- res:
				return true
			case <-done:
				return false
			}
		}

		reader := bufio.NewReaderSize(r, readBufferSize)
		for {
			raw, err := reader.ReadString('\n')
			// A final line without a newline still counts.
			if len(raw) > 0 {
				if !send(result{line: Line{Stream: stream, Text: decode(raw)}}) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				send(result{err: fmt.Errorf("failed to read %s: %w", strings.ToLower(string(stream)), err)})
				return
			}
		}
	}()

	return ch
}

// decode strips the line terminator and replaces invalid UTF-8. A "\r" is
// only part of the terminator when it precedes "\n".
func decode(raw string) string {
	if line, ok := strings.CutSuffix(raw, "\n"); ok {
		raw = strings.TrimSuffix(line, "\r")
	}
	return strings.ToValidUTF8(raw, "�")
}

// Terminal mirrors lines to the wrapper's own stdout and stderr.
type Terminal struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Mirror writes the raw line text to the writer matching its stream.
func (t Terminal) Mirror(line Line) error {
	w := t.Stdout
	if line.Stream == Stderr {
		w = t.Stderr
	}
	if w == nil {
		return nil
	}
	_, err := io.WriteString(w, line.Text+"\n")
	return err
}
