// Package sink provides the files log lines are written to.
//
// A Sink is either Plain or Gzip. Both are written by exactly one goroutine,
// so neither variant does any locking.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"

	"lg/internal/config"
)

// Kind tags the sink variant.
type Kind int

const (
	Plain Kind = iota
	Gzip
)

func (k Kind) String() string {
	if k == Gzip {
		return "gzip"
	}
	return "plain"
}

// KindFor selects the variant for a compression policy.
func KindFor(c config.Compression) Kind {
	if c == config.CompressGzip {
		return Gzip
	}
	return Plain
}

// Suffix returns the file name suffix for a compression policy.
func Suffix(c config.Compression) string {
	if c == config.CompressGzip {
		return ".gz"
	}
	return ""
}

// Sink is an append-only log file.
type Sink struct {
	kind   Kind
	path   string
	file   io.WriteCloser
	buf    *bufio.Writer
	gz     *gzip.Writer
	closed bool
}

// Open creates the file at path. It fails if the file already exists.
func Open(path string, c config.Compression) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("log file %s already exists: %w", path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}
	return New(path, c, f), nil
}

// New returns a sink writing to w. path is only reported back by Path and in
// errors. Close closes w.
func New(path string, c config.Compression, w io.WriteCloser) *Sink {
	s := &Sink{
		kind: KindFor(c),
		path: path,
		file: w,
	}
	switch s.kind {
	case Gzip:
		s.gz = gzip.NewWriter(w)
	default:
		s.buf = bufio.NewWriter(w)
	}
	return s
}

// Path returns the path the sink is currently writing to.
func (s *Sink) Path() string {
	return s.path
}

// Kind returns the sink variant.
func (s *Sink) Kind() Kind {
	return s.kind
}

func (s *Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	if s.kind == Gzip {
		return s.gz.Write(p)
	}
	return s.buf.Write(p)
}

func (s *Sink) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Close flushes buffered data, finishes the gzip stream when compressing,
// and closes the file. The file is not complete before Close returns
// without error. Calling Close more than once is a no-op.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var flushErr error
	if s.kind == Gzip {
		flushErr = s.gz.Close()
	} else {
		flushErr = s.buf.Flush()
	}
	if flushErr != nil {
		flushErr = fmt.Errorf("failed to flush log file %s: %w", s.path, flushErr)
	}

	var closeErr error
	if err := s.file.Close(); err != nil {
		closeErr = fmt.Errorf("failed to close log file %s: %w", s.path, err)
	}
	return errors.Join(flushErr, closeErr)
}
