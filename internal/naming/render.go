package naming

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// RenderContext carries the values placeholders are substituted with. It is
// resolved once per run; ExitCode stays nil until the child has exited.
type RenderContext struct {
	Cmd       string
	Args      string
	Date      string
	Time      string
	Timestamp int64
	Hostname  string
	Cwd       string
	ExitCode  *int
}

// WithExitCode returns a copy of rc with the exit code set.
func (rc RenderContext) WithExitCode(code int) RenderContext {
	rc.ExitCode = &code
	return rc
}

// RenderOptions controls how fields are placed into a file name.
type RenderOptions struct {
	Sanitize    bool
	IncludeArgs bool
}

// NewRenderContext resolves everything a run needs to name and describe its
// log files. The hostname and working directory are looked up here and
// nowhere else.
func NewRenderContext(ctx context.Context, cmd string, args []string, includeFullArgs bool, dateFormat, timeFormat string, now time.Time) RenderContext {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return RenderContext{
		Cmd:       cmd,
		Args:      JoinArgs(args, includeFullArgs),
		Date:      now.Format(dateFormat),
		Time:      now.Format(timeFormat),
		Timestamp: now.Unix(),
		Hostname:  LookupHostname(ctx),
		Cwd:       cwd,
	}
}

// LookupHostname returns the host name, or "unknown" if it cannot be found.
func LookupHostname(ctx context.Context) string {
	// gopsutil returns partial info together with a warnings error, so the
	// error alone does not mean the hostname is missing.
	if info, _ := host.InfoWithContext(ctx); info != nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "unknown"
}

// JoinArgs joins the child arguments with spaces. Without includeFull,
// arguments that look like flags are left out.
func JoinArgs(args []string, includeFull bool) string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if !includeFull && strings.HasPrefix(a, "-") {
			continue
		}
		out = append(out, a)
	}
	return strings.Join(out, " ")
}

// SanitizeComponent keeps ASCII letters, digits, '-', '_' and '.', replaces
// everything else with '_', collapses runs of '_' and trims them from both
// ends.
func SanitizeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if !isSafe(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "_")
}

func isSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	}
	return false
}

// Render substitutes the known placeholders of template in a single left to
// right pass. Unknown "{...}" sequences are copied as they are.
//
// The result is then collapsed: ".." becomes ".", runs of "_" become one, and
// leading or trailing "_" and "." are trimmed. This also collapses separators
// the template author repeated on purpose.
func Render(template string, rc RenderContext, opts RenderOptions) string {
	var b strings.Builder
	for i := 0; i < len(template); {
		if template[i] == '{' {
			if end := strings.IndexByte(template[i:], '}'); end > 0 {
				if value, ok := placeholder(template[i+1:i+end], rc, opts); ok {
					b.WriteString(value)
					i += end + 1
					continue
				}
			}
		}
		b.WriteByte(template[i])
		i++
	}
	return collapse(b.String())
}

// HasExitCode reports whether names rendered from template depend on the
// exit code.
func HasExitCode(template string) bool {
	return strings.Contains(template, "{exit_code}")
}

func placeholder(name string, rc RenderContext, opts RenderOptions) (string, bool) {
	field := func(s string) string {
		if opts.Sanitize {
			return SanitizeComponent(s)
		}
		return s
	}

	switch name {
	case "cmd":
		return field(rc.Cmd), true
	case "args":
		if !opts.IncludeArgs {
			return "", true
		}
		return field(rc.Args), true
	case "date":
		return rc.Date, true
	case "time":
		return rc.Time, true
	case "ts":
		return strconv.FormatInt(rc.Timestamp, 10), true
	case "hostname":
		return field(rc.Hostname), true
	case "cwd":
		return field(rc.Cwd), true
	case "exit_code":
		if rc.ExitCode == nil {
			return "NA", true
		}
		return strconv.Itoa(*rc.ExitCode), true
	}
	return "", false
}

func collapse(s string) string {
	s = strings.ReplaceAll(s, "..", ".")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_.")
}
