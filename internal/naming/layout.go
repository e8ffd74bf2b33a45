package naming

import (
	"os"
	"path/filepath"
	"strings"

	"lg/internal/config"
	"lg/internal/sink"
)

// Stream suffixes used when stdout and stderr are written to separate files.
const (
	OutSuffix = ".out.log"
	ErrSuffix = ".err.log"

	tempSuffix = ".partial"
)

// Target is one log file of a run.
type Target struct {
	// Suffix is empty in combined mode, OutSuffix or ErrSuffix in split mode.
	Suffix string
	// Path is where the sink is opened. It is a hidden temporary name when
	// the final name depends on the exit code.
	Path string
}

// Layout describes where a run writes its logs and how they are named once
// the exit code is known.
type Layout struct {
	Dir         string
	NeedsRename bool
	Targets     []Target

	template string
	opts     RenderOptions
	compress config.Compression
}

// Plan computes the log file layout for cfg. It does not touch the disk.
func Plan(cfg config.Config, rc RenderContext) Layout {
	l := Layout{
		Dir:         outputDir(cfg.OutputDir, rc.Cwd),
		NeedsRename: HasExitCode(cfg.FilenameTemplate),
		template:    cfg.FilenameTemplate,
		opts: RenderOptions{
			Sanitize:    cfg.SanitizeFilename,
			IncludeArgs: cfg.IncludeArgsInName,
		},
		compress: cfg.Compress,
	}

	suffixes := []string{""}
	if cfg.SplitStreams {
		suffixes = []string{OutSuffix, ErrSuffix}
	}
	for _, suffix := range suffixes {
		name := l.fileName(rc, suffix)
		if l.NeedsRename {
			name = "." + name + tempSuffix
		}
		l.Targets = append(l.Targets, Target{
			Suffix: suffix,
			Path:   filepath.Join(l.Dir, name),
		})
	}
	return l
}

// FinalPath returns the permanent path of t for a context that carries the
// exit code. Without a rename it is t.Path.
func (l Layout) FinalPath(t Target, rc RenderContext) string {
	if !l.NeedsRename {
		return t.Path
	}
	return filepath.Join(l.Dir, l.fileName(rc, t.Suffix))
}

func (l Layout) fileName(rc RenderContext, suffix string) string {
	name := Render(l.template, rc, l.opts)
	if name == "" {
		name = rc.Cmd
		if l.opts.Sanitize {
			name = SanitizeComponent(name)
		}
	}
	if name == "" {
		name = "lg"
	}

	if suffix == "" {
		if filepath.Ext(name) == "" {
			name += ".log"
		}
	} else {
		name = strings.TrimSuffix(name, ".log") + suffix
	}
	if ext := sink.Suffix(l.compress); !strings.HasSuffix(name, ext) {
		name += ext
	}
	return name
}

func outputDir(dir, cwd string) string {
	if dir == "" {
		return cwd
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}
