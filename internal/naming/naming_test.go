package naming

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lg/internal/config"

	"github.com/stretchr/testify/require"
)

func testContext() RenderContext {
	return RenderContext{
		Cmd:       "echo",
		Args:      "hello --flag world",
		Date:      "2025-01-07",
		Time:      "12-34-56",
		Timestamp: 1736253296,
		Hostname:  "build.example.com",
		Cwd:       "/home/user/project",
	}
}

func TestRender_AllPlaceholders(t *testing.T) {
	rc := testContext()
	got := Render("{cmd}_{args}_{date}_{time}_{ts}_{hostname}_{exit_code}", rc, RenderOptions{Sanitize: true, IncludeArgs: true})
	require.Equal(t, "echo_hello_--flag_world_2025-01-07_12-34-56_1736253296_build.example.com_NA", got)
}

func TestRender_ExitCode(t *testing.T) {
	rc := testContext().WithExitCode(37)
	require.Equal(t, "echo_37.log", Render("{cmd}_{exit_code}.log", rc, RenderOptions{}))
}

func TestRender_ArgsOmittedUnlessIncluded(t *testing.T) {
	rc := testContext()
	require.Equal(t, "echo_2025-01-07", Render("{cmd}_{args}_{date}", rc, RenderOptions{Sanitize: true}))
}

func TestRender_UnknownPlaceholderKept(t *testing.T) {
	rc := testContext()
	require.Equal(t, "{user}-echo", Render("{user}-{cmd}", rc, RenderOptions{}))
	require.Equal(t, "echo-{", Render("{cmd}-{", rc, RenderOptions{}))
}

func TestRender_SubstitutedValueIsNotRescanned(t *testing.T) {
	rc := testContext()
	rc.Cmd = "{date}"
	require.Equal(t, "{date}-2025-01-07", Render("{cmd}-{date}", rc, RenderOptions{}))
}

func TestRender_CwdSanitizedPerField(t *testing.T) {
	rc := testContext()
	require.Equal(t, "home_user_project.log", Render("{cwd}.log", rc, RenderOptions{Sanitize: true}))
	require.Equal(t, "/home/user/project.log", Render("{cwd}.log", rc, RenderOptions{}))
}

func TestRender_Collapse(t *testing.T) {
	rc := testContext()
	// Repeated separators in the template are collapsed as well.
	require.Equal(t, "echo_x.log", Render("__{cmd}___x..log_", rc, RenderOptions{}))
}

func TestSanitizeComponent(t *testing.T) {
	tests := map[string]string{
		"ls":              "ls",
		"my command!":     "my_command",
		"a//b":            "a_b",
		"__x__":           "x",
		"ünïcode":         "n_code",
		"v1.2.3-rc_1":     "v1.2.3-rc_1",
		"":                "",
		"/usr/bin/python": "usr_bin_python",
	}
	for in, want := range tests {
		require.Equal(t, want, SanitizeComponent(in), in)
	}
}

func TestJoinArgs(t *testing.T) {
	args := []string{"-v", "build", "--tags", "x", "./..."}
	require.Equal(t, "-v build --tags x ./...", JoinArgs(args, true))
	require.Equal(t, "build x ./...", JoinArgs(args, false))
	require.Equal(t, "", JoinArgs(nil, true))
}

func TestNewRenderContext(t *testing.T) {
	now := time.Date(2025, 1, 7, 12, 34, 56, 0, time.Local)
	rc := NewRenderContext(context.Background(), "make", []string{"-j4", "all"}, false, config.DefaultDateFormat, config.DefaultTimeFormat, now)

	require.Equal(t, "make", rc.Cmd)
	require.Equal(t, "all", rc.Args)
	require.Equal(t, "2025-01-07", rc.Date)
	require.Equal(t, "12-34-56", rc.Time)
	require.Equal(t, now.Unix(), rc.Timestamp)
	require.NotEmpty(t, rc.Hostname)
	require.NotEmpty(t, rc.Cwd)
	require.Nil(t, rc.ExitCode)
}

func TestPlan_CombinedWithoutRename(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/logs"

	l := Plan(cfg, testContext())

	require.Equal(t, "/logs", l.Dir)
	require.False(t, l.NeedsRename)
	require.Len(t, l.Targets, 1)
	require.Equal(t, "/logs/echo_2025-01-07_12-34-56.log", l.Targets[0].Path)
	require.Equal(t, l.Targets[0].Path, l.FinalPath(l.Targets[0], testContext().WithExitCode(0)))
}

func TestPlan_DefaultsToCwd(t *testing.T) {
	l := Plan(config.Default(), testContext())
	require.Equal(t, "/home/user/project", l.Dir)
}

func TestPlan_AddsLogExtension(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/logs"
	cfg.FilenameTemplate = "{cmd}-{ts}"

	l := Plan(cfg, testContext())
	require.Equal(t, "/logs/echo-1736253296.log", l.Targets[0].Path)
}

func TestPlan_CombinedGzipWithExitCode(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/logs"
	cfg.FilenameTemplate = "{cmd}_{exit_code}.log"
	cfg.Compress = config.CompressGzip

	l := Plan(cfg, testContext())

	require.True(t, l.NeedsRename)
	require.Len(t, l.Targets, 1)
	require.Equal(t, "/logs/.echo_NA.log.gz.partial", l.Targets[0].Path)
	require.Equal(t, "/logs/echo_3.log.gz", l.FinalPath(l.Targets[0], testContext().WithExitCode(3)))
}

func TestPlan_Split(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/logs"
	cfg.SplitStreams = true
	cfg.FilenameTemplate = "{cmd}_{exit_code}.log"

	l := Plan(cfg, testContext())

	require.Len(t, l.Targets, 2)
	require.Equal(t, OutSuffix, l.Targets[0].Suffix)
	require.Equal(t, ErrSuffix, l.Targets[1].Suffix)
	require.Equal(t, "/logs/.echo_NA.out.log.partial", l.Targets[0].Path)
	require.Equal(t, "/logs/.echo_NA.err.log.partial", l.Targets[1].Path)

	rc := testContext().WithExitCode(0)
	require.Equal(t, "/logs/echo_0.out.log", l.FinalPath(l.Targets[0], rc))
	require.Equal(t, "/logs/echo_0.err.log", l.FinalPath(l.Targets[1], rc))
}

func TestPlan_SplitGzip(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/logs"
	cfg.SplitStreams = true
	cfg.Compress = config.CompressGzip

	l := Plan(cfg, testContext())

	require.Equal(t, "/logs/echo_2025-01-07_12-34-56.out.log.gz", l.Targets[0].Path)
	require.Equal(t, "/logs/echo_2025-01-07_12-34-56.err.log.gz", l.Targets[1].Path)
}

func TestPlan_HomeDirExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := config.Default()
	cfg.OutputDir = "~/logs"

	l := Plan(cfg, testContext())
	require.Equal(t, filepath.Join(home, "logs"), l.Dir)
}
