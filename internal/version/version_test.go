package version

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func stamped(settings ...debug.BuildSetting) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestResolve_LdflagsWin(t *testing.T) {
	t.Parallel()

	info := resolve("1.2.3", "abc", "2026-01-01T00:00:00Z", stamped(
		debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		debug.BuildSetting{Key: "vcs.time", Value: "2025-01-01T00:00:00Z"},
	))

	require.Equal(t, Info{
		Version:   "1.2.3",
		Commit:    "abc",
		BuildTime: "2026-01-01T00:00:00Z",
		GoVersion: runtime.Version(),
	}, info)
}

func TestResolve_VCSStamp(t *testing.T) {
	t.Parallel()

	info := resolve("1.2.3", "", "", stamped(
		debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		debug.BuildSetting{Key: "vcs.time", Value: "2025-01-01T00:00:00Z"},
		debug.BuildSetting{Key: "vcs.modified", Value: "true"},
	))

	require.Equal(t, "0123456789abcdef0123", info.Commit)
	require.Equal(t, "0123456789ab", info.ShortCommit())
	require.Equal(t, "2025-01-01T00:00:00Z", info.BuildTime)
	require.True(t, info.Modified)
}

func TestResolve_NoBuildInfo(t *testing.T) {
	t.Parallel()

	info := resolve("1.2.3", "", "", func() (*debug.BuildInfo, bool) { return nil, false })
	require.Equal(t, "none", info.Commit)
	require.Equal(t, "unknown", info.BuildTime)
}

func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, Version, Short())
	require.Contains(t, Full(), Short())
	require.Contains(t, Full(), runtime.Version())
	require.Contains(t, UserAgent("bundle-runtime"), "bundle-runtime/"+Short())
}

func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	run := func(args ...string) string {
		root := &cobra.Command{Use: "asset-list"}
		AttachCobraVersionCommand(root)

		var out bytes.Buffer

		root.SetOut(&out)
		root.SetArgs(args)
		require.NoError(t, root.Execute())

		return out.String()
	}

	require.Equal(t, "asset-list "+Full()+"\n", run("version"))
	require.Equal(t, Short()+"\n", run("version", "--short"))
}
