package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/runtime-bundler/internal/domain/bundle"
	"github.com/oshokin/runtime-bundler/internal/failure"
)

// recorder is a CommandRunner that remembers every argv and writes the given files on the first call.
type recorder struct {
	dir   string
	files []string
	calls [][]string
	fail  error
}

func (r *recorder) run(_ context.Context, argv []string) error {
	r.calls = append(r.calls, argv)

	if r.fail != nil {
		return r.fail
	}

	if len(r.calls) == 1 {
		for _, file := range r.files {
			if err := os.WriteFile(filepath.Join(r.dir, file), []byte(file), 0o600); err != nil {
				return err
			}
		}
	}

	return nil
}

func digest(content string) string {
	sum := sha256.Sum256([]byte(content))

	return hex.EncodeToString(sum[:])
}

func TestRequirement(t *testing.T) {
	t.Parallel()

	require.Equal(t, "mechaphlowers==0.2.0", Requirement("mechaphlowers", "0.2.0"))
	require.Equal(t, "mechaphlowers", Requirement(" mechaphlowers ", ""))
	require.Empty(t, Requirement("", ""))
}

func TestBuild_ExpandsCommands(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := &recorder{dir: dir, files: []string{"mechaphlowers-0.2.0-py3-none-any.whl", "notes.txt"}}

	records, err := Build(context.Background(), &Options{
		BundleDir:      dir,
		Name:           "mechaphlowers",
		Version:        "0.2.0",
		ArtifactExt:    ".whl",
		FetchCommand:   []string{"pip", "wheel", "{requirement}", "-w", "{dir}"},
		CompileCommand: []string{"pyodide", "py-compile", "--compression-level", "6", "{dir}"},
		Run:            rec.run,
	})
	require.NoError(t, err)

	require.Equal(t, [][]string{
		{"pip", "wheel", "mechaphlowers==0.2.0", "-w", dir},
		{"pyodide", "py-compile", "--compression-level", "6", dir},
	}, rec.calls)

	require.Equal(t, []bundle.PackageRecord{{
		Name:     "mechaphlowers",
		FileName: "mechaphlowers-0.2.0-py3-none-any.whl",
		SHA256:   digest("mechaphlowers-0.2.0-py3-none-any.whl"),
		Source:   bundle.SourceLocal,
	}}, records)
}

func TestBuild_IndexURL(t *testing.T) {
	t.Parallel()

	t.Run("appended when not referenced", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		rec := &recorder{dir: dir, files: []string{"pkg-1.whl"}}

		_, err := Build(context.Background(), &Options{
			BundleDir:    dir,
			Name:         "pkg",
			IndexURL:     "https://test.pypi.org/simple/",
			ArtifactExt:  ".whl",
			FetchCommand: []string{"pip", "wheel", "{requirement}", "-w", "{dir}"},
			Run:          rec.run,
		})
		require.NoError(t, err)
		require.Len(t, rec.calls, 1)
		require.Equal(t,
			[]string{"pip", "wheel", "pkg", "-w", dir, "--index-url", "https://test.pypi.org/simple/"},
			rec.calls[0])
	})

	t.Run("placeholder dropped without index", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		rec := &recorder{dir: dir, files: []string{"pkg-1.whl"}}

		_, err := Build(context.Background(), &Options{
			BundleDir:    dir,
			Name:         "pkg",
			ArtifactExt:  ".whl",
			FetchCommand: []string{"fetch", "--index-url={index_url}", "{requirement}"},
			Run:          rec.run,
		})
		require.NoError(t, err)
		require.Equal(t, []string{"fetch", "pkg"}, rec.calls[0])
	})
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	t.Run("empty name", func(t *testing.T) {
		t.Parallel()

		_, err := Build(context.Background(), &Options{FetchCommand: []string{"pip"}})
		require.ErrorIs(t, err, failure.ErrConfiguration)
	})

	t.Run("empty fetch command", func(t *testing.T) {
		t.Parallel()

		_, err := Build(context.Background(), &Options{Name: "pkg"})
		require.ErrorIs(t, err, failure.ErrConfiguration)
	})

	t.Run("command failure stops the build", func(t *testing.T) {
		t.Parallel()

		boom := failure.Filesystem("run command", "pip", errors.New("exit status 1"))
		rec := &recorder{dir: t.TempDir(), fail: boom}

		_, err := Build(context.Background(), &Options{
			BundleDir:      rec.dir,
			Name:           "pkg",
			FetchCommand:   []string{"pip"},
			CompileCommand: []string{"pyodide"},
			Run:            rec.run,
		})
		require.ErrorIs(t, err, failure.ErrFilesystem)
		require.Len(t, rec.calls, 1)
	})

	t.Run("no artifact produced", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{dir: t.TempDir()}

		_, err := Build(context.Background(), &Options{
			BundleDir:    rec.dir,
			Name:         "pkg",
			ArtifactExt:  ".whl",
			FetchCommand: []string{"pip"},
			Run:          rec.run,
		})
		require.ErrorIs(t, err, failure.ErrFilesystem)
		require.ErrorIs(t, err, errNoArtifacts)
	})
}

func TestListArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, file := range []string{"Zope_Interface-6.0.whl", "attrs-24.whl", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(file), 0o600))
	}

	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.whl"), 0o750))

	records, err := ListArtifacts(dir, ".whl")
	require.NoError(t, err)
	require.Equal(t, []bundle.PackageRecord{
		{Name: "attrs", FileName: "attrs-24.whl", SHA256: digest("attrs-24.whl"), Source: bundle.SourceLocal},
		{
			Name:     "zope-interface",
			FileName: "Zope_Interface-6.0.whl",
			SHA256:   digest("Zope_Interface-6.0.whl"),
			Source:   bundle.SourceLocal,
		},
	}, records)

	_, err = ListArtifacts(filepath.Join(dir, "missing"), ".whl")
	require.ErrorIs(t, err, failure.ErrFilesystem)
}

func TestRunCommand(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}

	require.NoError(t, runCommand(context.Background(), []string{"sh", "-c", "echo built; echo warn >&2"}))

	err := runCommand(context.Background(), []string{"sh", "-c", "exit 3"})
	require.ErrorIs(t, err, failure.ErrFilesystem)

	require.ErrorIs(t, runCommand(context.Background(), nil), failure.ErrConfiguration)
}
