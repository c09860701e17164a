package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCanonicalName normalizes separators and case.
func TestCanonicalName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"typing_extensions": "typing-extensions",
		"Typing-Extensions": "typing-extensions",
		"zope.interface":    "zope-interface",
		"a__b--c":           "a-b-c",
		" numpy ":           "numpy",
		"PyYAML":            "pyyaml",
	}
	for in, want := range cases {
		require.Equal(t, want, CanonicalName(in), in)
	}
}

// TestArtifactName extracts the canonical name from artifact file names.
func TestArtifactName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"mylib-0.3.bin": "mylib",
		"typing_extensions-4.12.2-py3-none-any.whl":   "typing-extensions",
		"/bundle/numpy-2.0.2-cp312-cp312-pyodide.whl": "numpy",
		"standalone.whl":                       "standalone",
		"Mechaphlowers-0.2.0-py3-none-any.whl": "mechaphlowers",
	}
	for in, want := range cases {
		require.Equal(t, want, ArtifactName(in), in)
	}
}

// TestPackageManifest_SortedAndUnique checks ordering and overwrite semantics.
func TestPackageManifest_SortedAndUnique(t *testing.T) {
	t.Parallel()

	m := NewPackageManifest()
	m.Put(PackageRecord{Name: "numpy", FileName: "numpy-local.whl", Source: SourceLocal})
	m.Put(PackageRecord{Name: "attrs", FileName: "attrs.whl", Source: SourceRemote})
	m.Put(PackageRecord{Name: "numpy", FileName: "numpy-remote.whl", Source: SourceRemote})

	require.Equal(t, []string{"attrs", "numpy"}, m.Names())
	require.Equal(t, 2, m.Len())
	require.Equal(t, 2, m.Count(SourceRemote))
	require.Zero(t, m.Count(SourceLocal))

	got, ok := m.Get("numpy")
	require.True(t, ok)
	require.Equal(t, "numpy-remote.whl", got.FileName)
	require.Equal(t, "attrs", m.Records()[0].Name)
}

// TestLockFile_Lookup handles nil lock files and copies entries verbatim.
func TestLockFile_Lookup(t *testing.T) {
	t.Parallel()

	var nilLock *LockFile

	_, ok := nilLock.Lookup("numpy")
	require.False(t, ok)

	lock := &LockFile{Packages: map[string]LockEntry{
		"numpy": {FileName: "numpy-2.0.2.whl", SHA256: "abc"},
	}}

	entry, ok := lock.Lookup("numpy")
	require.True(t, ok)
	require.Equal(t, PackageRecord{
		Name:     "numpy",
		FileName: "numpy-2.0.2.whl",
		SHA256:   "abc",
		Source:   SourceRemote,
	}, entry.RemoteRecord("numpy"))
}
