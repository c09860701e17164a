package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/runtime-bundler/internal/config"
)

// runtimeLock is the lock file published next to the runtime archive.
const runtimeLock = `{
  "info": {"arch": "wasm32", "platform": "emscripten_3_1_58", "version": "0.27.3", "python": "3.12.7"},
  "packages": {
    "numpy": {"name": "numpy", "version": "2.0.2", "file_name": "numpy-2.0.2-cp312-cp312-pyodide_2024_0_wasm32.whl", "sha256": "n1", "depends": [], "imports": ["numpy"]},
    "pandas": {"name": "pandas", "version": "2.2.3", "file_name": "pandas-2.2.3-cp312-cp312-pyodide_2024_0_wasm32.whl", "sha256": "p1", "depends": ["numpy", "python-dateutil", "pytz"], "imports": ["pandas"]},
    "python-dateutil": {"name": "python-dateutil", "version": "2.9.0", "file_name": "python_dateutil-2.9.0-py2.py3-none-any.whl", "sha256": "d1", "depends": ["six"], "imports": ["dateutil"]},
    "pytz": {"name": "pytz", "version": "2024.1", "file_name": "pytz-2024.1-py2.py3-none-any.whl", "sha256": "z1", "depends": [], "imports": ["pytz"]},
    "six": {"name": "six", "version": "1.16.0", "file_name": "six-1.16.0-py2.py3-none-any.whl", "sha256": "s1", "depends": [], "imports": ["six"]}
  }
}`

// builtWheels are the files the fake package build drops into the bundle.
var builtWheels = []string{
	"mechaphlowers-0.2.0-py3-none-any.whl",
	"pandas-2.2.3-cp312-cp312-manylinux.whl",
	"numpy-2.0.2-cp312-cp312-manylinux.whl",
}

// runtimeCDN serves the runtime archive and its lock file.
type runtimeCDN struct {
	url      string
	requests atomic.Int32
}

// startCDN starts an HTTP server publishing a gzip runtime archive at
// /pyodide-core.tar.gz and the lock file at /pyodide-lock.json.
func startCDN(t *testing.T) *runtimeCDN {
	t.Helper()

	// Build the archive with a top-level directory, as the upstream release does.
	archive := runtimeArchive(t, map[string]string{
		"pyodide/pyodide.asm.wasm":  "wasm",
		"pyodide/pyodide.asm.js":    "asm",
		"pyodide/pyodide.mjs":       "mjs",
		"pyodide/python_stdlib.zip": "stdlib",
		"pyodide/pyodide-lock.json": runtimeLock,
		"pyodide/package.json":      "{}",
		"pyodide/console.html":      "<html>",
	})

	cdn := &runtimeCDN{}

	mux := http.NewServeMux()
	mux.HandleFunc("/pyodide-core.tar.gz", func(w http.ResponseWriter, _ *http.Request) {
		cdn.requests.Add(1)

		_, _ = w.Write(archive)
	})
	mux.HandleFunc("/pyodide-lock.json", func(w http.ResponseWriter, _ *http.Request) {
		cdn.requests.Add(1)

		_, _ = w.Write([]byte(runtimeLock))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cdn.url = server.URL

	return cdn
}

func runtimeArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))

		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// packagingConfig points the default settings at the test CDN and a temporary project.
func packagingConfig(t *testing.T, cdn *runtimeCDN) *config.Config {
	t.Helper()

	project := t.TempDir()

	cfg := config.Default()
	cfg.Runtime.ArchiveURL = cdn.url + "/pyodide-core.tar.gz"
	cfg.Runtime.LockURL = cdn.url + "/pyodide-lock.json"
	cfg.Runtime.BundleDir = filepath.Join(project, "public", "pyodide")
	cfg.Package.ManifestPath = filepath.Join(project, "src", "python-packages.json")

	return cfg
}

// fakeBuild writes builtWheels into the {dir} argument of the fetch command.
func fakeBuild(calls *[][]string) func(ctx context.Context, argv []string) error {
	return func(_ context.Context, argv []string) error {
		*calls = append(*calls, argv)

		if len(*calls) > 1 {
			return nil
		}

		dir := argv[len(argv)-1]
		for i, arg := range argv {
			if arg == "-w" && i+1 < len(argv) {
				dir = argv[i+1]
			}
		}

		for _, wheel := range builtWheels {
			if err := os.WriteFile(filepath.Join(dir, wheel), []byte(wheel), 0o600); err != nil {
				return err
			}
		}

		return nil
	}
}
