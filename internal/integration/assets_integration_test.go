package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/runtime-bundler/internal/config"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/service/assets"
)

// assetList mirrors the document read by the service worker.
type assetList struct {
	AppVersion struct {
		GitHash          string `json:"git_hash"`
		BuildDatetimeUTC string `json:"build_datetime_utc"`
	} `json:"app_version"`
	Files []string `json:"files"`
}

func assetsConfig(t *testing.T) *config.Config {
	t.Helper()

	project := t.TempDir()

	cfg := config.Default()
	cfg.Assets.DistRoot = filepath.Join(project, "dist", "browser")
	cfg.Assets.ExternalAssetsFile = filepath.Join(project, "scripts", "external_assets.json")

	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Assets.ExternalAssetsFile), 0o750))
	require.NoError(t, os.WriteFile(cfg.Assets.ExternalAssetsFile,
		[]byte(`{"files": ["/pyodide/pyodide.asm.wasm", "/pyodide/python_stdlib.zip"]}`), 0o600))

	return cfg
}

// TestAssetList_PerLanguage writes one manifest into each language output.
func TestAssetList_PerLanguage(t *testing.T) {
	t.Parallel()

	cfg := assetsConfig(t)

	for _, lang := range cfg.Assets.Languages {
		out := cfg.Assets.OutputDir(lang)
		require.NoError(t, os.MkdirAll(filepath.Join(out, "media"), 0o750))

		for _, name := range []string{"index.html", "main-X1.js", "service-worker.js", "media/logo.svg"} {
			require.NoError(t, os.WriteFile(filepath.Join(out, filepath.FromSlash(name)), []byte(lang), 0o600))
		}
	}

	for _, lang := range cfg.Assets.Languages {
		require.NoError(t, config.ValidateAssets(cfg, lang))

		opts := assets.NewOptions(&cfg.Assets, lang)
		opts.Getenv = func(name string) string {
			if name == "CI_COMMIT_SHA" {
				return "0123456789abcdef"
			}

			return ""
		}

		_, err := assets.Run(context.Background(), opts)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(cfg.Assets.OutputDir(lang), cfg.Assets.ManifestFilename))
		require.NoError(t, err)

		var doc assetList
		require.NoError(t, json.Unmarshal(data, &doc))
		require.Equal(t, "0123456789abcdef", doc.AppVersion.GitHash)
		require.NotEmpty(t, doc.AppVersion.BuildDatetimeUTC)
		require.Equal(t, []string{
			"/index.html",
			"/main-X1.js",
			"/media/logo.svg",
			"/pyodide/pyodide.asm.wasm",
			"/pyodide/python_stdlib.zip",
		}, doc.Files)
	}
}

// TestAssetList_UnknownLanguage is rejected before any file is read.
func TestAssetList_UnknownLanguage(t *testing.T) {
	t.Parallel()

	cfg := assetsConfig(t)

	err := config.ValidateAssets(cfg, "de")
	require.ErrorIs(t, err, failure.ErrConfiguration)
	require.Equal(t, failure.ExitConfiguration, failure.ExitCode(err))

	err = config.ValidateAssets(cfg, "")
	require.ErrorIs(t, err, failure.ErrConfiguration)
}

// TestAssetList_MissingOutput fails with a filesystem error and writes nothing.
func TestAssetList_MissingOutput(t *testing.T) {
	t.Parallel()

	cfg := assetsConfig(t)

	_, err := assets.Run(context.Background(), assets.NewOptions(&cfg.Assets, "fr"))
	require.ErrorIs(t, err, failure.ErrFilesystem)
	require.Equal(t, failure.ExitFilesystem, failure.ExitCode(err))
	require.NoDirExists(t, cfg.Assets.DistRoot)
}
