package assets

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/oshokin/runtime-bundler/internal/config"
	"github.com/oshokin/runtime-bundler/internal/domain/asset"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
)

// Options are inputs of Generate.
type Options struct {
	// OutputDir is the compiled output of one language.
	OutputDir string
	// Blacklist holds basenames that are never listed.
	Blacklist []string
	// ManifestFilename is the manifest written into OutputDir.
	ManifestFilename string
	// ExternalAssetsFile lists pinned assets as {"files": [...]}.
	ExternalAssetsFile string
	// RevisionEnv lists the variables checked for the commit hash.
	RevisionEnv []string
	// RepoDir is where the git repository lookup starts. Defaults to OutputDir.
	RepoDir string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Now defaults to time.Now.
	Now func() time.Time
}

var errNotADirectory = errors.New("not a directory")

// NewOptions builds the options for one language of the configured application.
func NewOptions(cfg *config.AssetsConfig, language string) *Options {
	return &Options{
		OutputDir:          cfg.OutputDir(language),
		Blacklist:          cfg.Blacklist,
		ManifestFilename:   cfg.ManifestFilename,
		ExternalAssetsFile: cfg.ExternalAssetsFile,
		RevisionEnv:        cfg.RevisionEnv,
	}
}

// Run generates the manifest and writes it into the output directory.
func Run(ctx context.Context, opts *Options) (*asset.Manifest, error) {
	manifest, err := Generate(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err = Write(ctx, opts.OutputDir, opts.ManifestFilename, manifest); err != nil {
		return nil, err
	}

	return manifest, nil
}

// Generate enumerates the output directory and builds a fresh manifest.
// Nothing is written.
func Generate(ctx context.Context, opts *Options) (*asset.Manifest, error) {
	ctx = logger.WithName(ctx, "assets")

	info, err := os.Stat(opts.OutputDir)
	if err != nil {
		return nil, failure.Filesystem("stat output directory", opts.OutputDir, err)
	}

	if !info.IsDir() {
		return nil, failure.Filesystem("stat output directory", opts.OutputDir, errNotADirectory)
	}

	own, err := List(opts.OutputDir, opts.Blacklist, opts.ManifestFilename)
	if err != nil {
		return nil, err
	}

	external, err := ReadExternal(opts.ExternalAssetsFile)
	if err != nil {
		return nil, err
	}

	repoDir := opts.RepoDir
	if repoDir == "" {
		repoDir = opts.OutputDir
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	revision, err := ResolveRevision(ctx, opts.RevisionEnv, getenv, repoDir)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	files := make([]string, 0, len(own)+len(external))
	files = append(files, own...)
	files = append(files, external...)

	manifest := &asset.Manifest{
		Identity: asset.BuildIdentity{Revision: revision, BuildTime: now().UTC()},
		Files:    files,
	}

	logger.InfoKV(ctx, "Asset list generated",
		"dir", opts.OutputDir,
		"own", len(own),
		"external", len(external),
		"revision", revision,
	)

	return manifest, nil
}

// List walks dir and returns the sorted "/"-prefixed slash paths of its files.
// Blacklisted basenames at any depth and the manifest at the root are skipped.
func List(dir string, blacklist []string, manifestFilename string) ([]string, error) {
	files := make([]string, 0)

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() || slices.Contains(blacklist, entry.Name()) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		if rel == manifestFilename {
			return nil
		}

		files = append(files, "/"+filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, failure.Filesystem("walk output directory", dir, err)
	}

	slices.Sort(files)

	return files, nil
}
