package assembler

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
)

// Downloader saves a remote file to a local path.
type Downloader interface {
	Download(ctx context.Context, url, path string) (int64, error)
}

// Options are inputs of Assemble.
type Options struct {
	// ArchiveURL is the runtime distribution archive.
	ArchiveURL string
	// BundleDir is removed and recreated.
	BundleDir string
	// BootFiles are the base names moved from the archive into BundleDir.
	BootFiles []string
	// Client downloads the archive.
	Client Downloader
}

const bundlePermissions = 0o755

var (
	errMissingBootFile = errors.New("boot file not found in archive")
	errNoClient        = errors.New("downloader is required")
)

// Assemble recreates BundleDir and fills it with the boot files of the runtime archive.
func Assemble(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "assembler")

	if opts.Client == nil {
		return failure.Configuration("assemble", "client", errNoClient)
	}

	format, err := DetectFormat(opts.ArchiveURL)
	if err != nil {
		return err
	}

	if err = recreateDir(opts.BundleDir); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Bundle directory recreated", "dir", opts.BundleDir)

	workDir, err := os.MkdirTemp("", "runtime-bundle-*")
	if err != nil {
		return failure.Filesystem("create temporary directory", os.TempDir(), err)
	}

	defer func() {
		if removeErr := os.RemoveAll(workDir); removeErr != nil {
			logger.WarnKV(ctx, "Failed to remove temporary directory", "dir", workDir, "error", removeErr)
		}
	}()

	archivePath := filepath.Join(workDir, "runtime."+string(format))

	size, err := opts.Client.Download(ctx, opts.ArchiveURL, archivePath)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Runtime archive downloaded", "url", opts.ArchiveURL, "bytes", size)

	extractDir := filepath.Join(workDir, "extracted")
	if err = Extract(archivePath, format, extractDir); err != nil {
		return err
	}

	for _, name := range opts.BootFiles {
		source, findErr := findBootFile(extractDir, name)
		if findErr != nil {
			return findErr
		}

		if err = moveFile(source, filepath.Join(opts.BundleDir, name)); err != nil {
			return err
		}

		logger.DebugKV(ctx, "Boot file moved", "file", name)
	}

	logger.InfoKV(ctx, "Runtime bundle assembled", "dir", opts.BundleDir, "files", len(opts.BootFiles))

	return nil
}

func recreateDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return failure.Filesystem("remove bundle directory", dir, err)
	}

	if err := os.MkdirAll(dir, bundlePermissions); err != nil {
		return failure.Filesystem("create bundle directory", dir, err)
	}

	return nil
}

// findBootFile looks for name at the extraction root, then one directory below it.
func findBootFile(root, name string) (string, error) {
	candidate := filepath.Join(root, name)
	if isRegular(candidate) {
		return candidate, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", failure.Filesystem("list extracted archive", root, err)
	}

	// os.ReadDir returns entries sorted by name, so the pick is stable.
	dirs := slices.DeleteFunc(entries, func(e fs.DirEntry) bool { return !e.IsDir() })
	for _, dir := range dirs {
		candidate = filepath.Join(root, dir.Name(), name)
		if isRegular(candidate) {
			return candidate, nil
		}
	}

	return "", failure.Filesystem("find boot file", name, errMissingBootFile)
}

func isRegular(path string) bool {
	info, err := os.Lstat(path)

	return err == nil && info.Mode().IsRegular()
}

// moveFile renames source to target, copying when they are on different devices.
func moveFile(source, target string) error {
	if err := os.Rename(source, target); err == nil {
		return nil
	}

	if err := copyFile(source, target); err != nil {
		return err
	}

	if err := os.Remove(source); err != nil {
		return failure.Filesystem("remove moved file", source, err)
	}

	return nil
}

func copyFile(source, target string) error {
	input, err := os.Open(filepath.Clean(source))
	if err != nil {
		return failure.Filesystem("open boot file", source, err)
	}

	defer func() {
		_ = input.Close()
	}()

	//nolint:gosec // target is inside the bundle directory.
	output, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return failure.Filesystem("create boot file", target, err)
	}

	if _, err = io.Copy(output, input); err != nil {
		_ = output.Close()

		return failure.Filesystem("copy boot file", target, err)
	}

	if err = output.Close(); err != nil {
		return failure.Filesystem("close boot file", target, err)
	}

	return nil
}
