package builder

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/oshokin/runtime-bundler/internal/domain/bundle"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"

	// Register SHA-256 for crypto.SHA256.New.
	_ "crypto/sha256"
)

// Placeholders expanded in command templates.
const (
	PlaceholderRequirement = "{requirement}"
	PlaceholderDir         = "{dir}"
	PlaceholderIndexURL    = "{index_url}"
)

// DigestFunction hashes local artifacts.
const DigestFunction crypto.Hash = crypto.SHA256

// CommandRunner executes argv. The default runs the process and streams its output into the logger.
type CommandRunner func(ctx context.Context, argv []string) error

// Options are inputs of a build.
type Options struct {
	// BundleDir receives the artifacts.
	BundleDir string
	// Name and Version pin the target library.
	Name    string
	Version string
	// IndexURL overrides the package index when set.
	IndexURL string
	// ArtifactExt selects artifact files, e.g. ".whl".
	ArtifactExt string
	// FetchCommand produces the artifacts.
	FetchCommand []string
	// CompileCommand rewrites the artifacts in place; skipped when empty.
	CompileCommand []string
	// Run overrides the command runner.
	Run CommandRunner
}

var (
	errEmptyCommand     = errors.New("command is empty")
	errEmptyRequirement = errors.New("package name is empty")
	errNoArtifacts      = errors.New("no artifact produced")
)

// Requirement renders the pinned requirement string, e.g. "mechaphlowers==0.2.0".
func Requirement(name, version string) string {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)

	if version == "" {
		return name
	}

	return name + "==" + version
}

// Build runs the fetch and compile commands and returns the artifacts found in BundleDir.
func Build(ctx context.Context, opts *Options) ([]bundle.PackageRecord, error) {
	ctx = logger.WithName(ctx, "builder")

	requirement := Requirement(opts.Name, opts.Version)
	if requirement == "" {
		return nil, failure.Configuration("build", "package.name", errEmptyRequirement)
	}

	if len(opts.FetchCommand) == 0 {
		return nil, failure.Configuration("build", "package.fetch_command", errEmptyCommand)
	}

	run := opts.Run
	if run == nil {
		run = runCommand
	}

	vars := map[string]string{
		PlaceholderRequirement: requirement,
		PlaceholderDir:         opts.BundleDir,
		PlaceholderIndexURL:    opts.IndexURL,
	}

	fetch := expand(opts.FetchCommand, vars)
	if opts.IndexURL != "" && !references(opts.FetchCommand, PlaceholderIndexURL) {
		fetch = append(fetch, "--index-url", opts.IndexURL)
	}

	logger.InfoKV(ctx, "Building package artifacts", "requirement", requirement, "command", fetch[0])

	if err := run(ctx, fetch); err != nil {
		return nil, err
	}

	if len(opts.CompileCommand) > 0 {
		compile := expand(opts.CompileCommand, vars)

		logger.InfoKV(ctx, "Compiling package artifacts", "command", compile[0])

		if err := run(ctx, compile); err != nil {
			return nil, err
		}
	}

	records, err := ListArtifacts(opts.BundleDir, opts.ArtifactExt)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, failure.Filesystem("list artifacts", opts.BundleDir, errNoArtifacts)
	}

	for _, r := range records {
		logger.DebugKV(ctx, "Artifact ready", "package", r.Name, "file", r.FileName, "sha256", r.SHA256)
	}

	return records, nil
}

// ListArtifacts returns the local records of every regular file in dir ending
// with ext, sorted by canonical name then file name.
func ListArtifacts(dir, ext string) ([]bundle.PackageRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, failure.Filesystem("list artifacts", dir, err)
	}

	records := make([]bundle.PackageRecord, 0, len(entries))

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		digest, digestErr := fileDigest(path)
		if digestErr != nil {
			return nil, digestErr
		}

		records = append(records, bundle.PackageRecord{
			Name:     bundle.ArtifactName(entry.Name()),
			FileName: entry.Name(),
			SHA256:   digest,
			Source:   bundle.SourceLocal,
		})
	}

	slices.SortFunc(records, func(a, b bundle.PackageRecord) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}

		return strings.Compare(a.FileName, b.FileName)
	})

	return records, nil
}

// fileDigest returns the hex digest of a file using DigestFunction.
func fileDigest(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", failure.Filesystem("open artifact", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := DigestFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", failure.Filesystem("hash artifact", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// runCommand executes argv and forwards its output to the logger.
func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return failure.Configuration("run command", "", errEmptyCommand)
	}

	stdout := logger.NewLineWriter(ctx, "stdout")
	stderr := logger.NewLineWriter(ctx, "stderr")

	//nolint:gosec // The command comes from the operator's configuration.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()

	stdout.Flush()
	stderr.Flush()

	if err != nil {
		return failure.Filesystem("run command", strings.Join(argv, " "), err)
	}

	return nil
}

// expand substitutes placeholders. Arguments referencing an empty value are dropped.
func expand(template []string, vars map[string]string) []string {
	argv := make([]string, 0, len(template))

	for _, arg := range template {
		drop := false

		for placeholder, value := range vars {
			if !strings.Contains(arg, placeholder) {
				continue
			}

			if value == "" {
				drop = true

				break
			}

			arg = strings.ReplaceAll(arg, placeholder, value)
		}

		if !drop {
			argv = append(argv, arg)
		}
	}

	return argv
}

func references(template []string, placeholder string) bool {
	return slices.ContainsFunc(template, func(arg string) bool {
		return strings.Contains(arg, placeholder)
	})
}
