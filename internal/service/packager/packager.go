package packager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oshokin/runtime-bundler/internal/config"
	"github.com/oshokin/runtime-bundler/internal/domain/bundle"
	"github.com/oshokin/runtime-bundler/internal/logger"
	"github.com/oshokin/runtime-bundler/internal/repository/lockfile"
	"github.com/oshokin/runtime-bundler/internal/repository/manifest"
	"github.com/oshokin/runtime-bundler/internal/service/assembler"
	"github.com/oshokin/runtime-bundler/internal/service/builder"
	"github.com/oshokin/runtime-bundler/internal/service/common"
	"github.com/oshokin/runtime-bundler/internal/service/resolver"
	"github.com/oshokin/runtime-bundler/internal/version"
)

// binaryName identifies the pipeline in logs and the User-Agent header.
const binaryName = "bundle-runtime"

// Options contains inputs for the packaging entry point.
type Options struct {
	// Config holds the merged file, environment and flag settings.
	Config *config.Config
	// Client overrides the HTTP client built from Config.Timeout.
	Client *common.Client
	// RunCommand overrides how the fetch and compile commands are executed.
	RunCommand builder.CommandRunner
	// LockBundleDir overrides the bundle directory lock.
	LockBundleDir func(ctx context.Context, bundleDir string) (release func(), err error)
}

// packager carries the state shared by the pipeline stages.
// Callers use Run, which validates the settings first.
type packager struct {
	cfg    *config.Config
	client *common.Client
	run    builder.CommandRunner

	local    []bundle.PackageRecord
	lock     *bundle.LockFile
	manifest *bundle.PackageManifest
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, binaryName)

	if err := config.ValidatePackaging(opts.Config); err != nil {
		return err
	}

	lock := opts.LockBundleDir
	if lock == nil {
		lock = common.LockBundleDir
	}

	release, err := lock(ctx, opts.Config.Runtime.BundleDir)
	if err != nil {
		return err
	}

	defer release()

	pkg := newPackager(opts)

	if err = pkg.Run(ctx); err != nil {
		return fmt.Errorf("packaging failed: %w", err)
	}

	logger.Info(ctx, "Packaging completed successfully")

	return nil
}

func newPackager(opts *Options) *packager {
	client := opts.Client
	if client == nil {
		client = common.NewClient(
			common.WithCallTimeout(opts.Config.Timeout),
			common.WithUserAgent(version.UserAgent(binaryName)),
		)
	}

	return &packager{
		cfg:    opts.Config,
		client: client,
		run:    opts.RunCommand,
	}
}

// Run executes the stages in order. A failed stage stops the pipeline.
func (p *packager) Run(ctx context.Context) error {
	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"assemble runtime bundle", p.assemble},
		{"build local packages", p.build},
		{"load lock file", p.loadLock},
		{"resolve dependencies", p.resolve},
		{"write package manifest", p.write},
	}

	for _, stage := range stages {
		logger.DebugKV(ctx, "Stage started", "stage", stage.name)

		if err := stage.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", stage.name, err)
		}
	}

	p.printSummary(ctx)

	return nil
}

func (p *packager) assemble(ctx context.Context) error {
	return assembler.Assemble(ctx, &assembler.Options{
		ArchiveURL: p.cfg.Runtime.ArchiveURL,
		BundleDir:  p.cfg.Runtime.BundleDir,
		BootFiles:  p.cfg.Runtime.BootFiles,
		Client:     p.client,
	})
}

func (p *packager) build(ctx context.Context) error {
	records, err := builder.Build(ctx, &builder.Options{
		BundleDir:      p.cfg.Runtime.BundleDir,
		Name:           p.cfg.Package.Name,
		Version:        p.cfg.Package.Version,
		IndexURL:       p.cfg.Package.IndexURL,
		ArtifactExt:    p.cfg.Package.ArtifactExt,
		FetchCommand:   p.cfg.Package.FetchCommand,
		CompileCommand: p.cfg.Package.CompileCommand,
		Run:            p.run,
	})
	if err != nil {
		return err
	}

	p.local = records

	return nil
}

func (p *packager) loadLock(ctx context.Context) error {
	lock, err := lockfile.Load(
		ctx,
		p.client,
		p.cfg.Runtime.LockURL,
		filepath.Join(p.cfg.Runtime.BundleDir, p.cfg.Runtime.LockFilename),
	)
	if err != nil {
		return err
	}

	p.lock = lock

	return nil
}

func (p *packager) resolve(ctx context.Context) error {
	result, err := resolver.Resolve(ctx, p.local, p.lock, &resolver.Options{
		BundleDir: p.cfg.Runtime.BundleDir,
		Mode:      resolver.Mode(p.cfg.Package.ResolveMode),
	})
	if err != nil {
		return err
	}

	p.manifest = result

	return nil
}

func (p *packager) write(ctx context.Context) error {
	return manifest.Write(ctx, p.cfg.Package.ManifestPath, p.cfg.Runtime.BundleDir, p.manifest)
}

// printSummary logs what the loader will find at runtime.
func (p *packager) printSummary(ctx context.Context) {
	var local, remote []string

	for _, r := range p.manifest.Records() {
		if r.Source == bundle.SourceLocal {
			local = append(local, r.Name)
		} else {
			remote = append(remote, r.Name)
		}
	}

	logger.InfoKV(ctx, "Package manifest ready",
		"path", p.cfg.Package.ManifestPath,
		"bundle_dir", p.cfg.Runtime.BundleDir,
		"local", len(local),
		"remote", len(remote),
	)

	if len(local) > 0 {
		logger.Infof(ctx, "Shipped with the bundle: %s", strings.Join(local, ", "))
	}

	if len(remote) > 0 {
		logger.Infof(ctx, "Fetched from the runtime CDN: %s", strings.Join(remote, ", "))
	}
}
