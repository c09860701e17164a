package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/oshokin/runtime-bundler/internal/domain/bundle"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
)

// Mode selects how far dependencies are expanded.
type Mode string

const (
	// ModeTransitive expands dependencies until a fixed point.
	ModeTransitive Mode = "transitive"
	// ModeShallow expands direct dependencies only.
	ModeShallow Mode = "shallow"
)

// Options controls a resolution.
type Options struct {
	// BundleDir holds the local artifacts.
	BundleDir string
	// Mode defaults to ModeTransitive.
	Mode Mode
	// Remove deletes a reclassified artifact; defaults to os.Remove.
	Remove func(path string) error
}

var (
	errUnknownDependency = errors.New("dependency is not in the lock file")
	errDuplicateArtifact = errors.New("several artifacts share one package name")
	errUnknownMode       = errors.New("unknown resolve mode")
)

// resolution holds the mutable state of one Resolve call.
type resolution struct {
	opts     *Options
	lock     *bundle.LockFile
	result   *bundle.PackageManifest
	expanded map[string]struct{}
}

// Resolve builds the package manifest from the local artifacts and the lock file.
//
// Local packages are visited in sorted order. A package that the lock file also
// describes becomes remote with the lock's file name and digest, its artifact is
// deleted from the bundle directory and its dependencies are added as remote.
// A dependency missing from the lock file is a failure.ErrManifestConsistency.
func Resolve(
	ctx context.Context,
	local []bundle.PackageRecord,
	lock *bundle.LockFile,
	opts *Options,
) (*bundle.PackageManifest, error) {
	ctx = logger.WithName(ctx, "resolver")

	options := *opts
	if options.Mode == "" {
		options.Mode = ModeTransitive
	}

	if options.Mode != ModeTransitive && options.Mode != ModeShallow {
		return nil, failure.Configuration("resolve", string(options.Mode), errUnknownMode)
	}

	if options.Remove == nil {
		options.Remove = os.Remove
	}

	localPackages, err := indexLocal(local)
	if err != nil {
		return nil, err
	}

	r := &resolution{
		opts:     &options,
		lock:     lock,
		result:   bundle.NewPackageManifest(),
		expanded: make(map[string]struct{}),
	}

	names := make([]string, 0, len(localPackages))
	for name := range localPackages {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if err = r.classify(ctx, localPackages[name]); err != nil {
			return nil, err
		}
	}

	logger.InfoKV(ctx, "Resolved package closure",
		"mode", options.Mode,
		"local", r.result.Count(bundle.SourceLocal),
		"remote", r.result.Count(bundle.SourceRemote))

	return r.result, nil
}

// classify records one local package and, when the lock knows it, turns it remote.
func (r *resolution) classify(ctx context.Context, record bundle.PackageRecord) error {
	record.Source = bundle.SourceLocal
	r.result.Put(record)

	entry, ok := r.lock.Lookup(record.Name)
	if !ok {
		logger.DebugKV(ctx, "Shipping package locally", "package", record.Name, "file", record.FileName)

		return nil
	}

	r.result.Put(entry.RemoteRecord(record.Name))

	artifact := filepath.Join(r.opts.BundleDir, record.FileName)
	if err := r.opts.Remove(artifact); err != nil {
		return failure.Filesystem("delete reclassified artifact", artifact, err)
	}

	logger.DebugKV(ctx, "Package provided by the runtime", "package", record.Name, "file", entry.FileName)

	if r.opts.Mode == ModeShallow {
		return r.expandDirect(record.Name, entry)
	}

	return r.expandTransitive(record.Name)
}

// expandDirect adds the direct dependencies of name without looking further.
func (r *resolution) expandDirect(name string, entry bundle.LockEntry) error {
	for _, dep := range entry.Depends {
		dep = bundle.CanonicalName(dep)

		depEntry, ok := r.lock.Lookup(dep)
		if !ok {
			return missingDependency(name, dep)
		}

		r.result.Put(depEntry.RemoteRecord(dep))
	}

	return nil
}

// expandTransitive adds every package reachable from root through the lock file.
func (r *resolution) expandTransitive(root string) error {
	queue := []string{root}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		if _, done := r.expanded[name]; done {
			continue
		}

		r.expanded[name] = struct{}{}

		entry, _ := r.lock.Lookup(name)
		for _, dep := range entry.Depends {
			dep = bundle.CanonicalName(dep)

			depEntry, ok := r.lock.Lookup(dep)
			if !ok {
				return missingDependency(name, dep)
			}

			r.result.Put(depEntry.RemoteRecord(dep))

			if _, done := r.expanded[dep]; !done {
				queue = append(queue, dep)
			}
		}
	}

	return nil
}

// indexLocal keys local records by canonical name and rejects collisions.
func indexLocal(local []bundle.PackageRecord) (map[string]bundle.PackageRecord, error) {
	index := make(map[string]bundle.PackageRecord, len(local))

	for _, record := range local {
		record.Name = bundle.CanonicalName(record.Name)

		if existing, exists := index[record.Name]; exists {
			return nil, failure.Consistency("index local artifacts", record.Name,
				fmt.Errorf("%s and %s: %w", existing.FileName, record.FileName, errDuplicateArtifact))
		}

		index[record.Name] = record
	}

	return index, nil
}

func missingDependency(dependent, dep string) error {
	return failure.Consistency("expand dependencies", dependent,
		fmt.Errorf("%q: %w", dep, errUnknownDependency))
}
