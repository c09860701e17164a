package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/runtime-bundler/internal/domain/bundle"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
	"github.com/oshokin/runtime-bundler/internal/repository/atomicfile"
)

const (
	// DefaultFileMode is used for the manifest file.
	DefaultFileMode os.FileMode = 0o644

	indent = "    "
)

// record is one value of the manifest document.
type record struct {
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	SHA256   string `json:"sha256,omitempty"`
	Source   string `json:"source"`
}

var (
	errMissingArtifact = errors.New("local artifact is missing from the bundle")
	errUnknownSource   = errors.New("unknown package source")
	errNameMismatch    = errors.New("record name differs from its key")
)

// Encode serializes the manifest deterministically.
func Encode(m *bundle.PackageManifest) ([]byte, error) {
	doc := make(map[string]record, m.Len())
	for _, r := range m.Records() {
		doc[r.Name] = record{
			Name:     r.Name,
			FileName: r.FileName,
			SHA256:   r.SHA256,
			Source:   string(r.Source),
		}
	}

	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", indent)

	// encoding/json writes map keys in sorted order.
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode package manifest: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode parses a manifest document.
func Decode(data []byte) (*bundle.PackageManifest, error) {
	var doc map[string]record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, failure.Consistency("decode package manifest", "", err)
	}

	m := bundle.NewPackageManifest()

	for key, r := range doc {
		if r.Name != key {
			return nil, failure.Consistency("decode package manifest", key, errNameMismatch)
		}

		source := bundle.Source(r.Source)
		if source != bundle.SourceLocal && source != bundle.SourceRemote {
			return nil, failure.Consistency("decode package manifest", key, fmt.Errorf("%q: %w", r.Source, errUnknownSource))
		}

		m.Put(bundle.PackageRecord{
			Name:     r.Name,
			FileName: r.FileName,
			SHA256:   r.SHA256,
			Source:   source,
		})
	}

	return m, nil
}

// Read loads the manifest at path.
func Read(path string) (*bundle.PackageManifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, failure.Filesystem("read package manifest", path, err)
	}

	return Decode(data)
}

// Write checks that every local artifact is present in bundleDir, then replaces
// the document at path. Writing the same table twice yields identical bytes.
func Write(ctx context.Context, path, bundleDir string, m *bundle.PackageManifest) error {
	for _, r := range m.Records() {
		if r.Source != bundle.SourceLocal {
			continue
		}

		artifact := filepath.Join(bundleDir, r.FileName)
		if _, err := os.Stat(artifact); err != nil {
			return failure.Filesystem("verify local artifact", artifact, fmt.Errorf("%w: %w", errMissingArtifact, err))
		}
	}

	data, err := Encode(m)
	if err != nil {
		return err
	}

	if err = atomicfile.Replace(path, data, DefaultFileMode); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Package manifest written", "path", path, "packages", m.Len(), "bytes", len(data))

	return nil
}
