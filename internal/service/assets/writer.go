package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/oshokin/runtime-bundler/internal/domain/asset"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
	"github.com/oshokin/runtime-bundler/internal/repository/atomicfile"
)

const manifestPermissions = 0o644

type appVersion struct {
	GitHash          string `json:"git_hash"`
	BuildDatetimeUTC string `json:"build_datetime_utc"`
}

type document struct {
	AppVersion appVersion `json:"app_version"`
	Files      []string   `json:"files"`
}

// Encode renders the manifest as consumed by the service worker.
func Encode(m *asset.Manifest) ([]byte, error) {
	files := m.Files
	if files == nil {
		files = []string{}
	}

	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(document{
		AppVersion: appVersion{
			GitHash:          m.Identity.Revision,
			BuildDatetimeUTC: m.Identity.Timestamp(),
		},
		Files: files,
	})
	if err != nil {
		return nil, failure.Consistency("encode asset manifest", "", err)
	}

	return buf.Bytes(), nil
}

// Write stores the manifest as dir/name, replacing any previous one.
func Write(ctx context.Context, dir, name string, m *asset.Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, name)
	if err = atomicfile.Replace(path, data, manifestPermissions); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Asset manifest written", "path", path, "files", len(m.Files))

	return nil
}
