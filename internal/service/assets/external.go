package assets

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/runtime-bundler/internal/failure"
)

// externalDocument is the pinned assets file.
type externalDocument struct {
	Files []string `json:"files"`
}

var errNoFilesKey = errors.New(`"files" list is missing`)

// ReadExternal returns the pinned assets in file order. They are neither
// filtered nor deduplicated.
func ReadExternal(path string) ([]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, failure.Configuration("read external assets", path, err)
		}

		return nil, failure.Filesystem("read external assets", path, err)
	}

	var doc externalDocument
	if err = json.Unmarshal(data, &doc); err != nil {
		return nil, failure.Configuration("parse external assets", path, err)
	}

	if doc.Files == nil {
		return nil, failure.Configuration("parse external assets", path, errNoFilesKey)
	}

	return doc.Files, nil
}
