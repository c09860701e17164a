package atomicfile

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/runtime-bundler/internal/failure"
)

const dirPermissions = 0o755

// Replace swaps data in at path through a sibling temporary file, verifying
// the written bytes against their SHA-256 checksum before the rename.
// Missing parent directories are created.
func Replace(path string, data []byte, mode os.FileMode) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return failure.Filesystem("create directory", filepath.Dir(path), err)
	}

	// The swap renames the previous file away, so one must exist.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.Create(path)
		if createErr != nil {
			return failure.Filesystem("create file", path, createErr)
		}

		_ = placeholder.Close()
	}

	checksum := sha256.Sum256(data)

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: mode,
		Checksum:   checksum[:],
		Hash:       crypto.SHA256,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return failure.Filesystem("replace file", path, err)
	}

	for _, leftover := range leftovers(path) {
		if _, err := os.Stat(leftover); err == nil {
			_ = os.Remove(leftover)
		}
	}

	return nil
}

// leftovers are the backup names the swap may leave next to path.
func leftovers(path string) []string {
	return []string{
		filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".old"),
		path + ".old",
	}
}
