package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/runtime-bundler/internal/domain/bundle"
	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
)

// document mirrors the JSON layout published by the runtime.
type document struct {
	Info     info              `json:"info"`
	Packages map[string]*entry `json:"packages"`
}

type info struct {
	Arch     string `json:"arch"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
	Python   string `json:"python"`
}

type entry struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	FileName string   `json:"file_name"`
	SHA256   string   `json:"sha256"`
	Depends  []string `json:"depends"`
	Imports  []string `json:"imports"`
}

// Fetcher downloads a document. *common.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

var (
	errNoPackages      = errors.New("lock file has no packages section")
	errMissingFileName = errors.New("lock entry has no file_name")
	errDuplicateName   = errors.New("lock keys collide after normalization")
	errNilEntry        = errors.New("lock entry is null")
)

// Load fetches the lock file from url, or reads path when url is empty.
func Load(ctx context.Context, fetcher Fetcher, url, path string) (*bundle.LockFile, error) {
	if url == "" {
		logger.InfoKV(ctx, "Reading bundled lock file", "path", path)

		return ReadFile(path)
	}

	logger.InfoKV(ctx, "Fetching lock file", "url", url)

	data, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch lock file: %w", err)
	}

	lock, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}

	return lock, nil
}

// ReadFile reads and parses a lock file from disk.
func ReadFile(path string) (*bundle.LockFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, failure.Filesystem("read lock file", path, err)
	}

	lock, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return lock, nil
}

// Parse decodes lock file JSON. Keys and depends entries are canonicalized;
// the file name and digest of each entry are kept verbatim.
func Parse(data []byte) (*bundle.LockFile, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, failure.Consistency("decode lock file", "", err)
	}

	if doc.Packages == nil {
		return nil, failure.Consistency("decode lock file", "", errNoPackages)
	}

	lock := &bundle.LockFile{
		RuntimeVersion: doc.Info.Version,
		Packages:       make(map[string]bundle.LockEntry, len(doc.Packages)),
	}

	for key, raw := range doc.Packages {
		if raw == nil {
			return nil, failure.Consistency("decode lock entry", key, errNilEntry)
		}

		if raw.FileName == "" {
			return nil, failure.Consistency("decode lock entry", key, errMissingFileName)
		}

		name := bundle.CanonicalName(key)
		if _, exists := lock.Packages[name]; exists {
			return nil, failure.Consistency("decode lock entry", key, fmt.Errorf("%s: %w", name, errDuplicateName))
		}

		depends := make([]string, 0, len(raw.Depends))
		for _, dep := range raw.Depends {
			depends = append(depends, bundle.CanonicalName(dep))
		}

		lock.Packages[name] = bundle.LockEntry{
			FileName: raw.FileName,
			SHA256:   raw.SHA256,
			Version:  raw.Version,
			Depends:  depends,
		}
	}

	return lock, nil
}
