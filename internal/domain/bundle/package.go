package bundle

import "slices"

// Source tells the client loader where a package comes from.
type Source string

const (
	// SourceLocal packages ship inside the bundle directory.
	SourceLocal Source = "local"
	// SourceRemote packages are fetched by the loader from the runtime CDN at first use.
	SourceRemote Source = "remote"
)

// PackageRecord describes one package of the manifest.
type PackageRecord struct {
	// Name is the canonical package name.
	Name string
	// FileName is the artifact file name, local or on the runtime CDN.
	FileName string
	// SHA256 is the hex digest of the artifact, empty when unknown.
	SHA256 string
	// Source is SourceLocal or SourceRemote.
	Source Source
}

// LockEntry is one package of the runtime lock file.
type LockEntry struct {
	// FileName is the artifact published by the runtime.
	FileName string
	// SHA256 is the digest published by the runtime.
	SHA256 string
	// Version is informational.
	Version string
	// Depends lists canonical names of direct dependencies.
	Depends []string
}

// LockFile is the runtime's own manifest of remotely fetchable packages, keyed by canonical name.
type LockFile struct {
	// RuntimeVersion is the runtime release the lock file belongs to.
	RuntimeVersion string
	// Packages maps canonical names to lock entries.
	Packages map[string]LockEntry
}

// Lookup returns the entry for a canonical name.
func (l *LockFile) Lookup(name string) (LockEntry, bool) {
	if l == nil {
		return LockEntry{}, false
	}

	entry, ok := l.Packages[name]

	return entry, ok
}

// RemoteRecord builds the remote manifest record for a lock entry, copied verbatim.
func (e LockEntry) RemoteRecord(name string) PackageRecord {
	return PackageRecord{
		Name:     name,
		FileName: e.FileName,
		SHA256:   e.SHA256,
		Source:   SourceRemote,
	}
}

// PackageManifest is the resolved package table keyed by canonical name.
// Keys are unique by construction; Names is always sorted.
type PackageManifest struct {
	entries map[string]PackageRecord
}

// NewPackageManifest returns an empty manifest.
func NewPackageManifest() *PackageManifest {
	return &PackageManifest{
		entries: make(map[string]PackageRecord),
	}
}

// Put inserts or overwrites the record stored under record.Name.
func (m *PackageManifest) Put(record PackageRecord) {
	m.entries[record.Name] = record
}

// Get returns the record for name.
func (m *PackageManifest) Get(name string) (PackageRecord, bool) {
	record, ok := m.entries[name]

	return record, ok
}

// Len returns the number of packages.
func (m *PackageManifest) Len() int {
	return len(m.entries)
}

// Names returns the canonical names in lexicographic order.
func (m *PackageManifest) Names() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Records returns the records ordered by name.
func (m *PackageManifest) Records() []PackageRecord {
	names := m.Names()

	records := make([]PackageRecord, 0, len(names))
	for _, name := range names {
		records = append(records, m.entries[name])
	}

	return records
}

// Count returns how many records come from source.
func (m *PackageManifest) Count(source Source) int {
	n := 0

	for _, record := range m.entries {
		if record.Source == source {
			n++
		}
	}

	return n
}
