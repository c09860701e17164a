package asset

import "time"

// BuildIdentity tags a release with the commit it was built from.
type BuildIdentity struct {
	// Revision is the source-control commit hash.
	Revision string
	// BuildTime is the UTC instant the manifest was generated.
	BuildTime time.Time
}

// Manifest is the asset list of one release. It is built fresh every time and
// never merged with a previous manifest.
type Manifest struct {
	// Identity tags the release.
	Identity BuildIdentity
	// Files holds the sorted own assets followed by the pinned external assets.
	Files []string
}

// Timestamp renders BuildTime as ISO-8601 in UTC.
func (b BuildIdentity) Timestamp() string {
	return b.BuildTime.UTC().Format(time.RFC3339Nano)
}
