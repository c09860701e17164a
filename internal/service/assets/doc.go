// Package assets generates the precache manifest of a compiled application.
//
// The manifest lists every file of one language's output directory as a
// root-relative URL path, followed by pinned external assets, and is tagged
// with the commit hash and build time so a service worker can tell releases
// apart.
package assets
