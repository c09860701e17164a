// Package builder produces the binary artifacts of the target library inside
// the bundle directory.
//
// It runs an external fetch/build command (pip wheel by default), then a
// compile pass that rewrites the artifacts in place into a faster-loading
// form, and finally lists the artifacts with their canonical names and digests.
// No manifest is produced here.
package builder
