// Package packager runs the runtime packaging pipeline end to end.
//
// It validates the settings before touching the disk, recreates the bundle
// with the runtime boot files, builds the target library, loads the runtime
// lock file, classifies every artifact as local or remote and writes the
// package manifest consumed by the application loader.
package packager
