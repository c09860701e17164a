// Package version exposes build metadata of the bundler binaries.
//
// Version, Commit and BuildTime are injected through -ldflags. When they are
// not, the revision and commit time the Go toolchain stamps into the binary
// are used instead.
package version
