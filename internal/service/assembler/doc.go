// Package assembler prepares the runtime bundle directory.
//
// The directory is recreated from scratch on every run, the guest runtime
// distribution archive is downloaded and unpacked into a temporary location,
// and only the whitelisted boot files are moved into the bundle. Nothing is
// rolled back on failure; the next run starts over.
package assembler
