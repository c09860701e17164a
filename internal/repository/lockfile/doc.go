// Package lockfile reads the guest runtime lock file, either from the runtime
// CDN or from the copy shipped in the bundle directory, and converts it into
// the domain model with canonical package names.
package lockfile
