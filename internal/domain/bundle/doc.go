// Package bundle holds the domain model of the runtime packaging pipeline:
// package records, the runtime lock file and the resolved package manifest.
package bundle
