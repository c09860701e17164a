// Package resolver classifies the artifacts of the bundle directory as shipped
// locally or fetched remotely by the client loader, and expands the declared
// dependencies of remote packages against the runtime lock file.
//
// Two modes exist. Transitive mode walks the dependency graph with a worklist
// and a visited set until no new name appears, so the manifest is load-complete
// for graphs of any depth. Shallow mode expands only the direct dependencies of
// each reclassified package and is kept for runtimes whose package graph is
// known to be one level deep.
package resolver
