// Package failure classifies pipeline errors.
//
// Every error that aborts a build carries one of four kinds (network,
// filesystem, manifest consistency, configuration) so the CLI can report a
// descriptive message and choose an exit code. Kinds are matched with errors.Is.
package failure
