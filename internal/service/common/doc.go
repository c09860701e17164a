// Package common holds helpers shared by both pipelines.
//
// It provides an HTTP client wrapper that applies the bounded per-request
// timeout and reports transport and status failures as failure.ErrNetwork,
// and a lock file that keeps two packaging builds from writing the same
// bundle directory.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
