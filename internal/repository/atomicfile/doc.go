// Package atomicfile replaces generated documents without ever exposing a
// partially written file to readers.
package atomicfile
