// Package asset holds the precache manifest model: the build identity and the
// ordered list of files the offline cache controller fetches.
package asset
