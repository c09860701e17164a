// Package manifest persists the resolved package table consumed by the client
// runtime loader at interpreter start-up.
//
// The document is JSON keyed by canonical package name, with sorted keys and a
// fixed four-space indent, so the same table always yields the same bytes. The
// file at the fixed path is replaced atomically.
package manifest
