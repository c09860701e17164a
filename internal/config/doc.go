// Package config defines the settings shared by the bundler binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Missing values fall back to Default. Validation happens before any side
// effect, and every rejection is a failure.ErrConfiguration.
package config
