package failure

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks fetch failures, timeouts and non-success HTTP statuses.
	ErrNetwork = errors.New("network error")
	// ErrFilesystem marks missing or unusable paths and failed moves or deletes.
	ErrFilesystem = errors.New("filesystem error")
	// ErrManifestConsistency marks a lock file that references a package it does not describe.
	ErrManifestConsistency = errors.New("manifest consistency error")
	// ErrConfiguration marks a missing or malformed flag, selector or config value.
	ErrConfiguration = errors.New("configuration error")
)

// Exit codes reported by the binaries for each error kind.
const (
	ExitGeneric       = 1
	ExitConfiguration = 2
	ExitNetwork       = 3
	ExitFilesystem    = 4
	ExitConsistency   = 5
)

// Error is a classified pipeline error.
type Error struct {
	// Kind is one of the exported sentinel errors.
	Kind error
	// Op names the step that failed, e.g. "download archive".
	Op string
	// Subject is the offending path, URL or package name.
	Subject string
	// Err is the underlying cause, may be nil.
	Err error
}

// Error renders "op subject: kind: cause".
func (e *Error) Error() string {
	msg := e.Op
	if e.Subject != "" {
		msg += " " + e.Subject
	}

	if e.Err == nil {
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	}

	return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// Network wraps err as a network failure.
func Network(op, subject string, err error) error {
	return &Error{Kind: ErrNetwork, Op: op, Subject: subject, Err: err}
}

// Filesystem wraps err as a filesystem failure.
func Filesystem(op, subject string, err error) error {
	return &Error{Kind: ErrFilesystem, Op: op, Subject: subject, Err: err}
}

// Consistency reports a manifest consistency failure.
func Consistency(op, subject string, err error) error {
	return &Error{Kind: ErrManifestConsistency, Op: op, Subject: subject, Err: err}
}

// Configuration reports a configuration failure.
func Configuration(op, subject string, err error) error {
	return &Error{Kind: ErrConfiguration, Op: op, Subject: subject, Err: err}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, ErrNetwork):
		return ExitNetwork
	case errors.Is(err, ErrFilesystem):
		return ExitFilesystem
	case errors.Is(err, ErrManifestConsistency):
		return ExitConsistency
	default:
		return ExitGeneric
	}
}
