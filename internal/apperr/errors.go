// Package apperr holds the error taxonomy shared by the service and transport
// layers. Services wrap these sentinels with context; handlers map them to HTTP
// status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrInvalidArgument marks a malformed caller request (400).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a referenced chat session, account or object that does not exist (404).
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a duplicate chat id, email or username (409).
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized marks a failed credential check (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstream marks a failed call to an AI workflow. During a chat turn it is
	// recovered into an assistant message instead of failing the request.
	ErrUpstream = errors.New("upstream error")

	// ErrStorageUnavailable marks an unreachable database or blob store (503).
	ErrStorageUnavailable = errors.New("storage unavailable")
)
