// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates input that was rejected before any write.
var ErrValidation = errors.New("validation failed")

// ErrConflict indicates the operation would violate a store invariant,
// e.g. starting a second running session.
var ErrConflict = errors.New("conflict")

// ErrStoreUnavailable indicates the persistent store could not be reached
// or is corrupt. Callers should reinitialize rather than retry silently.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrTerminal indicates a mutation was attempted on a session that has
// already reached a terminal status.
var ErrTerminal = errors.New("session is terminal")
