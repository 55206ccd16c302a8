package store

import "errors"

// Error kinds named in spec §7. TransientIO and CapabilityMissing are
// not represented as error values — per-entry I/O errors are counted or
// logged and swallowed by Crawler and Watcher, and a missing trigram
// tokenizer is absorbed by Store.Init, which leaves trigramAvailable
// false. Neither is surfaced to a caller.
var (
	// ErrNotFound is returned when a watch root or entry path does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists names the AlreadyExists kind. No Store or
	// Coordinator method returns it: Coordinator.AddPath reports an
	// already-registered root through AddResult.AlreadyIndexed.
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrBusy names the Busy kind. No Store method returns it: a write
	// that outlasts the busy timeout returns the SQLite driver's own
	// busy error, wrapped.
	ErrBusy = errors.New("store: busy")
	// ErrInvalidArgument is returned for malformed admin requests.
	ErrInvalidArgument = errors.New("store: invalid argument")
)
