package world

import "errors"

// Sentinel errors surfaced by the chunk store and inventories. Callers
// match them with errors.Is; the bridge maps them to wire codes.
var (
	// ErrNotLoaded means the target chunk is not resident. The caller
	// decides whether to load it or give up; reads never fault chunks in.
	ErrNotLoaded = errors.New("chunk not loaded")

	// ErrStorage wraps any backing-store failure during load or save.
	ErrStorage = errors.New("storage failure")

	// ErrUnsupportedVersion means a persisted record carries a version
	// tag this build does not understand. The record is left untouched.
	ErrUnsupportedVersion = errors.New("unsupported chunk version")

	// ErrInvalidTransfer means an item move could not be applied and
	// both inventories were left as they were.
	ErrInvalidTransfer = errors.New("invalid transfer")
)
