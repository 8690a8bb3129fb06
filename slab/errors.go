package slab

import "errors"

var (
	// ErrOutOfMemory is returned when the underlying buddy allocator can't
	// produce a new slab.
	ErrOutOfMemory = errors.New("slab: buddy allocator out of memory")

	// ErrObjectTooLarge is returned when objectSize wouldn't fit even one
	// slot in a slab of the configured order.
	ErrObjectTooLarge = errors.New("slab: object size too large for cache order")

	// ErrUnknownPointer is returned by Directory.Free when ptr doesn't fall
	// within any slab this directory owns, rather than silently corrupting
	// unrelated accounting.
	ErrUnknownPointer = errors.New("slab: pointer not owned by this directory")
)
