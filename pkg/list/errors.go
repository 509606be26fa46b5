package list

import "errors"

var (
	// ErrEmptyList is returned when an operation structurally requires a non-empty list.
	ErrEmptyList = errors.New("list is empty")
	// ErrInvalidArgument is returned for negative indices or indices beyond the current list length.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a value based deletion finds no match.
	ErrNotFound = errors.New("value was not found")
	// ErrCorruptState is reported by Check and Render when the forward and backward chains disagree.
	ErrCorruptState = errors.New("list links are corrupt")
	// ErrStaleHandle is returned when a handle no longer refers to the head of a list.
	ErrStaleHandle = errors.New("stale list handle")
)
