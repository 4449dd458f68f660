package domain

import "errors"

var (
	// ErrZoneNotFound is returned when the backend has no zone by that name.
	ErrZoneNotFound = errors.New("zone not found")
	// ErrNoSOA is returned when a zone has no SOA record at its apex.
	ErrNoSOA = errors.New("no SOA record at zone apex")
	// ErrPresigned is returned when rectify is asked to touch a presigned zone.
	ErrPresigned = errors.New("zone is presigned")
	// ErrTransaction wraps backend transaction start, write and commit failures.
	ErrTransaction = errors.New("zone transaction failed")
)
