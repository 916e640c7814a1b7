package store

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyAlreadyExists is returned by Insert when the key is occupied.
	ErrKeyAlreadyExists = errors.New("key already exists")
	// ErrKeyNotFound is returned when an operation targets a vacant key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrVersionConflict is returned by CompareAndUpdate on a stale version.
	ErrVersionConflict = errors.New("version conflict")
)

// ConflictError reports a rejected write together with the entry that is
// currently stored, so the caller can retry against fresh state.
type ConflictError struct {
	Key     int64
	Current Entry
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("key %d: %v (current version %d)", e.Key, e.Err, e.Current.Version)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
