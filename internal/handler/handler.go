// Package handler translates CRUD requests into backend calls and backend
// outcomes into status-tagged results. Handlers hold no state and never retry.
package handler

import (
	"errors"

	"github.com/ASHISH26940/heliokv/internal/store"
)

// Backend is the storage contract the handlers depend on. Both the local
// store and the log-ordered raft engine satisfy it.
type Backend interface {
	Insert(key, timestamp int64, data []byte) (store.Entry, error)
	Get(key int64) (store.Entry, error)
	CompareAndUpdate(key, expected, timestamp int64, data []byte) (store.Entry, error)
	Delete(key int64) (store.Entry, error)
}

var _ Backend = (*store.Store)(nil)

// Status is the outcome class of an operation.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Result is the response payload shared by all four operations.
// Entry fields are zero when the status carries no entry.
type Result struct {
	Status    Status
	Version   int64
	Revision  int64
	Timestamp int64
	Data      []byte
}

type CreateRequest struct {
	Key       int64
	Timestamp int64
	Data      []byte
}

type ReadRequest struct {
	Key int64
}

type UpdateRequest struct {
	Key       int64
	Version   int64
	Timestamp int64
	Data      []byte
}

type DeleteRequest struct {
	Key int64
}

// Create inserts a new key. An occupied key yields StatusConflict carrying the
// existing entry.
func Create(b Backend, req CreateRequest) (Result, error) {
	e, err := b.Insert(req.Key, req.Timestamp, req.Data)
	return toResult(e, err)
}

// Read fetches the entry under a key.
func Read(b Backend, req ReadRequest) (Result, error) {
	e, err := b.Get(req.Key)
	return toResult(e, err)
}

// Update performs a compare-and-swap on the entry's version. A stale version
// yields StatusConflict carrying the current entry.
func Update(b Backend, req UpdateRequest) (Result, error) {
	e, err := b.CompareAndUpdate(req.Key, req.Version, req.Timestamp, req.Data)
	return toResult(e, err)
}

// Delete removes a key unconditionally. The result reports the version that
// was removed and the revision of the delete, but no payload.
func Delete(b Backend, req DeleteRequest) (Result, error) {
	e, err := b.Delete(req.Key)
	if err != nil {
		return toResult(store.Entry{}, err)
	}
	return Result{Status: StatusOK, Version: e.Version, Revision: e.Revision}, nil
}

// Greet is the stateless greeting echo.
func Greet(name string) string {
	if name == "" {
		name = "world"
	}
	return "Hello " + name
}

// toResult maps a backend outcome to a Result. Errors outside the store's
// taxonomy are passed through for the transport to report.
func toResult(e store.Entry, err error) (Result, error) {
	var conflict *store.ConflictError
	switch {
	case err == nil:
		return fromEntry(StatusOK, e), nil
	case errors.As(err, &conflict):
		return fromEntry(StatusConflict, conflict.Current), nil
	case errors.Is(err, store.ErrKeyNotFound):
		return Result{Status: StatusNotFound}, nil
	case errors.Is(err, store.ErrKeyAlreadyExists), errors.Is(err, store.ErrVersionConflict):
		return Result{Status: StatusConflict}, nil
	default:
		return Result{}, err
	}
}

func fromEntry(status Status, e store.Entry) Result {
	return Result{
		Status:    status,
		Version:   e.Version,
		Revision:  e.Revision,
		Timestamp: e.Timestamp,
		Data:      e.Data,
	}
}
