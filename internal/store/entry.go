package store

import "bytes"

// Entry is the versioned record held for a single key.
// Timestamp and Data are opaque to the store.
//
// Version counts updates of one incarnation of a key and restarts at 1 when
// the key is recreated. Revision is taken from a store-wide counter by the
// mutation that produced the entry, so it orders every mutation of a key,
// including deletes, across incarnations.
type Entry struct {
	Version   int64  `json:"version"`
	Revision  int64  `json:"revision"`
	Timestamp int64  `json:"timestamp"`
	Data      []byte `json:"data"`
}

// clone returns a copy of e that shares no memory with it.
func (e Entry) clone() Entry {
	e.Data = bytes.Clone(e.Data)
	return e
}
