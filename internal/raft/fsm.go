// Package raft contains the log-ordered write engine. Every mutation is
// appended to a hashicorp/raft log and applied to the store by the FSM, one
// entry at a time, in log order.
package raft

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ASHISH26940/heliokv/internal/store"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
)

// Command operations carried in the raft log.
const (
	OpCreate = "CREATE"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// DataStore is the interface our FSM needs to interact with the storage layer.
type DataStore interface {
	Insert(key, timestamp int64, data []byte) (store.Entry, error)
	CompareAndUpdate(key, expected, timestamp int64, data []byte) (store.Entry, error)
	Delete(key int64) (store.Entry, error)
	Snapshot() map[int64]store.Entry
	Restore(entries map[int64]store.Entry)
}

// Command represents a single mutation committed to the raft log.
type Command struct {
	Op        string `json:"op"`
	Key       int64  `json:"key"`
	Version   int64  `json:"version,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

// applyResult is what FSM.Apply hands back through the apply future.
type applyResult struct {
	entry store.Entry
	err   error
}

// FSM is a Finite State Machine that applies raft log entries to the store.
type FSM struct {
	store  DataStore
	logger hclog.Logger
}

// NewFSM creates a new FSM over the given data store.
func NewFSM(store DataStore, logger hclog.Logger) *FSM {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FSM{
		store:  store,
		logger: logger,
	}
}

// Apply applies a raft log entry to the store and returns an *applyResult.
func (f *FSM) Apply(logEntry *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(logEntry.Data, &cmd); err != nil {
		f.logger.Error("failed to decode command", "index", logEntry.Index, "error", err)
		return &applyResult{err: fmt.Errorf("decode command at index %d: %w", logEntry.Index, err)}
	}

	f.logger.Debug("applying command", "index", logEntry.Index, "op", cmd.Op, "key", cmd.Key)

	switch cmd.Op {
	case OpCreate:
		e, err := f.store.Insert(cmd.Key, cmd.Timestamp, cmd.Data)
		return &applyResult{entry: e, err: err}
	case OpUpdate:
		e, err := f.store.CompareAndUpdate(cmd.Key, cmd.Version, cmd.Timestamp, cmd.Data)
		return &applyResult{entry: e, err: err}
	case OpDelete:
		e, err := f.store.Delete(cmd.Key)
		return &applyResult{entry: e, err: err}
	default:
		f.logger.Warn("unrecognized command op", "op", cmd.Op)
		return &applyResult{err: fmt.Errorf("unrecognized command op %q", cmd.Op)}
	}
}

// Snapshot captures a point-in-time copy of the store for log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{entries: f.store.Snapshot()}, nil
}

// Restore replaces the store contents with a snapshot written by Persist.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	entries := make(map[int64]store.Entry)
	if err := json.NewDecoder(rc).Decode(&entries); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	f.store.Restore(entries)
	f.logger.Info("restored store from snapshot", "keys", len(entries))
	return nil
}

type fsmSnapshot struct {
	entries map[int64]store.Entry
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.entries); err != nil {
		_ = sink.Cancel()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
