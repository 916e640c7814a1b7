package raft

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ASHISH26940/heliokv/internal/store"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
)

// DefaultApplyTimeout bounds how long a mutation waits to be committed.
const DefaultApplyTimeout = 5 * time.Second

// ErrNoLeader is returned when the node fails to elect itself in time.
var ErrNoLeader = errors.New("raft node did not become leader")

// Config configures a Node.
type Config struct {
	NodeID       string
	ApplyTimeout time.Duration
	Logger       hclog.Logger
}

// Node is a single-voter raft instance running entirely in memory. It has no
// peers and writes nothing to disk; the log exists only to put every
// mutation in one total order ahead of the store.
type Node struct {
	raft         *raft.Raft
	transport    *raft.InmemTransport
	store        *store.Store
	applyTimeout time.Duration
	logger       hclog.Logger
}

// NewNode bootstraps a single-voter cluster over st and waits until it leads.
func NewNode(st *store.Store, cfg Config) (*Node, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	applyTimeout := cfg.ApplyTimeout
	if applyTimeout <= 0 {
		applyTimeout = DefaultApplyTimeout
	}
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = "node-1"
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(nodeID)
	raftConfig.Logger = logger
	// A lone voter has nobody to wait for, so the timeouts only delay startup.
	raftConfig.HeartbeatTimeout = 50 * time.Millisecond
	raftConfig.ElectionTimeout = 50 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 50 * time.Millisecond
	raftConfig.CommitTimeout = 5 * time.Millisecond

	logStore := raft.NewInmemStore()
	snapshots := raft.NewInmemSnapshotStore()
	addr, transport := raft.NewInmemTransport("")

	fsm := NewFSM(st, logger.Named("fsm"))
	r, err := raft.NewRaft(raftConfig, fsm, logStore, logStore, snapshots, transport)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("create raft node: %w", err)
	}

	bootstrap := raft.Configuration{
		Servers: []raft.Server{
			{
				ID:      raftConfig.LocalID,
				Address: addr,
			},
		},
	}
	if err := r.BootstrapCluster(bootstrap).Error(); err != nil {
		_ = r.Shutdown().Error()
		_ = transport.Close()
		return nil, fmt.Errorf("bootstrap raft node: %w", err)
	}

	n := &Node{
		raft:         r,
		transport:    transport,
		store:        st,
		applyTimeout: applyTimeout,
		logger:       logger,
	}
	if err := n.waitLeader(10 * time.Second); err != nil {
		_ = n.Shutdown()
		return nil, err
	}
	logger.Info("raft node is leader", "id", nodeID, "addr", addr)
	return n, nil
}

func (n *Node) waitLeader(timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if n.raft.State() == raft.Leader {
			return nil
		}
		select {
		case <-deadline:
			return ErrNoLeader
		case <-ticker.C:
		}
	}
}

// Insert commits a create command.
func (n *Node) Insert(key, timestamp int64, data []byte) (store.Entry, error) {
	return n.apply(Command{Op: OpCreate, Key: key, Timestamp: timestamp, Data: data})
}

// Get reads straight from the store; every acknowledged write has already
// been applied there.
func (n *Node) Get(key int64) (store.Entry, error) {
	return n.store.Get(key)
}

// CompareAndUpdate commits an update command carrying the expected version.
func (n *Node) CompareAndUpdate(key, expected, timestamp int64, data []byte) (store.Entry, error) {
	return n.apply(Command{Op: OpUpdate, Key: key, Version: expected, Timestamp: timestamp, Data: data})
}

// Delete commits a delete command and returns the removed entry.
func (n *Node) Delete(key int64) (store.Entry, error) {
	return n.apply(Command{Op: OpDelete, Key: key})
}

func (n *Node) apply(cmd Command) (store.Entry, error) {
	cmdBytes, err := json.Marshal(cmd)
	if err != nil {
		return store.Entry{}, fmt.Errorf("marshal command: %w", err)
	}

	future := n.raft.Apply(cmdBytes, n.applyTimeout)
	if err := future.Error(); err != nil {
		return store.Entry{}, fmt.Errorf("apply %s: %w", cmd.Op, err)
	}
	res, ok := future.Response().(*applyResult)
	if !ok {
		return store.Entry{}, fmt.Errorf("apply %s: unexpected fsm response %T", cmd.Op, future.Response())
	}
	return res.entry, res.err
}

// Shutdown stops the raft instance and closes its transport.
func (n *Node) Shutdown() error {
	err := n.raft.Shutdown().Error()
	if cerr := n.transport.Close(); err == nil {
		err = cerr
	}
	return err
}
