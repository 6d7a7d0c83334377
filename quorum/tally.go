// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quorum

import (
	"sync"

	"github.com/nuno1212s/dumbo/types"
)

// NodeSet is a deduplicated set of NodeID, the building block every
// vote-counting threshold in this engine is built from: RBC's
// echoes_from/readies_from, and (via Tally) each bucket of ABA's
// vals_by_estimate/aux_by_set/finish_by_value.
type NodeSet struct {
	members map[types.NodeID]struct{}
}

// NewNodeSet returns an empty NodeSet.
func NewNodeSet() *NodeSet {
	return &NodeSet{members: make(map[types.NodeID]struct{})}
}

// Add records node. It returns false if node was already present, in
// which case the caller's vote is a duplicate and must not be counted
// twice (spec.md §4.3 "duplicate discipline", §4.4 "double-count").
func (s *NodeSet) Add(node types.NodeID) (isNew bool) {
	if _, ok := s.members[node]; ok {
		return false
	}
	s.members[node] = struct{}{}
	return true
}

// Has reports whether node has already voted into this set.
func (s *NodeSet) Has(node types.NodeID) bool {
	_, ok := s.members[node]
	return ok
}

// Len returns the number of distinct nodes recorded.
func (s *NodeSet) Len() int {
	return len(s.members)
}

// Tally buckets NodeSets by an arbitrary comparable key: ABA's
// vals_by_estimate and finish_by_value are Tally[bool], its aux_by_set
// (keyed by the accepted-value set) is Tally[ValueSet] (see package
// aba). Reads and writes are safe for concurrent use because the
// engine's outer harness makes no promise about which goroutine calls
// process_message vs. poll (spec.md §5).
type Tally[K comparable] struct {
	mu      sync.Mutex
	buckets map[K]*NodeSet
}

// NewTally returns an empty Tally.
func NewTally[K comparable]() *Tally[K] {
	return &Tally[K]{buckets: make(map[K]*NodeSet)}
}

// Add records node's vote for key. count is the number of distinct
// nodes that have voted for key after this call; isNew is false if
// node had already voted for key (the caller should report
// AlreadyAccepted and take no further action).
func (t *Tally[K]) Add(key K, node types.NodeID) (count int, isNew bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.buckets[key]
	if !ok {
		bucket = NewNodeSet()
		t.buckets[key] = bucket
	}
	isNew = bucket.Add(node)
	return bucket.Len(), isNew
}

// Count returns the number of distinct votes recorded for key.
func (t *Tally[K]) Count(key K) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	bucket, ok := t.buckets[key]
	if !ok {
		return 0
	}
	return bucket.Len()
}
