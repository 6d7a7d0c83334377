// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pending buffers messages that arrive before the owning
// protocol instance is ready to process them: RBC buffers by message
// kind (echo vs. ready), ABA buffers by round number. Translated
// directly from the Rust source's PendingMessages (reliable_broadcast.rs,
// async_bin_agreement/pending_messages.rs); no teacher Go file does
// per-round buffering, so the shape is new but the discipline (FIFO
// within a key, lossless until explicitly rebased) is not.
package pending

// RBCQueue holds the two message kinds an RBC instance can receive
// out of phase: echoes that arrive while the instance is not Proposed,
// readies that arrive while it is not Echoed. A Send is never queued (spec.md §4.3 rule 1: a
// second Send is simply Ignored).
type RBCQueue[M any] struct {
	echoes  []M
	readies []M
}

// NewRBCQueue returns an empty RBCQueue.
func NewRBCQueue[M any]() *RBCQueue[M] {
	return &RBCQueue[M]{}
}

// EnqueueEcho appends an out-of-phase Echo message.
func (q *RBCQueue[M]) EnqueueEcho(m M) {
	q.echoes = append(q.echoes, m)
}

// EnqueueReady appends an out-of-phase Ready message.
func (q *RBCQueue[M]) EnqueueReady(m M) {
	q.readies = append(q.readies, m)
}

// DequeueEcho pops the oldest queued Echo, if any.
func (q *RBCQueue[M]) DequeueEcho() (m M, ok bool) {
	if len(q.echoes) == 0 {
		return m, false
	}
	m = q.echoes[0]
	q.echoes = q.echoes[1:]
	return m, true
}

// DequeueReady pops the oldest queued Ready, if any.
func (q *RBCQueue[M]) DequeueReady() (m M, ok bool) {
	if len(q.readies) == 0 {
		return m, false
	}
	m = q.readies[0]
	q.readies = q.readies[1:]
	return m, true
}

// HasEchoes reports whether any Echo is buffered.
func (q *RBCQueue[M]) HasEchoes() bool { return len(q.echoes) > 0 }

// HasReadies reports whether any Ready is buffered.
func (q *RBCQueue[M]) HasReadies() bool { return len(q.readies) > 0 }

// ABAQueue is a dense per-round buffer: message for round r (relative
// to the queue's base) lives in bucket r-base. AdvanceBase drops every
// bucket below the new base, matching the instance invariant that
// messages for rounds below the current round are never observable
// again (spec.md §4.2, §4.5 "r < current round: Ignored").
type ABAQueue[M any] struct {
	base    uint64
	buckets [][]M
}

// NewABAQueue returns an ABAQueue rebased at round 0.
func NewABAQueue[M any]() *ABAQueue[M] {
	return &ABAQueue[M]{}
}

// Enqueue buffers m for round. round must be >= the queue's current
// base; callers are expected to have already checked that (the ABA
// instance never enqueues a message for a round it has passed).
func (q *ABAQueue[M]) Enqueue(round uint64, m M) {
	idx := int(round - q.base)
	for len(q.buckets) <= idx {
		q.buckets = append(q.buckets, nil)
	}
	q.buckets[idx] = append(q.buckets[idx], m)
}

// Dequeue pops the oldest buffered message for round, if any.
func (q *ABAQueue[M]) Dequeue(round uint64) (m M, ok bool) {
	idx := int(round - q.base)
	if idx < 0 || idx >= len(q.buckets) || len(q.buckets[idx]) == 0 {
		return m, false
	}
	m = q.buckets[idx][0]
	q.buckets[idx] = q.buckets[idx][1:]
	return m, true
}

// AdvanceBase drops every bucket for a round below newBase and rebases
// the index so bucket 0 again corresponds to newBase. Buckets at or
// above newBase keep their queued messages in order.
func (q *ABAQueue[M]) AdvanceBase(newBase uint64) {
	if newBase <= q.base {
		return
	}
	shift := int(newBase - q.base)
	if shift >= len(q.buckets) {
		q.buckets = nil
	} else {
		q.buckets = append([][]M{}, q.buckets[shift:]...)
	}
	q.base = newBase
}

// Base returns the round number bucket 0 currently corresponds to.
func (q *ABAQueue[M]) Base() uint64 { return q.base }
