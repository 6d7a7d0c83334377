// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the identifiers shared across the whole engine:
// node identities, epoch sequence numbers, and message digests.
package types

import "fmt"

// NodeID is an opaque index into a QuorumInfo's member list, in [0, N).
// Unlike a PKI-derived identity, it carries no cryptographic meaning by
// itself; authentication of the sender is a transport concern (see §6
// of the specification).
type NodeID uint32

// String implements fmt.Stringer.
func (id NodeID) String() string {
	return fmt.Sprintf("n%d", uint32(id))
}

// SeqNo is a monotonic per-epoch counter starting at 1. SeqNo(0) is
// reserved and never assigned to a real epoch.
type SeqNo uint64

// Digest is a fixed-width cryptographic hash of an RBC payload.
type Digest [32]byte

// IsZero reports whether d is the zero digest (no payload hashed yet).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:8])
}
