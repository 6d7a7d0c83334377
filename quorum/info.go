// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quorum holds the fault-model value type shared by every
// subprotocol (QuorumInfo) and the vote-tallying primitives (NodeSet,
// Tally) that RBC and ABA build their threshold checks on.
package quorum

import (
	"fmt"

	"github.com/nuno1212s/dumbo/types"
)

// Info is the immutable fault model and membership for one epoch:
// n >= 3f+1 nodes, of which up to f may be Byzantine. It is constructed
// once and never mutated afterwards (spec.md §3).
type Info struct {
	n           int
	f           int
	quorumSize  int
	members     []types.NodeID
	memberIndex map[types.NodeID]struct{}
}

// New constructs an Info, asserting n >= 3f+1, f >= 0, and that
// members holds exactly n pairwise-distinct ids. It returns
// types.ErrInvalidQuorum, wrapped with the specific violation, when any
// of those hold false.
func New(n, f int, members []types.NodeID) (Info, error) {
	if f < 0 || n < 3*f+1 {
		return Info{}, fmt.Errorf("%w: n=%d f=%d, require n >= 3f+1 and f >= 0", types.ErrInvalidQuorum, n, f)
	}
	if len(members) != n {
		return Info{}, fmt.Errorf("%w: member list length %d != n %d", types.ErrInvalidQuorum, len(members), n)
	}

	idx := make(map[types.NodeID]struct{}, n)
	for _, m := range members {
		if _, dup := idx[m]; dup {
			return Info{}, fmt.Errorf("%w: duplicate member %v in list", types.ErrInvalidQuorum, m)
		}
		idx[m] = struct{}{}
	}

	cp := make([]types.NodeID, n)
	copy(cp, members)

	return Info{
		n:           n,
		f:           f,
		quorumSize:  n - f,
		members:     cp,
		memberIndex: idx,
	}, nil
}

// MustNew is New, panicking on error. Reserved for call sites (tests,
// fixed local deployments) that already know their parameters are
// well-formed and would rather crash loudly than thread an error
// through a setup path that can't otherwise fail.
func MustNew(n, f int, members []types.NodeID) Info {
	q, err := New(n, f, members)
	if err != nil {
		panic(err)
	}
	return q
}

// N returns the total membership size.
func (q Info) N() int { return q.n }

// F returns the maximum number of Byzantine nodes tolerated.
func (q Info) F() int { return q.f }

// QuorumSize returns n - f, the classic BFT quorum size.
func (q Info) QuorumSize() int { return q.quorumSize }

// Members returns the ordered member list. The slice is a defensive
// copy; mutating it has no effect on q.
func (q Info) Members() []types.NodeID {
	cp := make([]types.NodeID, len(q.members))
	copy(cp, q.members)
	return cp
}

// IsMember reports whether id belongs to this quorum.
func (q Info) IsMember(id types.NodeID) bool {
	_, ok := q.memberIndex[id]
	return ok
}

// EchoThreshold is the number of Echo votes required to advance RBC
// out of Proposed: n - f.
func (q Info) EchoThreshold() int { return q.n - q.f }

// ReadyThreshold is the number of Ready votes required to finalize
// RBC: strictly more than 2f, i.e. 2f+1.
func (q Info) ReadyThreshold() int { return 2*q.f + 1 }

// AmplifyThreshold is ABA's f+1 amplification threshold (first node to
// see f+1 identical votes rebroadcasts, guaranteeing every correct
// node eventually sees f+1 too).
func (q Info) AmplifyThreshold() int { return q.f + 1 }

// AdvanceThreshold is ABA's 2f+1 threshold for moving to the next
// phase (Val->Aux, Aux->Conf, Conf->coin flip, Finish->decide).
func (q Info) AdvanceThreshold() int { return 2*q.f + 1 }

// CommitteeSize is the number of nodes the committee-election
// subprotocol must produce: f+1.
func (q Info) CommitteeSize() int { return q.f + 1 }
