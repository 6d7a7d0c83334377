// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"github.com/nuno1212s/dumbo/aba"
	"github.com/nuno1212s/dumbo/rbc"
	"github.com/nuno1212s/dumbo/types"
)

// NodePhase is one owner's position in its per-epoch lifecycle:
// RunningValueRBC -> RunningABA -> Completed. ABA only starts for
// owners who were elected to the committee; others never leave
// RunningValueRBC (their value simply feeds the committee-member
// owners' index-RBC bitmaps once finalized).
type NodePhase int

const (
	RunningValueRBC NodePhase = iota
	RunningABA
	Completed
)

func (p NodePhase) String() string {
	switch p {
	case RunningValueRBC:
		return "running_value_rbc"
	case RunningABA:
		return "running_aba"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// nodeExecution is one owner's per-epoch state: a single tagged struct
// the phase field discriminates, with a transition method owning every
// legal move between phases (spec.md §9: "model each composite
// subprotocol as a tagged variant ... do not expose dummies to
// callers" — the Go analogue of the Rust source's
// mem::replace-into-a-dummy trick).
type nodeExecution struct {
	owner types.NodeID
	phase NodePhase

	valueRBC *rbc.Instance

	payload []byte
	digest  types.Digest

	isCommitteeMember bool
	aba               *aba.Instance
	pendingABA        []Message

	decidedValue bool
}

// enqueuePendingABA buffers an ABA message that arrived before this
// owner's ABA instance existed (the owner's Value-RBC hasn't finalized
// enough peers yet to start the committee-wide ABA phase). Drained by
// the epoch once the owner's ABA starts.
func (n *nodeExecution) enqueuePendingABA(msg Message) {
	n.pendingABA = append(n.pendingABA, msg)
}

func newNodeExecution(owner types.NodeID, valueRBC *rbc.Instance) *nodeExecution {
	return &nodeExecution{owner: owner, phase: RunningValueRBC, valueRBC: valueRBC}
}

// completeValueRBC transitions RunningValueRBC -> RunningValueRBC,
// recording the finalized payload. The owner only actually leaves
// RunningValueRBC once its ABA is started (transitionToABA), since a
// non-committee owner's value-RBC has no further phase to reach.
func (n *nodeExecution) completeValueRBC(payload []byte, digest types.Digest) {
	n.payload = payload
	n.digest = digest
}

// transitionToABA installs this owner's ABA instance and moves the
// node to RunningABA. Only called for committee-member owners, at
// most once.
func (n *nodeExecution) transitionToABA(instance *aba.Instance) {
	n.isCommitteeMember = true
	n.aba = instance
	n.phase = RunningABA
}

// transitionToCompleted finalizes this owner's contribution to the
// epoch's output once its ABA has decided.
func (n *nodeExecution) transitionToCompleted(value bool) {
	n.decidedValue = value
	n.phase = Completed
}
