// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package aba implements the Mostéfaoui-Moniz-Raynal asynchronous
// binary agreement round (spec.md §4.4, component C4) and the
// round-advancing instance that drives it across round boundaries
// (spec.md §4.5, component C5). Translated from the Rust source's
// RoundData/AsyncBinaryAgreementState (see DESIGN.md); the Finish
// amplification phase is built from spec.md §4.4 directly per the
// resolved Open Question on which source variant to follow.
package aba

import (
	"fmt"

	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/types"
)

// Phase is a round's monotonic position in the MMR state machine.
type Phase int

const (
	CollectingVal Phase = iota
	CollectingAux
	CollectingConf
	Finishing
)

func (p Phase) String() string {
	switch p {
	case CollectingVal:
		return "collecting_val"
	case CollectingAux:
		return "collecting_aux"
	case CollectingConf:
		return "collecting_conf"
	case Finishing:
		return "finishing"
	default:
		return "unknown"
	}
}

// OutcomeKind is one of RoundDataVoteAcceptResult's variants.
type OutcomeKind int

const (
	Accepted OutcomeKind = iota
	Ignored
	AlreadyAccepted
	Queue
	BroadcastEst
	BroadcastAux
	BroadcastConf
	BroadcastFinalized
	Failed
	Finalized
)

// Outcome is the result of feeding one vote into a Round. Bool carries
// the payload for BroadcastEst/BroadcastFinalized/Failed/Finalized;
// Set carries it for BroadcastAux/BroadcastConf.
type Outcome struct {
	Kind OutcomeKind
	Bool bool
	Set  ValueSet
}

// confVotes tracks, per claimed feasible-value set F, the distinct
// signers and their partial signatures over this round's coin message
// — the data accept_confirmation needs to combine once 2f+1 signers on
// the same F are seen.
type confVotes struct {
	signers  *quorum.NodeSet
	partials map[types.NodeID]coin.PartialSignature
	// order preserves arrival order so CombineSignatures always picks
	// the same deterministic prefix once threshold is reached.
	order []types.NodeID
}

// Round is one RoundData: the per-round vote-collection state, keyed
// to a fixed round index (needed for the coin message) and a fixed
// estimate (the round's current candidate decision).
type Round struct {
	roundNo   uint64
	quorum    quorum.Info
	pubKeys   coin.PublicKeySet
	estimate  bool
	phase     Phase

	vals *quorum.Tally[bool]
	aux  *quorum.Tally[ValueSet]

	broadcastEstimates map[bool]bool
	broadcastFinish    map[bool]bool

	valuesR ValueSet

	confByValues map[ValueSet]*confVotes
	finish       *quorum.Tally[bool]
}

// NewRound constructs a fresh round at roundNo, collecting votes for
// estimate.
func NewRound(roundNo uint64, q quorum.Info, pubKeys coin.PublicKeySet, estimate bool) *Round {
	return &Round{
		roundNo:            roundNo,
		quorum:             q,
		pubKeys:            pubKeys,
		estimate:           estimate,
		phase:              CollectingVal,
		vals:               quorum.NewTally[bool](),
		aux:                quorum.NewTally[ValueSet](),
		broadcastEstimates: make(map[bool]bool),
		broadcastFinish:    make(map[bool]bool),
		confByValues:       make(map[ValueSet]*confVotes),
		finish:             quorum.NewTally[bool](),
	}
}

// Phase returns the round's current phase.
func (r *Round) Phase() Phase { return r.phase }

// Estimate returns the round's current candidate decision.
func (r *Round) Estimate() bool { return r.estimate }

// RoundNo returns this round's index, the value the common coin signs.
func (r *Round) RoundNo() uint64 { return r.roundNo }

// AcceptEstimate implements accept_estimate (spec.md §4.4).
func (r *Round) AcceptEstimate(sender types.NodeID, estimate bool) Outcome {
	if r.phase != CollectingVal {
		return Outcome{Kind: Ignored}
	}

	count, isNew := r.vals.Add(estimate, sender)
	if !isNew {
		return Outcome{Kind: AlreadyAccepted}
	}

	if count >= r.quorum.AdvanceThreshold() {
		r.valuesR = r.valuesR.Add(estimate)
		r.phase = CollectingAux
		return Outcome{Kind: BroadcastAux, Set: r.valuesR}
	}

	if count >= r.quorum.AmplifyThreshold() && !r.broadcastEstimates[estimate] {
		r.broadcastEstimates[estimate] = true
		return Outcome{Kind: BroadcastEst, Bool: estimate}
	}

	return Outcome{Kind: Accepted}
}

// AcceptAuxiliary implements accept_auxiliary (spec.md §4.4).
func (r *Round) AcceptAuxiliary(sender types.NodeID, s ValueSet) Outcome {
	switch r.phase {
	case CollectingVal:
		return Outcome{Kind: Queue}
	case CollectingAux:
	default:
		return Outcome{Kind: Ignored}
	}

	count, isNew := r.aux.Add(s, sender)
	if !isNew {
		return Outcome{Kind: AlreadyAccepted}
	}

	if count >= r.quorum.AdvanceThreshold() && s.Subset(r.valuesR) {
		r.phase = CollectingConf
		return Outcome{Kind: BroadcastConf, Set: r.valuesR}
	}

	return Outcome{Kind: Accepted}
}

// AcceptConfirmation implements accept_confirmation (spec.md §4.4).
// An error is returned only if signature combination fails despite a
// sufficient vote count (a corrupted partial from a Byzantine sender);
// Instance.Process treats it as a round failure with the round's
// current estimate, not a fatal one.
func (r *Round) AcceptConfirmation(sender types.NodeID, f ValueSet, sig coin.PartialSignature) (Outcome, error) {
	switch r.phase {
	case CollectingVal, CollectingAux:
		return Outcome{Kind: Queue}, nil
	case Finishing:
		return Outcome{Kind: Ignored}, nil
	}

	votes, ok := r.confByValues[f]
	if !ok {
		votes = &confVotes{signers: quorum.NewNodeSet(), partials: make(map[types.NodeID]coin.PartialSignature)}
		r.confByValues[f] = votes
	}

	if !votes.signers.Add(sender) {
		return Outcome{Kind: AlreadyAccepted}, nil
	}
	votes.partials[sender] = sig
	votes.order = append(votes.order, sender)

	if votes.signers.Len() < r.quorum.AdvanceThreshold() || !f.Subset(r.valuesR) {
		return Outcome{Kind: Accepted}, nil
	}

	return r.flipCoin(f, votes)
}

// flipCoin combines this round's common coin once a 2f+1 quorum of
// identically-claimed confirmations is reached.
func (r *Round) flipCoin(f ValueSet, votes *confVotes) (Outcome, error) {
	threshold := r.pubKeys.Threshold()
	partials := make([]coin.PartialSignature, 0, threshold)
	for _, node := range votes.order {
		partials = append(partials, votes.partials[node])
		if len(partials) == threshold {
			break
		}
	}

	combined, err := r.pubKeys.CombineSignatures(coin.CoinMessage(r.roundNo), partials)
	if err != nil {
		return Outcome{}, fmt.Errorf("aba: round %d coin combine: %w", r.roundNo, err)
	}
	coinBit := coin.Flip(combined)

	if f.Len() != 1 {
		return Outcome{Kind: Failed, Bool: coinBit}, nil
	}

	v, _ := f.Single()
	if v != coinBit {
		return Outcome{Kind: Failed, Bool: v}, nil
	}

	r.phase = Finishing
	r.estimate = coinBit
	if r.broadcastFinish[v] {
		return Outcome{Kind: Accepted}, nil
	}
	r.broadcastFinish[v] = true
	return Outcome{Kind: BroadcastFinalized, Bool: v}, nil
}

// AcceptFinish implements accept_finish (spec.md §4.4).
func (r *Round) AcceptFinish(sender types.NodeID, v bool) Outcome {
	if r.phase != Finishing {
		return Outcome{Kind: Queue}
	}

	count, isNew := r.finish.Add(v, sender)
	if !isNew {
		return Outcome{Kind: AlreadyAccepted}
	}

	if count >= r.quorum.AdvanceThreshold() {
		return Outcome{Kind: Finalized, Bool: v}
	}

	if count >= r.quorum.AmplifyThreshold() && !r.broadcastFinish[v] {
		r.broadcastFinish[v] = true
		return Outcome{Kind: BroadcastFinalized, Bool: v}
	}

	return Outcome{Kind: Accepted}
}
