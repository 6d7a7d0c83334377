// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aba

import (
	"go.uber.org/zap"

	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/logging"
	"github.com/nuno1212s/dumbo/metrics"
	"github.com/nuno1212s/dumbo/pending"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/types"
)

// MsgKind distinguishes the four ABA wire message types.
type MsgKind int

const (
	MsgVal MsgKind = iota
	MsgAux
	MsgConf
	MsgFinish
)

// Message is one Val/Aux/Conf/Finish addressed to an ABA instance.
type Message struct {
	Kind      MsgKind
	From      types.NodeID
	Round     uint64
	Bool      bool             // Val, Finish
	Values    ValueSet         // Aux, Conf
	Signature coin.PartialSignature // Conf only
}

// Network is the outbound side an instance broadcasts Val/Aux/Conf/
// Finish through.
type Network interface {
	BroadcastVal(round uint64, b bool)
	BroadcastAux(round uint64, s ValueSet)
	BroadcastConf(round uint64, s ValueSet, sig coin.PartialSignature)
	BroadcastFinish(round uint64, v bool)
}

// ResultKind is the outcome Instance.Process reports to its caller.
type ResultKind int

const (
	ResultIgnored ResultKind = iota
	ResultQueued
	ResultAlreadyAccepted
	ResultProcessed
	ResultDecided
)

// Result is Instance.Process's return value. Value is only meaningful
// when Kind == ResultDecided.
type Result struct {
	Kind  ResultKind
	Value bool
}

// Instance drives Round across round boundaries, per spec.md §4.5.
type Instance struct {
	self       types.NodeID
	quorum     quorum.Info
	pubKeys    coin.PublicKeySet
	myKeyPart  coin.PrivateKeyPart
	log        logging.Logger
	metrics    *metrics.Metrics

	currentRound uint64
	round        *Round
	priorRounds  int

	pendingByRound *pending.ABAQueue[Message]

	decided      bool
	decidedValue bool
}

// New creates an Instance at round 0, seeded with inputBit as its
// first estimate. A nil m defaults to metrics.NewNoOp(), the same
// convention epoch.New and dumbo.New use.
func New(self types.NodeID, q quorum.Info, pubKeys coin.PublicKeySet, myKeyPart coin.PrivateKeyPart, inputBit bool, log logging.Logger, m *metrics.Metrics) *Instance {
	if log == nil {
		log = logging.NewNoOp()
	}
	if m == nil {
		m = metrics.NewNoOp()
	}
	return &Instance{
		self:           self,
		quorum:         q,
		pubKeys:        pubKeys,
		myKeyPart:      myKeyPart,
		log:            log.With(zap.Stringer("aba_self", self)),
		metrics:        m,
		currentRound:   0,
		round:          NewRound(0, q, pubKeys, inputBit),
		pendingByRound: pending.NewABAQueue[Message](),
	}
}

// CurrentRound returns the round index the instance is actively
// collecting votes for.
func (i *Instance) CurrentRound() uint64 { return i.currentRound }

// Start broadcasts this instance's initial estimate as a Val message.
// It is the one action the round state machine never triggers on its
// own: every other broadcast is a direct reaction to crossing a vote
// threshold, but the very first Val has no triggering vote.
func (i *Instance) Start(network Network) {
	if network != nil {
		network.BroadcastVal(i.currentRound, i.round.Estimate())
	}
}

// Phase returns the current round's phase.
func (i *Instance) Phase() Phase { return i.round.Phase() }

// Decided reports whether this instance has reached a final decision,
// and the decided value if so.
func (i *Instance) Decided() (bool, bool) { return i.decided, i.decidedValue }

// Poll returns a self-queued message now retriable under the current
// round, if any.
func (i *Instance) Poll() (Message, bool) {
	return i.pendingByRound.Dequeue(i.currentRound)
}

// Process advances the instance by one Message, per spec.md §4.5.
func (i *Instance) Process(msg Message, network Network) Result {
	if msg.Round > i.currentRound {
		i.pendingByRound.Enqueue(msg.Round, msg)
		return Result{Kind: ResultQueued}
	}
	if msg.Round < i.currentRound {
		return Result{Kind: ResultIgnored}
	}

	var outcome Outcome
	switch msg.Kind {
	case MsgVal:
		outcome = i.round.AcceptEstimate(msg.From, msg.Bool)
	case MsgAux:
		outcome = i.round.AcceptAuxiliary(msg.From, msg.Values)
	case MsgConf:
		var err error
		outcome, err = i.round.AcceptConfirmation(msg.From, msg.Values, msg.Signature)
		if err != nil {
			i.log.Warn("coin combine failed, failing the round", zap.Error(err))
			outcome = Outcome{Kind: Failed, Bool: i.round.Estimate()}
		}
	case MsgFinish:
		outcome = i.round.AcceptFinish(msg.From, msg.Bool)
	default:
		return Result{Kind: ResultIgnored}
	}

	return i.applyOutcome(outcome, msg, network)
}

func (i *Instance) applyOutcome(outcome Outcome, msg Message, network Network) Result {
	switch outcome.Kind {
	case Accepted:
		return Result{Kind: ResultProcessed}
	case Ignored:
		return Result{Kind: ResultIgnored}
	case AlreadyAccepted:
		return Result{Kind: ResultAlreadyAccepted}
	case Queue:
		i.pendingByRound.Enqueue(i.currentRound, msg)
		return Result{Kind: ResultQueued}
	case BroadcastEst:
		if network != nil {
			network.BroadcastVal(i.currentRound, outcome.Bool)
		}
		return Result{Kind: ResultProcessed}
	case BroadcastAux:
		if network != nil {
			network.BroadcastAux(i.currentRound, outcome.Set)
		}
		return Result{Kind: ResultProcessed}
	case BroadcastConf:
		i.signAndBroadcastConf(outcome.Set, network)
		return Result{Kind: ResultProcessed}
	case BroadcastFinalized:
		if network != nil {
			network.BroadcastFinish(i.currentRound, outcome.Bool)
		}
		return Result{Kind: ResultProcessed}
	case Failed:
		i.advanceRound(outcome.Bool)
		if network != nil {
			network.BroadcastVal(i.currentRound, i.round.Estimate())
		}
		return Result{Kind: ResultProcessed}
	case Finalized:
		if !i.decided {
			i.decided = true
			i.decidedValue = outcome.Bool
			i.log.Info("aba decided", zap.Bool("value", outcome.Bool), zap.Uint64("round", i.currentRound))
		}
		return Result{Kind: ResultDecided, Value: outcome.Bool}
	default:
		return Result{Kind: ResultIgnored}
	}
}

// signAndBroadcastConf produces this node's partial signature over the
// round's coin message and broadcasts the resulting Conf message. The
// round state machine itself only ever sees a PublicKeySet (it cannot
// sign); signing is an instance-level act, same split the Rust source
// draws between RoundData and the node's own key share.
func (i *Instance) signAndBroadcastConf(values ValueSet, network Network) {
	sig, err := i.myKeyPart.Sign(coin.CoinMessage(i.currentRound))
	if err != nil {
		i.log.Warn("failed to sign confirmation", zap.Error(err))
		return
	}
	if network != nil {
		network.BroadcastConf(i.currentRound, values, sig)
	}
}

// advanceRound implements advance_round (spec.md §4.5): the current
// round is retired, a fresh round collects votes for nextEstimate, and
// messages buffered for the new round remain queued for poll.
func (i *Instance) advanceRound(nextEstimate bool) {
	i.priorRounds++
	i.currentRound++
	i.round = NewRound(i.currentRound, i.quorum, i.pubKeys, nextEstimate)
	i.pendingByRound.AdvanceBase(i.currentRound)
	i.metrics.ABARoundsAdvanced.Inc()

	i.log.Debug("aba round advanced", zap.Uint64("round", i.currentRound), zap.Bool("estimate", nextEstimate))
}
