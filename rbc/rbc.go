// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rbc implements one Bracha reliable-broadcast instance for a
// single designated sender (spec.md §4.3, component C3). Phases and
// thresholds are translated directly from the Rust source's
// ReliableBroadcastInstance (see DESIGN.md); vote counting is
// delegated to quorum.Tally/NodeSet.
package rbc

import (
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/nuno1212s/dumbo/logging"
	"github.com/nuno1212s/dumbo/pending"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/types"

	"go.uber.org/zap"
)

// Phase is the instance's position in the Bracha state machine.
type Phase int

const (
	// Init: no Send has been accepted yet.
	Init Phase = iota
	// Proposed: a Send was accepted; waiting on n-f echoes.
	Proposed
	// Echoed: n-f echoes seen; a Ready has been sent; waiting on 2f+1 readies.
	Echoed
	// Ready: 2f+1 readies seen; Finalize is now callable.
	Ready
)

func (p Phase) String() string {
	switch p {
	case Init:
		return "init"
	case Proposed:
		return "proposed"
	case Echoed:
		return "echoed"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Kind distinguishes the three wire message types an instance accepts.
type Kind int

const (
	KindSend Kind = iota
	KindEcho
	KindReady
)

// Message is one Send/Echo/Ready addressed to an RBC instance.
// Payload is only meaningful for Kind == KindSend; Digest is always
// populated (the sender computes it once, at Send time).
type Message struct {
	Kind    Kind
	From    types.NodeID
	Payload []byte
	Digest  types.Digest
}

// Digest hashes payload the way every RBC instance binds a Send to its
// echoes and readies: a single blake2b-256 sum.
func Digest(payload []byte) types.Digest {
	return blake2b.Sum256(payload)
}

// Result is the outcome of processing one Message, mirroring the Rust
// source's ReliableBroadcastResult.
type Result int

const (
	Ignored Result = iota
	Queued
	Progressed
	Finalized
)

func (r Result) String() string {
	switch r {
	case Ignored:
		return "ignored"
	case Queued:
		return "queued"
	case Progressed:
		return "progressed"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Network is the outbound side an instance broadcasts Echo/Ready
// through. Wire serialization and transport are out of scope
// (spec.md §6); this is the minimal seam a harness plugs transport
// into.
type Network interface {
	BroadcastEcho(digest types.Digest)
	BroadcastReady(digest types.Digest)
}

// Error is the taxonomy Finalize can return, named exactly after the
// Rust source's ReliableBroadcastError.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrNoProposedMessages: phase is Ready but no payload was ever
	// stored. Unreachable in practice (phase only reaches Ready after a
	// Send was accepted), kept to mirror the Rust source's exhaustive
	// match.
	ErrNoProposedMessages Error = "rbc: no proposed payload to finalize"
	// ErrNotReadyToFinalize: Finalize called before phase reached Ready.
	ErrNotReadyToFinalize Error = "rbc: instance is not ready to finalize"
)

// queuedMessage is buffered verbatim until the owning phase can
// consume it (Poll replays these in arrival order).
type queuedMessage struct {
	kind   Kind
	from   types.NodeID
	digest types.Digest
}

// Instance is one ReliableBroadcastInstance: the sender is fixed at
// construction, matching one RBC run per designated proposer.
type Instance struct {
	sender types.NodeID
	quorum quorum.Info
	log    logging.Logger

	phase Phase

	payload      []byte
	digest       types.Digest
	hasProposal  bool

	echoes  *quorum.NodeSet
	readies *quorum.NodeSet

	sentEcho  bool
	sentReady bool

	pending *pending.RBCQueue[queuedMessage]
}

// New creates a fresh Instance in phase Init for sender under q.
func New(sender types.NodeID, q quorum.Info, log logging.Logger) *Instance {
	if log == nil {
		log = logging.NewNoOp()
	}
	return &Instance{
		sender:  sender,
		quorum:  q,
		log:     log.With(zap.Stringer("rbc_sender", sender)),
		phase:   Init,
		echoes:  quorum.NewNodeSet(),
		readies: quorum.NewNodeSet(),
		pending: pending.NewRBCQueue[queuedMessage](),
	}
}

// Phase returns the instance's current phase.
func (i *Instance) Phase() Phase { return i.phase }

// Sender returns the designated broadcaster this instance tracks.
func (i *Instance) Sender() types.NodeID { return i.sender }

// HasPending reports whether poll would currently return a message.
func (i *Instance) HasPending() bool {
	switch i.phase {
	case Proposed:
		return i.pending.HasEchoes()
	case Echoed:
		return i.pending.HasReadies()
	default:
		return false
	}
}

// Poll returns a self-queued message now retriable under the current
// phase, if any. The caller is expected to feed it back through
// Process.
func (i *Instance) Poll() (Message, bool) {
	switch i.phase {
	case Proposed:
		qm, ok := i.pending.DequeueEcho()
		if !ok {
			return Message{}, false
		}
		return Message{Kind: KindEcho, From: qm.from, Digest: qm.digest}, true
	case Echoed:
		qm, ok := i.pending.DequeueReady()
		if !ok {
			return Message{}, false
		}
		return Message{Kind: KindReady, From: qm.from, Digest: qm.digest}, true
	default:
		return Message{}, false
	}
}

// Process advances the state machine by one Message, per spec.md
// §4.3's transition table.
func (i *Instance) Process(msg Message, network Network) Result {
	switch msg.Kind {
	case KindSend:
		return i.processSend(msg, network)
	case KindEcho:
		return i.processEcho(msg, network)
	case KindReady:
		return i.processReady(msg)
	default:
		return Ignored
	}
}

func (i *Instance) processSend(msg Message, network Network) Result {
	if i.hasProposal || i.phase != Init {
		i.log.Debug("ignoring duplicate send")
		return Ignored
	}

	i.payload = msg.Payload
	i.digest = msg.Digest
	i.hasProposal = true
	i.phase = Proposed

	if network != nil {
		network.BroadcastEcho(i.digest)
	}
	i.log.Debug("accepted send, broadcasting echo", zap.Stringer("digest", i.digest))
	return Progressed
}

func (i *Instance) processEcho(msg Message, network Network) Result {
	if i.phase != Proposed || msg.Digest != i.digest {
		return i.queueOrIgnore(msg)
	}

	isNew := i.echoes.Add(msg.From)
	if !isNew {
		return Progressed
	}

	if i.echoes.Len() >= i.quorum.EchoThreshold() && !i.sentEcho {
		i.phase = Echoed
		i.sentEcho = true
		if network != nil {
			network.BroadcastReady(i.digest)
		}
		i.log.Debug("echo threshold reached, broadcasting ready", zap.Int("echoes", i.echoes.Len()))
	}

	return Progressed
}

func (i *Instance) processReady(msg Message) Result {
	if i.phase != Echoed || msg.Digest != i.digest {
		return i.queueOrIgnore(msg)
	}

	isNew := i.readies.Add(msg.From)
	if !isNew {
		return Progressed
	}

	if i.readies.Len() > 2*i.quorum.F() && !i.sentReady {
		i.phase = Ready
		i.sentReady = true
		i.log.Debug("ready threshold reached, finalized", zap.Int("readies", i.readies.Len()))
		return Finalized
	}

	return Progressed
}

// queueOrIgnore implements the resolved Open Question #2 (SPEC_FULL.md
// §1): a conflicting digest is dropped, never queued. Only a
// wrong-phase message with a *matching* (or not-yet-known) digest is
// buffered for replay once the phase catches up.
func (i *Instance) queueOrIgnore(msg Message) Result {
	if i.hasProposal && msg.Digest != i.digest {
		i.log.Debug("ignoring conflicting digest", zap.Stringer("digest", msg.Digest))
		return Ignored
	}

	switch msg.Kind {
	case KindEcho:
		i.pending.EnqueueEcho(queuedMessage{kind: KindEcho, from: msg.From, digest: msg.Digest})
	case KindReady:
		i.pending.EnqueueReady(queuedMessage{kind: KindReady, from: msg.From, digest: msg.Digest})
	default:
		return Ignored
	}
	return Queued
}

// Finalize returns the delivered payload and its binding digest. It is
// only callable once phase has reached Ready.
func (i *Instance) Finalize() ([]byte, types.Digest, error) {
	if i.phase != Ready {
		return nil, types.Digest{}, fmt.Errorf("%w (phase=%s)", ErrNotReadyToFinalize, i.phase)
	}
	if !i.hasProposal {
		return nil, types.Digest{}, ErrNoProposedMessages
	}
	return i.payload, i.digest, nil
}
