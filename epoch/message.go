// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package epoch composes the RBC, ABA, and committee-election
// subprotocols into one invocation of atomic broadcast (spec.md §4.7,
// component C7). Grounded on the Rust source's DumboRound (see
// DESIGN.md): message dispatch by type, per-node execution state
// modeled as a single tagged struct with a transition() method instead
// of the source's swap-in-a-dummy trick (spec.md §9's guidance).
package epoch

import (
	"github.com/nuno1212s/dumbo/aba"
	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/committee"
	"github.com/nuno1212s/dumbo/rbc"
	"github.com/nuno1212s/dumbo/types"
)

// MsgKind distinguishes the four message families spec.md §4.7 routes.
type MsgKind int

const (
	MsgCommitteeElection MsgKind = iota
	MsgValueRBC
	MsgIndexRBC
	MsgABA
)

// Message is the envelope every epoch-scoped wire message is wrapped
// in. Owner identifies which per-node execution state a
// MsgValueRBC/MsgIndexRBC/MsgABA message belongs to: the Value-RBC/ABA
// owner for those two kinds, and the committee member broadcasting its
// readiness bitmap for MsgIndexRBC.
type Message struct {
	Kind  MsgKind
	Owner types.NodeID

	Committee committee.Message
	RBC       rbc.Message
	ABA       aba.Message
}

// Network is the outbound side an Epoch multiplexes every subprotocol
// broadcast through, keyed by owner/broadcaster so one injected
// network seam serves every Value-RBC, index-RBC, ABA, and committee
// instance the epoch drives.
type Network interface {
	BroadcastValueEcho(owner types.NodeID, digest types.Digest)
	BroadcastValueReady(owner types.NodeID, digest types.Digest)
	BroadcastIndexEcho(broadcaster types.NodeID, digest types.Digest)
	BroadcastIndexReady(broadcaster types.NodeID, digest types.Digest)
	BroadcastCommittee(msg committee.Message)
	BroadcastABAVal(owner types.NodeID, round uint64, b bool)
	BroadcastABAAux(owner types.NodeID, round uint64, s aba.ValueSet)
	BroadcastABAConf(owner types.NodeID, round uint64, s aba.ValueSet, sig coin.PartialSignature)
	BroadcastABAFinish(owner types.NodeID, round uint64, v bool)
}

// rbcNetworkAdapter binds one owner/broadcaster id to the epoch's
// multiplexed Network so a plain rbc.Instance can be driven without
// knowing about epochs at all (mirrors the Rust source's
// SendNodeWrapperRef, a per-call network adapter carrying the routing
// context the inner protocol doesn't need to know about).
type rbcNetworkAdapter struct {
	owner   types.NodeID
	net     Network
	isIndex bool
}

func (a rbcNetworkAdapter) BroadcastEcho(digest types.Digest) {
	if a.net == nil {
		return
	}
	if a.isIndex {
		a.net.BroadcastIndexEcho(a.owner, digest)
	} else {
		a.net.BroadcastValueEcho(a.owner, digest)
	}
}

func (a rbcNetworkAdapter) BroadcastReady(digest types.Digest) {
	if a.net == nil {
		return
	}
	if a.isIndex {
		a.net.BroadcastIndexReady(a.owner, digest)
	} else {
		a.net.BroadcastValueReady(a.owner, digest)
	}
}

type abaNetworkAdapter struct {
	owner types.NodeID
	net   Network
}

func (a abaNetworkAdapter) BroadcastVal(round uint64, b bool) {
	if a.net != nil {
		a.net.BroadcastABAVal(a.owner, round, b)
	}
}

func (a abaNetworkAdapter) BroadcastAux(round uint64, s aba.ValueSet) {
	if a.net != nil {
		a.net.BroadcastABAAux(a.owner, round, s)
	}
}

func (a abaNetworkAdapter) BroadcastConf(round uint64, s aba.ValueSet, sig coin.PartialSignature) {
	if a.net != nil {
		a.net.BroadcastABAConf(a.owner, round, s, sig)
	}
}

func (a abaNetworkAdapter) BroadcastFinish(round uint64, v bool) {
	if a.net != nil {
		a.net.BroadcastABAFinish(a.owner, round, v)
	}
}

type committeeNetworkAdapter struct{ net Network }

func (a committeeNetworkAdapter) Broadcast(msg committee.Message) {
	if a.net != nil {
		a.net.BroadcastCommittee(msg)
	}
}
