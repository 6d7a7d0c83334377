// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dumbo

import (
	"github.com/nuno1212s/dumbo/aba"
	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/committee"
	"github.com/nuno1212s/dumbo/epoch"
	"github.com/nuno1212s/dumbo/rbc"
	"github.com/nuno1212s/dumbo/types"
)

// envelopeNetwork adapts the engine's outer Network (one Broadcast
// call per Envelope) into the epoch.Network seam a single Epoch
// expects, stamping every outbound call with the epoch's SeqNo and
// this node's id as sender. Mirrors the teacher's transport-adapter
// idiom of binding routing context the inner protocol doesn't carry
// itself (see epoch.rbcNetworkAdapter).
type envelopeNetwork struct {
	seqNo types.SeqNo
	self  types.NodeID
	net   Network
}

func (a envelopeNetwork) send(msg epoch.Message) {
	if a.net == nil {
		return
	}
	a.net.Broadcast(Envelope{SeqNo: a.seqNo, From: a.self, Msg: msg})
}

func (a envelopeNetwork) BroadcastValueEcho(owner types.NodeID, digest types.Digest) {
	a.send(epoch.Message{Kind: epoch.MsgValueRBC, Owner: owner,
		RBC: rbc.Message{Kind: rbc.KindEcho, From: a.self, Digest: digest}})
}

func (a envelopeNetwork) BroadcastValueReady(owner types.NodeID, digest types.Digest) {
	a.send(epoch.Message{Kind: epoch.MsgValueRBC, Owner: owner,
		RBC: rbc.Message{Kind: rbc.KindReady, From: a.self, Digest: digest}})
}

func (a envelopeNetwork) BroadcastIndexEcho(broadcaster types.NodeID, digest types.Digest) {
	a.send(epoch.Message{Kind: epoch.MsgIndexRBC, Owner: broadcaster,
		RBC: rbc.Message{Kind: rbc.KindEcho, From: a.self, Digest: digest}})
}

func (a envelopeNetwork) BroadcastIndexReady(broadcaster types.NodeID, digest types.Digest) {
	a.send(epoch.Message{Kind: epoch.MsgIndexRBC, Owner: broadcaster,
		RBC: rbc.Message{Kind: rbc.KindReady, From: a.self, Digest: digest}})
}

func (a envelopeNetwork) BroadcastCommittee(msg committee.Message) {
	a.send(epoch.Message{Kind: epoch.MsgCommitteeElection, Committee: msg})
}

func (a envelopeNetwork) BroadcastABAVal(owner types.NodeID, round uint64, b bool) {
	a.send(epoch.Message{Kind: epoch.MsgABA, Owner: owner,
		ABA: aba.Message{Kind: aba.MsgVal, From: a.self, Round: round, Bool: b}})
}

func (a envelopeNetwork) BroadcastABAAux(owner types.NodeID, round uint64, s aba.ValueSet) {
	a.send(epoch.Message{Kind: epoch.MsgABA, Owner: owner,
		ABA: aba.Message{Kind: aba.MsgAux, From: a.self, Round: round, Values: s}})
}

func (a envelopeNetwork) BroadcastABAConf(owner types.NodeID, round uint64, s aba.ValueSet, sig coin.PartialSignature) {
	a.send(epoch.Message{Kind: epoch.MsgABA, Owner: owner,
		ABA: aba.Message{Kind: aba.MsgConf, From: a.self, Round: round, Values: s, Signature: sig}})
}

func (a envelopeNetwork) BroadcastABAFinish(owner types.NodeID, round uint64, v bool) {
	a.send(epoch.Message{Kind: epoch.MsgABA, Owner: owner,
		ABA: aba.Message{Kind: aba.MsgFinish, From: a.self, Round: round, Bool: v}})
}
