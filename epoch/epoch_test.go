// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nuno1212s/dumbo/aba"
	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/committee"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/rbc"
	"github.com/nuno1212s/dumbo/types"
)

// bus fans every broadcast out to every node's inbox, including the
// broadcaster's own (Bracha RBC and MMR ABA both require the sender to
// count its own vote like any other participant's).
type bus struct {
	inboxes map[types.NodeID][]Message
}

func newBus(members []types.NodeID) *bus {
	b := &bus{inboxes: make(map[types.NodeID][]Message, len(members))}
	for _, m := range members {
		b.inboxes[m] = nil
	}
	return b
}

func (b *bus) broadcast(msg Message) {
	for id := range b.inboxes {
		b.inboxes[id] = append(b.inboxes[id], msg)
	}
}

// netAdapter implements Network on behalf of one physical node,
// translating each subprotocol callback into the envelope the bus
// fans out.
type netAdapter struct {
	self types.NodeID
	bus  *bus
}

func (n netAdapter) BroadcastValueEcho(owner types.NodeID, d types.Digest) {
	n.bus.broadcast(Message{Kind: MsgValueRBC, Owner: owner, RBC: rbc.Message{Kind: rbc.KindEcho, From: n.self, Digest: d}})
}

func (n netAdapter) BroadcastValueReady(owner types.NodeID, d types.Digest) {
	n.bus.broadcast(Message{Kind: MsgValueRBC, Owner: owner, RBC: rbc.Message{Kind: rbc.KindReady, From: n.self, Digest: d}})
}

func (n netAdapter) BroadcastIndexEcho(broadcaster types.NodeID, d types.Digest) {
	n.bus.broadcast(Message{Kind: MsgIndexRBC, Owner: broadcaster, RBC: rbc.Message{Kind: rbc.KindEcho, From: n.self, Digest: d}})
}

func (n netAdapter) BroadcastIndexReady(broadcaster types.NodeID, d types.Digest) {
	n.bus.broadcast(Message{Kind: MsgIndexRBC, Owner: broadcaster, RBC: rbc.Message{Kind: rbc.KindReady, From: n.self, Digest: d}})
}

func (n netAdapter) BroadcastCommittee(msg committee.Message) {
	n.bus.broadcast(Message{Kind: MsgCommitteeElection, Committee: msg})
}

func (n netAdapter) BroadcastABAVal(owner types.NodeID, round uint64, b bool) {
	n.bus.broadcast(Message{Kind: MsgABA, Owner: owner, ABA: aba.Message{Kind: aba.MsgVal, From: n.self, Round: round, Bool: b}})
}

func (n netAdapter) BroadcastABAAux(owner types.NodeID, round uint64, s aba.ValueSet) {
	n.bus.broadcast(Message{Kind: MsgABA, Owner: owner, ABA: aba.Message{Kind: aba.MsgAux, From: n.self, Round: round, Values: s}})
}

func (n netAdapter) BroadcastABAConf(owner types.NodeID, round uint64, s aba.ValueSet, sig coin.PartialSignature) {
	n.bus.broadcast(Message{Kind: MsgABA, Owner: owner, ABA: aba.Message{Kind: aba.MsgConf, From: n.self, Round: round, Values: s, Signature: sig}})
}

func (n netAdapter) BroadcastABAFinish(owner types.NodeID, round uint64, v bool) {
	n.bus.broadcast(Message{Kind: MsgABA, Owner: owner, ABA: aba.Message{Kind: aba.MsgFinish, From: n.self, Round: round, Bool: v}})
}

// drain runs the simulation until no node has any inbox traffic or
// self-queued retry left, i.e. the system has quiesced.
func drain(t *testing.T, members []types.NodeID, epochs map[types.NodeID]*Epoch, nets map[types.NodeID]netAdapter, b *bus) {
	t.Helper()
	const maxTicks = 2000
	for tick := 0; tick < maxTicks; tick++ {
		progressed := false
		for _, id := range members {
			inbox := b.inboxes[id]
			b.inboxes[id] = nil
			for _, msg := range inbox {
				epochs[id].Process(msg, nets[id])
				progressed = true
			}
			for {
				msg, ok := epochs[id].Poll()
				if !ok {
					break
				}
				epochs[id].Process(msg, nets[id])
				progressed = true
			}
		}
		if !progressed {
			allDone := true
			for _, id := range members {
				if !epochs[id].Finalized() {
					allDone = false
					break
				}
			}
			if allDone {
				return
			}
			t.Fatalf("simulation quiesced without every node finalizing (tick %d)", tick)
		}
	}
	t.Fatalf("simulation did not converge within %d ticks", maxTicks)
}

// TestEpoch_FullHappyPath drives four full Epoch instances, wired
// together by an in-process bus standing in for the transport spec.md
// §6 leaves to the harness, through committee election, every owner's
// Value-RBC, the elected committee's index-RBCs, and every
// committee-member owner's ABA to a shared Finalized output — the
// epoch-level analogue of spec.md §8's per-subprotocol scenarios.
func TestEpoch_FullHappyPath(t *testing.T) {
	members := []types.NodeID{0, 1, 2, 3}
	q := quorum.MustNew(4, 1, members)
	pubKeys, parts := coin.DealTrusted(rand.Reader, q.CommitteeSize(), members)

	b := newBus(members)
	epochs := make(map[types.NodeID]*Epoch, len(members))
	nets := make(map[types.NodeID]netAdapter, len(members))

	for _, id := range members {
		factory := HashElectionFactory(7, pubKeys, nil)
		epochs[id] = New(7, id, q, pubKeys, parts[id], factory, nil, nil)
		nets[id] = netAdapter{self: id, bus: b}
	}

	for _, id := range members {
		payload := append([]byte("payload-from-"), byte('0'+id))
		epochs[id].Propose(payload, nets[id])
		epochs[id].StartCommitteeElection(nets[id])
	}

	drain(t, members, epochs, nets, b)

	for _, id := range members {
		require.True(t, epochs[id].Finalized(), "node %d must finalize", id)
	}

	owners0, payloads0 := epochs[0].Output()
	require.NotEmpty(t, owners0, "at least one owner's value must be decided included")

	for _, id := range members[1:] {
		owners, payloads := epochs[id].Output()
		require.Equal(t, owners0, owners, "every correct node must agree on the included owners")
		require.Equal(t, payloads0, payloads, "every correct node must agree on the included payloads")
	}
}
