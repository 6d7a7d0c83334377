// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dumbo

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/config"
	"github.com/nuno1212s/dumbo/epoch"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/types"
)

// bus fans every Envelope out to every node's inbox, the
// engine-level analogue of epoch's in-process bus (see
// epoch/epoch_test.go).
type bus struct {
	inboxes map[types.NodeID][]Envelope
}

func newBus(members []types.NodeID) *bus {
	b := &bus{inboxes: make(map[types.NodeID][]Envelope, len(members))}
	for _, m := range members {
		b.inboxes[m] = nil
	}
	return b
}

type busNetwork struct{ bus *bus }

func (n busNetwork) Broadcast(envelope Envelope) {
	for id := range n.bus.inboxes {
		n.bus.inboxes[id] = append(n.bus.inboxes[id], envelope)
	}
}

// drain runs ProcessMessage/Poll across every engine until no inbox
// traffic or self-queued retry remains anywhere.
func drain(t *testing.T, members []types.NodeID, engines map[types.NodeID]*Engine, net busNetwork, b *bus, seqNo types.SeqNo) {
	t.Helper()
	const maxTicks = 2000
	for tick := 0; tick < maxTicks; tick++ {
		progressed := false
		for _, id := range members {
			inbox := b.inboxes[id]
			b.inboxes[id] = nil
			for _, envelope := range inbox {
				engines[id].ProcessMessage(envelope, net)
				progressed = true
			}
			for {
				envelope, ok := engines[id].Poll()
				if !ok {
					break
				}
				engines[id].ProcessMessage(envelope, net)
				progressed = true
			}
		}
		if !progressed {
			allDone := true
			for _, id := range members {
				if _, _, ok := engines[id].Output(seqNo); !ok {
					allDone = false
					break
				}
			}
			if allDone {
				return
			}
			t.Fatalf("simulation quiesced without every node finalizing epoch %d (tick %d)", seqNo, tick)
		}
	}
	t.Fatalf("simulation did not converge within %d ticks", maxTicks)
}

func newTestEngines(t *testing.T, members []types.NodeID, q quorum.Info) (map[types.NodeID]*Engine, busNetwork, *bus) {
	t.Helper()
	pubKeys, parts := coin.DealTrusted(rand.Reader, q.CommitteeSize(), members)
	params := config.LocalParams()

	b := newBus(members)
	engines := make(map[types.NodeID]*Engine, len(members))
	for _, id := range members {
		engines[id] = New(id, q, pubKeys, parts[id], params, nil, nil)
	}
	return engines, busNetwork{bus: b}, b
}

// TestEngine_FullHappyPath drives four Engines, each wrapping one
// Epoch at SeqNo 1, through committee election/Value-RBC/index-RBC/
// ABA to a shared Finalized decision via ProcessMessage/Poll alone —
// the engine-level analogue of epoch.TestEpoch_FullHappyPath.
func TestEngine_FullHappyPath(t *testing.T) {
	members := []types.NodeID{0, 1, 2, 3}
	q := quorum.MustNew(4, 1, members)
	engines, net, b := newTestEngines(t, members, q)

	const seqNo types.SeqNo = 1
	for _, id := range members {
		payload := append([]byte("payload-from-"), byte('0'+id))
		require.True(t, engines[id].Propose(seqNo, payload, net))
	}

	drain(t, members, engines, net, b, seqNo)

	owners0, payloads0, ok := engines[0].Output(seqNo)
	require.True(t, ok)
	require.NotEmpty(t, owners0)

	for _, id := range members[1:] {
		owners, payloads, ok := engines[id].Output(seqNo)
		require.True(t, ok)
		require.Equal(t, owners0, owners)
		require.Equal(t, payloads0, payloads)
	}
}

func singleNodeEngine(t *testing.T) *Engine {
	t.Helper()
	members := []types.NodeID{0, 1, 2, 3}
	q := quorum.MustNew(4, 1, members)
	pubKeys, parts := coin.DealTrusted(rand.Reader, q.CommitteeSize(), members)
	return New(0, q, pubKeys, parts[0], config.LocalParams(), nil, nil)
}

func TestEngine_StartsAtEpochOne(t *testing.T) {
	e := singleNodeEngine(t)
	require.Equal(t, types.SeqNo(1), e.CurrentEpoch())
}

func TestEngine_ProcessMessageDropsBelowWindow(t *testing.T) {
	e := singleNodeEngine(t)
	e.InstallSeqNo(5)

	result := e.ProcessMessage(Envelope{SeqNo: 3}, nil)
	require.Equal(t, Ignored, result.Kind)
	require.ErrorIs(t, result.Err, types.ErrUnknownEpoch)
}

func TestEngine_ProcessMessageDropsAheadOfWindow(t *testing.T) {
	e := singleNodeEngine(t)
	farAhead := e.CurrentEpoch() + types.SeqNo(e.params.EpochWindow) + 1

	result := e.ProcessMessage(Envelope{SeqNo: farAhead}, nil)
	require.Equal(t, Ignored, result.Kind)
	require.ErrorIs(t, result.Err, types.ErrUnknownEpoch)
}

func TestEngine_ProcessMessageDropsMessageFromNonMember(t *testing.T) {
	e := singleNodeEngine(t)
	require.True(t, e.Propose(1, []byte("hello"), nil))

	result := e.ProcessMessage(Envelope{SeqNo: 1, From: 99, Msg: epoch.Message{}}, nil)
	require.Equal(t, Ignored, result.Kind)
	require.ErrorIs(t, result.Err, types.ErrUnknownNode)
}

func TestEngine_InstallSeqNoTrimsEarlierEpochs(t *testing.T) {
	e := singleNodeEngine(t)
	require.True(t, e.Propose(1, []byte("hello"), nil))

	_, _, ok := e.Output(1)
	require.False(t, ok, "epoch 1 has not finalized yet")

	e.InstallSeqNo(2)
	require.Equal(t, types.SeqNo(2), e.CurrentEpoch())

	result := e.ProcessMessage(Envelope{SeqNo: 1}, nil)
	require.Equal(t, Ignored, result.Kind, "epoch 1 must have been trimmed")
}

func TestEngine_InstallSeqNoIgnoresRegression(t *testing.T) {
	e := singleNodeEngine(t)
	e.InstallSeqNo(5)
	e.InstallSeqNo(3)
	require.Equal(t, types.SeqNo(5), e.CurrentEpoch())
}

func TestEngine_HandleOffCtxMessageDoesNotMoveCursor(t *testing.T) {
	e := singleNodeEngine(t)
	require.True(t, e.Propose(1, []byte("hello"), nil))

	before := e.CurrentEpoch()
	e.HandleOffCtxMessage(Envelope{SeqNo: 1}, nil)
	require.Equal(t, before, e.CurrentEpoch())
}

func TestEngine_HandleOffCtxMessageIgnoresUnknownEpoch(t *testing.T) {
	e := singleNodeEngine(t)
	result := e.HandleOffCtxMessage(Envelope{SeqNo: 99}, nil)
	require.Equal(t, Ignored, result.Kind)
	require.ErrorIs(t, result.Err, types.ErrUnknownEpoch)
}

func TestEngine_HandleExecutionChangedSuspendsOutputs(t *testing.T) {
	members := []types.NodeID{0, 1, 2, 3}
	q := quorum.MustNew(4, 1, members)
	engines, net, b := newTestEngines(t, members, q)

	const seqNo types.SeqNo = 1
	for _, id := range members {
		engines[id].HandleExecutionChanged(false)
	}
	for _, id := range members {
		payload := append([]byte("payload-from-"), byte('0'+id))
		require.True(t, engines[id].Propose(seqNo, payload, net))
	}

	drain(t, members, engines, net, b, seqNo)

	for _, id := range members {
		require.Equal(t, []types.SeqNo{seqNo}, engines[id].DrainSuspendedOutputs())
		require.Empty(t, engines[id].DrainSuspendedOutputs(), "drained once, must be empty on re-read")
	}
}

func TestToleranceConstants_MatchMinimalRatio(t *testing.T) {
	require.Equal(t, 4, Tolerance.NForF(1))
	require.Equal(t, 1, Tolerance.FForN(4))
	require.Equal(t, 3, Tolerance.QuorumForN(4))

	require.Equal(t, 100, Tolerance.NForF(33))
	require.Equal(t, 33, Tolerance.FForN(100))
	require.Equal(t, 67, Tolerance.QuorumForN(100))
}
