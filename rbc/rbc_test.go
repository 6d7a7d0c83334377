// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rbc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/types"
)

func testQuorum() quorum.Info {
	return quorum.MustNew(4, 1, []types.NodeID{0, 1, 2, 3})
}

type fakeNetwork struct {
	echoesSent  int
	readiesSent int
}

func (n *fakeNetwork) BroadcastEcho(types.Digest)  { n.echoesSent++ }
func (n *fakeNetwork) BroadcastReady(types.Digest) { n.readiesSent++ }

// Scenario 1 (spec.md §8): RBC happy path.
func TestInstance_HappyPath(t *testing.T) {
	q := testQuorum()
	inst := New(0, q, nil)
	net := &fakeNetwork{}

	payload := []byte("batch")
	d := Digest(payload)

	require.Equal(t, Progressed, inst.Process(Message{Kind: KindSend, From: 0, Payload: payload, Digest: d}, net))
	require.Equal(t, Proposed, inst.Phase())

	require.Equal(t, Progressed, inst.Process(Message{Kind: KindEcho, From: 1, Digest: d}, net))
	require.Equal(t, Progressed, inst.Process(Message{Kind: KindEcho, From: 2, Digest: d}, net))
	require.Equal(t, Proposed, inst.Phase(), "two echoes are below n-f=3")
	require.Equal(t, 0, net.readiesSent, "ready only broadcast once threshold reached")

	require.Equal(t, Progressed, inst.Process(Message{Kind: KindEcho, From: 3, Digest: d}, net))
	require.Equal(t, Echoed, inst.Phase(), "n-f=3 echoes must flip to Echoed on the third")
	require.Equal(t, 1, net.readiesSent)

	require.Equal(t, Progressed, inst.Process(Message{Kind: KindReady, From: 1, Digest: d}, net))
	require.Equal(t, Progressed, inst.Process(Message{Kind: KindReady, From: 2, Digest: d}, net))
	require.Equal(t, Finalized, inst.Process(Message{Kind: KindReady, From: 3, Digest: d}, net))
	require.Equal(t, Ready, inst.Phase())

	gotPayload, gotDigest, err := inst.Finalize()
	require.NoError(t, err)
	require.Equal(t, payload, gotPayload)
	require.Equal(t, d, gotDigest)
}

// Scenario 2 (spec.md §8): echo arrives before send.
func TestInstance_EchoBeforeSend(t *testing.T) {
	q := testQuorum()
	inst := New(0, q, nil)
	net := &fakeNetwork{}

	payload := []byte("batch")
	d := Digest(payload)

	require.Equal(t, Queued, inst.Process(Message{Kind: KindEcho, From: 1, Digest: d}, net))
	require.False(t, inst.HasPending(), "a queued echo is not pollable while still in Init")

	require.Equal(t, Progressed, inst.Process(Message{Kind: KindSend, From: 0, Payload: payload, Digest: d}, net))
	require.True(t, inst.HasPending(), "the queued echo becomes pollable once Send moves to Proposed")

	msg, ok := inst.Poll()
	require.True(t, ok)
	require.Equal(t, KindEcho, msg.Kind)
	require.Equal(t, types.NodeID(1), msg.From)

	require.Equal(t, Progressed, inst.Process(msg, net))
	_, ok = inst.Poll()
	require.False(t, ok)
}

func TestInstance_DuplicateSendIgnored(t *testing.T) {
	inst := New(0, testQuorum(), nil)
	net := &fakeNetwork{}
	payload := []byte("batch")
	d := Digest(payload)

	require.Equal(t, Progressed, inst.Process(Message{Kind: KindSend, From: 0, Payload: payload, Digest: d}, net))
	require.Equal(t, Ignored, inst.Process(Message{Kind: KindSend, From: 0, Payload: payload, Digest: d}, net))
}

func TestInstance_ConflictingDigestIgnored(t *testing.T) {
	inst := New(0, testQuorum(), nil)
	net := &fakeNetwork{}
	payload := []byte("batch")
	d := Digest(payload)
	other := Digest([]byte("different"))

	require.Equal(t, Progressed, inst.Process(Message{Kind: KindSend, From: 0, Payload: payload, Digest: d}, net))
	require.Equal(t, Ignored, inst.Process(Message{Kind: KindEcho, From: 1, Digest: other}, net))
	require.False(t, inst.HasPending(), "conflicting digest must be dropped, not queued")
}

func TestInstance_FinalizeBeforeReady(t *testing.T) {
	inst := New(0, testQuorum(), nil)
	_, _, err := inst.Finalize()
	require.ErrorIs(t, err, ErrNotReadyToFinalize)
}

func TestInstance_DuplicateEchoNotDoubleCounted(t *testing.T) {
	inst := New(0, testQuorum(), nil)
	net := &fakeNetwork{}
	payload := []byte("batch")
	d := Digest(payload)

	require.Equal(t, Progressed, inst.Process(Message{Kind: KindSend, From: 0, Payload: payload, Digest: d}, net))
	require.Equal(t, Progressed, inst.Process(Message{Kind: KindEcho, From: 1, Digest: d}, net))
	require.Equal(t, Progressed, inst.Process(Message{Kind: KindEcho, From: 1, Digest: d}, net))
	require.Equal(t, Proposed, inst.Phase(), "duplicate echo must not count toward the threshold")
}
