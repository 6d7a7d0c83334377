// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package committee

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/types"
)

type fakeNetwork struct{ sent []Message }

func (n *fakeNetwork) Broadcast(msg Message) { n.sent = append(n.sent, msg) }

func TestHashElection_DecidesAndFinalizesDeterministicSize(t *testing.T) {
	members := []types.NodeID{0, 1, 2, 3}
	q := quorum.MustNew(4, 1, members)
	pubKeys, parts := coin.DealTrusted(rand.Reader, q.CommitteeSize(), members)

	election := NewHashElection(7, q, pubKeys, q.CommitteeSize(), nil)
	net := &fakeNetwork{}

	msg := electionMessage(7)
	var lastResult Result
	for _, node := range members[:q.CommitteeSize()] {
		sig, err := parts[node].Sign(msg)
		require.NoError(t, err)
		lastResult = election.Process(Message{From: node, Signature: sig}, net)
	}
	require.Equal(t, Decided, lastResult)

	committee, err := election.Finalize()
	require.NoError(t, err)
	require.Len(t, committee, q.CommitteeSize())

	seen := make(map[types.NodeID]bool)
	for _, m := range committee {
		require.False(t, seen[m], "committee must not repeat a member")
		seen[m] = true
	}
}

func TestHashElection_FinalizeBeforeDecidedErrors(t *testing.T) {
	members := []types.NodeID{0, 1, 2, 3}
	q := quorum.MustNew(4, 1, members)
	pubKeys, _ := coin.DealTrusted(rand.Reader, q.CommitteeSize(), members)

	election := NewHashElection(1, q, pubKeys, q.CommitteeSize(), nil)
	_, err := election.Finalize()
	require.ErrorIs(t, err, ErrNotDecided)
}
