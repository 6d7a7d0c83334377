// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pending

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRBCQueue_EchoesAndReadiesAreIndependentFIFOs(t *testing.T) {
	q := NewRBCQueue[string]()
	require.False(t, q.HasEchoes())
	require.False(t, q.HasReadies())

	q.EnqueueEcho("echo-1")
	q.EnqueueEcho("echo-2")
	q.EnqueueReady("ready-1")

	require.True(t, q.HasEchoes())
	require.True(t, q.HasReadies())

	m, ok := q.DequeueEcho()
	require.True(t, ok)
	require.Equal(t, "echo-1", m)

	m, ok = q.DequeueReady()
	require.True(t, ok)
	require.Equal(t, "ready-1", m)
	require.False(t, q.HasReadies())

	m, ok = q.DequeueEcho()
	require.True(t, ok)
	require.Equal(t, "echo-2", m)
	require.False(t, q.HasEchoes())

	_, ok = q.DequeueEcho()
	require.False(t, ok)
}

func TestABAQueue_BucketsByRoundAndAdvanceBaseDrops(t *testing.T) {
	q := NewABAQueue[string]()
	require.Equal(t, uint64(0), q.Base())

	q.Enqueue(0, "r0-a")
	q.Enqueue(0, "r0-b")
	q.Enqueue(2, "r2-a")

	_, ok := q.Dequeue(1)
	require.False(t, ok, "round 1 has nothing buffered")

	m, ok := q.Dequeue(0)
	require.True(t, ok)
	require.Equal(t, "r0-a", m)

	q.AdvanceBase(2)
	require.Equal(t, uint64(2), q.Base())

	_, ok = q.Dequeue(0)
	require.False(t, ok, "round 0 was dropped by AdvanceBase")

	m, ok = q.Dequeue(2)
	require.True(t, ok)
	require.Equal(t, "r2-a", m)
}

func TestABAQueue_AdvanceBaseBeyondAllBucketsClearsEverything(t *testing.T) {
	q := NewABAQueue[int]()
	q.Enqueue(0, 1)
	q.Enqueue(1, 2)

	q.AdvanceBase(10)
	require.Equal(t, uint64(10), q.Base())

	_, ok := q.Dequeue(10)
	require.False(t, ok)
}
