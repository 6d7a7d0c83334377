// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package quorum

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nuno1212s/dumbo/types"
)

func TestNew_RejectsRatioViolation(t *testing.T) {
	_, err := New(3, 1, []types.NodeID{0, 1, 2})
	require.ErrorIs(t, err, types.ErrInvalidQuorum)
}

func TestNew_RejectsMemberCountMismatch(t *testing.T) {
	_, err := New(4, 1, []types.NodeID{0, 1, 2})
	require.ErrorIs(t, err, types.ErrInvalidQuorum)
}

func TestNew_RejectsDuplicateMember(t *testing.T) {
	_, err := New(4, 1, []types.NodeID{0, 1, 2, 2})
	require.ErrorIs(t, err, types.ErrInvalidQuorum)
}

func TestNew_AcceptsMinimalRatio(t *testing.T) {
	q, err := New(4, 1, []types.NodeID{0, 1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 4, q.N())
	require.Equal(t, 1, q.F())
	require.Equal(t, 3, q.QuorumSize())
}

func TestMustNew_PanicsOnInvalidParameters(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		require.True(t, errors.Is(err, types.ErrInvalidQuorum))
	}()
	MustNew(3, 1, []types.NodeID{0, 1, 2})
}
