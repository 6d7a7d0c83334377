// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "errors"

// Errors shared across subprotocols. Per-package errors (rbc.Error,
// aba round failures, etc.) live next to the code that raises them;
// these are the handful that cross package boundaries.
var (
	// ErrUnknownEpoch is returned when a message names an epoch outside
	// the engine's current sliding window and cannot be created lazily.
	ErrUnknownEpoch = errors.New("epoch outside admissible window")

	// ErrUnknownNode is returned when a message's sender is not a member
	// of the active QuorumInfo.
	ErrUnknownNode = errors.New("sender is not a quorum member")

	// ErrInvalidQuorum is returned by QuorumInfo construction when the
	// n >= 3f+1 invariant does not hold.
	ErrInvalidQuorum = errors.New("invalid quorum parameters: require n >= 3f+1")
)
