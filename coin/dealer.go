// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coin

import (
	"io"

	"github.com/drand/kyber/share"

	"github.com/nuno1212s/dumbo/types"
)

// DealTrusted splits a fresh group secret into n shares with
// reconstruction threshold t, returning the PublicKeySet and one
// PrivateKeyPart per member. Key provisioning (spec.md §3 "Threshold
// keys") is explicitly out of the core's scope — a production
// deployment would run a distributed key generation (e.g. kyber's
// share/dkg, as drand does) instead of trusting one dealer; this
// helper exists so the engine and its tests can stand up a coin
// without wiring a full DKG round.
func DealTrusted(rng io.Reader, t int, members []types.NodeID) (PublicKeySet, map[types.NodeID]PrivateKeyPart) {
	priPoly := share.NewPriPoly(Suite, t, nil, rng)
	pubPoly := priPoly.Commit(Suite.Point().Base())

	parts := make(map[types.NodeID]PrivateKeyPart, len(members))
	for i, id := range members {
		priShare := priPoly.Eval(i)
		parts[id] = NewPrivateKeyPart(id, priShare)
	}

	return NewPublicKeySet(pubPoly, t, len(members)), parts
}
