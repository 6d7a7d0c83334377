// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coin implements the threshold-signature common coin ABA's
// Conf phase flips: f+1 distinct partial signatures over the round's
// canonical message combine into one CombinedSignature, whose hash's
// last byte (mod 2) is the coin everyone agrees on (spec.md §4.4, §9
// "common coin bit extraction").
//
// Grounded on the drand ecosystem's use of github.com/drand/kyber for
// threshold BLS (see DESIGN.md); PublicKeySet/PrivateKeyPart wrap
// kyber's share.PubPoly/share.PriShare, and partial/combined signing
// goes through kyber's sign/tbls package.
package coin

import (
	"errors"
	"fmt"

	"github.com/drand/kyber"
	"github.com/drand/kyber/pairing/bn256"
	"github.com/drand/kyber/share"
	"github.com/drand/kyber/sign/tbls"
	"golang.org/x/crypto/blake2b"

	"github.com/nuno1212s/dumbo/types"
)

// ErrCombineSignature is returned when fewer than the reconstruction
// threshold partials are supplied, or a partial fails to verify
// against the public key set. Per spec.md §7 this is never surfaced to
// the outer harness: ABA treats it as a round failure (Failed(current
// estimate)).
var ErrCombineSignature = errors.New("coin: failed to combine partial signatures")

// Suite is the pairing suite every PublicKeySet/PrivateKeyPart in one
// deployment must share.
var Suite = bn256.NewSuiteG2()

// PartialSignature is one node's share of a threshold signature over a
// coin message, produced by PrivateKeyPart.Sign.
type PartialSignature []byte

// CombinedSignature is the canonical, deterministic reconstruction of
// f+1 PartialSignatures. Every correct node that reconstructs the
// signature for the same message gets byte-identical output.
type CombinedSignature []byte

// PublicKeySet is the public half of a (f+1, n) threshold scheme: it
// can verify partials and combine f+1 of them into a CombinedSignature,
// but cannot sign.
type PublicKeySet struct {
	pub       *share.PubPoly
	threshold int
	n         int
}

// PrivateKeyPart is one node's secret share, bound to its NodeID's
// index in the scheme.
type PrivateKeyPart struct {
	index int
	share *share.PriShare
}

// NewPublicKeySet wraps an existing kyber public polynomial together
// with its reconstruction threshold (f+1) and the total number of
// key shares issued (n).
func NewPublicKeySet(pub *share.PubPoly, threshold, n int) PublicKeySet {
	return PublicKeySet{pub: pub, threshold: threshold, n: n}
}

// Threshold returns the number of partials required to reconstruct.
func (pks PublicKeySet) Threshold() int { return pks.threshold }

// PublicKey returns the group public key, i.e. pub(0).
func (pks PublicKeySet) PublicKey() kyber.Point {
	return pks.pub.Commit()
}

// NewPrivateKeyPart wraps a node's private share under its index.
func NewPrivateKeyPart(node types.NodeID, s *share.PriShare) PrivateKeyPart {
	return PrivateKeyPart{index: int(node), share: s}
}

// Sign produces this node's PartialSignature over msg.
func (pk PrivateKeyPart) Sign(msg []byte) (PartialSignature, error) {
	sig, err := tbls.Sign(Suite, pk.share, msg)
	if err != nil {
		return nil, fmt.Errorf("coin: partial sign failed: %w", err)
	}
	return PartialSignature(sig), nil
}

// CombineSignatures reconstructs a CombinedSignature from at least
// Threshold() distinct partials over msg. It is the Go analogue of the
// Rust source's PublicKeySet::combine_signatures (async_bin_agreement_round.rs).
func (pks PublicKeySet) CombineSignatures(msg []byte, partials []PartialSignature) (CombinedSignature, error) {
	if len(partials) < pks.threshold {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrCombineSignature, len(partials), pks.threshold)
	}

	raw := make([][]byte, len(partials))
	for i, p := range partials {
		raw[i] = p
	}

	combined, err := tbls.Recover(Suite, pks.pub, msg, raw, pks.threshold, pks.n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCombineSignature, err)
	}
	return CombinedSignature(combined), nil
}

// Flip derives the coin bit from a CombinedSignature: hash it and take
// the last byte mod 2. Every implementation MUST agree on this
// derivation bit-exactly (spec.md §9).
func Flip(sig CombinedSignature) bool {
	h := blake2b.Sum256(sig)
	return h[len(h)-1]%2 == 0
}

// CoinMessage returns the exact byte sequence signed for a round's
// common coin: the little-endian uint64 encoding of the round index
// (spec.md §4.4, §9 "coin input encoding width" — fixed at u64 to be
// wire-compatible across 32/64-bit peers).
func CoinMessage(round uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(round >> (8 * i))
	}
	return buf
}
