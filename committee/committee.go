// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package committee defines the committee-election seam (spec.md §4.6,
// component C6): the core only depends on the Protocol interface, the
// election algorithm itself is a pluggable black box. HashElection is
// included as a deterministic, testable reference implementation, not
// a reproduction of any specific production election mechanism.
package committee

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/logging"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/types"

	"go.uber.org/zap"
)

// Result mirrors the Rust source's CommitteeElectionResult.
type Result int

const (
	Queued Result = iota
	Ignored
	Processed
	Decided
)

func (r Result) String() string {
	switch r {
	case Queued:
		return "queued"
	case Ignored:
		return "ignored"
	case Processed:
		return "processed"
	case Decided:
		return "decided"
	default:
		return "unknown"
	}
}

// Message is one vote toward electing a committee.
type Message struct {
	From      types.NodeID
	Signature coin.PartialSignature
}

// Network is the outbound side a Protocol broadcasts through.
type Network interface {
	Broadcast(msg Message)
}

// Protocol is the election black box the epoch orchestrator depends
// on. Implementations need not share HashElection's mechanism; the
// core only ever calls through this interface (spec.md §4.6).
type Protocol interface {
	Poll() (Message, bool)
	Process(msg Message, network Network) Result
	// Finalize returns the elected committee, ordered and of size
	// committee_size. Only callable after Process has returned Decided.
	Finalize() ([]types.NodeID, error)
}

// ErrNotDecided is returned by Finalize before the protocol reaches
// Decided.
var ErrNotDecided = errors.New("committee: election has not decided")

// HashElection elects a deterministic committee of size f+1 by
// combining a threshold signature over the epoch's coin message and
// ranking members by the hash of (combined signature || member id);
// the f+1 lowest-hash members form the committee. Every correct node
// that sees the same f+1 partials computes the same committee.
type HashElection struct {
	epoch         uint64
	quorum        quorum.Info
	pubKeys       coin.PublicKeySet
	committeeSize int
	log           logging.Logger

	votes    *quorum.NodeSet
	partials map[types.NodeID]coin.PartialSignature
	order    []types.NodeID

	decided  bool
	combined coin.CombinedSignature
}

// NewHashElection constructs a HashElection for epoch under q, electing
// committeeSize members once decided.
func NewHashElection(epoch uint64, q quorum.Info, pubKeys coin.PublicKeySet, committeeSize int, log logging.Logger) *HashElection {
	if log == nil {
		log = logging.NewNoOp()
	}
	return &HashElection{
		epoch:         epoch,
		quorum:        q,
		pubKeys:       pubKeys,
		committeeSize: committeeSize,
		log:           log,
		votes:         quorum.NewNodeSet(),
		partials:      make(map[types.NodeID]coin.PartialSignature),
	}
}

// electionMessage is the canonical signed payload: the epoch number,
// little-endian, the same width discipline as the ABA coin message.
func electionMessage(epoch uint64) []byte {
	return coin.CoinMessage(epoch)
}

// Poll is a no-op: HashElection never defers a message (every vote is
// valid regardless of arrival order, unlike RBC/ABA's phase-gated
// state machines).
func (h *HashElection) Poll() (Message, bool) { return Message{}, false }

// Process records one partial signature toward the committee decision.
func (h *HashElection) Process(msg Message, network Network) Result {
	if h.decided {
		return Ignored
	}

	if !h.votes.Add(msg.From) {
		return Processed
	}
	h.partials[msg.From] = msg.Signature
	h.order = append(h.order, msg.From)

	if len(h.order) < h.pubKeys.Threshold() {
		return Processed
	}

	partials := make([]coin.PartialSignature, 0, h.pubKeys.Threshold())
	for _, node := range h.order {
		partials = append(partials, h.partials[node])
		if len(partials) == h.pubKeys.Threshold() {
			break
		}
	}

	combined, err := h.pubKeys.CombineSignatures(electionMessage(h.epoch), partials)
	if err != nil {
		h.log.Warn("committee election combine failed", zap.Error(err))
		return Processed
	}

	h.combined = combined
	h.decided = true
	h.log.Debug("committee election decided", zap.Uint64("epoch", h.epoch))
	return Decided
}

// Finalize returns the f+1 lowest-hash members under the decided
// combined signature.
func (h *HashElection) Finalize() ([]types.NodeID, error) {
	if !h.decided {
		return nil, ErrNotDecided
	}

	members := h.quorum.Members()
	rank := make(map[types.NodeID][32]byte, len(members))
	for _, m := range members {
		buf := append(append([]byte{}, h.combined...), encodeNodeID(m)...)
		rank[m] = blake2b.Sum256(buf)
	}

	sort.Slice(members, func(i, j int) bool {
		a, b := rank[members[i]], rank[members[j]]
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return members[i] < members[j]
	})

	if h.committeeSize > len(members) {
		return nil, fmt.Errorf("committee: requested size %d exceeds membership %d", h.committeeSize, len(members))
	}
	return members[:h.committeeSize], nil
}

func encodeNodeID(id types.NodeID) []byte {
	return []byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
}
