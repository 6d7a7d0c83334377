// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"github.com/nuno1212s/dumbo/aba"
	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/committee"
	"github.com/nuno1212s/dumbo/logging"
	"github.com/nuno1212s/dumbo/metrics"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/rbc"
	"github.com/nuno1212s/dumbo/types"

	"go.uber.org/zap"
)

// Result mirrors rbc.Result/aba.Result/committee.Result at the epoch
// level: the outcome of feeding one Message into Process.
type Result int

const (
	Ignored Result = iota
	Queued
	Processed
	Finalized
)

func (r Result) String() string {
	switch r {
	case Ignored:
		return "ignored"
	case Queued:
		return "queued"
	case Processed:
		return "processed"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// CommitteeFactory constructs the committee-election black box for one
// epoch (spec.md §4.6: the election mechanism is pluggable, the epoch
// only depends on committee.Protocol).
type CommitteeFactory func(q quorum.Info, committeeSize int) committee.Protocol

// HashElectionFactory returns a CommitteeFactory backed by
// committee.HashElection, keyed to this epoch's sequence number so
// every node derives the same election message.
func HashElectionFactory(seqNo types.SeqNo, pubKeys coin.PublicKeySet, log logging.Logger) CommitteeFactory {
	return func(q quorum.Info, committeeSize int) committee.Protocol {
		return committee.NewHashElection(uint64(seqNo), q, pubKeys, committeeSize, log)
	}
}

// Epoch composes one invocation of atomic broadcast (spec.md §4.7,
// component C7): a Value-RBC per owner, a committee election over the
// quorum, an index-RBC per elected committee member, and an ABA per
// committee-member owner. Grounded on the Rust source's DumboRound
// (dumbo1/epoch.rs), generalized past its incomplete decision-handling
// stubs per the resolved Open Question #3 (SPEC_FULL.md §1).
type Epoch struct {
	seqNo     types.SeqNo
	self      types.NodeID
	quorum    quorum.Info
	pubKeys   coin.PublicKeySet
	myKeyPart coin.PrivateKeyPart
	log       logging.Logger
	metrics   *metrics.Metrics

	committee        committee.Protocol
	committeeDecided bool
	committeeMembers []types.NodeID

	nodes     map[types.NodeID]*nodeExecution
	indexRBCs map[types.NodeID]*rbc.Instance

	finalizedValueOwners *quorum.NodeSet
	abaGateFired         bool
	indexBroadcastSent   bool

	decidedOwners map[types.NodeID]bool
	finalized     bool
}

// New constructs an Epoch for seqNo: one Value-RBC instance per
// quorum member (every node is a potential value proposer), and a
// committee election seeded by factory. Index-RBCs are created once
// the committee is known; ABAs once the committee is known and this
// node's local finalized-value count has reached quorum.
func New(
	seqNo types.SeqNo,
	self types.NodeID,
	q quorum.Info,
	pubKeys coin.PublicKeySet,
	myKeyPart coin.PrivateKeyPart,
	factory CommitteeFactory,
	log logging.Logger,
	m *metrics.Metrics,
) *Epoch {
	if log == nil {
		log = logging.NewNoOp()
	}
	if m == nil {
		m = metrics.NewNoOp()
	}
	log = log.With(zap.Uint64("epoch", uint64(seqNo)))

	e := &Epoch{
		seqNo:                seqNo,
		self:                 self,
		quorum:               q,
		pubKeys:              pubKeys,
		myKeyPart:            myKeyPart,
		log:                  log,
		metrics:              m,
		nodes:                make(map[types.NodeID]*nodeExecution),
		indexRBCs:            make(map[types.NodeID]*rbc.Instance),
		finalizedValueOwners: quorum.NewNodeSet(),
		decidedOwners:        make(map[types.NodeID]bool),
	}
	e.committee = factory(q, q.CommitteeSize())
	for _, owner := range q.Members() {
		e.nodes[owner] = newNodeExecution(owner, rbc.New(owner, q, log))
	}
	return e
}

// SeqNo returns this epoch's sequence number.
func (e *Epoch) SeqNo() types.SeqNo { return e.seqNo }

// Finalized reports whether every committee member's ABA has decided.
func (e *Epoch) Finalized() bool { return e.finalized }

// Output returns, once Finalized, the owners whose value was included
// (committee members whose ABA decided true) and their finalized
// payloads, both ordered by quorum membership order for a canonical,
// deterministic batch across every correct node.
func (e *Epoch) Output() (owners []types.NodeID, payloads [][]byte) {
	if !e.finalized {
		return nil, nil
	}
	for _, owner := range e.quorum.Members() {
		if v, ok := e.decidedOwners[owner]; ok && v {
			owners = append(owners, owner)
			payloads = append(payloads, e.nodes[owner].payload)
		}
	}
	return owners, payloads
}

// Propose feeds this node's own value into its Value-RBC instance as
// the designated sender, broadcasting Send/Echo to the quorum.
func (e *Epoch) Propose(payload []byte, network Network) {
	node, ok := e.nodes[e.self]
	if !ok {
		return
	}
	digest := rbc.Digest(payload)
	adapter := rbcNetworkAdapter{owner: e.self, net: network}
	node.valueRBC.Process(rbc.Message{Kind: rbc.KindSend, From: e.self, Payload: payload, Digest: digest}, adapter)
}

// StartCommitteeElection casts this node's vote toward the epoch's
// committee election.
func (e *Epoch) StartCommitteeElection(network Network) {
	sig, err := e.myKeyPart.Sign(coin.CoinMessage(uint64(e.seqNo)))
	if err != nil {
		e.log.Warn("failed to sign committee election vote", zap.Error(err))
		return
	}
	adapter := committeeNetworkAdapter{net: network}
	e.committee.Process(committee.Message{From: e.self, Signature: sig}, adapter)
	adapter.Broadcast(committee.Message{From: e.self, Signature: sig})
}

// Process routes one Message to the subprotocol its Kind and Owner
// identify, per spec.md §4.7's dispatch table.
func (e *Epoch) Process(msg Message, network Network) Result {
	switch msg.Kind {
	case MsgCommitteeElection:
		return e.processCommittee(msg, network)
	case MsgValueRBC:
		return e.processValueRBC(msg, network)
	case MsgIndexRBC:
		return e.processIndexRBC(msg, network)
	case MsgABA:
		return e.processABA(msg, network)
	default:
		return Ignored
	}
}

func (e *Epoch) processCommittee(msg Message, network Network) Result {
	if e.committeeDecided {
		return Ignored
	}

	adapter := committeeNetworkAdapter{net: network}
	result := e.committee.Process(msg.Committee, adapter)
	switch result {
	case committee.Queued:
		return Queued
	case committee.Ignored:
		return Ignored
	case committee.Processed:
		return Processed
	case committee.Decided:
		members, err := e.committee.Finalize()
		if err != nil {
			e.log.Warn("committee election decided but finalize failed", zap.Error(err))
			return Processed
		}
		e.committeeDecided = true
		e.committeeMembers = members
		for _, m := range members {
			e.indexRBCs[m] = rbc.New(m, e.quorum, e.log)
		}
		e.log.Info("committee elected", zap.Int("size", len(members)))
		e.maybeStartABAs(network)
		e.maybeStartIndexBroadcast(network)
		return Processed
	default:
		return Ignored
	}
}

func (e *Epoch) processValueRBC(msg Message, network Network) Result {
	node, ok := e.nodes[msg.Owner]
	if !ok || node.phase != RunningValueRBC {
		return Ignored
	}

	adapter := rbcNetworkAdapter{owner: msg.Owner, net: network}
	result := node.valueRBC.Process(msg.RBC, adapter)
	switch result {
	case rbc.Queued:
		return Queued
	case rbc.Ignored:
		return Ignored
	case rbc.Progressed:
		return Processed
	case rbc.Finalized:
		payload, digest, err := node.valueRBC.Finalize()
		if err != nil {
			e.log.Warn("value rbc finalized but finalize failed", zap.Stringer("owner", msg.Owner), zap.Error(err))
			return Processed
		}
		node.completeValueRBC(payload, digest)
		e.finalizedValueOwners.Add(msg.Owner)
		e.metrics.RBCPhaseTransitions.WithLabelValues("finalized").Inc()
		e.log.Debug("value rbc finalized", zap.Stringer("owner", msg.Owner))

		e.maybeStartABAs(network)
		e.maybeStartIndexBroadcast(network)
		return Processed
	default:
		return Ignored
	}
}

func (e *Epoch) processIndexRBC(msg Message, network Network) Result {
	inst, ok := e.indexRBCs[msg.Owner]
	if !ok {
		return Ignored
	}

	adapter := rbcNetworkAdapter{owner: msg.Owner, net: network, isIndex: true}
	result := inst.Process(msg.RBC, adapter)
	switch result {
	case rbc.Queued:
		return Queued
	case rbc.Ignored:
		return Ignored
	case rbc.Progressed:
		return Processed
	case rbc.Finalized:
		if _, _, err := inst.Finalize(); err != nil {
			e.log.Warn("index rbc finalized but finalize failed", zap.Stringer("broadcaster", msg.Owner), zap.Error(err))
		} else {
			e.log.Debug("index rbc finalized", zap.Stringer("broadcaster", msg.Owner))
		}
		return Processed
	default:
		return Ignored
	}
}

func (e *Epoch) processABA(msg Message, network Network) Result {
	node, ok := e.nodes[msg.Owner]
	if !ok {
		return Ignored
	}

	switch node.phase {
	case RunningValueRBC:
		node.enqueuePendingABA(msg)
		return Queued
	case Completed:
		return Ignored
	case RunningABA:
		return e.deliverABA(node, msg, network)
	default:
		return Ignored
	}
}

func (e *Epoch) deliverABA(node *nodeExecution, msg Message, network Network) Result {
	adapter := abaNetworkAdapter{owner: node.owner, net: network}
	result := node.aba.Process(msg.ABA, adapter)
	switch result.Kind {
	case aba.ResultIgnored:
		return Ignored
	case aba.ResultQueued:
		return Queued
	case aba.ResultAlreadyAccepted, aba.ResultProcessed:
		return Processed
	case aba.ResultDecided:
		node.transitionToCompleted(result.Value)
		e.decidedOwners[node.owner] = result.Value
		e.log.Info("owner aba decided", zap.Stringer("owner", node.owner), zap.Bool("value", result.Value))
		if e.allCommitteeDecided() {
			e.finalizeEpoch()
			return Finalized
		}
		return Processed
	default:
		return Ignored
	}
}

// maybeStartABAs fires once, when the committee is known and this
// node has personally finalized a quorum (n-f) of owners' values: at
// that point it starts every committee-member owner's ABA, with input
// 1 iff this node has already finalized that owner's value by the
// time the gate fires, else 0 (the resolved Open Question #3 input
// rule). Any ABA messages that arrived early are replayed immediately.
func (e *Epoch) maybeStartABAs(network Network) {
	if !e.committeeDecided || e.abaGateFired {
		return
	}
	if e.finalizedValueOwners.Len() < e.quorum.QuorumSize() {
		return
	}
	e.abaGateFired = true

	for _, owner := range e.committeeMembers {
		node := e.nodes[owner]
		input := e.finalizedValueOwners.Has(owner)
		instance := aba.New(e.self, e.quorum, e.pubKeys, e.myKeyPart, input, e.log, e.metrics)
		node.transitionToABA(instance)

		adapter := abaNetworkAdapter{owner: owner, net: network}
		instance.Start(adapter)

		buffered := node.pendingABA
		node.pendingABA = nil
		for _, m := range buffered {
			e.deliverABA(node, m, network)
		}
	}
}

// maybeStartIndexBroadcast fires once, when this node is itself an
// elected committee member and has finalized a quorum of owners'
// values: it broadcasts its own readiness bitmap over its index-RBC
// slot.
func (e *Epoch) maybeStartIndexBroadcast(network Network) {
	if !e.committeeDecided || e.indexBroadcastSent {
		return
	}
	if !e.selfIsCommitteeMember() {
		return
	}
	if e.finalizedValueOwners.Len() < e.quorum.QuorumSize() {
		return
	}
	e.indexBroadcastSent = true

	bitmap := e.buildBitmap()
	digest := rbc.Digest(bitmap)
	inst := e.indexRBCs[e.self]
	adapter := rbcNetworkAdapter{owner: e.self, net: network, isIndex: true}
	inst.Process(rbc.Message{Kind: rbc.KindSend, From: e.self, Payload: bitmap, Digest: digest}, adapter)
}

// buildBitmap encodes, one byte per quorum member in membership order,
// whether this node has finalized that owner's value. It is a
// reliably-broadcast, verifiable record of this node's local
// progress, not itself an input to any threshold check.
func (e *Epoch) buildBitmap() []byte {
	members := e.quorum.Members()
	bitmap := make([]byte, len(members))
	for idx, owner := range members {
		if e.finalizedValueOwners.Has(owner) {
			bitmap[idx] = 1
		}
	}
	return bitmap
}

func (e *Epoch) selfIsCommitteeMember() bool {
	for _, m := range e.committeeMembers {
		if m == e.self {
			return true
		}
	}
	return false
}

func (e *Epoch) allCommitteeDecided() bool {
	if !e.committeeDecided {
		return false
	}
	for _, owner := range e.committeeMembers {
		if _, ok := e.decidedOwners[owner]; !ok {
			return false
		}
	}
	return true
}

func (e *Epoch) finalizeEpoch() {
	e.finalized = true
	e.metrics.EpochsDecided.Inc()
	e.log.Info("epoch finalized", zap.Int("committee_size", len(e.committeeMembers)))
}

// Poll returns the first self-queued message any subprotocol this
// epoch drives is ready to retry, in a fixed, deterministic order:
// committee election, then Value-RBCs (in quorum membership order),
// then index-RBCs, then ABAs (both in the committee order the election
// returned).
func (e *Epoch) Poll() (Message, bool) {
	if msg, ok := e.committee.Poll(); ok {
		return Message{Kind: MsgCommitteeElection, Committee: msg}, true
	}

	for _, owner := range e.quorum.Members() {
		node := e.nodes[owner]
		if node.phase != RunningValueRBC {
			continue
		}
		if m, ok := node.valueRBC.Poll(); ok {
			return Message{Kind: MsgValueRBC, Owner: owner, RBC: m}, true
		}
	}

	for _, owner := range e.committeeMembers {
		inst, ok := e.indexRBCs[owner]
		if !ok {
			continue
		}
		if m, ok := inst.Poll(); ok {
			return Message{Kind: MsgIndexRBC, Owner: owner, RBC: m}, true
		}
	}

	for _, owner := range e.committeeMembers {
		node := e.nodes[owner]
		if node.phase != RunningABA {
			continue
		}
		if m, ok := node.aba.Poll(); ok {
			return Message{Kind: MsgABA, Owner: owner, ABA: m}, true
		}
	}

	return Message{}, false
}
