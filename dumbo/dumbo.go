// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dumbo is the outer engine (spec.md §4.8, component C8):
// it holds a sliding window of concurrent Epoch instances keyed by
// SeqNo and routes envelopes between the outer harness and whichever
// epoch a message names. Grounded on
// _examples/original_source/src/dumbo1/protocol.rs's engine-level
// entry points, and on the teacher's engine/engine.go Chain struct for
// the mutex-guarded map-of-maps shell idiom (see DESIGN.md).
package dumbo

import (
	"sync"

	"github.com/nuno1212s/dumbo/coin"
	"github.com/nuno1212s/dumbo/config"
	"github.com/nuno1212s/dumbo/epoch"
	"github.com/nuno1212s/dumbo/logging"
	"github.com/nuno1212s/dumbo/metrics"
	"github.com/nuno1212s/dumbo/quorum"
	"github.com/nuno1212s/dumbo/types"

	"go.uber.org/zap"
)

// Result mirrors every subprotocol's Ignored/Queued/Processed/Finalized
// outcome tag at the engine level (spec.md §6: process_message returns
// one of these four, Finalized carrying the decided result).
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

// Envelope is the transport-agnostic inbound/outbound unit the engine
// exchanges with the outer harness (spec.md §6's StoredMessage,
// trimmed to the three fields the core actually needs: the epoch this
// message belongs to, the sender, and the per-epoch payload).
type Envelope struct {
	SeqNo types.SeqNo
	From  types.NodeID
	Msg   epoch.Message
}

// ProcessResult is returned by ProcessMessage: Kind classifies the
// outcome, and Owners/Payloads are populated only when Kind ==
// Finalized, mirroring Epoch.Output(). Err is set alongside an
// Ignored Kind when the drop reason is one the caller may want to
// distinguish (types.ErrUnknownEpoch, types.ErrUnknownNode); it is nil
// for every other drop (e.g. a replayed message) and for every
// non-Ignored Kind.
type ProcessResult struct {
	Kind     Result
	SeqNo    types.SeqNo
	Owners   []types.NodeID
	Payloads [][]byte
	Err      error
}

// Network is the injected send-capability the harness supplies
// (spec.md §6): non-blocking, infallible-fast-path broadcast of one
// epoch-scoped envelope to the quorum.
type Network interface {
	Broadcast(envelope Envelope)
}

// Timeout is opaque to the core (spec.md §6, §7): the engine only
// knows which epoch it names, and routes it nowhere further since no
// subprotocol in this core arms timers itself.
type Timeout struct {
	SeqNo types.SeqNo
}

// Engine holds the sliding window of epochs and drives the entry
// points the outer harness calls: ProcessMessage, Poll, InstallSeqNo,
// and the three auxiliary hooks (HandleOffCtxMessage,
// HandleExecutionChanged, HandleTimeout). Guarded by a RWMutex even though the
// core's own concurrency model is single-driver (spec.md §5): the
// teacher's engine/engine.go Chain takes the same defensive lock for
// a type callers may reach from more than one goroutine across
// process_message/poll interleavings.
type Engine struct {
	mu sync.RWMutex

	self      types.NodeID
	quorum    quorum.Info
	pubKeys   coin.PublicKeySet
	myKeyPart coin.PrivateKeyPart
	params    config.Parameters
	log       logging.Logger
	metrics   *metrics.Metrics

	currentEpoch types.SeqNo
	epochs       map[types.SeqNo]*epoch.Epoch

	executing        bool
	suspendedOutputs []types.SeqNo
}

// New constructs an Engine starting at epoch 1 (SeqNo 0 is reserved,
// types.SeqNo doc comment).
func New(
	self types.NodeID,
	q quorum.Info,
	pubKeys coin.PublicKeySet,
	myKeyPart coin.PrivateKeyPart,
	params config.Parameters,
	log logging.Logger,
	m *metrics.Metrics,
) *Engine {
	if log == nil {
		log = logging.NewNoOp()
	}
	if m == nil {
		m = metrics.NewNoOp()
	}
	return &Engine{
		self:         self,
		quorum:       q,
		pubKeys:      pubKeys,
		myKeyPart:    myKeyPart,
		params:       params,
		log:          log,
		metrics:      m,
		currentEpoch: 1,
		epochs:       make(map[types.SeqNo]*epoch.Epoch),
		executing:    true,
	}
}

// CurrentEpoch returns the active epoch cursor.
func (e *Engine) CurrentEpoch() types.SeqNo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentEpoch
}

// windowEnd is the exclusive upper bound of the sliding window: the
// first SeqNo past the highest one it admits (spec.md §4.8, §3
// "bounded sliding window").
func (e *Engine) windowEnd() types.SeqNo {
	window := e.params.EpochWindow
	if window <= 0 {
		window = 1
	}
	return e.currentEpoch + types.SeqNo(window)
}

// admissible reports whether seqNo falls in [currentEpoch, windowEnd).
func (e *Engine) admissible(seqNo types.SeqNo) bool {
	return seqNo >= e.currentEpoch && seqNo < e.windowEnd()
}

// epochFor returns the Epoch for seqNo, lazily constructing it if
// seqNo is admissible and unseen. Caller must hold e.mu for writing.
func (e *Engine) epochFor(seqNo types.SeqNo) (*epoch.Epoch, bool) {
	if ep, ok := e.epochs[seqNo]; ok {
		return ep, true
	}
	if !e.admissible(seqNo) {
		return nil, false
	}

	factory := epoch.HashElectionFactory(seqNo, e.pubKeys, e.log)
	ep := epoch.New(seqNo, e.self, e.quorum, e.pubKeys, e.myKeyPart, factory, e.log, e.metrics)
	e.epochs[seqNo] = ep
	e.log.Debug("lazily created epoch", zap.Uint64("seq_no", uint64(seqNo)))
	return ep, true
}

// Propose feeds payload into seqNo's epoch as this node's proposed
// value, lazily creating the epoch if the window admits it, and casts
// this node's committee-election vote in the same call (both steps an
// epoch needs before it can make any progress).
func (e *Engine) Propose(seqNo types.SeqNo, payload []byte, network Network) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ep, ok := e.epochFor(seqNo)
	if !ok {
		return false
	}

	adapter := envelopeNetwork{seqNo: seqNo, self: e.self, net: network}
	ep.Propose(payload, adapter)
	ep.StartCommitteeElection(adapter)
	return true
}

// ProcessMessage routes envelope to the epoch its SeqNo names,
// creating it lazily within the admissible window and dropping it
// (Ignored) if its epoch has already been trimmed or lies too far
// ahead of the window (spec.md §4.8).
func (e *Engine) ProcessMessage(envelope Envelope, network Network) ProcessResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if envelope.SeqNo < e.currentEpoch {
		e.log.Debug("dropping message for trimmed epoch",
			zap.Uint64("seq_no", uint64(envelope.SeqNo)),
			zap.Uint64("current_epoch", uint64(e.currentEpoch)))
		return ProcessResult{Kind: Ignored, SeqNo: envelope.SeqNo, Err: types.ErrUnknownEpoch}
	}

	ep, ok := e.epochFor(envelope.SeqNo)
	if !ok {
		e.log.Debug("dropping message outside admissible window",
			zap.Uint64("seq_no", uint64(envelope.SeqNo)))
		return ProcessResult{Kind: Ignored, SeqNo: envelope.SeqNo, Err: types.ErrUnknownEpoch}
	}

	return e.deliver(ep, envelope, network)
}

// HandleOffCtxMessage processes envelope against its named epoch
// exactly like ProcessMessage, but never advances or otherwise
// touches the active-epoch cursor: it is for messages the harness
// knows belong to a live-but-not-current epoch (spec.md §6).
func (e *Engine) HandleOffCtxMessage(envelope Envelope, network Network) ProcessResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	ep, ok := e.epochs[envelope.SeqNo]
	if !ok {
		return ProcessResult{Kind: Ignored, SeqNo: envelope.SeqNo, Err: types.ErrUnknownEpoch}
	}
	return e.deliver(ep, envelope, network)
}

// deliver feeds envelope.Msg into ep and classifies the result. Caller
// must hold e.mu.
func (e *Engine) deliver(ep *epoch.Epoch, envelope Envelope, network Network) ProcessResult {
	if !e.quorum.IsMember(envelope.From) {
		e.log.Debug("dropping message from non-member sender",
			zap.Uint64("seq_no", uint64(envelope.SeqNo)),
			zap.Stringer("from", envelope.From))
		return ProcessResult{Kind: Ignored, SeqNo: envelope.SeqNo, Err: types.ErrUnknownNode}
	}

	adapter := envelopeNetwork{seqNo: envelope.SeqNo, self: e.self, net: network}
	result := ep.Process(envelope.Msg, adapter)

	switch result {
	case epoch.Ignored:
		return ProcessResult{Kind: Ignored, SeqNo: envelope.SeqNo}
	case epoch.Queued:
		e.metrics.QueueDepth.WithLabelValues("epoch", "pending").Inc()
		return ProcessResult{Kind: Queued, SeqNo: envelope.SeqNo}
	case epoch.Processed:
		return ProcessResult{Kind: Processed, SeqNo: envelope.SeqNo}
	case epoch.Finalized:
		owners, payloads := ep.Output()
		if !e.executing {
			e.suspendedOutputs = append(e.suspendedOutputs, envelope.SeqNo)
			e.log.Debug("epoch finalized while execution suspended, deferring output",
				zap.Uint64("seq_no", uint64(envelope.SeqNo)))
			return ProcessResult{Kind: Processed, SeqNo: envelope.SeqNo}
		}
		return ProcessResult{Kind: Finalized, SeqNo: envelope.SeqNo, Owners: owners, Payloads: payloads}
	default:
		return ProcessResult{Kind: Ignored, SeqNo: envelope.SeqNo}
	}
}

// Poll iterates epochs in ascending SeqNo order and returns the first
// self-queued envelope any of them is ready to retry (spec.md §4.8).
func (e *Engine) Poll() (Envelope, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for seqNo := e.currentEpoch; seqNo < e.windowEnd(); seqNo++ {
		ep, ok := e.epochs[seqNo]
		if !ok {
			continue
		}
		if msg, ok := ep.Poll(); ok {
			return Envelope{SeqNo: seqNo, From: e.self, Msg: msg}, true
		}
	}
	return Envelope{}, false
}

// InstallSeqNo advances the active-epoch cursor to s, trimming every
// epoch strictly below s (spec.md §4.8). s must be >= the current
// cursor; a regression is ignored, since epochs are only ever trimmed
// forward.
func (e *Engine) InstallSeqNo(s types.SeqNo) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s <= e.currentEpoch {
		return
	}

	for seqNo := range e.epochs {
		if seqNo < s {
			delete(e.epochs, seqNo)
		}
	}
	e.currentEpoch = s
	e.log.Info("installed new current epoch", zap.Uint64("seq_no", uint64(s)))
}

// HandleExecutionChanged suspends (isExecuting == false) or resumes
// (true) output emission: while suspended, an epoch reaching
// Finalized inside ProcessMessage is reported as Processed instead,
// and its SeqNo is recorded; DrainSuspendedOutputs replays them once
// execution resumes.
func (e *Engine) HandleExecutionChanged(isExecuting bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executing = isExecuting
}

// DrainSuspendedOutputs returns and clears the SeqNos of epochs that
// finalized while execution was suspended. The harness is expected to
// re-fetch each epoch's Output() once it resumes consuming them.
func (e *Engine) DrainSuspendedOutputs() []types.SeqNo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.suspendedOutputs
	e.suspendedOutputs = nil
	return out
}

// Output returns the decided owners/payloads for seqNo, if that epoch
// is still held and has finalized.
func (e *Engine) Output(seqNo types.SeqNo) (owners []types.NodeID, payloads [][]byte, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ep, exists := e.epochs[seqNo]
	if !exists || !ep.Finalized() {
		return nil, nil, false
	}
	owners, payloads = ep.Output()
	return owners, payloads, true
}

// HandleTimeout routes a batch of opaque Timeout hooks to their named
// epochs. Out of core scope (spec.md §5, §6): no subprotocol in this
// engine arms a timer itself, so this only logs receipt for the
// epochs it still holds, rather than silently dropping them.
func (e *Engine) HandleTimeout(timeouts []Timeout) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, t := range timeouts {
		if _, ok := e.epochs[t.SeqNo]; ok {
			e.log.Debug("timeout received for live epoch, no core-level action defined",
				zap.Uint64("seq_no", uint64(t.SeqNo)))
		}
	}
}
