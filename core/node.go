package core

import (
	"log/slog"
	"math/big"
	"sync"

	"otcswap/core/events"
	"otcswap/core/types"
	"otcswap/native/swap"
	"otcswap/observability/metrics"
	"otcswap/state"
	"otcswap/storage"
)

// Allocation seeds an account balance at first start.
type Allocation struct {
	Address [20]byte
	Asset   types.Asset
}

type opKind uint8

const (
	opCustody opKind = iota
	opAck
	opSettle
)

type queuedOp struct {
	kind          opKind
	offerID       uint64
	correlationID [16]byte
	ok            bool
}

// Node processes one top-level invocation to completion before the next
// begins. Every invocation runs against a state overlay that is committed on
// success and discarded on error, which is what gives each operation its
// all-or-nothing semantics. Sub-operations dispatched during an invocation
// (the custody sub-call and the settlement self-call) are queued and executed
// after the triggering invocation commits, each as its own atomic invocation.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	engine   *swap.Engine
	module   [20]byte
	logger   *slog.Logger
	recorder events.Recorder
	staged   []queuedOp
	queue    []queuedOp
}

// NewNode wires a swap engine running under the supplied custody strategy to
// the database.
func NewNode(db storage.Database, custody swap.Custody, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	module := swap.ModuleAddress()
	engine := swap.NewEngine(custody, module)
	node := &Node{
		db:     db,
		engine: engine,
		module: module,
		logger: logger,
	}
	engine.SetDispatcher(node)
	engine.SetEmitter(&node.recorder)
	return node
}

// Engine exposes the lifecycle engine, primarily for tests.
func (n *Node) Engine() *swap.Engine { return n.engine }

// ModuleAddress returns the swap module's own ledger address.
func (n *Node) ModuleAddress() [20]byte { return n.module }

// DispatchCustody implements swap.Dispatcher by staging the custody sub-call
// for execution after the current invocation commits.
func (n *Node) DispatchCustody(offerID uint64, correlationID [16]byte) error {
	n.staged = append(n.staged, queuedOp{kind: opCustody, offerID: offerID, correlationID: correlationID})
	return nil
}

// DispatchSettlement implements swap.Dispatcher by staging the settlement
// self-call.
func (n *Node) DispatchSettlement(offerID uint64) error {
	n.staged = append(n.staged, queuedOp{kind: opSettle, offerID: offerID})
	return nil
}

// invoke runs fn as one atomic invocation. On success the overlay is
// committed, emitted events are published and staged sub-operations join the
// queue; on error everything staged by fn is discarded.
func (n *Node) invoke(fn func(m *state.Manager) error) error {
	overlay := state.NewOverlay(n.db)
	mgr := state.NewManager(overlay)
	n.engine.SetState(mgr)
	n.recorder.Reset()
	n.staged = nil
	if err := fn(mgr); err != nil {
		n.staged = nil
		return err
	}
	if err := overlay.Commit(); err != nil {
		n.staged = nil
		return err
	}
	for _, evt := range n.recorder.Events() {
		eventType := evt.EventType()
		metrics.Swap().ObserveEvent(eventType)
		n.logger.Info("swap event", slog.String("type", eventType))
	}
	n.queue = append(n.queue, n.staged...)
	n.staged = nil
	return nil
}

// drain executes queued sub-operations in dispatch order. Custody sub-call
// failures are converted into failure acknowledgments rather than surfaced:
// by then the triggering invocation has already completed from the caller's
// point of view.
func (n *Node) drain() {
	for len(n.queue) > 0 {
		op := n.queue[0]
		n.queue = n.queue[1:]
		switch op.kind {
		case opCustody:
			err := n.invoke(func(*state.Manager) error {
				return n.engine.EscrowTakerFunds(op.offerID, n.module)
			})
			if err != nil {
				n.logger.Warn("custody sub-call failed",
					slog.Uint64("offerId", op.offerID), slog.Any("error", err))
			}
			n.queue = append(n.queue, queuedOp{
				kind:          opAck,
				offerID:       op.offerID,
				correlationID: op.correlationID,
				ok:            err == nil,
			})
		case opAck:
			err := n.invoke(func(*state.Manager) error {
				return n.engine.HandleCustodyResult(op.correlationID, op.ok)
			})
			if err != nil {
				n.logger.Error("custody acknowledgment rejected",
					slog.Uint64("offerId", op.offerID), slog.Any("error", err))
			}
		case opSettle:
			err := n.invoke(func(*state.Manager) error {
				return n.engine.ExecuteSwap(op.offerID, n.module)
			})
			if err != nil {
				// The settlement invocation rolled back whole; the offer
				// stays matched with the taker funds in custody until an
				// explicit abort.
				n.logger.Warn("settlement failed",
					slog.Uint64("offerId", op.offerID), slog.Any("error", err))
			}
		}
	}
}

// ApplyAllocations seeds account balances exactly once per database.
func (n *Node) ApplyAllocations(allocs []Allocation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.invoke(func(m *state.Manager) error {
		applied, err := m.GenesisApplied()
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		for _, alloc := range allocs {
			if err := m.SetBalance(alloc.Address, alloc.Asset); err != nil {
				return err
			}
		}
		return m.MarkGenesisApplied()
	})
}

// CreateOffer processes a maker's offer creation invocation.
func (n *Node) CreateOffer(maker [20]byte, makerAsset, takerAsset types.Asset, attached []types.Asset, expiresAt int64) (*swap.Offer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var offer *swap.Offer
	err := n.invoke(func(*state.Manager) error {
		created, err := n.engine.CreateOffer(maker, makerAsset, takerAsset, attached, expiresAt)
		if err != nil {
			return err
		}
		offer = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// ApproveGrant processes a maker's delegated-transfer approval invocation.
func (n *Node) ApproveGrant(offerID uint64, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.invoke(func(*state.Manager) error {
		return n.engine.ApproveGrant(offerID, caller)
	})
}

// BindTaker processes a taker's bind invocation and then delivers the custody
// sub-call and its acknowledgment. The returned correlation ID identifies the
// dispatched custody sub-call.
func (n *Node) BindTaker(offerID uint64, taker [20]byte, attached []types.Asset) ([16]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var correlationID [16]byte
	err := n.invoke(func(*state.Manager) error {
		id, err := n.engine.BindTaker(offerID, taker, attached)
		if err != nil {
			return err
		}
		correlationID = id
		return nil
	})
	if err != nil {
		return correlationID, err
	}
	n.drain()
	return correlationID, nil
}

// ExecuteSwap processes an externally submitted settlement invocation. The
// engine rejects every caller other than the module itself, and the module
// never submits through this path, so this always fails with Unauthorized; it
// exists so the restriction is observable.
func (n *Node) ExecuteSwap(offerID uint64, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if caller == n.module {
		// External submissions cannot impersonate the module identity.
		return swap.ErrUnauthorized
	}
	return n.invoke(func(*state.Manager) error {
		return n.engine.ExecuteSwap(offerID, caller)
	})
}

// AbortMatch processes a participant's recovery invocation for a stuck match.
func (n *Node) AbortMatch(offerID uint64, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.invoke(func(*state.Manager) error {
		return n.engine.AbortMatch(offerID, caller)
	})
}

// ListOpenOffers pages through live offers ascending by ID.
func (n *Node) ListOpenOffers(after *uint64, limit uint32) ([]*swap.Offer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return state.NewManager(n.db).OfferList(after, limit)
}

// GetFulfilledOffer returns the archived snapshot of a completed swap.
func (n *Node) GetFulfilledOffer(offerID uint64) (*swap.Offer, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return state.NewManager(n.db).FulfilledGet(offerID)
}

// Balances enumerates the non-zero balances held by the address.
func (n *Node) Balances(addr [20]byte) ([]types.Asset, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return state.NewManager(n.db).Balances(addr)
}

// Balance returns the address balance in one denomination.
func (n *Node) Balance(addr [20]byte, denom string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return state.NewManager(n.db).Balance(addr, denom)
}
