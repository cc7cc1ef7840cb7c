package swap

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"otcswap/core/events"
	"otcswap/core/types"
)

var (
	errNilState      = errors.New("swap engine: state not configured")
	errNilCustody    = errors.New("swap engine: custody strategy not configured")
	errNilDispatcher = errors.New("swap engine: dispatcher not configured")
)

// engineState is the persistence surface the lifecycle controller writes to.
// The engine exclusively owns writes to the offer store and the pending-match
// marker; the archive is write-once per key.
type engineState interface {
	custodyState
	NextOfferID() (uint64, error)
	OfferPut(*Offer) error
	OfferGet(id uint64) (*Offer, bool, error)
	// OfferUpdate applies fn atomically against the stored offer. fn returning
	// an error rejects the update and leaves the offer untouched.
	OfferUpdate(id uint64, fn func(*Offer) error) (*Offer, error)
	OfferDelete(id uint64) error
	OfferList(after *uint64, limit uint32) ([]*Offer, error)
	FulfilledPut(*Offer) error
	FulfilledGet(id uint64) (*Offer, bool, error)
	PendingMatchPut(*PendingMatch) error
	PendingMatchGet() (*PendingMatch, bool, error)
	PendingMatchClear() error
}

// Dispatcher issues the asynchronous sub-operations the lifecycle needs: the
// custody sub-call that moves taker funds into the module vault, and the
// settlement self-call triggered by its acknowledgment. Implementations run
// each dispatched operation as its own atomic invocation after the current one
// commits.
type Dispatcher interface {
	DispatchCustody(offerID uint64, correlationID [16]byte) error
	DispatchSettlement(offerID uint64) error
}

// Engine is the offer lifecycle controller. It enforces the ordering and
// authorization invariants of the swap: exact funds at creation and bind, a
// single bound taker, module-only settlement and the pending-match discipline
// around the asynchronous custody boundary.
type Engine struct {
	state      engineState
	custody    Custody
	dispatcher Dispatcher
	emitter    events.Emitter
	module     [20]byte
	nowFn      func() int64
}

// NewEngine constructs a lifecycle engine running under the supplied custody
// strategy. The module address doubles as vault and settlement identity.
func NewEngine(custody Custody, module [20]byte) *Engine {
	return &Engine{
		custody: custody,
		module:  module,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetDispatcher configures the sub-call dispatcher.
func (e *Engine) SetDispatcher(d Dispatcher) { e.dispatcher = d }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the settlement identity the engine authenticates
// self-calls against.
func (e *Engine) ModuleAddress() [20]byte { return e.module }

// Strategy returns the custody strategy the engine runs under.
func (e *Engine) Strategy() Strategy {
	if e == nil || e.custody == nil {
		return ""
	}
	return e.custody.Strategy()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(swapEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.custody == nil {
		return errNilCustody
	}
	return nil
}

// CreateOffer validates the maker's attachment against the custody strategy,
// allocates the next offer ID, establishes custody of the maker leg and
// persists the offer in the open state. The assigned ID is emitted as an
// attribute of the created event. The expiry timestamp is stored but not
// enforced.
func (e *Engine) CreateOffer(maker [20]byte, makerAsset, takerAsset types.Asset, attached []types.Asset, expiresAt int64) (*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	sanitizedMaker, err := types.SanitizeAsset(makerAsset)
	if err != nil {
		return nil, err
	}
	sanitizedTaker, err := types.SanitizeAsset(takerAsset)
	if err != nil {
		return nil, err
	}
	id, err := e.state.NextOfferID()
	if err != nil {
		return nil, err
	}
	offer := &Offer{
		ID:         id,
		Maker:      maker,
		MakerAsset: sanitizedMaker,
		TakerAsset: sanitizedTaker,
		Status:     OfferOpen,
		CreatedAt:  e.now(),
		ExpiresAt:  expiresAt,
	}
	if err := e.custody.EstablishMakerCustody(e.state, offer, attached); err != nil {
		return nil, err
	}
	if err := e.state.OfferPut(offer); err != nil {
		return nil, err
	}
	evt := NewOfferCreatedEvent(offer)
	evt.Attributes["custody"] = string(e.custody.Strategy())
	e.emit(evt)
	return offer.Clone(), nil
}

// ApproveGrant registers the delegated transfer capability requested by an
// offer created under the grant strategy. Only the offer's maker may approve;
// the grant is scoped to exactly the offered asset and consumed by the single
// settlement dispatch.
func (e *Engine) ApproveGrant(offerID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.custody.Strategy() != StrategyGrant {
		return ErrDelegationScope
	}
	offer, ok, err := e.state.OfferGet(offerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoOfferFound
	}
	if caller != offer.Maker {
		return ErrUnauthorized
	}
	grant := &Grant{
		Granter: offer.Maker,
		Grantee: e.module,
		Asset:   offer.MakerAsset.Clone(),
	}
	return e.state.GrantPut(grant)
}

// BindTaker transitions an open offer to matched: it binds the caller as the
// taker exactly once, records the pending-match marker and dispatches the
// custody sub-call that moves the attached taker funds into the module vault.
// Control returns before the swap completes; settlement happens when the
// custody acknowledgment resolves.
func (e *Engine) BindTaker(offerID uint64, taker [20]byte, attached []types.Asset) ([16]byte, error) {
	var correlationID [16]byte
	if err := e.ready(); err != nil {
		return correlationID, err
	}
	if e.dispatcher == nil {
		return correlationID, errNilDispatcher
	}
	if _, pending, err := e.state.PendingMatchGet(); err != nil {
		return correlationID, err
	} else if pending {
		return correlationID, ErrMatchPending
	}
	offer, err := e.state.OfferUpdate(offerID, func(o *Offer) error {
		if o.Status != OfferOpen || o.HasTaker() {
			return ErrNoOfferFound
		}
		if err := exactAttachment(attached, o.TakerAsset); err != nil {
			return err
		}
		o.Taker = taker
		o.Status = OfferMatched
		return nil
	})
	if err != nil {
		return correlationID, err
	}
	correlationID = [16]byte(uuid.New())
	marker := &PendingMatch{
		CorrelationID: correlationID,
		OfferID:       offerID,
		CreatedAt:     e.now(),
	}
	// The marker must be durable before the sub-call exists, so a crash
	// between dispatch and resolution cannot orphan the acknowledgment.
	if err := e.state.PendingMatchPut(marker); err != nil {
		return correlationID, err
	}
	if err := e.dispatcher.DispatchCustody(offerID, correlationID); err != nil {
		return correlationID, err
	}
	e.emit(NewTakerBoundEvent(offer, correlationID))
	return correlationID, nil
}

// ExecuteSwap is the two-legged settlement. It is callable only with the
// module's own identity: it assumes the taker funds already sit in custody, so
// an external caller reaching it directly could trigger a payout without
// having paid. Leg 1 delivers the maker asset to the taker through the custody
// strategy; leg 2 releases the escrowed taker asset to the maker. Both legs
// run inside one invocation, so the surrounding overlay commit makes them
// all-or-nothing. On success the offer is archived and deleted.
func (e *Engine) ExecuteSwap(offerID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.module {
		return ErrUnauthorized
	}
	offer, ok, err := e.state.OfferGet(offerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoOfferFound
	}
	if !offer.HasTaker() {
		return ErrInvalidTaker
	}
	if err := e.custody.SettleMakerLeg(e.state, offer); err != nil {
		return err
	}
	if err := e.state.EscrowDebit(offer.ID, offer.TakerAsset); err != nil {
		return err
	}
	if err := e.state.Transfer(e.module, offer.Maker, offer.TakerAsset); err != nil {
		return err
	}
	if err := e.state.FulfilledPut(offer); err != nil {
		return err
	}
	if err := e.state.OfferDelete(offer.ID); err != nil {
		return err
	}
	e.emit(NewOfferFulfilledEvent(offer))
	return nil
}

// ListOpenOffers pages through live offers ascending by ID. Matched offers are
// included; they remain observable while awaiting settlement.
func (e *Engine) ListOpenOffers(after *uint64, limit uint32) ([]*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.OfferList(after, limit)
}

// GetFulfilledOffer returns the immutable archived snapshot of a completed
// swap, or false when no swap with that ID ever completed.
func (e *Engine) GetFulfilledOffer(offerID uint64) (*Offer, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.FulfilledGet(offerID)
}
