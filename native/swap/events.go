package swap

import (
	"encoding/hex"
	"strconv"

	"otcswap/core/types"
)

const (
	EventTypeOfferCreated   = "swap.offer_created"
	EventTypeTakerBound     = "swap.taker_bound"
	EventTypeMatchSucceeded = "swap.match_succeeded"
	EventTypeMatchFailed    = "swap.match_failed"
	EventTypeOfferFulfilled = "swap.offer_fulfilled"
	EventTypeMatchAborted   = "swap.match_aborted"
)

type swapEvent struct {
	evt *types.Event
}

func (e swapEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e swapEvent) Event() *types.Event { return e.evt }

// NewOfferCreatedEvent returns the canonical payload for a newly created
// offer. The assigned offer ID travels as an attribute so callers observing
// the invocation learn the key without a follow-up query.
func NewOfferCreatedEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferCreated, o)
}

// NewTakerBoundEvent returns the payload emitted when a taker binds to an
// offer and its custody sub-call is dispatched.
func NewTakerBoundEvent(o *Offer, correlationID [16]byte) *types.Event {
	evt := newOfferEvent(EventTypeTakerBound, o)
	evt.Attributes["correlationId"] = hex.EncodeToString(correlationID[:])
	return evt
}

// NewMatchSucceededEvent returns the payload emitted when the custody
// sub-call acknowledged success and settlement has been dispatched.
func NewMatchSucceededEvent(offerID uint64, correlationID [16]byte) *types.Event {
	return newMatchEvent(EventTypeMatchSucceeded, offerID, correlationID)
}

// NewMatchFailedEvent returns the payload emitted when the custody sub-call
// acknowledged failure and the offer was reopened.
func NewMatchFailedEvent(offerID uint64, correlationID [16]byte) *types.Event {
	return newMatchEvent(EventTypeMatchFailed, offerID, correlationID)
}

// NewOfferFulfilledEvent returns the payload emitted when both settlement legs
// executed and the offer moved to the archive.
func NewOfferFulfilledEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferFulfilled, o)
}

// NewMatchAbortedEvent returns the payload emitted when a stuck match was
// aborted, the escrowed taker funds refunded and the offer reopened.
func NewMatchAbortedEvent(o *Offer, refunded [20]byte) *types.Event {
	evt := newOfferEvent(EventTypeMatchAborted, o)
	evt.Attributes["refundedTo"] = hex.EncodeToString(refunded[:])
	return evt
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["offerId"] = strconv.FormatUint(o.ID, 10)
	attrs["maker"] = hex.EncodeToString(o.Maker[:])
	attrs["makerDenom"] = o.MakerAsset.Denom
	attrs["makerAmount"] = o.MakerAsset.Amount.String()
	attrs["takerDenom"] = o.TakerAsset.Denom
	attrs["takerAmount"] = o.TakerAsset.Amount.String()
	if o.HasTaker() {
		attrs["taker"] = hex.EncodeToString(o.Taker[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newMatchEvent(eventType string, offerID uint64, correlationID [16]byte) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"offerId":       strconv.FormatUint(offerID, 10),
			"correlationId": hex.EncodeToString(correlationID[:]),
		},
	}
}
