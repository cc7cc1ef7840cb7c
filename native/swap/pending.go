package swap

import "errors"

// EscrowTakerFunds is the custody sub-call body: it moves the bound taker's
// declared funds into the module vault and earmarks them for the offer. The
// dispatcher runs it as its own atomic invocation; a failure here rolls the
// transfer back entirely and surfaces as a failed acknowledgment.
func (e *Engine) EscrowTakerFunds(offerID uint64, caller [20]byte) error {
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
	if err := e.state.Transfer(offer.Taker, e.module, offer.TakerAsset); err != nil {
		return err
	}
	return e.state.EscrowCredit(offer.ID, offer.TakerAsset)
}

// HandleCustodyResult processes the asynchronous acknowledgment of the custody
// sub-call. The pending-match marker is consumed on both outcomes so stale
// correlation state can never leak into a later match. Success dispatches the
// settlement self-call; failure reopens the offer for a fresh bind (the failed
// sub-call was already rolled back by the ledger, so no funds moved).
func (e *Engine) HandleCustodyResult(correlationID [16]byte, ok bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	marker, found, err := e.state.PendingMatchGet()
	if err != nil {
		return err
	}
	if !found || marker.CorrelationID != correlationID {
		return ErrUnrecognizedCallback
	}
	if err := e.state.PendingMatchClear(); err != nil {
		return err
	}
	if ok {
		if e.dispatcher == nil {
			return errNilDispatcher
		}
		if err := e.dispatcher.DispatchSettlement(marker.OfferID); err != nil {
			return err
		}
		e.emit(NewMatchSucceededEvent(marker.OfferID, correlationID))
		return nil
	}
	if err := e.reopenOffer(marker.OfferID); err != nil {
		return err
	}
	e.emit(NewMatchFailedEvent(marker.OfferID, correlationID))
	return nil
}

// AbortMatch is the designed recovery path for a match whose settlement cannot
// complete (e.g. the maker never approved the delegated grant): it refunds the
// escrowed taker funds from the vault and reopens the offer. Only the offer's
// participants or the module itself may abort, and never while the custody
// acknowledgment is still pending.
func (e *Engine) AbortMatch(offerID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	offer, ok, err := e.state.OfferGet(offerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoOfferFound
	}
	if caller != e.module && caller != offer.Maker && caller != offer.Taker {
		return ErrUnauthorized
	}
	if offer.Status != OfferMatched || !offer.HasTaker() {
		return ErrMatchNotAbortable
	}
	if marker, pending, err := e.state.PendingMatchGet(); err != nil {
		return err
	} else if pending && marker.OfferID == offerID {
		return ErrMatchPending
	}
	refundTo := offer.Taker
	if err := e.state.EscrowDebit(offer.ID, offer.TakerAsset); err != nil {
		return err
	}
	if err := e.state.Transfer(e.module, refundTo, offer.TakerAsset); err != nil {
		return err
	}
	reopened, err := e.state.OfferUpdate(offerID, func(o *Offer) error {
		o.Taker = [20]byte{}
		o.Status = OfferOpen
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewMatchAbortedEvent(reopened, refundTo))
	return nil
}

func (e *Engine) reopenOffer(offerID uint64) error {
	_, err := e.state.OfferUpdate(offerID, func(o *Offer) error {
		o.Taker = [20]byte{}
		o.Status = OfferOpen
		return nil
	})
	if errors.Is(err, ErrNoOfferFound) {
		// The offer was consumed between dispatch and resolution; nothing
		// left to reopen.
		return nil
	}
	return err
}
