package swap

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"otcswap/core/types"
)

// OfferStatus represents the lifecycle states of an offer. Fulfilment is
// terminal and removes the offer from the live store, so it has no status
// value; archived offers are recognised by their presence in the archive.
type OfferStatus uint8

const (
	OfferOpen OfferStatus = iota
	OfferMatched
)

// Offer captures a maker's standing proposal to exchange MakerAsset for
// TakerAsset. The ID is assigned once at creation and never reused; the taker
// starts unset (zero address) and is bound exactly once.
type Offer struct {
	ID         uint64
	Maker      [20]byte
	Taker      [20]byte
	MakerAsset types.Asset
	TakerAsset types.Asset
	Status     OfferStatus
	CreatedAt  int64
	ExpiresAt  int64
}

// HasTaker reports whether a counterparty has been bound to the offer.
func (o *Offer) HasTaker() bool {
	return o != nil && o.Taker != ([20]byte{})
}

// Clone returns a deep copy of the offer so callers can safely mutate the copy
// without affecting the stored instance.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.MakerAsset = o.MakerAsset.Clone()
	clone.TakerAsset = o.TakerAsset.Clone()
	return &clone
}

// Valid reports whether the status value is within the supported range.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferOpen, OfferMatched:
		return true
	default:
		return false
	}
}

// SanitizeOffer validates and normalises the supplied offer definition,
// returning a cloned instance with canonical denominations and non-nil
// amounts. The function does not mutate the original value.
func SanitizeOffer(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("swap: nil offer")
	}
	clone := o.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("swap: offer id must be non-zero")
	}
	if clone.Maker == ([20]byte{}) {
		return nil, fmt.Errorf("swap: offer maker must be set")
	}
	makerAsset, err := types.SanitizeAsset(clone.MakerAsset)
	if err != nil {
		return nil, fmt.Errorf("swap: maker asset: %w", err)
	}
	clone.MakerAsset = makerAsset
	takerAsset, err := types.SanitizeAsset(clone.TakerAsset)
	if err != nil {
		return nil, fmt.Errorf("swap: taker asset: %w", err)
	}
	clone.TakerAsset = takerAsset
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("swap: invalid offer status %d", clone.Status)
	}
	if clone.Status == OfferMatched && !clone.HasTaker() {
		return nil, fmt.Errorf("swap: matched offer without taker")
	}
	return clone, nil
}

// PendingMatch correlates an in-flight custody sub-call with the offer it
// concerns. At most one record exists at a time; it is written before the
// sub-call is dispatched and consumed when the acknowledgment resolves.
type PendingMatch struct {
	CorrelationID [16]byte
	OfferID       uint64
	CreatedAt     int64
}

// Clone returns a copy of the pending match record.
func (p *PendingMatch) Clone() *PendingMatch {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Grant is a delegated transfer capability: an authorization for the grantee
// to move exactly the scoped asset out of the granter's balance, once.
type Grant struct {
	Granter [20]byte
	Grantee [20]byte
	Asset   types.Asset
}

// Clone returns a deep copy of the grant.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	clone := *g
	clone.Asset = g.Asset.Clone()
	return &clone
}

// ModuleAddress derives the swap module's own ledger address. Funds escrowed
// by the module are custodied here, and settlement self-calls authenticate by
// comparing the caller against this address.
func ModuleAddress() [20]byte {
	hash := ethcrypto.Keccak256([]byte("otcswap/module/v1"))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// exactAttachment enforces the strict funds equality the lifecycle requires:
// exactly one attached asset, matching the wanted denomination and amount with
// no tolerance and no extras.
func exactAttachment(attached []types.Asset, want types.Asset) error {
	if len(attached) != 1 {
		return ErrIncorrectFunds
	}
	sanitized, err := types.SanitizeAsset(attached[0])
	if err != nil {
		return ErrIncorrectFunds
	}
	if !sanitized.Equal(want) {
		return ErrIncorrectFunds
	}
	return nil
}
