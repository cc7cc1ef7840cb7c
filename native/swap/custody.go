package swap

import (
	"fmt"
	"strings"

	"otcswap/core/types"
)

// Strategy names the fund-custody policy an engine runs under.
type Strategy string

const (
	// StrategyEscrow requires the maker to attach the offered asset at
	// creation; the module custodies it directly until settlement.
	StrategyEscrow Strategy = "escrow"
	// StrategyGrant requires the maker to attach nothing; creation registers
	// a delegated transfer capability scoped to exactly the offered asset,
	// and settlement pulls the maker leg through it.
	StrategyGrant Strategy = "grant"
)

// ParseStrategy resolves a configuration value to a custody strategy.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyEscrow:
		return StrategyEscrow, nil
	case StrategyGrant:
		return StrategyGrant, nil
	default:
		return "", fmt.Errorf("swap: unknown custody strategy %q", value)
	}
}

// Custody abstracts how the engine obtains the ability to deliver the maker's
// asset at settlement without further maker interaction. Both strategies must
// scope custody to exactly the declared asset and exercise it at most once per
// offer.
type Custody interface {
	Strategy() Strategy
	// EstablishMakerCustody validates the maker's attached funds against the
	// strategy and places the maker leg under module control (direct escrow
	// or a scoped delegation). Invoked once, during offer creation.
	EstablishMakerCustody(st custodyState, offer *Offer, attached []types.Asset) error
	// SettleMakerLeg delivers the maker asset to the bound taker. Invoked
	// once, by the settlement step.
	SettleMakerLeg(st custodyState, offer *Offer) error
}

// custodyState is the slice of ledger state custody strategies operate on.
type custodyState interface {
	Transfer(from, to [20]byte, asset types.Asset) error
	EscrowCredit(offerID uint64, asset types.Asset) error
	EscrowDebit(offerID uint64, asset types.Asset) error
	GrantPut(grant *Grant) error
	GrantExercise(granter, grantee, to [20]byte, asset types.Asset) error
}

// EscrowCustody is the escrow-first strategy: maker funds travel with the
// creation call and sit in the module vault until settlement.
type EscrowCustody struct {
	module [20]byte
}

// NewEscrowCustody constructs the escrow-first strategy bound to the module
// vault address.
func NewEscrowCustody(module [20]byte) *EscrowCustody {
	return &EscrowCustody{module: module}
}

func (c *EscrowCustody) Strategy() Strategy { return StrategyEscrow }

func (c *EscrowCustody) EstablishMakerCustody(st custodyState, offer *Offer, attached []types.Asset) error {
	if err := exactAttachment(attached, offer.MakerAsset); err != nil {
		return err
	}
	if err := st.Transfer(offer.Maker, c.module, offer.MakerAsset); err != nil {
		return err
	}
	return st.EscrowCredit(offer.ID, offer.MakerAsset)
}

func (c *EscrowCustody) SettleMakerLeg(st custodyState, offer *Offer) error {
	if err := st.EscrowDebit(offer.ID, offer.MakerAsset); err != nil {
		return err
	}
	return st.Transfer(c.module, offer.Taker, offer.MakerAsset)
}

// GrantCustody is the delegated-grant strategy: the maker never sends funds to
// the module; settlement exercises a scoped, single-use delegation to move the
// maker leg maker->taker directly.
type GrantCustody struct {
	module [20]byte
}

// NewGrantCustody constructs the delegated-grant strategy bound to the module
// address used as the grantee.
func NewGrantCustody(module [20]byte) *GrantCustody {
	return &GrantCustody{module: module}
}

func (c *GrantCustody) Strategy() Strategy { return StrategyGrant }

// EstablishMakerCustody validates that no funds travel with the creation call.
// The delegation itself is only a request at this point: it takes effect when
// the maker approves it (Engine.ApproveGrant), mirroring how ledger-level
// authorization grants require the granter's own signature. Settlement against
// an unapproved request fails with ErrDelegationMissing.
func (c *GrantCustody) EstablishMakerCustody(st custodyState, offer *Offer, attached []types.Asset) error {
	if len(attached) != 0 {
		return ErrIncorrectFunds
	}
	return nil
}

func (c *GrantCustody) SettleMakerLeg(st custodyState, offer *Offer) error {
	return st.GrantExercise(offer.Maker, c.module, offer.Taker, offer.MakerAsset)
}
