package swap

import "errors"

var (
	// ErrIncorrectFunds indicates the attached funds do not exactly match the
	// asset required by the custody strategy for the operation.
	ErrIncorrectFunds = errors.New("swap: incorrect funds attached")
	// ErrNoOfferFound indicates the offer ID does not resolve to a live open
	// offer. Binds racing against an already-matched offer receive this too.
	ErrNoOfferFound = errors.New("swap: offer not found")
	// ErrInvalidTaker indicates settlement was attempted before a taker was
	// bound to the offer.
	ErrInvalidTaker = errors.New("swap: offer has no bound taker")
	// ErrUnauthorized indicates a module-only operation was invoked by an
	// external caller.
	ErrUnauthorized = errors.New("swap: external invocation not permitted")
	// ErrUnrecognizedCallback indicates a custody acknowledgment carried a
	// correlation ID with no pending match record.
	ErrUnrecognizedCallback = errors.New("swap: unrecognized custody callback")
	// ErrMatchPending indicates a bind was attempted while another match is
	// still awaiting its custody confirmation.
	ErrMatchPending = errors.New("swap: match awaiting custody confirmation")
	// ErrMatchNotAbortable indicates an abort was requested for an offer that
	// is not stuck in the matched state.
	ErrMatchNotAbortable = errors.New("swap: match not abortable")
	// ErrDelegationMissing indicates the delegated transfer capability for the
	// maker leg was never granted or has already been consumed.
	ErrDelegationMissing = errors.New("swap: delegated transfer capability not granted")
	// ErrDelegationScope indicates a delegated transfer was attempted outside
	// the granted asset and amount.
	ErrDelegationScope = errors.New("swap: delegated transfer outside granted scope")
	// ErrInsufficientBalance indicates a ledger transfer exceeds the sender's
	// balance in the asset denomination.
	ErrInsufficientBalance = errors.New("swap: insufficient balance")
)
