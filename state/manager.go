package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"otcswap/core/types"
	"otcswap/native/swap"
	"otcswap/storage"
)

// Manager provides the keyed state surface the swap engine runs against:
// offers and their monotonic ID sequence, the fulfilled-offer archive, the
// pending-match slot, per-denomination account balances, escrow earmarks and
// delegated transfer grants. Values are RLP encoded; offer and archive keys
// embed the big-endian offer ID so lexical key order equals numeric order.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database,
// typically an Overlay scoped to a single invocation.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// DefaultOfferPageLimit bounds offer listings when the caller does not supply
// a limit.
const DefaultOfferPageLimit = 10

var (
	offerPrefix     = []byte("swap/offer/")
	fulfilledPrefix = []byte("swap/fulfilled/")
	offerSeqKey     = []byte("swap/offer-seq")
	pendingMatchKey = []byte("swap/pending-match")
	escrowPrefix    = []byte("swap/escrow/")
	grantPrefix     = []byte("swap/grant/")
	balancePrefix   = []byte("balance/")
)

func idKey(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	for i := 0; i < 8; i++ {
		buf[len(prefix)+i] = byte(id >> (56 - 8*i))
	}
	return buf
}

func decodeIDKey(prefix, key []byte) uint64 {
	var id uint64
	for _, b := range key[len(prefix):] {
		id = id<<8 | uint64(b)
	}
	return id
}

func balanceKey(addr [20]byte, denom string) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(addr)+1+len(denom))
	buf = append(buf, balancePrefix...)
	buf = append(buf, addr[:]...)
	buf = append(buf, '/')
	return append(buf, denom...)
}

func escrowKey(offerID uint64, denom string) []byte {
	buf := idKey(escrowPrefix, offerID)
	buf = append(buf, '/')
	return append(buf, denom...)
}

func grantKey(granter [20]byte, denom string) []byte {
	buf := make([]byte, 0, len(grantPrefix)+len(granter)+1+len(denom))
	buf = append(buf, grantPrefix...)
	buf = append(buf, granter[:]...)
	buf = append(buf, '/')
	return append(buf, denom...)
}

// storedOffer mirrors swap.Offer with RLP-friendly field types.
type storedOffer struct {
	ID          uint64
	Maker       [20]byte
	Taker       [20]byte
	MakerDenom  string
	MakerAmount *big.Int
	TakerDenom  string
	TakerAmount *big.Int
	Status      uint8
	CreatedAt   uint64
	ExpiresAt   uint64
}

func encodeOffer(o *swap.Offer) ([]byte, error) {
	stored := &storedOffer{
		ID:          o.ID,
		Maker:       o.Maker,
		Taker:       o.Taker,
		MakerDenom:  o.MakerAsset.Denom,
		MakerAmount: o.MakerAsset.Amount,
		TakerDenom:  o.TakerAsset.Denom,
		TakerAmount: o.TakerAsset.Amount,
		Status:      uint8(o.Status),
		CreatedAt:   uint64(o.CreatedAt),
		ExpiresAt:   uint64(o.ExpiresAt),
	}
	return rlp.EncodeToBytes(stored)
}

func decodeOffer(data []byte) (*swap.Offer, error) {
	stored := new(storedOffer)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	return &swap.Offer{
		ID:         stored.ID,
		Maker:      stored.Maker,
		Taker:      stored.Taker,
		MakerAsset: types.Asset{Denom: stored.MakerDenom, Amount: stored.MakerAmount},
		TakerAsset: types.Asset{Denom: stored.TakerDenom, Amount: stored.TakerAmount},
		Status:     swap.OfferStatus(stored.Status),
		CreatedAt:  int64(stored.CreatedAt),
		ExpiresAt:  int64(stored.ExpiresAt),
	}, nil
}

// NextOfferID increments and persists the offer sequence. The first call
// returns 1; identifiers are strictly increasing and never reused, even after
// the associated offer is deleted.
func (m *Manager) NextOfferID() (uint64, error) {
	data, err := m.db.Get(offerSeqKey)
	if err != nil {
		return 0, err
	}
	var seq uint64
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &seq); err != nil {
			return 0, err
		}
	}
	seq++
	encoded, err := rlp.EncodeToBytes(seq)
	if err != nil {
		return 0, err
	}
	if err := m.db.Put(offerSeqKey, encoded); err != nil {
		return 0, err
	}
	return seq, nil
}

// OfferPut validates and persists an offer keyed by its ID.
func (m *Manager) OfferPut(o *swap.Offer) error {
	sanitized, err := swap.SanitizeOffer(o)
	if err != nil {
		return err
	}
	encoded, err := encodeOffer(sanitized)
	if err != nil {
		return err
	}
	return m.db.Put(idKey(offerPrefix, sanitized.ID), encoded)
}

// OfferGet loads a live offer by ID.
func (m *Manager) OfferGet(id uint64) (*swap.Offer, bool, error) {
	data, err := m.db.Get(idKey(offerPrefix, id))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	offer, err := decodeOffer(data)
	if err != nil {
		return nil, false, err
	}
	return offer, true, nil
}

// OfferUpdate applies fn to the stored offer as one read-modify-write. The
// update is the serialization point for concurrent binds: a missing offer, or
// fn rejecting the current state, leaves the store untouched.
func (m *Manager) OfferUpdate(id uint64, fn func(*swap.Offer) error) (*swap.Offer, error) {
	offer, ok, err := m.OfferGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, swap.ErrNoOfferFound
	}
	if err := fn(offer); err != nil {
		return nil, err
	}
	if err := m.OfferPut(offer); err != nil {
		return nil, err
	}
	return offer.Clone(), nil
}

// OfferDelete removes a live offer.
func (m *Manager) OfferDelete(id uint64) error {
	return m.db.Delete(idKey(offerPrefix, id))
}

// OfferList pages through live offers ascending by ID, starting strictly
// after the optional last-seen ID. It never returns more than limit entries;
// a zero limit falls back to DefaultOfferPageLimit.
func (m *Manager) OfferList(after *uint64, limit uint32) ([]*swap.Offer, error) {
	if limit == 0 {
		limit = DefaultOfferPageLimit
	}
	var start []byte
	if after != nil {
		start = idKey(offerPrefix, *after)
	}
	offers := make([]*swap.Offer, 0, limit)
	var decodeErr error
	err := m.db.Iterate(offerPrefix, start, func(key, value []byte) bool {
		offer, err := decodeOffer(value)
		if err != nil {
			decodeErr = fmt.Errorf("offer %d: %w", decodeIDKey(offerPrefix, key), err)
			return false
		}
		offers = append(offers, offer)
		return uint32(len(offers)) < limit
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return offers, nil
}

// FulfilledPut archives the snapshot of a completed swap. The archive is
// write-once per key.
func (m *Manager) FulfilledPut(o *swap.Offer) error {
	sanitized, err := swap.SanitizeOffer(o)
	if err != nil {
		return err
	}
	key := idKey(fulfilledPrefix, sanitized.ID)
	existing, err := m.db.Get(key)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("state: fulfilled offer %d already archived", sanitized.ID)
	}
	encoded, err := encodeOffer(sanitized)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// FulfilledGet loads an archived swap by its original offer ID.
func (m *Manager) FulfilledGet(id uint64) (*swap.Offer, bool, error) {
	data, err := m.db.Get(idKey(fulfilledPrefix, id))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	offer, err := decodeOffer(data)
	if err != nil {
		return nil, false, err
	}
	return offer, true, nil
}

type storedPending struct {
	CorrelationID [16]byte
	OfferID       uint64
	CreatedAt     uint64
}

// PendingMatchPut writes the single pending-match slot.
func (m *Manager) PendingMatchPut(p *swap.PendingMatch) error {
	if p == nil {
		return fmt.Errorf("state: nil pending match")
	}
	encoded, err := rlp.EncodeToBytes(&storedPending{
		CorrelationID: p.CorrelationID,
		OfferID:       p.OfferID,
		CreatedAt:     uint64(p.CreatedAt),
	})
	if err != nil {
		return err
	}
	return m.db.Put(pendingMatchKey, encoded)
}

// PendingMatchGet reads the pending-match slot.
func (m *Manager) PendingMatchGet() (*swap.PendingMatch, bool, error) {
	data, err := m.db.Get(pendingMatchKey)
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedPending)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &swap.PendingMatch{
		CorrelationID: stored.CorrelationID,
		OfferID:       stored.OfferID,
		CreatedAt:     int64(stored.CreatedAt),
	}, true, nil
}

// PendingMatchClear consumes the pending-match slot.
func (m *Manager) PendingMatchClear() error {
	return m.db.Delete(pendingMatchKey)
}

// Balance returns the account balance in the given denomination.
func (m *Manager) Balance(addr [20]byte, denom string) (*big.Int, error) {
	normalized, err := types.NormalizeDenom(denom)
	if err != nil {
		return nil, err
	}
	return m.readAmount(balanceKey(addr, normalized))
}

// Balances enumerates all non-zero balances held by the address.
func (m *Manager) Balances(addr [20]byte) ([]types.Asset, error) {
	prefix := make([]byte, 0, len(balancePrefix)+len(addr)+1)
	prefix = append(prefix, balancePrefix...)
	prefix = append(prefix, addr[:]...)
	prefix = append(prefix, '/')
	var (
		assets    []types.Asset
		decodeErr error
	)
	err := m.db.Iterate(prefix, nil, func(key, value []byte) bool {
		amount := new(big.Int)
		if err := rlp.DecodeBytes(value, amount); err != nil {
			decodeErr = err
			return false
		}
		if amount.Sign() > 0 {
			assets = append(assets, types.Asset{Denom: string(key[len(prefix):]), Amount: amount})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return assets, nil
}

// SetBalance overwrites the account balance in the given denomination. Used
// by genesis allocation only; runtime movements go through Transfer.
func (m *Manager) SetBalance(addr [20]byte, asset types.Asset) error {
	sanitized, err := types.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	return m.writeAmount(balanceKey(addr, sanitized.Denom), sanitized.Amount)
}

// Transfer moves the asset from one account to another, failing without any
// state change when the sender's balance does not cover the amount.
func (m *Manager) Transfer(from, to [20]byte, asset types.Asset) error {
	sanitized, err := types.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	fromKey := balanceKey(from, sanitized.Denom)
	balance, err := m.readAmount(fromKey)
	if err != nil {
		return err
	}
	if balance.Cmp(sanitized.Amount) < 0 {
		return swap.ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toKey := balanceKey(to, sanitized.Denom)
	target, err := m.readAmount(toKey)
	if err != nil {
		return err
	}
	if err := m.writeAmount(fromKey, new(big.Int).Sub(balance, sanitized.Amount)); err != nil {
		return err
	}
	return m.writeAmount(toKey, new(big.Int).Add(target, sanitized.Amount))
}

// EscrowCredit earmarks custodied funds for the offer.
func (m *Manager) EscrowCredit(offerID uint64, asset types.Asset) error {
	sanitized, err := types.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	key := escrowKey(offerID, sanitized.Denom)
	balance, err := m.readAmount(key)
	if err != nil {
		return err
	}
	return m.writeAmount(key, new(big.Int).Add(balance, sanitized.Amount))
}

// EscrowDebit consumes an earmark, failing when the offer's escrow balance
// does not cover the amount.
func (m *Manager) EscrowDebit(offerID uint64, asset types.Asset) error {
	sanitized, err := types.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	key := escrowKey(offerID, sanitized.Denom)
	balance, err := m.readAmount(key)
	if err != nil {
		return err
	}
	if balance.Cmp(sanitized.Amount) < 0 {
		return swap.ErrInsufficientBalance
	}
	remaining := new(big.Int).Sub(balance, sanitized.Amount)
	if remaining.Sign() == 0 {
		return m.db.Delete(key)
	}
	return m.writeAmount(key, remaining)
}

// EscrowBalance reports the funds currently earmarked for the offer.
func (m *Manager) EscrowBalance(offerID uint64, denom string) (*big.Int, error) {
	normalized, err := types.NormalizeDenom(denom)
	if err != nil {
		return nil, err
	}
	return m.readAmount(escrowKey(offerID, normalized))
}

type storedGrant struct {
	Granter [20]byte
	Grantee [20]byte
	Denom   string
	Amount  *big.Int
}

// GrantPut registers a delegated transfer capability scoped to exactly the
// grant's asset. A later grant for the same granter and denomination replaces
// the earlier one.
func (m *Manager) GrantPut(g *swap.Grant) error {
	if g == nil {
		return fmt.Errorf("state: nil grant")
	}
	sanitized, err := types.SanitizeAsset(g.Asset)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&storedGrant{
		Granter: g.Granter,
		Grantee: g.Grantee,
		Denom:   sanitized.Denom,
		Amount:  sanitized.Amount,
	})
	if err != nil {
		return err
	}
	return m.db.Put(grantKey(g.Granter, sanitized.Denom), encoded)
}

// GrantGet loads the capability registered for the granter and denomination.
func (m *Manager) GrantGet(granter [20]byte, denom string) (*swap.Grant, bool, error) {
	normalized, err := types.NormalizeDenom(denom)
	if err != nil {
		return nil, false, err
	}
	data, err := m.db.Get(grantKey(granter, normalized))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedGrant)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &swap.Grant{
		Granter: stored.Granter,
		Grantee: stored.Grantee,
		Asset:   types.Asset{Denom: stored.Denom, Amount: stored.Amount},
	}, true, nil
}

// GrantExercise moves the scoped asset from the granter to the recipient on
// the delegate's authority and consumes the grant. The capability is checked
// as a precondition: a missing grant, a different delegate or any deviation
// from the granted asset and amount fails before funds move.
func (m *Manager) GrantExercise(granter, grantee, to [20]byte, asset types.Asset) error {
	sanitized, err := types.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	grant, ok, err := m.GrantGet(granter, sanitized.Denom)
	if err != nil {
		return err
	}
	if !ok {
		return swap.ErrDelegationMissing
	}
	if grant.Grantee != grantee || !grant.Asset.Equal(sanitized) {
		return swap.ErrDelegationScope
	}
	if err := m.Transfer(granter, to, sanitized); err != nil {
		return err
	}
	return m.db.Delete(grantKey(granter, sanitized.Denom))
}

var genesisKey = []byte("genesis/applied")

// GenesisApplied reports whether the one-time balance allocation already ran
// against this database.
func (m *Manager) GenesisApplied() (bool, error) {
	data, err := m.db.Get(genesisKey)
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// MarkGenesisApplied records that the one-time balance allocation ran.
func (m *Manager) MarkGenesisApplied() error {
	return m.db.Put(genesisKey, []byte{1})
}

func (m *Manager) readAmount(key []byte) (*big.Int, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int)
	if len(data) == 0 {
		return amount, nil
	}
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) writeAmount(key []byte, amount *big.Int) error {
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}
