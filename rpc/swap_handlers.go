package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"otcswap/core/types"
	"otcswap/native/swap"
)

type assetPayload struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func parseAsset(p assetPayload) (types.Asset, error) {
	denom := strings.TrimSpace(p.Denom)
	if denom == "" {
		return types.Asset{}, fmt.Errorf("denom required")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(p.Amount), 10)
	if !ok {
		return types.Asset{}, fmt.Errorf("invalid amount %q", p.Amount)
	}
	return types.Asset{Denom: denom, Amount: amount}, nil
}

func formatAsset(a types.Asset) assetPayload {
	amount := "0"
	if a.Amount != nil {
		amount = a.Amount.String()
	}
	return assetPayload{Denom: a.Denom, Amount: amount}
}

type offerPayload struct {
	ID         uint64       `json:"id"`
	Maker      string       `json:"maker"`
	Taker      string       `json:"taker,omitempty"`
	MakerAsset assetPayload `json:"makerAsset"`
	TakerAsset assetPayload `json:"takerAsset"`
	Status     string       `json:"status"`
	CreatedAt  int64        `json:"createdAt"`
	ExpiresAt  int64        `json:"expiresAt,omitempty"`
}

func formatOffer(offer *swap.Offer) offerPayload {
	payload := offerPayload{
		ID:         offer.ID,
		Maker:      formatAddress(offer.Maker),
		MakerAsset: formatAsset(offer.MakerAsset),
		TakerAsset: formatAsset(offer.TakerAsset),
		CreatedAt:  offer.CreatedAt,
		ExpiresAt:  offer.ExpiresAt,
	}
	if offer.HasTaker() {
		payload.Taker = formatAddress(offer.Taker)
	}
	switch offer.Status {
	case swap.OfferMatched:
		payload.Status = "matched"
	default:
		payload.Status = "open"
	}
	return payload
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single params object")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid params payload: %w", err)
	}
	return nil
}

type createOfferParams struct {
	Maker      string         `json:"maker"`
	MakerAsset assetPayload   `json:"makerAsset"`
	TakerAsset assetPayload   `json:"takerAsset"`
	Attached   []assetPayload `json:"attached"`
	ExpiresAt  int64          `json:"expiresAt,omitempty"`
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, req *RPCRequest) {
	var params createOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	maker, err := parseAddress(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	makerAsset, err := parseAsset(params.MakerAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", fmt.Sprintf("makerAsset: %v", err))
		return
	}
	takerAsset, err := parseAsset(params.TakerAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", fmt.Sprintf("takerAsset: %v", err))
		return
	}
	attached := make([]types.Asset, 0, len(params.Attached))
	for i, raw := range params.Attached {
		asset, err := parseAsset(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", fmt.Sprintf("attached[%d]: %v", i, err))
			return
		}
		attached = append(attached, asset)
	}
	offer, err := s.node.CreateOffer(maker, makerAsset, takerAsset, attached, params.ExpiresAt)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatOffer(offer))
}

type approveGrantParams struct {
	OfferID uint64 `json:"offerId"`
	Caller  string `json:"caller"`
}

func (s *Server) handleApproveGrant(w http.ResponseWriter, req *RPCRequest) {
	var params approveGrantParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.ApproveGrant(params.OfferID, caller); err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"approved": true})
}

type bindTakerParams struct {
	OfferID  uint64         `json:"offerId"`
	Taker    string         `json:"taker"`
	Attached []assetPayload `json:"attached"`
}

type bindTakerResult struct {
	OfferID       uint64 `json:"offerId"`
	CorrelationID string `json:"correlationId"`
}

func (s *Server) handleBindTaker(w http.ResponseWriter, req *RPCRequest) {
	var params bindTakerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	taker, err := parseAddress(params.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	attached := make([]types.Asset, 0, len(params.Attached))
	for i, raw := range params.Attached {
		asset, err := parseAsset(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", fmt.Sprintf("attached[%d]: %v", i, err))
			return
		}
		attached = append(attached, asset)
	}
	correlationID, err := s.node.BindTaker(params.OfferID, taker, attached)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bindTakerResult{
		OfferID:       params.OfferID,
		CorrelationID: hex.EncodeToString(correlationID[:]),
	})
}

type executeSwapParams struct {
	OfferID uint64 `json:"offerId"`
	Caller  string `json:"caller"`
}

// handleExecuteSwap exposes the settlement self-call over RPC for parity with
// the full operation set. The operation authenticates against the module's own
// address, so any external caller is rejected; settlement happens only through
// the internal dispatch queue.
func (s *Server) handleExecuteSwap(w http.ResponseWriter, req *RPCRequest) {
	var params executeSwapParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.ExecuteSwap(params.OfferID, caller); err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"settled": true})
}

type abortMatchParams struct {
	OfferID uint64 `json:"offerId"`
	Caller  string `json:"caller"`
}

func (s *Server) handleAbortMatch(w http.ResponseWriter, req *RPCRequest) {
	var params abortMatchParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.AbortMatch(params.OfferID, caller); err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"aborted": true})
}

type listOffersParams struct {
	After *uint64 `json:"after,omitempty"`
	Limit uint32  `json:"limit,omitempty"`
}

type listOffersResult struct {
	Offers []offerPayload `json:"offers"`
	Next   *uint64        `json:"next,omitempty"`
}

func (s *Server) handleListOffers(w http.ResponseWriter, req *RPCRequest) {
	var params listOffersParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	offers, err := s.node.ListOpenOffers(params.After, params.Limit)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	result := listOffersResult{Offers: make([]offerPayload, 0, len(offers))}
	for _, offer := range offers {
		result.Offers = append(result.Offers, formatOffer(offer))
	}
	if len(offers) > 0 {
		next := offers[len(offers)-1].ID
		result.Next = &next
	}
	writeResult(w, req.ID, result)
}

type getFulfilledOfferParams struct {
	OfferID uint64 `json:"offerId"`
}

func (s *Server) handleGetFulfilledOffer(w http.ResponseWriter, req *RPCRequest) {
	var params getFulfilledOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	offer, ok, err := s.node.GetFulfilledOffer(params.OfferID)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeSwapNotFound, "not_found", fmt.Sprintf("fulfilled offer %d not found", params.OfferID))
		return
	}
	payload := formatOffer(offer)
	payload.Status = "fulfilled"
	writeResult(w, req.ID, payload)
}

type getBalanceParams struct {
	Address string `json:"address"`
	Denom   string `json:"denom,omitempty"`
}

type balanceResult struct {
	Address  string         `json:"address"`
	Balances []assetPayload `json:"balances"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params getBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeSwapInvalidParams, "invalid_params", err.Error())
		return
	}
	result := balanceResult{Address: formatAddress(addr)}
	if params.Denom != "" {
		amount, err := s.node.Balance(addr, params.Denom)
		if err != nil {
			writeSwapError(w, req.ID, err)
			return
		}
		result.Balances = []assetPayload{formatAsset(types.Asset{Denom: params.Denom, Amount: amount})}
		writeResult(w, req.ID, result)
		return
	}
	balances, err := s.node.Balances(addr)
	if err != nil {
		writeSwapError(w, req.ID, err)
		return
	}
	result.Balances = make([]assetPayload, 0, len(balances))
	for _, asset := range balances {
		result.Balances = append(result.Balances, formatAsset(asset))
	}
	writeResult(w, req.ID, result)
}
