package types

import (
	"fmt"
	"math/big"
	"strings"
)

// Asset is a declared quantity of a single denomination, e.g. 1000000 uatom.
type Asset struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// NewAsset builds an asset from a denomination and an int64 amount.
func NewAsset(denom string, amount int64) Asset {
	return Asset{Denom: denom, Amount: big.NewInt(amount)}
}

// Clone returns a deep copy of the asset so callers can safely mutate the copy
// without affecting the original.
func (a Asset) Clone() Asset {
	clone := Asset{Denom: a.Denom, Amount: big.NewInt(0)}
	if a.Amount != nil {
		clone.Amount = new(big.Int).Set(a.Amount)
	}
	return clone
}

// Equal reports whether both denomination and amount match exactly.
func (a Asset) Equal(other Asset) bool {
	if a.Denom != other.Denom {
		return false
	}
	left := a.Amount
	if left == nil {
		left = big.NewInt(0)
	}
	right := other.Amount
	if right == nil {
		right = big.NewInt(0)
	}
	return left.Cmp(right) == 0
}

func (a Asset) String() string {
	amount := a.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}
	return fmt.Sprintf("%s%s", amount.String(), a.Denom)
}

// NormalizeDenom canonicalises a denomination to its lowercase trimmed form.
func NormalizeDenom(denom string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(denom))
	if trimmed == "" {
		return "", fmt.Errorf("denomination must not be empty")
	}
	return trimmed, nil
}

// SanitizeAsset validates and normalises the supplied asset, returning a clone
// with canonical denomination casing and a non-nil positive amount.
func SanitizeAsset(a Asset) (Asset, error) {
	clone := a.Clone()
	denom, err := NormalizeDenom(clone.Denom)
	if err != nil {
		return Asset{}, err
	}
	clone.Denom = denom
	if clone.Amount.Sign() <= 0 {
		return Asset{}, fmt.Errorf("asset amount must be positive")
	}
	return clone, nil
}

// CloneAssets deep-copies a slice of attached assets.
func CloneAssets(assets []Asset) []Asset {
	if assets == nil {
		return nil
	}
	out := make([]Asset, len(assets))
	for i, a := range assets {
		out[i] = a.Clone()
	}
	return out
}
