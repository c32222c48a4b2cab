package contracts

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// WeightTolerance is the allowed deviation of total basket weight from 1.0
const WeightTolerance = 1e-3

// ErrInvalidBasket marks basket definitions rejected before persistence
var ErrInvalidBasket = errors.New("invalid basket")

// Basket is a user-defined weighted set of securities whose synthetic
// return series is stored and consumed like any native benchmark.
type Basket struct {
	Code         string              `json:"code"`
	Name         string              `json:"name"`
	Constituents []BasketConstituent `json:"constituents"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// BasketConstituent is one weighted member of a basket
type BasketConstituent struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// Validate rejects malformed basket definitions synchronously,
// before anything is persisted.
func (b *Basket) Validate() error {
	if b.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidBasket)
	}
	if len(b.Constituents) == 0 {
		return fmt.Errorf("%w: at least one constituent is required", ErrInvalidBasket)
	}

	seen := make(map[string]bool, len(b.Constituents))
	var total float64
	for _, c := range b.Constituents {
		if c.Symbol == "" {
			return fmt.Errorf("%w: constituent symbol is required", ErrInvalidBasket)
		}
		if seen[c.Symbol] {
			return fmt.Errorf("%w: duplicate constituent %s", ErrInvalidBasket, c.Symbol)
		}
		seen[c.Symbol] = true
		if c.Weight <= 0 {
			return fmt.Errorf("%w: weight for %s must be positive", ErrInvalidBasket, c.Symbol)
		}
		total += c.Weight
	}

	if math.Abs(total-1.0) > WeightTolerance {
		return fmt.Errorf("%w: weights sum to %.4f, want 1.0 ± %.0e", ErrInvalidBasket, total, WeightTolerance)
	}

	return nil
}

// Symbols returns the constituent symbols in declaration order
func (b *Basket) Symbols() []string {
	symbols := make([]string, 0, len(b.Constituents))
	for _, c := range b.Constituents {
		symbols = append(symbols, c.Symbol)
	}
	return symbols
}
