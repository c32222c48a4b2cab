package contracts

import (
	"errors"
	"testing"
)

func TestBasket_Validate(t *testing.T) {
	basket := &Basket{
		Code: "TECH3",
		Name: "Tech trio",
		Constituents: []BasketConstituent{
			{Symbol: "AAPL", Weight: 0.40},
			{Symbol: "MSFT", Weight: 0.35},
			{Symbol: "NVDA", Weight: 0.25},
		},
	}

	if err := basket.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestBasket_Validate_WeightSum(t *testing.T) {
	// Weights summing to 0.97 must be rejected before persistence
	basket := &Basket{
		Code: "BAD",
		Constituents: []BasketConstituent{
			{Symbol: "AAPL", Weight: 0.50},
			{Symbol: "MSFT", Weight: 0.47},
		},
	}

	err := basket.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want weight-sum rejection")
	}
	if !errors.Is(err, ErrInvalidBasket) {
		t.Errorf("error = %v, want ErrInvalidBasket", err)
	}
}

func TestBasket_Validate_Tolerance(t *testing.T) {
	// 1.0005 total is inside the 1e-3 tolerance
	basket := &Basket{
		Code: "NEAR",
		Constituents: []BasketConstituent{
			{Symbol: "AAPL", Weight: 0.5005},
			{Symbol: "MSFT", Weight: 0.5000},
		},
	}

	if err := basket.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil inside tolerance", err)
	}
}

func TestBasket_Validate_Duplicates(t *testing.T) {
	basket := &Basket{
		Code: "DUP",
		Constituents: []BasketConstituent{
			{Symbol: "AAPL", Weight: 0.50},
			{Symbol: "AAPL", Weight: 0.50},
		},
	}

	if err := basket.Validate(); err == nil {
		t.Error("Validate() = nil, want duplicate rejection")
	}
}

func TestBasket_Validate_Empty(t *testing.T) {
	basket := &Basket{Code: "EMPTY"}
	if err := basket.Validate(); err == nil {
		t.Error("Validate() = nil, want rejection for no constituents")
	}
}
