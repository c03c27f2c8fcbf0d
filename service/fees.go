package service

import (
	"fmt"

	"foodshare-api/model"
)

const DefaultFeePercent = 10

// FeeBreakdown is what the checkout screen shows for a price.
type FeeBreakdown struct {
	PriceCents         int64 `json:"priceCents"`
	FeeCents           int64 `json:"feeCents"`
	GiverReceivesCents int64 `json:"giverReceivesCents"`
	IsFree             bool  `json:"isFree"`
}

// Fees computes the platform cut. Amounts are whole cents; the fee rounds half up.
type Fees struct {
	Percent int64
}

func NewFees(percent int) Fees {
	return Fees{Percent: int64(percent)}
}

func (f Fees) Breakdown(priceCents int64) (FeeBreakdown, error) {
	if priceCents < 0 {
		return FeeBreakdown{}, fmt.Errorf("%w: price must not be negative", model.ErrValidation)
	}
	if priceCents > model.MaxPriceCents {
		return FeeBreakdown{}, fmt.Errorf("%w: price must be at most %d cents", model.ErrValidation, model.MaxPriceCents)
	}
	if priceCents == 0 {
		return FeeBreakdown{IsFree: true}, nil
	}
	fee := (priceCents*f.Percent + 50) / 100
	return FeeBreakdown{
		PriceCents:         priceCents,
		FeeCents:           fee,
		GiverReceivesCents: priceCents - fee,
	}, nil
}

// ForListing uses the listing's price; the original price never affects the fee.
func (f Fees) ForListing(l *model.FoodListing) FeeBreakdown {
	b, err := f.Breakdown(l.PriceCents)
	if err != nil {
		return FeeBreakdown{}
	}
	return b
}

// FormatCents renders 1234 as "€12.34".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s€%d.%02d", sign, cents/100, cents%100)
}
