package service

import (
	"math"
	"testing"

	"foodshare-api/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFees_Breakdown(t *testing.T) {
	fees := NewFees(DefaultFeePercent)

	tests := []struct {
		name  string
		price int64
		want  FeeBreakdown
	}{
		{"free", 0, FeeBreakdown{IsFree: true}},
		{"five euro", 500, FeeBreakdown{PriceCents: 500, FeeCents: 50, GiverReceivesCents: 450}},
		{"half cent rounds up", 1005, FeeBreakdown{PriceCents: 1005, FeeCents: 101, GiverReceivesCents: 904}},
		{"below half cent rounds down", 1004, FeeBreakdown{PriceCents: 1004, FeeCents: 100, GiverReceivesCents: 904}},
		{"one cent", 1, FeeBreakdown{PriceCents: 1, FeeCents: 0, GiverReceivesCents: 1}},
		{"largest price", model.MaxPriceCents, FeeBreakdown{PriceCents: 100_000_000, FeeCents: 10_000_000, GiverReceivesCents: 90_000_000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fees.Breakdown(tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFees_PriceOutOfRange(t *testing.T) {
	fees := NewFees(10)
	for _, price := range []int64{-1, model.MaxPriceCents + 1, math.MaxInt64 / 5} {
		_, err := fees.Breakdown(price)
		assert.ErrorIs(t, err, model.ErrValidation, price)
	}
}

func TestFees_FreeListingIgnoresOriginalPrice(t *testing.T) {
	original := int64(800)
	l := &model.FoodListing{PriceCents: 0, OriginalPriceCents: &original}

	got := NewFees(DefaultFeePercent).ForListing(l)

	assert.Equal(t, FeeBreakdown{IsFree: true}, got)
	assert.Equal(t, "€0.00", FormatCents(got.FeeCents))
	assert.Equal(t, "€0.00", FormatCents(got.GiverReceivesCents))
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "€12.34", FormatCents(1234))
	assert.Equal(t, "€0.05", FormatCents(5))
	assert.Equal(t, "-€1.50", FormatCents(-150))
}
