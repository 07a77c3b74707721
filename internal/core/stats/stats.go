// Package stats computes price statistics over observed listing sets.
// All functions are pure; callers decide scope (one device, one platform,
// the whole store) and the aggregate layer decides caching.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceStats summarizes one set of observed prices.
// Average is the arithmetic mean rounded to the nearest integer unit;
// Median of an even-sized set is the rounded mean of the two middle values.
type PriceStats struct {
	Min     int64 `json:"min"`
	Max     int64 `json:"max"`
	Average int64 `json:"average"`
	Median  int64 `json:"median"`
	Count   int   `json:"count"`
}

// Compute derives PriceStats from a set of prices in a single pass plus one
// sort for the median. An empty set yields the zero value.
func Compute(prices []int64) PriceStats {
	if len(prices) == 0 {
		return PriceStats{}
	}

	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	sum := decimal.Zero
	for _, p := range sorted {
		sum = sum.Add(decimal.NewFromInt(p))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(sorted)))).Round(0).IntPart()

	return PriceStats{
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Average: avg,
		Median:  median(sorted),
		Count:   len(sorted),
	}
}

// median expects sorted input.
func median(sorted []int64) int64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	lo := decimal.NewFromInt(sorted[n/2-1])
	hi := decimal.NewFromInt(sorted[n/2])
	return lo.Add(hi).Div(decimal.NewFromInt(2)).Round(0).IntPart()
}
