package book

import "github.com/shopspring/decimal"

// PriceScale is the fixed-point exponent for price keys: one tick is 1e-6.
const PriceScale = 6

// PriceKey quantizes a price to its integer micro-price key. Going through
// decimal keeps the transform deterministic: two prices that differ by at
// least one tick can never share a key through binary rounding.
func PriceKey(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(PriceScale).IntPart()
}

// KeyToPrice converts a micro-price key back to a float price.
func KeyToPrice(key int64) float64 {
	f, _ := decimal.New(key, -PriceScale).Float64()
	return f
}
