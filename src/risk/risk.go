// Package risk provides stateless risk-math helpers. Risk decisions belong
// to the downstream consumer; these are the fast primitives it builds on.
package risk

import "math"

// ParametricVaR computes parametric Value at Risk for a portfolio.
// Z-scores: 99% -> 2.326, 95% -> 1.645, otherwise 1.282.
func ParametricVaR(portfolioValue, volatility, confidence, holdingPeriodDays float64) float64 {
	z := 1.282
	if confidence >= 0.99 {
		z = 2.326
	} else if confidence >= 0.95 {
		z = 1.645
	}
	return portfolioValue * volatility * z * math.Sqrt(holdingPeriodDays)
}

// MaxPositionSize returns the largest position the given risk budget allows.
func MaxPositionSize(equity, riskPct, entryPrice, stopLossPrice float64) float64 {
	riskAmount := equity * (riskPct / 100)
	riskPerUnit := math.Abs(entryPrice - stopLossPrice)
	if riskPerUnit <= 0 {
		return 0
	}
	return riskAmount / riskPerUnit
}

// MarginRequirement returns the margin needed for a notional at leverage.
func MarginRequirement(notional, leverage float64) float64 {
	if leverage <= 0 {
		return notional
	}
	return notional / leverage
}

// ExposurePct returns total position value as a percentage of equity.
func ExposurePct(totalPositionValue, equity float64) float64 {
	if equity <= 0 {
		return 0
	}
	return totalPositionValue / equity * 100
}
