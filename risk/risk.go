package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// CalcVolume converts a lot quantity into broker units and rounds it down to
// the nearest volume step. It returns 0 when the result falls below minVolume.
func CalcVolume(lots, lotSize, step, minVolume float64) float64 {
	if lots <= 0 || lotSize <= 0 {
		return 0
	}
	units := decimal.NewFromFloat(lots).Mul(decimal.NewFromFloat(lotSize))
	if step > 0 {
		st := decimal.NewFromFloat(step)
		units = units.Div(st).Floor().Mul(st)
	}
	vol, _ := units.Float64()
	if vol < minVolume || vol <= 0 {
		return 0
	}
	return vol
}

// Protection bundles the stop-loss and take-profit distances of an order.
type Protection struct {
	StopLossPips   int
	TakeProfitPips int
	Dynamic        bool
}

// StaticProtection returns the configured distances unchanged.
func StaticProtection(slPips, tpPips int) Protection {
	return Protection{StopLossPips: slPips, TakeProfitPips: tpPips}
}

// DynamicProtection derives the distances from the current ATR, converted to
// pips and rounded to the nearest integer. Without a usable ATR it returns a
// zero Protection with Dynamic unset.
func DynamicProtection(atr, slMult, tpMult, pipSize float64) Protection {
	if pipSize <= 0 || atr <= 0 || math.IsNaN(atr) || math.IsInf(atr, 0) {
		return Protection{}
	}
	return Protection{
		StopLossPips:   int(math.Round(atr * slMult / pipSize)),
		TakeProfitPips: int(math.Round(atr * tpMult / pipSize)),
		Dynamic:        true,
	}
}

// PipsToPrice converts a distance in pips into a price distance.
func PipsToPrice(pips, pipSize float64) float64 {
	return pips * pipSize
}
