// ABOUTME: Fixed-point money representation stored as integer cents
// ABOUTME: Keeps submitted amounts exact across the SQLite round trip

package store

import "math"

// MaxAmount is the largest amount, in currency units, the tools accept. Its
// cent value fits comfortably in an int64.
const MaxAmount = 1e13

// Cents is an amount of money in hundredths of the currency unit.
type Cents int64

// ToCents converts a decimal amount to cents, rounding half away from zero.
func ToCents(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Float64 returns the amount in whole currency units.
func (c Cents) Float64() float64 {
	return float64(c) / 100
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
