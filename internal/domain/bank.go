package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bank is the running surplus (positive) or deficit (negative) of break
// time, in seconds. It is not bounded in either direction.
//
// A Bank is not safe for concurrent use; the cycle machine that owns it
// serializes access.
type Bank struct {
	seconds decimal.Decimal
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{seconds: decimal.Zero}
}

// Apply adds delta to the balance. Each discrepancy must be applied once.
func (b *Bank) Apply(delta time.Duration) {
	b.seconds = b.seconds.Add(durationSeconds(delta))
}

// Reset empties the bank.
func (b *Bank) Reset() {
	b.seconds = decimal.Zero
}

// Seconds returns the balance in seconds.
func (b *Bank) Seconds() float64 {
	return b.seconds.InexactFloat64()
}

// Duration returns the balance rounded to the nearest nanosecond.
func (b *Bank) Duration() time.Duration {
	return time.Duration(b.seconds.Shift(9).Round(0).IntPart())
}

// IsZero reports whether the balance is exactly zero.
func (b *Bank) IsZero() bool {
	return b.seconds.IsZero()
}

func durationSeconds(d time.Duration) decimal.Decimal {
	return decimal.New(int64(d), -9)
}
