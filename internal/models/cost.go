package models

import "github.com/shopspring/decimal"

// StorageCost is the price of storing a payload of a given size. It is
// recomputed on every attempt and never cached.
type StorageCost struct {
	Bytes               int64
	RequiredAtomicUnits uint64
	RequiredDecimal     decimal.Decimal
}

// PrepaidBalance is the bundler's ledger entry for one identity.
type PrepaidBalance struct {
	Address     string
	AtomicUnits uint64
}

// Covers reports whether the balance pays for cost.
func (b PrepaidBalance) Covers(required uint64) bool {
	return b.AtomicUnits >= required
}
