package models

import "time"

// FundingStatus is the lifecycle position of a FundingTransaction.
type FundingStatus string

const (
	FundingConstructed FundingStatus = "constructed"
	FundingSigned      FundingStatus = "signed"
	FundingSubmitted   FundingStatus = "submitted"
	FundingConfirmed   FundingStatus = "confirmed"
	FundingFailed      FundingStatus = "failed"
	FundingAmbiguous   FundingStatus = "ambiguous"
)

// FundingTransaction is a value transfer from the payer to the bundler's
// receiving address. Signature is empty until the signer has produced one.
type FundingTransaction struct {
	Source          string
	Destination     string
	AmountAtomic    uint64
	RecentBlockhash string
	Signature       string
	Memo            string
	Status          FundingStatus
	CreatedAt       time.Time
}

// Signed reports whether the transaction left the signer. Once signed, any
// failure before confirmation makes the outcome ambiguous.
func (f FundingTransaction) Signed() bool {
	return f.Signature != ""
}
