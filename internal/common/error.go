package common

import (
	"context"
	"errors"
)

// Kind is the closed set of error classes surfaced to callers of the
// upload pipeline. It is carried by UploadProgress.ErrorKind.
type Kind string

const (
	KindNone                   Kind = ""
	KindEncryptionFailed       Kind = "EncryptionFailed"
	KindNetwork                Kind = "NetworkError"
	KindUserRejected           Kind = "UserRejected"
	KindAmbiguousOutcome       Kind = "AmbiguousOutcome"
	KindFundingUncertain       Kind = "FundingUncertain"
	KindPersistentUnderfunding Kind = "PersistentUnderfunding"
	KindQuota                  Kind = "QuotaError"
	KindValidation             Kind = "ValidationError"
	KindStoredButUnindexed     Kind = "StoredButUnindexed"
	KindIntegrity              Kind = "IntegrityError"
	KindCanceled               Kind = "Canceled"
	KindInternal               Kind = "Internal"
)

// kindOrder lists sentinels from most to least specific. A stored-but-unindexed
// error usually wraps the network error that caused it, and a funding-uncertain
// error wraps the ambiguous outcome, so the outer meaning must win.
var kindOrder = []struct {
	err  error
	kind Kind
}{
	{ErrStoredButUnindexed, KindStoredButUnindexed},
	{ErrFundingUncertain, KindFundingUncertain},
	{ErrPersistentUnderfunding, KindPersistentUnderfunding},
	{ErrEncryptionFailed, KindEncryptionFailed},
	{ErrUserRejected, KindUserRejected},
	{ErrAmbiguousOutcome, KindAmbiguousOutcome},
	{ErrQuota, KindQuota},
	{ErrIntegrity, KindIntegrity},
	{ErrValidation, KindValidation},
	{ErrNetwork, KindNetwork},
}

// KindOf classifies err. Unknown errors are KindInternal; nil is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindInternal
}

// Retryable reports whether the failed step may be repeated as-is.
func (k Kind) Retryable() bool {
	return k == KindNetwork
}
