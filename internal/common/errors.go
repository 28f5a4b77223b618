// Package common defines the sentinel errors and small helpers shared by the
// upload pipeline, the metadata index and the CLI. Callers should use
// errors.Is to match these values and KindOf to classify them.
package common

import "errors"

var (
	// Pipeline errors. Each one implies a different recovery action.
	ErrNetwork                = errors.New("network error")
	ErrUserRejected           = errors.New("rejected by signer")
	ErrAmbiguousOutcome       = errors.New("funding outcome ambiguous")
	ErrQuota                  = errors.New("bundler balance insufficient at submission")
	ErrValidation             = errors.New("validation error")
	ErrIntegrity              = errors.New("ciphertext failed authentication")
	ErrEncryptionFailed       = errors.New("encryption failed")
	ErrPersistentUnderfunding = errors.New("balance still insufficient after funding")
	ErrFundingUncertain       = errors.New("funding uncertain, re-check balance before retrying")
	ErrStoredButUnindexed     = errors.New("stored but not indexed")

	// Index errors.
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrShareExpired = errors.New("share link expired")
	ErrInternal     = errors.New("internal error")
)
