package orchestrator

import (
	"fmt"

	"github.com/dmitrijs2005/helix/internal/common"
	"github.com/dmitrijs2005/helix/internal/models"
)

// StageError records the stage an upload failed in. The wrapped error keeps
// its kind, so errors.Is and common.KindOf see through it.
type StageError struct {
	Stage models.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NextAction describes the single safe thing to do after a failure of the
// given kind.
func NextAction(kind common.Kind) string {
	switch kind {
	case common.KindNone:
		return ""
	case common.KindNetwork:
		return "network problem, nothing was stored; retry the upload"
	case common.KindUserRejected:
		return "funding was declined, nothing was spent; upload again and approve the transfer"
	case common.KindFundingUncertain, common.KindAmbiguousOutcome:
		return "a funding transfer may have gone through; check the balance before retrying"
	case common.KindPersistentUnderfunding:
		return "balance is still short after funding; check the price and balance, then retry"
	case common.KindQuota:
		return "the bundler rejected the payload for insufficient balance; check the balance, then retry"
	case common.KindStoredButUnindexed:
		return "the file is stored permanently; retry only the index write with the receipt id"
	case common.KindEncryptionFailed:
		return "encryption failed, nothing was spent; upload again from the original file"
	case common.KindValidation:
		return "the input was rejected; fix it and upload again"
	case common.KindCanceled:
		return "upload abandoned; re-run it, completed steps are not rolled back"
	default:
		return "unexpected failure; check the logs"
	}
}
