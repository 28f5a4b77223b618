// Package orchestrator runs one upload through its stages:
//
//	Idle -> [Encrypting] -> PricingQuery -> Reconciling -> Submitting -> Recording -> Complete
//
// with Error reachable from every non-terminal stage. Stages run strictly in
// order on a single goroutine per upload. Progress is published on a
// buffered channel and the terminal outcome is returned by Run.Wait.
//
// Recovery rules by error kind:
//
//   - NetworkError at PricingQuery, Submitting or Recording is retried in
//     place up to Config.NetworkRetries times.
//   - QuotaError at Submitting refreshes the cost and goes back to
//     Reconciling once.
//   - Anything that fails after a receipt exists ends as StoredButUnindexed;
//     RetryRecording finishes such an upload without paying again.
//
// A caller may abandon a run by cancelling its context. Cancellation is
// observed between stages; a stage already in flight runs to completion or
// its own timeout.
package orchestrator
