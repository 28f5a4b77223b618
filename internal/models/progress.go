package models

import "github.com/dmitrijs2005/helix/internal/common"

// Stage is the closed set of orchestrator states.
type Stage int

const (
	StageIdle Stage = iota
	StageEncrypting
	StagePricingQuery
	StageReconciling
	StageSubmitting
	StageRecording
	StageComplete
	StageError
)

var stageNames = [...]string{
	StageIdle:         "Idle",
	StageEncrypting:   "Encrypting",
	StagePricingQuery: "PricingQuery",
	StageReconciling:  "Reconciling",
	StageSubmitting:   "Submitting",
	StageRecording:    "Recording",
	StageComplete:     "Complete",
	StageError:        "Error",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// Percent is the advisory progress value shown for s. Error keeps the
// percentage of the stage that failed, so it has no value of its own.
func (s Stage) Percent() int {
	switch s {
	case StageEncrypting:
		return 10
	case StagePricingQuery:
		return 25
	case StageReconciling:
		return 40
	case StageSubmitting:
		return 60
	case StageRecording:
		return 85
	case StageComplete:
		return 100
	default:
		return 0
	}
}

var transitions = map[Stage][]Stage{
	// Idle -> Recording is the retry-index path: the receipt already exists.
	StageIdle:         {StageEncrypting, StagePricingQuery, StageRecording},
	StageEncrypting:   {StagePricingQuery},
	StagePricingQuery: {StageReconciling},
	StageReconciling:  {StageSubmitting},
	StageSubmitting:   {StageRecording, StageReconciling},
	StageRecording:    {StageComplete},
}

// CanTransition reports whether from -> to is an edge of the upload state
// machine. Every non-terminal stage may move to Error.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UploadProgress is one observation of an orchestration run.
type UploadProgress struct {
	Stage     Stage
	Percent   int
	Message   string
	ReceiptID string
	ErrorKind common.Kind
}
