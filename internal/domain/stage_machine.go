package domain

import (
	"fmt"

	"github.com/docuflow/backend/internal/domain/models"
)

// StageOutcome represents how a stage finished, which decides the next stage
type StageOutcome string

const (
	// OutcomeCompleted is the normal forward completion of a stage
	OutcomeCompleted StageOutcome = "Completed"
	// OutcomeApproved is the reviewer approving the prepared document
	OutcomeApproved StageOutcome = "Approved"
	// OutcomeRejected is the reviewer sending the document back for rework
	OutcomeRejected StageOutcome = "Rejected"
)

// StageMachine enforces the legal stage progression of a workflow instance.
// Invalid transitions return an error (fail-fast approach).
type StageMachine struct {
	// transitions maps (completed stage, outcome) -> next stage
	transitions map[stageOutcomeKey]models.Stage
}

type stageOutcomeKey struct {
	stage   models.Stage
	outcome StageOutcome
}

// NewStageMachine creates the stage machine with the document review rules.
// Stage diagram:
//
//	START ──► UPLOAD ──► PREPARE ──► REVIEW ──Approved──► END
//	                        ▲           │
//	                        └──Rejected─┘
//
// START and END auto-complete; the middle stages wait for a human call.
func NewStageMachine() *StageMachine {
	sm := &StageMachine{
		transitions: make(map[stageOutcomeKey]models.Stage),
	}

	sm.addTransition(models.StageStart, OutcomeCompleted, models.StageUpload)
	sm.addTransition(models.StageUpload, OutcomeCompleted, models.StagePrepare)
	sm.addTransition(models.StagePrepare, OutcomeCompleted, models.StageReview)
	sm.addTransition(models.StageReview, OutcomeApproved, models.StageEnd)
	sm.addTransition(models.StageReview, OutcomeRejected, models.StagePrepare)

	return sm
}

func (sm *StageMachine) addTransition(from models.Stage, via StageOutcome, to models.Stage) {
	key := stageOutcomeKey{stage: from, outcome: via}
	sm.transitions[key] = to
}

// Next returns the stage that follows the given stage for the given outcome.
// Returns an error if no such transition exists.
func (sm *StageMachine) Next(completed models.Stage, outcome StageOutcome) (models.Stage, error) {
	key := stageOutcomeKey{stage: completed, outcome: outcome}
	next, ok := sm.transitions[key]
	if !ok {
		return completed, fmt.Errorf("invalid stage transition: no %s outcome from %s", outcome, completed)
	}
	return next, nil
}

// CanAdvance checks if an outcome is legal for a stage without advancing
func (sm *StageMachine) CanAdvance(completed models.Stage, outcome StageOutcome) bool {
	key := stageOutcomeKey{stage: completed, outcome: outcome}
	_, ok := sm.transitions[key]
	return ok
}

// Outcomes returns all legal outcomes for the given stage
func (sm *StageMachine) Outcomes(stage models.Stage) []StageOutcome {
	var result []StageOutcome
	for key := range sm.transitions {
		if key.stage == stage {
			result = append(result, key.outcome)
		}
	}
	return result
}

// IsTerminal returns true if the stage has no outgoing transitions
func (sm *StageMachine) IsTerminal(stage models.Stage) bool {
	return stage == models.StageEnd
}

// RequiresHuman returns true for stages that wait for an external complete call
func (sm *StageMachine) RequiresHuman(stage models.Stage) bool {
	switch stage {
	case models.StageUpload, models.StagePrepare, models.StageReview:
		return true
	}
	return false
}
