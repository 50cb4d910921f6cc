package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cause is what triggered a lifecycle transition.
type Cause string

const (
	CauseStageSuccess Cause = "stage_success"
	CauseStageFailure Cause = "stage_failure"
	CauseManual       Cause = "manual_override"
	CauseTimeout      Cause = "timeout"
)

// Event is one immutable lifecycle transition record. The event log is
// the source of truth: an Application's State column is a projection that
// replaying its Events in order must reproduce.
type Event struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	JobID         uuid.UUID `json:"job_id"`
	From          State     `json:"from"`
	To            State     `json:"to"`
	Cause         Cause     `json:"cause"`
	Note          *string   `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
