package domain

import (
	"time"

	"github.com/google/uuid"
)

// TailoringMode is the degree of rewrite applied when deriving a resume
// version for a specific job.
type TailoringMode string

const (
	TailoringConservative TailoringMode = "conservative"
	TailoringModerate     TailoringMode = "moderate"
	TailoringAggressive   TailoringMode = "aggressive"
)

func (m TailoringMode) Valid() bool {
	switch m {
	case TailoringConservative, TailoringModerate, TailoringAggressive:
		return true
	}
	return false
}

// Resume is a versioned artifact. A tailored version references exactly
// one parent; the original has ParentID == nil. Versions are never edited
// in place, re-tailoring creates a new row.
type Resume struct {
	ID          uuid.UUID      `json:"id"`
	CandidateID uuid.UUID      `json:"candidate_id"`
	ParentID    *uuid.UUID     `json:"parent_id,omitempty"`
	Mode        *TailoringMode `json:"mode,omitempty"`
	Content     string         `json:"content"`
	DerivedFrom *uuid.UUID     `json:"derived_from,omitempty"` // job id that produced this version
	CreatedAt   time.Time      `json:"created_at"`
}

func (r Resume) IsOriginal() bool {
	return r.ParentID == nil
}
