package domain

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies the job board a posting came from and the
// submission endpoint an Application goes out through.
type Platform string

const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformIndeed   Platform = "indeed"
	PlatformCompany  Platform = "company_website"
	PlatformOther    Platform = "other"
)

// Requirement is one extracted requirement from a posting.
type Requirement struct {
	Category   string `json:"category"`
	Skill      string `json:"skill"`
	Importance string `json:"importance"`
}

// Job is one posting under consideration. Created by discovery, enriched
// once by analysis, immutable after that.
type Job struct {
	ID           uuid.UUID     `json:"id"`
	URL          string        `json:"url"`
	Platform     Platform      `json:"platform"`
	Title        *string       `json:"title,omitempty"`
	Company      *string       `json:"company,omitempty"`
	PostingText  string        `json:"posting_text"`
	Requirements []Requirement `json:"requirements,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (j Job) RequiredSkills() []string {
	out := make([]string, 0, len(j.Requirements))
	for _, r := range j.Requirements {
		if r.Importance == "required" {
			out = append(out, r.Skill)
		}
	}
	return out
}
