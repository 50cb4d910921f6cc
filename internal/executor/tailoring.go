package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autoapply/internal/domain"
	"autoapply/internal/llm"

	"github.com/google/uuid"
)

const tailoringPrompt = `You are a resume editor. Rewrite the resume below so it speaks to
the listed requirements. Editing intensity: %s.
- conservative: reorder and re-emphasize only, never invent content
- moderate: rephrase bullets toward the requirements, keep all facts
- aggressive: restructure freely, still strictly factual
Respond with the full rewritten resume as plain text, nothing else.

REQUIREMENTS: %s

RESUME:
%s`

// LLMTailoring derives resume versions through the LLM capability. Each
// successful run yields a new immutable version with lineage back to its
// parent, never an in-place edit.
type LLMTailoring struct {
	llm       llm.Capability
	modelHint string
}

func NewLLMTailoring(cap llm.Capability, modelHint string) *LLMTailoring {
	return &LLMTailoring{llm: cap, modelHint: modelHint}
}

func (t *LLMTailoring) Tailor(ctx context.Context, base domain.Resume, reqs []domain.Requirement, mode domain.TailoringMode) (domain.Resume, *Failure) {
	if t == nil || t.llm == nil {
		return domain.Resume{}, NewFailure(domain.FailureRejectedInput, fmt.Errorf("nil tailoring executor"))
	}
	if !mode.Valid() {
		mode = domain.TailoringConservative
	}
	if strings.TrimSpace(base.Content) == "" {
		return domain.Resume{}, NewFailure(domain.FailureRejectedInput, fmt.Errorf("empty base resume"))
	}

	skills := make([]string, 0, len(reqs))
	for _, r := range reqs {
		skills = append(skills, r.Skill)
	}

	out, err := t.llm.Complete(ctx, fmt.Sprintf(tailoringPrompt, mode, strings.Join(skills, ", "), base.Content), t.modelHint)
	if err != nil {
		return domain.Resume{}, Classify(err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return domain.Resume{}, NewFailure(domain.FailureRejectedInput, fmt.Errorf("empty tailoring output"))
	}

	parent := base.ID
	m := mode
	return domain.Resume{
		ID:          uuid.New(),
		CandidateID: base.CandidateID,
		ParentID:    &parent,
		Mode:        &m,
		Content:     out,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
