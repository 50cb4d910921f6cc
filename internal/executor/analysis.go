package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"autoapply/internal/domain"
	"autoapply/internal/llm"
)

// maxPostingBytes caps the posting text sent to the LLM.
const maxPostingBytes = 20000

const analysisPrompt = `You are a job posting analyst. Extract the requirements from the
posting below. Respond with JSON only, no markdown fences, matching:
[{"category":"technical|experience|education","skill":"...","importance":"required|preferred|nice-to-have"}]
If a field is unknown use "other". Do not invent requirements that are not in the text.

POSTING:
%s`

// LLMAnalysis implements the analysis stage on top of the LLM capability.
type LLMAnalysis struct {
	llm       llm.Capability
	modelHint string
}

func NewLLMAnalysis(cap llm.Capability, modelHint string) *LLMAnalysis {
	return &LLMAnalysis{llm: cap, modelHint: modelHint}
}

func (a *LLMAnalysis) Analyze(ctx context.Context, postingText string) ([]domain.Requirement, *Failure) {
	if a == nil || a.llm == nil {
		return nil, NewFailure(domain.FailureRejectedInput, fmt.Errorf("nil analysis executor"))
	}
	postingText = strings.TrimSpace(postingText)
	if postingText == "" {
		return nil, NewFailure(domain.FailureRejectedInput, fmt.Errorf("empty posting text"))
	}
	postingText = truncateOnRune(postingText, maxPostingBytes)

	out, err := a.llm.Complete(ctx, fmt.Sprintf(analysisPrompt, postingText), a.modelHint)
	if err != nil {
		return nil, Classify(err)
	}

	reqs, err := parseRequirements(out)
	if err != nil {
		return nil, NewFailure(domain.FailureRejectedInput, err)
	}
	return reqs, nil
}

// truncateOnRune cuts s to at most max bytes without splitting a
// multi-byte rune.
func truncateOnRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func parseRequirements(raw string) ([]domain.Requirement, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var reqs []domain.Requirement
	if err := json.Unmarshal([]byte(raw), &reqs); err != nil {
		return nil, fmt.Errorf("unparseable analysis output: %w", err)
	}
	out := make([]domain.Requirement, 0, len(reqs))
	for _, r := range reqs {
		if strings.TrimSpace(r.Skill) == "" {
			continue
		}
		if r.Category == "" {
			r.Category = "other"
		}
		if r.Importance == "" {
			r.Importance = "required"
		}
		out = append(out, r)
	}
	return out, nil
}
