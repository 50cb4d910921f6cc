package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"autoapply/internal/domain"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.FailureKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, domain.FailureTimeout},
		{"wrapped deadline", fmt.Errorf("submit: %w", context.DeadlineExceeded), domain.FailureTimeout},
		{"net timeout", timeoutErr{}, domain.FailureTimeout},
		{"http 429", errors.New("unexpected status 429"), domain.FailureRateLimited},
		{"rate limit text", errors.New("provider rate limit reached"), domain.FailureRateLimited},
		{"quota text", errors.New("quota exceeded for model"), domain.FailureRateLimited},
		{"captcha", errors.New("captcha challenge presented"), domain.FailureAutomationFlag},
		{"unusual activity", errors.New("we detected unusual activity"), domain.FailureAutomationFlag},
		{"http 400", errors.New("unexpected status 400"), domain.FailureRejectedInput},
		{"invalid field", errors.New("invalid phone number"), domain.FailureRejectedInput},
		{"unknown", errors.New("connection reset by peer"), domain.FailureTransientNetwork},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := Classify(tc.err)
			if f == nil {
				t.Fatalf("Classify returned nil for %v", tc.err)
			}
			if f.Kind != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, f.Kind, tc.want)
			}
			if !errors.Is(f, tc.err) {
				t.Fatalf("classified failure must wrap the original error")
			}
		})
	}

	if Classify(nil) != nil {
		t.Fatalf("Classify(nil) must be nil")
	}
}

func TestParseRequirements(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		reqs, err := parseRequirements(`[{"category":"technical","skill":"Go","importance":"required"}]`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(reqs) != 1 || reqs[0].Skill != "Go" {
			t.Fatalf("reqs = %+v", reqs)
		}
	})

	t.Run("markdown fences stripped", func(t *testing.T) {
		raw := "```json\n[{\"category\":\"experience\",\"skill\":\"5 years backend\",\"importance\":\"preferred\"}]\n```"
		reqs, err := parseRequirements(raw)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(reqs) != 1 || reqs[0].Category != "experience" {
			t.Fatalf("reqs = %+v", reqs)
		}
	})

	t.Run("missing fields defaulted", func(t *testing.T) {
		reqs, err := parseRequirements(`[{"skill":"Kubernetes"}]`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if reqs[0].Category != "other" || reqs[0].Importance != "required" {
			t.Fatalf("defaults not applied: %+v", reqs[0])
		}
	})

	t.Run("blank skills dropped", func(t *testing.T) {
		reqs, err := parseRequirements(`[{"skill":"  "},{"skill":"SQL"}]`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(reqs) != 1 || reqs[0].Skill != "SQL" {
			t.Fatalf("reqs = %+v", reqs)
		}
	})

	t.Run("prose is rejected", func(t *testing.T) {
		if _, err := parseRequirements("Sure! Here are the requirements:"); err == nil {
			t.Fatalf("expected parse error")
		}
	})
}

type scriptedLLM struct {
	prompt string
	out    string
}

func (l *scriptedLLM) Complete(ctx context.Context, prompt string, modelHint string) (string, error) {
	l.prompt = prompt
	return l.out, nil
}

func TestAnalyzeTruncatesOnRuneBoundary(t *testing.T) {
	l := &scriptedLLM{out: `[{"category":"technical","skill":"Go","importance":"required"}]`}
	a := NewLLMAnalysis(l, "")

	// A two-byte rune straddling the cap must not be split in half.
	posting := strings.Repeat("a", maxPostingBytes-1) + "é and more text beyond the cap"
	if _, fail := a.Analyze(context.Background(), posting); fail != nil {
		t.Fatalf("analyze: %v", fail)
	}
	if l.prompt == "" {
		t.Fatalf("llm never called")
	}
	if !utf8.ValidString(l.prompt) {
		t.Fatalf("prompt carries a split rune")
	}
	if !strings.Contains(l.prompt, strings.Repeat("a", maxPostingBytes-1)) {
		t.Fatalf("posting text missing from prompt")
	}
	if strings.Contains(l.prompt, "beyond the cap") {
		t.Fatalf("posting was not truncated")
	}
}

func TestTruncateOnRune(t *testing.T) {
	if got := truncateOnRune("héllo", 2); got != "h" {
		t.Fatalf("got %q, want cut moved back to the rune start", got)
	}
	if got := truncateOnRune("héllo", 3); got != "hé" {
		t.Fatalf("got %q, want full rune kept", got)
	}
	if got := truncateOnRune("short", 100); got != "short" {
		t.Fatalf("got %q, want input untouched under the cap", got)
	}
}

func TestDryRunSubmission(t *testing.T) {
	token, fail := DryRunSubmission{}.Submit(context.Background(), nil, domain.Resume{}, domain.Job{})
	if fail != nil {
		t.Fatalf("dry run failed: %v", fail)
	}
	if len(token) != len("DRY-")+8 || token[:4] != "DRY-" {
		t.Fatalf("token = %q, want DRY- prefix with short id", token)
	}
}
