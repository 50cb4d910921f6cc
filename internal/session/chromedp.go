package session

import (
	"context"
	"fmt"
	"time"

	"autoapply/internal/domain"

	"github.com/chromedp/chromedp"
)

// ChromeProvider opens headless Chrome sessions via chromedp. One
// allocator context per session keeps authentication cookies isolated to
// the application that leased it.
type ChromeProvider struct {
	Headless  bool
	UserAgent string
}

func NewChromeProvider(headless bool) *ChromeProvider {
	return &ChromeProvider{
		Headless:  headless,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
}

type chromeHandle struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

func (p *ChromeProvider) Open(ctx context.Context, platform domain.Platform) (Handle, error) {
	if p == nil {
		return nil, fmt.Errorf("nil provider")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", p.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(p.UserAgent),
		)...,
	)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Spin the browser up now so a broken Chrome install fails the open,
	// not the first submission.
	startCtx, startCancel := context.WithTimeout(browserCtx, 20*time.Second)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chrome start: %w", err)
	}

	return &chromeHandle{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
	}, nil
}

func (p *ChromeProvider) Close(h Handle) error {
	ch, ok := h.(*chromeHandle)
	if !ok || ch == nil {
		return nil
	}
	for _, cancel := range ch.cancels {
		cancel()
	}
	return nil
}

// Run evaluates a script in the session's browser, bounded by ctx.
func (h *chromeHandle) Run(ctx context.Context, script string) error {
	if h == nil {
		return fmt.Errorf("nil handle")
	}
	runCtx, cancel := mergeDeadline(h.ctx, ctx)
	defer cancel()

	var ignored any
	return chromedp.Run(runCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.EvaluateAsDevTools(script, &ignored),
	)
}

func (h *chromeHandle) Close() error {
	for _, cancel := range h.cancels {
		cancel()
	}
	return nil
}

// mergeDeadline bounds the browser context by the caller's deadline
// without cancelling the browser itself.
func mergeDeadline(browser, call context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := call.Deadline(); ok {
		return context.WithDeadline(browser, dl)
	}
	return context.WithCancel(browser)
}
