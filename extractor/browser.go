package extractor

import (
	"context"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

func (e *Extractor) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.UserAgent(e.cfg.UserAgent),
		chromedp.Flag("accept-language", "en-US,en;q=0.9"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", ""),
	)
	if e.cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(e.cfg.ProxyURL))
	}
	return opts
}

// renderPage loads the page in headless Chrome and returns the DOM after
// scripts have run.
func (e *Extractor) renderPage(ctx context.Context, pageURL string) ([]byte, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, e.allocatorOptions()...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, e.cfg.BrowserTimeout)
	defer timeoutCancel()

	e.logger.Info("rendering page", zap.String("url", pageURL))

	var outer string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`, nil),
		chromedp.OuterHTML("html", &outer),
	)
	if err != nil {
		return nil, err
	}
	return []byte(outer), nil
}
