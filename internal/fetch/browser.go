// internal/fetch/browser.go
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/openshelf/bookscraper/pkg/types"
)

// Browser fetches a page through a headless browser, for pages whose
// embedded object graph only materializes after client-side rendering. It
// is the fallback when a plain HTTP fetch comes back incomplete.
type Browser struct {
	timeout   time.Duration
	userAgent string
	log       *logrus.Logger
}

// NewBrowser creates a rendered-page fetcher.
func NewBrowser(timeout time.Duration, userAgent string, log *logrus.Logger) *Browser {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgents()[0]
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Browser{timeout: timeout, userAgent: userAgent, log: log}
}

// Fetch navigates to the URL, waits for the document to settle, and returns
// the rendered markup.
func (b *Browser) Fetch(ctx context.Context, pageURL string, kind types.PageKind) (*types.RawPage, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(b.userAgent),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, b.timeout)
	defer cancelRun()

	b.log.WithField("url", pageURL).Debug("fetching via headless browser")

	var html, finalURL string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("rendered fetch of %s: %w", pageURL, err)
	}

	return &types.RawPage{
		URL:      pageURL,
		FinalURL: finalURL,
		Kind:     kind,
		Body:     []byte(html),
	}, nil
}
