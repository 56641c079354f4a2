package report

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// Renderer converts an HTML document to PDF bytes.
type Renderer interface {
	RenderPDF(ctx context.Context, html []byte) ([]byte, error)
}

// ChromeRenderer prints HTML to PDF with a headless Chrome.
type ChromeRenderer struct {
	// ExecPath overrides Chrome discovery.
	ExecPath string
	Timeout  time.Duration
}

// RenderPDF loads html into a blank page and prints it at US Letter size.
func (r *ChromeRenderer) RenderPDF(ctx context.Context, html []byte) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				Do(ctx)
			pdf = buf
			return err
		}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "report: chrome print to pdf")
	}
	return pdf, nil
}
